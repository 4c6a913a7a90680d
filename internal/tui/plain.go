package tui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// PlainIO implements IO using line-oriented terminal output. It is the
// interactive surface: the prompt reads from stdin, streamed text prints
// incrementally, and styling degrades to plain text on a non-TTY.
type PlainIO struct {
	scanner *bufio.Scanner
	isTTY   bool
	mu      sync.Mutex // serializes writes from the stream goroutine and the loop
}

var _ IO = (*PlainIO)(nil)

// NewPlainIO creates a PlainIO that reads from stdin.
func NewPlainIO() *PlainIO {
	s := bufio.NewScanner(os.Stdin)
	s.Buffer(make([]byte, 1024*1024), 1024*1024)
	return &PlainIO{
		scanner: s,
		isTTY:   term.IsTerminal(int(os.Stdout.Fd())),
	}
}

func (p *PlainIO) ReadInput() (string, error) {
	fmt.Print("\n" + p.style(userStyle, ">") + " ")
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

func (p *PlainIO) UserMessage(_ string) {
	// The user already sees what they typed.
}

func (p *PlainIO) ThinkingStart() {
	fmt.Println() // blank line before the response begins
}

func (p *PlainIO) StreamDelta(delta string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Print(delta)
}

func (p *PlainIO) StreamReplace(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// A line printer cannot unprint; start the replacement on a new line.
	fmt.Printf("\n%s\n%s", p.style(systemStyle, "(response restarted)"), text)
}

func (p *PlainIO) StreamDone(_ string, cancelled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Println()
	if cancelled {
		fmt.Println(p.style(cancelledStyle, "(stopped)"))
	}
}

func (p *PlainIO) StreamError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Println()
	fmt.Fprintln(os.Stderr, p.style(errorStyle, "generation failed: ")+err.Error())
}

func (p *PlainIO) SystemMessage(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Println(p.style(systemStyle, text))
}

func (p *PlainIO) Error(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(os.Stderr, p.style(errorStyle, "error: ")+msg)
}

func (p *PlainIO) SetContextInfo(used, quota int) {
	if quota <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pct := float64(used) / float64(quota) * 100
	line := fmt.Sprintf("[context: %d/%d tokens, %.0f%%]", used, quota, pct)
	if pct >= 80 {
		fmt.Println(p.style(budgetHotStyle, line))
	} else {
		fmt.Println(p.style(budgetOKStyle, line))
	}
}

// ChapterLine renders one chapter row for listings, with inclusion state.
func (p *PlainIO) ChapterLine(index int, title string, startSeconds float64, included bool) string {
	mark := " "
	if included {
		mark = "*"
	}
	ts := formatTimestamp(startSeconds)
	return fmt.Sprintf("%s %s  %s  %s",
		mark,
		p.style(chapterIndexStyle, fmt.Sprintf("%2d.", index+1)),
		p.style(systemStyle, ts),
		p.style(chapterTitleStyle, title))
}

// style applies st only when writing to a real terminal.
func (p *PlainIO) style(st interface{ Render(...string) string }, s string) string {
	if !p.isTTY {
		return s
	}
	return st.Render(s)
}

// formatTimestamp renders seconds as H:MM:SS or M:SS.
func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := total % 3600 / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
