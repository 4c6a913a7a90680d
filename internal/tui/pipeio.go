package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// PipeIO implements IO for non-interactive pipe/CI mode, used by the
// one-shot ask command. Response text goes to stdout, diagnostics go to
// stderr. Supports "text" (stream as it arrives) and "jsonl" (one JSON
// event per line) output formats.
type PipeIO struct {
	format    string    // "text" or "jsonl"
	printLast bool      // only output the final response text
	writer    io.Writer // stdout
	errW      io.Writer // stderr
	lastText  string
}

var _ IO = (*PipeIO)(nil)

// NewPipeIO creates a PipeIO instance.
func NewPipeIO(format string, printLast bool) *PipeIO {
	if format == "" {
		format = "text"
	}
	return &PipeIO{
		format:    format,
		printLast: printLast,
		writer:    os.Stdout,
		errW:      os.Stderr,
	}
}

func (p *PipeIO) ReadInput() (string, error) { return "", io.EOF }
func (p *PipeIO) UserMessage(_ string)       {}
func (p *PipeIO) ThinkingStart()             {}

func (p *PipeIO) StreamDelta(delta string) {
	if p.printLast {
		return // suppress streaming in printLast mode
	}
	if p.format == "jsonl" {
		return // jsonl emits full text on StreamDone
	}
	fmt.Fprint(p.writer, delta)
}

func (p *PipeIO) StreamReplace(text string) {
	if p.printLast || p.format == "jsonl" {
		return
	}
	fmt.Fprintf(p.writer, "\n%s", text)
}

func (p *PipeIO) StreamDone(fullText string, cancelled bool) {
	p.lastText = fullText
	if p.printLast {
		return // flushed at Flush()
	}
	if p.format == "jsonl" {
		p.emitJSONL("text", map[string]any{"content": fullText, "cancelled": cancelled})
	} else {
		fmt.Fprintln(p.writer) // newline after streaming deltas
	}
}

func (p *PipeIO) StreamError(err error) {
	if p.format == "jsonl" {
		p.emitJSONL("error", map[string]string{"message": err.Error()})
		return
	}
	fmt.Fprintf(p.errW, "generation failed: %s\n", err)
}

func (p *PipeIO) SystemMessage(text string) {
	fmt.Fprintln(p.errW, text)
}

func (p *PipeIO) Error(msg string) {
	fmt.Fprintf(p.errW, "error: %s\n", msg)
}

func (p *PipeIO) SetContextInfo(used, quota int) {
	if p.format == "jsonl" {
		p.emitJSONL("context", map[string]int{"used": used, "quota": quota})
	}
}

// Flush outputs the last response text when in printLast mode.
// Should be called after the turn finishes.
func (p *PipeIO) Flush() {
	if p.printLast && p.lastText != "" {
		fmt.Fprintln(p.writer, p.lastText)
	}
}

// emitJSONL writes a JSON line to stdout.
func (p *PipeIO) emitJSONL(eventType string, data any) {
	line, _ := json.Marshal(map[string]any{
		"type":      eventType,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      data,
	})
	fmt.Fprintln(p.writer, string(line))
}
