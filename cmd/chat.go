package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/clipchat-ai/clipchat/internal/chat"
	"github.com/clipchat-ai/clipchat/internal/config"
	"github.com/clipchat-ai/clipchat/internal/history"
	"github.com/clipchat-ai/clipchat/internal/provider"
	"github.com/clipchat-ai/clipchat/internal/selection"
	"github.com/clipchat-ai/clipchat/internal/transcript"
	"github.com/clipchat-ai/clipchat/internal/tui"
)

const defaultPreamble = "You are discussing a video with the user. The transcript of the " +
	"selected chapters follows. Answer questions about the video's content, " +
	"citing what is actually said. If something is not covered by the " +
	"transcript, say so."

// turnSink wraps PlainIO and signals when a turn fully settles, so the
// REPL can hold the prompt until streaming finishes.
type turnSink struct {
	*tui.PlainIO
	done chan struct{}
}

func (s *turnSink) StreamDone(fullText string, cancelled bool) {
	s.PlainIO.StreamDone(fullText, cancelled)
	s.done <- struct{}{}
}

func (s *turnSink) StreamError(err error) {
	s.PlainIO.StreamError(err)
	s.done <- struct{}{}
}

// runChat starts the interactive chat (REPL) mode.
func runChat() error {
	cfg := initConfig()

	tr, err := loadTranscript(cfg)
	if err != nil {
		return err
	}

	p, err := buildProvider(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.Model == "" {
		cfg.Model = p.DefaultModel()
	}

	quota := cfg.ContextWindow
	if quota <= 0 {
		quota = p.ContextWindow()
	}

	ui := tui.NewPlainIO()
	sink := &turnSink{PlainIO: ui, done: make(chan struct{}, 1)}

	// History store, unless disabled.
	var store *history.Store
	var recorder chat.Recorder
	var resumed []provider.Message
	if !cfg.History.Disabled {
		store, recorder, resumed, err = openHistory(cfg, tr, ui)
		if err != nil {
			ui.Error(err.Error())
		}
		if store != nil {
			defer store.Close()
		}
	}

	preamble := cfg.SystemPrompt
	if preamble == "" {
		preamble = defaultPreamble
	}
	sess := chat.NewSession(chat.SessionOptions{
		Provider:          p,
		Sink:              sink,
		Transcript:        tr,
		Quota:             quota,
		MarginFactor:      cfg.MarginFactor,
		MaxResponseTokens: cfg.MaxResponseTokens,
		Model:             cfg.Model,
		PromptPreamble:    preamble,
		Recorder:          recorder,
		Warnf: func(format string, args ...any) {
			ui.SystemMessage(fmt.Sprintf(format, args...))
		},
	})
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First Ctrl+C stops a streaming turn; when idle it ends the session.
	// Closing stdin unblocks the read loop waiting in Scan.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if sess.Controller().Active() {
				sess.CancelTurn()
			} else {
				cancel()
				os.Stdin.Close()
				return
			}
		}
	}()

	// Initial chapter selection: --chapters, or everything.
	requested := allChapters(tr)
	if chaptersFlag != "" {
		requested = selection.ParseRange(chaptersFlag, len(tr.Chapters))
	}
	res, err := sess.Select(ctx, requested)
	if err != nil {
		return err
	}
	if len(resumed) > 0 {
		sess.RestoreMessages(resumed)
		ui.SystemMessage(fmt.Sprintf("resumed previous chat (%d messages)", len(resumed)))
	}

	ui.SystemMessage(fmt.Sprintf("clipchat %s — %s via %s", displayVersion(), cfg.Model, p.Name()))
	ui.SystemMessage(fmt.Sprintf("video: %s (%d chapters)", tr.Title, len(tr.Chapters)))
	reportSelection(ui, res, len(tr.Chapters))
	snap := sess.Budget()
	ui.SetContextInfo(snap.TotalTokens, snap.Quota)
	ui.SystemMessage("type /help for commands")

	for ctx.Err() == nil {
		line, err := ui.ReadInput()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, fs.ErrClosed) {
				return nil
			}
			return err
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := handleCommand(ctx, line, sess, tr, ui); quit {
				return nil
			}
			continue
		}

		ui.ThinkingStart()
		if err := sess.SendTurn(ctx, line); err != nil {
			if !errors.Is(err, chat.ErrBusy) {
				ui.Error(err.Error())
			}
			continue
		}
		<-sink.done

		snap := sess.Budget()
		ui.SetContextInfo(snap.TotalTokens, snap.Quota)
	}
	return nil
}

// openHistory opens the store and either resumes the latest chat about
// this video or starts a new one.
func openHistory(cfg *config.Config, tr *transcript.Transcript, ui *tui.PlainIO) (*history.Store, chat.Recorder, []provider.Message, error) {
	path, err := cfg.HistoryDBPath()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open history: %w", err)
	}

	var resumed []provider.Message
	var chatID int64
	if resumeFlag {
		prev, err := store.LatestChatForVideo(tr.VideoID)
		if err != nil {
			store.Close()
			return nil, nil, nil, err
		}
		if prev != nil {
			chatID = prev.ID
			msgs, err := store.MessagesForChat(prev.ID)
			if err != nil {
				store.Close()
				return nil, nil, nil, err
			}
			for _, m := range msgs {
				resumed = append(resumed, provider.Message{Role: provider.Role(m.Role), Text: m.Content})
			}
		} else {
			ui.SystemMessage("no previous chat for this video; starting fresh")
		}
	}
	if chatID == 0 {
		chatID, err = store.CreateChat(tr.VideoID, tr.Title, cfg.Provider, cfg.Model)
		if err != nil {
			store.Close()
			return nil, nil, nil, err
		}
	}
	return store, store.Recorder(chatID), resumed, nil
}

// handleCommand dispatches a slash command. Returns true when the REPL
// should exit.
func handleCommand(ctx context.Context, line string, sess *chat.Session, tr *transcript.Transcript, ui *tui.PlainIO) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		ui.SystemMessage(strings.Join([]string{
			"/chapters          list chapters (included ones marked *)",
			"/select <range>    choose chapters, e.g. /select 1-3,5",
			"/budget            show token budget usage",
			"/stop              stop the current response",
			"/reset             clear the conversation, keep the selection",
			"/quit              exit",
		}, "\n"))

	case "/chapters":
		printChapters(sess, tr, ui)

	case "/select":
		if arg == "" {
			ui.Error("usage: /select 1-3,5")
			break
		}
		requested := selection.ParseRange(arg, len(tr.Chapters))
		if len(requested) == 0 {
			ui.Error(fmt.Sprintf("no valid chapters in %q (video has %d)", arg, len(tr.Chapters)))
			break
		}
		res, err := sess.Select(ctx, requested)
		if err != nil {
			ui.Error(err.Error())
			break
		}
		reportSelection(ui, res, len(tr.Chapters))
		snap := sess.Budget()
		ui.SetContextInfo(snap.TotalTokens, snap.Quota)

	case "/budget":
		snap := sess.Budget()
		ui.SystemMessage(fmt.Sprintf(
			"quota %d, threshold %d\nsystem prompt %d, conversation %d, total %d (%.1f%%)",
			snap.Quota, snap.Threshold,
			snap.SystemTokens, snap.ConversationTokens, snap.TotalTokens, snap.PercentageUsed))

	case "/stop":
		sess.CancelTurn()

	case "/reset":
		if err := sess.Reset(); err != nil {
			ui.Error(err.Error())
			break
		}
		ui.SystemMessage("conversation cleared")

	default:
		ui.Error(fmt.Sprintf("unknown command %s (try /help)", cmd))
	}
	return false
}

func printChapters(sess *chat.Session, tr *transcript.Transcript, ui *tui.PlainIO) {
	included := make(map[int]bool)
	for _, i := range sess.Selected() {
		included[i] = true
	}
	var b strings.Builder
	for i, ch := range tr.Chapters {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(ui.ChapterLine(i, ch.Title, ch.StartSeconds, included[i]))
	}
	ui.SystemMessage(b.String())
}

// reportSelection tells the user what survived budget validation.
func reportSelection(ui *tui.PlainIO, res selection.Result, chapterCount int) {
	if chapterCount == 0 {
		if res.WasTruncated {
			ui.SystemMessage(fmt.Sprintf("no chapter markers; transcript truncated to fit (~%d tokens, estimated)", res.TokenCount))
		} else {
			ui.SystemMessage(fmt.Sprintf("no chapter markers; full transcript in context (~%d tokens, estimated)", res.TokenCount))
		}
		return
	}
	if len(res.Valid) == 0 {
		ui.SystemMessage("no chapters fit the budget; the chat has no transcript context")
		return
	}
	msg := fmt.Sprintf("chapters %s in context (~%d tokens", selection.FormatRange(res.Valid), res.TokenCount)
	if res.Estimated {
		msg += ", estimated)"
	} else {
		msg += ", measured)"
	}
	ui.SystemMessage(msg)
	if len(res.Removed) > 0 {
		ui.SystemMessage(fmt.Sprintf("over budget: dropped chapters %s", selection.FormatRange(res.Removed)))
	}
}

func allChapters(tr *transcript.Transcript) []int {
	indices := make([]int, len(tr.Chapters))
	for i := range indices {
		indices[i] = i
	}
	return indices
}
