package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/clipchat-ai/clipchat/internal/chat"
	"github.com/clipchat-ai/clipchat/internal/selection"
	"github.com/clipchat-ai/clipchat/internal/tui"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var prompt string
	var outputFormat string
	var printLast bool

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask a single question about the transcript non-interactively",
		Example: `  clipchat ask -t talk.json -P "what are the three main points?"
  clipchat ask -t dQw4w9WgXcQ --chapters 2-4 -P "summarize" --format jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return fmt.Errorf("--prompt / -P is required")
			}
			return askOnce(prompt, outputFormat, printLast)
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "P", "", "the question to ask")
	cmd.Flags().StringVar(&outputFormat, "format", "text", "output format: text or jsonl")
	cmd.Flags().BoolVar(&printLast, "last", false, "suppress streaming, print only the final text")
	cmd.MarkFlagRequired("prompt")

	return cmd
}

// askOnce runs a single turn and exits. History is not recorded in this
// mode; it is meant for pipes and scripts.
func askOnce(prompt, format string, printLast bool) error {
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

	ui := tui.NewPipeIO(format, printLast)
	sink := &pipeSink{PipeIO: ui, done: make(chan struct{}, 1)}

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
		Warnf: func(f string, args ...any) {
			ui.SystemMessage(fmt.Sprintf(f, args...))
		},
	})
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		sess.CancelTurn()
		cancel()
	}()

	requested := allChapters(tr)
	if chaptersFlag != "" {
		requested = selection.ParseRange(chaptersFlag, len(tr.Chapters))
	}
	res, err := sess.Select(ctx, requested)
	if err != nil {
		return err
	}
	if len(res.Removed) > 0 {
		ui.SystemMessage(fmt.Sprintf("over budget: dropped chapters %s", selection.FormatRange(res.Removed)))
	}

	if err := sess.SendTurn(ctx, prompt); err != nil {
		return err
	}
	<-sink.done

	ui.Flush()
	return nil
}

// pipeSink signals turn completion for the one-shot flow.
type pipeSink struct {
	*tui.PipeIO
	done chan struct{}
}

func (s *pipeSink) StreamDone(fullText string, cancelled bool) {
	s.PipeIO.StreamDone(fullText, cancelled)
	s.done <- struct{}{}
}

func (s *pipeSink) StreamError(err error) {
	s.PipeIO.StreamError(err)
	s.done <- struct{}{}
}
