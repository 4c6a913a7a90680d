package cmd

import (
	"fmt"

	"github.com/clipchat-ai/clipchat/internal/budget"
	"github.com/clipchat-ai/clipchat/internal/transcript"
	"github.com/clipchat-ai/clipchat/internal/tui"
	"github.com/spf13/cobra"
)

func newChaptersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chapters",
		Short: "List a transcript's chapters with estimated token counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := initConfig()
			tr, err := loadTranscript(cfg)
			if err != nil {
				return err
			}

			// Without a configured context window there is no threshold to
			// report against; the listing still shows per-chapter weight.
			threshold := 0
			if cfg.ContextWindow > 0 {
				threshold = budget.NewPlanner(cfg.ContextWindow, cfg.MarginFactor).Threshold()
			}

			ui := tui.NewPlainIO()
			total := 0
			for i, ch := range tr.Chapters {
				segs := transcript.SegmentsForChapters(tr.Segments, tr.Chapters, []int{i})
				tokens := budget.Estimate(transcript.Assemble(segs))
				total += tokens
				fits := threshold > 0 && total <= threshold
				fmt.Printf("%s  ~%d tokens\n", ui.ChapterLine(i, ch.Title, ch.StartSeconds, fits), tokens)
			}
			fmt.Printf("\n%s: %d chapters, ~%d tokens total", tr.Title, len(tr.Chapters), total)
			if threshold > 0 {
				fmt.Printf(" (threshold %d; * marks the prefix that fits)", threshold)
			}
			fmt.Println()
			return nil
		},
	}
}
