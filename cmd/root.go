package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clipchat-ai/clipchat/internal/config"
	"github.com/clipchat-ai/clipchat/internal/provider"
	"github.com/clipchat-ai/clipchat/internal/transcript"
	"github.com/spf13/cobra"
)

var (
	cfgFile        string
	modelFlag      string
	providerFlag   string
	transcriptFlag string
	chaptersFlag   string
	resumeFlag     bool
	noHistoryFlag  bool

	// Package-level version info, set by Execute().
	appVersion string
	appCommit  string
	appDate    string
)

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date

	rootCmd := &cobra.Command{
		Use:   "clipchat",
		Short: "Chat with an LLM about a video transcript",
		Long: "clipchat loads a video transcript, fits the chapters you pick into the\n" +
			"model's context window, and starts a streaming conversation about them.",
		// Running clipchat with no subcommand starts chat mode.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ~/.config/clipchat/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "override model")
	rootCmd.PersistentFlags().StringVarP(&providerFlag, "provider", "p", "", "override provider")
	rootCmd.PersistentFlags().StringVarP(&transcriptFlag, "transcript", "t", "", "transcript JSON file, or a video id under transcripts_dir")
	rootCmd.PersistentFlags().StringVar(&chaptersFlag, "chapters", "", "initial chapter selection, e.g. \"1-3,5\" (default: all)")
	rootCmd.PersistentFlags().BoolVar(&resumeFlag, "resume", false, "resume the most recent chat about this video")
	rootCmd.PersistentFlags().BoolVar(&noHistoryFlag, "no-history", false, "disable chat history persistence")

	// Subcommands
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newChaptersCmd())
	rootCmd.AddCommand(newVersionCmd(version, commit, date))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// displayVersion returns a formatted version string for the chat banner,
// e.g. "v0.1.0 (abc1234)".
func displayVersion() string {
	v := "v" + appVersion
	if appCommit != "" && appCommit != "none" {
		v += " (" + appCommit + ")"
	}
	return v
}

// initConfig loads configuration, applying CLI flag overrides.
func initConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// CLI flags override config values
	if providerFlag != "" {
		cfg.Provider = providerFlag
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if noHistoryFlag {
		cfg.History.Disabled = true
	}

	return cfg
}

// providerBaseURLs references the canonical map in the config package.
var providerBaseURLs = config.KnownProviderBaseURLs

// buildProvider creates a Provider instance based on configuration.
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	name := cfg.Provider
	pc := cfg.GetProviderConfig(name)

	apiKey := pc.APIKey
	if apiKey == "" {
		return nil, fmt.Errorf(
			"API key not configured for provider %q.\n"+
				"Set it via:\n"+
				"  - config file: providers.%s.api_key\n"+
				"  - environment: LLM_API_KEY",
			name, name,
		)
	}

	// Determine model: CLI flag > config file > provider defaults YAML
	model := cfg.Model
	if pc.Model != "" && model == "" {
		model = pc.Model
	}
	if model == "" {
		if m, ok := config.KnownProviderModels[name]; ok {
			model = m
		}
	}

	switch name {
	case "anthropic":
		p := provider.NewAnthropicProvider(apiKey, model)
		return p, nil
	default:
		// All other providers use OpenAI-compatible API
		baseURL := pc.BaseURL
		if baseURL == "" {
			if u, ok := providerBaseURLs[name]; ok {
				baseURL = u
			} else {
				return nil, fmt.Errorf("unknown provider %q; set providers.%s.base_url in config", name, name)
			}
		}
		p := provider.NewOpenAIProvider(apiKey, baseURL, model)
		return p, nil
	}
}

// loadTranscript resolves the --transcript flag to a file: an existing
// path wins, otherwise it is treated as a video id under transcripts_dir.
func loadTranscript(cfg *config.Config) (*transcript.Transcript, error) {
	if transcriptFlag == "" {
		return nil, errors.New("--transcript is required (a JSON file path or a video id)")
	}
	path := transcriptFlag
	if _, err := os.Stat(path); err != nil {
		if cfg.TranscriptsDir == "" {
			return nil, fmt.Errorf("transcript %q not found", transcriptFlag)
		}
		alt := filepath.Join(cfg.TranscriptsDir, transcriptFlag+".json")
		if _, err := os.Stat(alt); err != nil {
			return nil, fmt.Errorf("transcript %q not found (also tried %s)", transcriptFlag, alt)
		}
		path = alt
	}
	return transcript.Load(path)
}
