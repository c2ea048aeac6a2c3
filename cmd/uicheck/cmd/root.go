package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/uicheck/internal/config"
)

var (
	configPath string
	baseURL    string
	chromeURL  string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "uicheck",
	Short: "Audit the rendered pages of a theme test site",
	Long: `uicheck loads every page a theme test site lists, in a real Chrome,
and checks page structure, PHP errors, outbound links and keyboard
accessibility.

Results go to the configured sinks and, when store.path is set, to a
SQLite database that the serve command exposes over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		logger = newLogger(logLevel)
		slog.SetDefault(logger)

		var err error
		if configPath != "" {
			cfg, err = config.LoadFile(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
		} else {
			cfg = config.Default()
		}
		if baseURL != "" {
			cfg.Site.BaseURL = baseURL
		}
		if chromeURL != "" {
			cfg.Browser.Remote = chromeURL
		}
		return cfg.Validate()
	},
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to uicheck.yaml")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "site under audit (overrides site.base_url)")
	rootCmd.PersistentFlags().StringVar(&chromeURL, "chrome", "", "WebSocket URL of a running Chrome (overrides browser.remote)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func newLogger(name string) *slog.Logger {
	var level slog.Level
	switch name {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
