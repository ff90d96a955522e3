package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/charliek/herolog/internal/config"
	"github.com/charliek/herolog/internal/constants"
)

// Version is set during build
var Version = "dev"

// Global flags
var (
	configPath string
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "herolog",
	Short: "Live Heroku log viewer",
	Long: `herolog streams an app's logs through the heroku CLI and lets you
filter them as they arrive. It supports:
  - Text, regex, dyno, source and level filters combined with AND or OR
  - Automatic reconnects with backoff when the log stream drops
  - Interactive TUI, plain console output and an HTTP API
  - Exporting the visible lines to a file or the clipboard`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "herolog version %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: herolog.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.SetVersionTemplate("herolog version {{.Version}}\n")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads --config, or herolog.yaml from the working directory when present
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger returns a text logger on w at the configured level; --verbose forces debug
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// resolveApp picks the app from the first argument or the config
func resolveApp(args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg.App != "" {
		return cfg.App, nil
	}
	return "", fmt.Errorf("no app given: pass one or set 'app' in %s", constants.DefaultConfigFile)
}
