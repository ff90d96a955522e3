package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/charliek/herolog/internal/tui"
)

// Watch command flags
var (
	watchFilters filterFlags
	watchLogFile string
)

// watchCmd opens the interactive viewer
var watchCmd = &cobra.Command{
	Use:   "watch [app]",
	Short: "Open the interactive log viewer",
	Long: `Open the interactive log viewer for an app. Filters can be added and
removed while logs stream; press ? inside the viewer for keys.

Examples:
  herolog watch my-app
  herolog watch my-app -f level:error --log-file herolog.log`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, err := resolveApp(args, cfg)
		if err != nil {
			return err
		}

		// the TUI owns the terminal, so diagnostics go to a file or nowhere
		var logOut io.Writer = io.Discard
		if watchLogFile != "" {
			f, err := os.OpenFile(watchLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
			if err != nil {
				return fmt.Errorf("opening log file: %w", err)
			}
			defer f.Close()
			logOut = f
		}

		s, err := newSession(cfg, newLogger(logOut, cfg), watchFilters)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.stream.Connect(cmd.Context(), app); err != nil {
			return explain(err)
		}

		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		return tui.Run(tui.Config{
			Stream:    s.stream,
			Engine:    s.engine,
			Target:    app,
			ExportDir: wd,
		})
	},
}

func init() {
	watchFilters.register(watchCmd)
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "Write diagnostics to this file")

	rootCmd.AddCommand(watchCmd)
}
