package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/charliek/herolog/internal/constants"
	"github.com/charliek/herolog/internal/domain"
	"github.com/charliek/herolog/internal/logs"
	"github.com/charliek/herolog/internal/source"
	"github.com/charliek/herolog/internal/stream"
)

// Tail command flags
var (
	tailFilters filterFlags
	tailFollow  bool
)

// tailCmd prints an app's logs to the console
var tailCmd = &cobra.Command{
	Use:   "tail [app]",
	Short: "Stream an app's logs to the console",
	Long: `Stream an app's logs to the console, keeping only lines that pass the filters.

Examples:
  herolog tail my-app
  herolog tail my-app -f level:error -f dyno:web.1 --mode any
  herolog tail my-app -f '/H1[0-9]/' --follow=false`,
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

		s, err := newSession(cfg, newLogger(cmd.ErrOrStderr(), cfg), tailFilters)
		if err != nil {
			return err
		}
		defer s.Close()

		return runTail(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), s, app, tailFollow)
	},
}

// runTail prints matching records until ctx is done or the stream fails.
// Without follow it also returns once the first log process exits.
func runTail(ctx context.Context, out, errOut io.Writer, s *session, app string, follow bool) error {
	printer := NewLogPrinter(out)

	subID, records := s.logs.Subscribe(s.engine.Predicates(), s.engine.Mode())
	defer s.logs.Unsubscribe(subID)

	states := s.stream.SubscribeStates()
	defer s.stream.UnsubscribeStates(states)

	if err := s.stream.Connect(ctx, app); err != nil {
		return explain(err)
	}
	fmt.Fprintf(errOut, "Streaming logs for %s (filters: %d, mode: %s)\n",
		app, len(s.engine.Predicates()), s.engine.Mode().Label())

	// drain prints records that were queued before a state change arrived
	drain := func() {
		for {
			select {
			case record, ok := <-records:
				if !ok {
					return
				}
				printer.Print(record)
			default:
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			drain()
			return nil

		case record, ok := <-records:
			if !ok {
				return nil
			}
			printer.Print(record)

		case state, ok := <-states:
			if !ok {
				drain()
				return nil
			}
			switch state.Status {
			case domain.StatusReconnecting:
				if !follow {
					drain()
					s.stream.Disconnect()
					return nil
				}
				fmt.Fprintf(errOut, "Log stream dropped, %s in %s\n", state, stream.Delay(state.Attempt))
			case domain.StatusStreaming:
				// initial connect is reported above
			case domain.StatusError:
				drain()
				return explain(state.Err)
			case domain.StatusDisconnected:
				drain()
				return nil
			}
		}
	}
}

// Export command flags
var (
	exportFilters  filterFlags
	exportDuration time.Duration
	exportDir      string
)

// exportCmd collects logs for a while and writes the matching lines to a file
var exportCmd = &cobra.Command{
	Use:   "export [app]",
	Short: "Collect logs for a while and write the matching lines to a file",
	Long: `Collect an app's logs for --duration, then write the lines that pass the
filters to heroku_logs_YYYYMMDD_HHMMSS.log in --dir.

Examples:
  herolog export my-app --duration 30s
  herolog export my-app -f level:error --dir /tmp`,
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

		s, err := newSession(cfg, newLogger(cmd.ErrOrStderr(), cfg), exportFilters)
		if err != nil {
			return err
		}
		defer s.Close()

		_, err = runExport(cmd.Context(), cmd.OutOrStdout(), s, app, exportDir, exportDuration)
		return err
	},
}

// runExport streams app for d (or until ctx is done or the stream fails)
// and writes the visible records to dir. It returns the file path.
func runExport(ctx context.Context, out io.Writer, s *session, app, dir string, d time.Duration) (string, error) {
	states := s.stream.SubscribeStates()
	defer s.stream.UnsubscribeStates(states)

	if err := s.stream.Connect(ctx, app); err != nil {
		return "", explain(err)
	}
	fmt.Fprintf(out, "Collecting logs for %s for %s...\n", app, d)

	timer := time.NewTimer(d)
	defer timer.Stop()

wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case <-timer.C:
			break wait
		case state, ok := <-states:
			if !ok || state.Status == domain.StatusError {
				s.logger.Warn("log stream ended early", "state", state.String())
				break wait
			}
		}
	}

	// Disconnect clears the buffer, so take the records first
	records := s.engine.VisibleRecords()
	s.stream.Disconnect()

	path, err := logs.ExportToFile(dir, records, time.Now())
	if err != nil {
		return "", err
	}
	fmt.Fprintf(out, "Exported %d lines to %s\n", len(records), path)
	return path, nil
}

// Apps command flags
var appsJSON bool

// appsCmd lists the apps the logged-in user can stream
var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List apps available to stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := newSession(cfg, newLogger(cmd.ErrOrStderr(), cfg), filterFlags{})
		if err != nil {
			return err
		}
		defer s.Close()

		return runApps(cmd.Context(), cmd.OutOrStdout(), s, appsJSON)
	},
}

func runApps(ctx context.Context, out io.Writer, s *session, jsonOutput bool) error {
	if !s.heroku.IsToolAvailable(ctx) {
		return explain(domain.ErrToolUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DefaultCommandTimeout)
	defer cancel()

	apps, err := s.heroku.ListTargets(ctx)
	if err != nil {
		return explain(err)
	}

	if jsonOutput {
		if apps == nil {
			apps = []domain.Target{}
		}
		return json.NewEncoder(out).Encode(apps)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tID")
	fmt.Fprintln(w, "----\t--")
	for _, app := range apps {
		fmt.Fprintf(w, "%s\t%s\n", app.Name, app.ID)
	}
	return w.Flush()
}

// loginCmd runs the heroku CLI's interactive login
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to Heroku through the heroku CLI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := newSession(cfg, newLogger(cmd.ErrOrStderr(), cfg), filterFlags{},
			source.WithIO(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		defer s.Close()

		return runLogin(cmd.Context(), cmd.OutOrStdout(), s)
	},
}

func runLogin(ctx context.Context, out io.Writer, s *session) error {
	if !s.heroku.IsToolAvailable(ctx) {
		return explain(domain.ErrToolUnavailable)
	}
	if err := s.heroku.Login(ctx); err != nil {
		return err
	}

	user, err := s.heroku.CheckAuthenticated(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Logged in as %s\n", user)
	return nil
}

func init() {
	tailFilters.register(tailCmd)
	tailCmd.Flags().BoolVar(&tailFollow, "follow", true, "Keep streaming through reconnects")

	exportFilters.register(exportCmd)
	exportCmd.Flags().DurationVarP(&exportDuration, "duration", "d", constants.DefaultExportDuration, "How long to collect logs")
	exportCmd.Flags().StringVar(&exportDir, "dir", ".", "Directory for the export file")

	appsCmd.Flags().BoolVar(&appsJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(tailCmd, exportCmd, appsCmd, loginCmd)
}
