package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/charliek/herolog/internal/api"
	"github.com/charliek/herolog/internal/constants"
)

// Serve command flags
var (
	serveFilters filterFlags
	serveHost    string
	servePort    int
)

// serveCmd exposes the stream and filters over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve [app]",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API. With an app (or 'app' in the config) streaming starts
immediately; otherwise POST /api/v1/connect starts it.

Set api.token in the config to require "Authorization: Bearer <token>".

Examples:
  herolog serve my-app
  herolog serve --port 8080`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			cfg.API.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.API.Port = servePort
		}
		app, _ := resolveApp(args, cfg)

		s, err := newSession(cfg, newLogger(cmd.ErrOrStderr(), cfg), serveFilters)
		if err != nil {
			return err
		}
		defer s.Close()

		ln, err := net.Listen("tcp", cfg.APIAddress())
		if err != nil {
			return fmt.Errorf("listening on %s: %w", cfg.APIAddress(), err)
		}
		return runServe(cmd.Context(), cmd.OutOrStdout(), s, app, ln)
	},
}

// runServe serves the API on ln until ctx is done or a client calls /shutdown.
// A non-empty app is connected before serving.
func runServe(ctx context.Context, out io.Writer, s *session, app string, ln net.Listener) error {
	if app != "" {
		if err := s.stream.Connect(ctx, app); err != nil {
			ln.Close()
			return explain(err)
		}
	}

	shutdownCh := make(chan struct{})
	var shutdownOnce sync.Once
	handlers := api.NewHandlers(api.HandlersConfig{
		Stream:  s.stream,
		Logs:    s.logs,
		Engine:  s.engine,
		Targets: s.heroku,
		ShutdownFn: func() {
			shutdownOnce.Do(func() { close(shutdownCh) })
		},
		Logger: s.logger,
	})
	server := api.NewServer(api.ServerConfig{
		Host:   s.config.API.Host,
		Port:   s.config.API.Port,
		Token:  s.config.API.Token,
		Logger: s.logger,
	}, handlers)

	auth := "no auth"
	if s.config.API.Token != "" {
		auth = "bearer auth"
	}
	fmt.Fprintf(out, "API server: http://%s (%s)\n", ln.Addr(), auth)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-shutdownCh:
			fmt.Fprintln(out, "Shutdown requested via API...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.stream.Disconnect()
	fmt.Fprintln(out, "Shutdown complete")
	return err
}

func init() {
	serveFilters.register(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", constants.DefaultAPIHost, "API listen host")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", constants.DefaultAPIPort, "API listen port")

	rootCmd.AddCommand(serveCmd)
}
