package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/charliek/herolog/internal/config"
	"github.com/charliek/herolog/internal/constants"
	"github.com/charliek/herolog/internal/domain"
	"github.com/charliek/herolog/internal/logs"
	"github.com/charliek/herolog/internal/source"
	"github.com/charliek/herolog/internal/stream"
)

// filterFlags are shared by the commands that display or export records
type filterFlags struct {
	filters []string
	mode    string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "f", nil,
		"Filter (repeatable): text, /regex/, dyno:web.1, source:app, level:error")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "How filters combine: all (AND) or any (OR)")
}

// session wires the heroku CLI, stream manager, record buffer and filter engine
type session struct {
	config *config.Config
	logger *slog.Logger
	heroku *source.HerokuCLI
	logs   *logs.Manager
	engine *logs.Engine
	stream *stream.Manager
}

// newSession builds the pipeline for cfg and seeds the engine with the
// configured filters followed by flags.filters
func newSession(cfg *config.Config, logger *slog.Logger, flags filterFlags, opts ...source.Option) (*session, error) {
	env, err := cfg.HerokuEnv()
	if err != nil {
		return nil, err
	}

	heroku := source.NewHerokuCLI(append([]source.Option{
		source.WithBinary(cfg.Heroku.Binary),
		source.WithEnv(env),
		source.WithLogger(logger),
	}, opts...)...)

	logMgr := logs.NewManager(logs.ManagerConfig{
		BufferSize:         cfg.BufferSize,
		SubscriptionBuffer: constants.DefaultSubscriptionBuffer,
		Logger:             logger,
	})

	streamMgr := stream.NewManager(stream.Config{
		Spawner:       stream.NewExecSpawner(heroku, heroku.Environ(), logger),
		Records:       logMgr,
		Preconditions: heroku,
		StableAfter:   cfg.StableAfterDuration(),
		Logger:        logger,
	})

	s := &session{
		config: cfg,
		logger: logger,
		heroku: heroku,
		logs:   logMgr,
		engine: logs.NewEngine(logMgr),
		stream: streamMgr,
	}
	if err := s.seedFilters(flags); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) seedFilters(flags filterFlags) error {
	preds, err := s.config.Predicates()
	if err != nil {
		return err
	}
	for _, spec := range flags.filters {
		p, err := logs.ParsePredicate(spec)
		if err != nil {
			return fmt.Errorf("--filter %q: %w", spec, err)
		}
		preds = append(preds, p)
	}
	for _, p := range preds {
		s.engine.Add(p)
	}

	mode := s.config.Mode()
	if flags.mode != "" {
		mode, err = logs.ParseMode(flags.mode)
		if err != nil {
			return fmt.Errorf("--mode: %w", err)
		}
	}
	s.engine.SetMode(mode)
	return nil
}

// Close stops any running log process and releases subscribers
func (s *session) Close() {
	s.stream.Close()
	s.logs.Close()
}

// explain adds a next step to the precondition errors a user can fix
func explain(err error) error {
	switch {
	case errors.Is(err, domain.ErrToolUnavailable):
		return fmt.Errorf("%w: install it from https://devcenter.heroku.com/articles/heroku-cli", err)
	case errors.Is(err, domain.ErrNotAuthenticated):
		return fmt.Errorf("%w\nRun 'herolog login' first", err)
	default:
		return err
	}
}
