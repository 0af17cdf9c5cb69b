package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tabula/internal/command"
	"github.com/mesh-intelligence/tabula/internal/fsys"
	"github.com/mesh-intelligence/tabula/internal/logging"
	"github.com/mesh-intelligence/tabula/internal/registry"
	"github.com/mesh-intelligence/tabula/internal/scheme"
	"github.com/mesh-intelligence/tabula/pkg/sqlite"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// session is one CLI invocation's engine: the attached store, the
// registry loaded from it and a History to run mutations through.
type session struct {
	cfg     types.Config
	logger  *zap.Logger
	store   *sqlite.Store
	reg     *registry.Registry
	history *command.History
	cmdCtx  command.Context
}

// openSession loads the config, attaches the store and loads every
// stored scheme. The caller must call close.
func openSession(ctx context.Context, flags *rootFlags) (*session, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, sysError(err)
	}
	logger, err := logging.FromConfig(cfg)
	if err != nil {
		return nil, sysError(err)
	}

	store, err := sqlite.Open(cfg, logger)
	if err != nil {
		return nil, sysError(fmt.Errorf("attach store: %w", err))
	}
	reg := registry.New(
		registry.WithStore(store),
		registry.WithFileSystem(fsys.OS()),
		registry.WithDataDir(cfg.DataDir),
		registry.WithLogger(logger),
	)
	if err := reg.Init(ctx); err != nil {
		store.Detach()
		return nil, sysError(err)
	}
	if err := reg.LoadAll(ctx); err != nil {
		store.Detach()
		return nil, sysError(err)
	}

	return &session{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		reg:     reg,
		history: command.NewHistory(cfg.MaxHistory, logger),
		cmdCtx:  command.NewContext(reg, cfg),
	}, nil
}

func (s *session) close() {
	if err := s.store.Detach(); err != nil {
		s.logger.Warn("detach store", zap.Error(err))
	}
	logging.Sync(s.logger)
}

// scheme returns the loaded scheme called name as a user error when
// missing.
func (s *session) scheme(name string) (*scheme.Scheme, error) {
	sc, err := s.reg.GetScheme(name)
	if err != nil {
		return nil, userError(err)
	}
	if name == registry.ManifestName {
		return nil, userError(fmt.Errorf("%w: %s", types.ErrReservedScheme, name))
	}
	return sc, nil
}

// apply runs op through History and saves every scheme it dirtied.
func apply[T any](ctx context.Context, s *session, op *command.Op[T]) (T, error) {
	value, res := command.Run(ctx, s.history, op)
	if err := resultError(res); err != nil {
		var zero T
		// A partly applied command still leaves changes behind; they are
		// saved so the store matches what the cascade wrote.
		if op.State() == command.Unexecuted {
			return zero, err
		}
		if _, saveErr := s.reg.Save(ctx); saveErr != nil {
			return zero, sysError(errors.Join(err, saveErr))
		}
		return zero, err
	}
	if err := s.save(ctx); err != nil {
		return value, err
	}
	return value, nil
}

func (s *session) save(ctx context.Context) error {
	saved, err := s.reg.Save(ctx)
	if err != nil {
		return sysError(err)
	}
	s.logger.Debug("saved", zap.Strings("schemes", saved))
	return nil
}

// resultError maps a failed or cancelled Result to an ExitError.
func resultError(res types.Result) error {
	switch res.Status {
	case types.StatusPassed:
		return nil
	case types.StatusCancelled:
		return sysError(fmt.Errorf("%s: cancelled", res.Message))
	default:
		err := res.Err
		if err == nil {
			err = errors.New(res.Message)
		}
		if res.Context != "" {
			err = fmt.Errorf("%s: %w", res.Context, err)
		}
		return userError(err)
	}
}
