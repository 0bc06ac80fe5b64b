package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/viggyfresh/prom/internal/backend"
	"github.com/viggyfresh/prom/internal/backend/sqlite"
	"github.com/viggyfresh/prom/internal/cache"
	"github.com/viggyfresh/prom/internal/config"
	"github.com/viggyfresh/prom/internal/logging"
	"github.com/viggyfresh/prom/internal/query"
	"github.com/viggyfresh/prom/internal/schema"
)

// session is everything one command needs to run queries.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sqlite.DB
	schema   *schema.Schema
	cache    *cache.Cache
	registry *prometheus.Registry
	ops      *prometheus.CounterVec
}

func newLogger(cmd *cobra.Command, opts *RootOptions) (*slog.Logger, error) {
	level := opts.Config.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	return logging.New(cmd.ErrOrStderr(), level, opts.Config.Log.Format)
}

func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	cfg := opts.Config
	logger, err := newLogger(cmd, opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create logger", err)
	}

	s, err := loadTable(cfg.Schema)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(sqlite.Config{
		Path:        cfg.Database.Path,
		Driver:      cfg.Database.Driver,
		BusyTimeout: cfg.Database.BusyTimeout,
		ForeignKeys: cfg.Database.ForeignKeys,
		Logger:      logger,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	sess := &session{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		schema:   s,
		registry: prometheus.NewRegistry(),
	}
	sess.ops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Metrics.Namespace,
		Name:      "operations_total",
		Help:      "Total number of operations executed, by operation and outcome",
	}, []string{"op", "status"})
	sess.registry.MustRegister(sess.ops)

	if cfg.Cache.Enabled {
		sess.cache = cache.New(
			cache.WithTTL(cfg.Cache.TTL),
			cache.WithLogger(logger),
			cache.WithMetrics(cache.NewMetrics(cfg.Metrics.Namespace, sess.registry)),
		)
	}
	return sess, nil
}

// loadTable reads the schema file and picks the configured table.
func loadTable(cfg config.SchemaConfig) (*schema.Schema, error) {
	if cfg.File == "" {
		return nil, NewExitError(ExitCommandError, "no schema file: pass --schema or set schema.file")
	}
	set, err := schema.LoadFile(cfg.File)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
	}

	table := cfg.Table
	if table == "" {
		tables := set.Tables()
		if len(tables) != 1 {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("schema defines %d tables (%s): pass --table", len(tables), strings.Join(tables, ", ")))
		}
		table = tables[0]
	}
	s, ok := set.Get(table)
	if !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("table %q not defined in %s", table, cfg.File))
	}
	return s, nil
}

// instrument counts every operation that reaches the executor chain.
func (s *session) instrument(next query.Executor) query.Executor {
	return query.ExecutorFunc(func(ctx context.Context, op backend.Operation, req query.Request) (backend.Result, error) {
		res, err := next.Execute(ctx, op, req)
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.ops.WithLabelValues(string(op), status).Inc()
		return res, err
	})
}

func (s *session) query() *query.Query {
	mw := []query.Middleware{s.instrument}
	if s.cache != nil {
		mw = append(mw, s.cache.Middleware)
	}
	return query.New(s.schema, s.db,
		query.WithLogger(s.logger),
		query.WithChunkSize(s.cfg.Query.ChunkSize),
		query.WithMiddleware(mw...),
	)
}

// Close writes the metrics textfile, when configured, and closes the
// database.
func (s *session) Close() error {
	var errs []error
	if path := s.cfg.Metrics.Textfile; path != "" {
		if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
