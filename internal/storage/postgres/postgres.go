package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/sirupsen/logrus"
)

// Pool is the shared connection pool for the mint, metadata and cursor stores.
type Pool struct {
	*pgxpool.Pool
}

type poolConfig struct {
	maxConns       int32
	connectTimeout time.Duration
	logger         logrus.FieldLogger
}

// PoolOption tunes NewPool.
type PoolOption func(*poolConfig)

// WithMaxConns caps open connections. The DSN's pool_max_conns wins when set.
func WithMaxConns(n int32) PoolOption {
	return func(c *poolConfig) { c.maxConns = n }
}

// WithConnectTimeout bounds the startup ping. Defaults to 10s.
func WithConnectTimeout(d time.Duration) PoolOption {
	return func(c *poolConfig) { c.connectTimeout = d }
}

// WithQueryLogger traces every query to logger at debug level.
func WithQueryLogger(logger logrus.FieldLogger) PoolOption {
	return func(c *poolConfig) { c.logger = logger }
}

// NewPool connects to dsn and verifies the connection with a ping.
func NewPool(ctx context.Context, dsn string, opts ...PoolOption) (*Pool, error) {
	pc := poolConfig{connectTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&pc)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if pc.maxConns > 0 && !strings.Contains(dsn, "pool_max_conns") {
		config.MaxConns = pc.maxConns
	}
	if pc.logger != nil {
		config.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   queryLogger(pc.logger),
			LogLevel: tracelog.LogLevelDebug,
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pc.connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// queryLogger adapts logrus to the pgx tracer. Trace output is demoted to
// debug so it only shows with LOG_LEVEL=debug.
func queryLogger(logger logrus.FieldLogger) tracelog.Logger {
	logger = logger.WithField("component", "postgres")
	return tracelog.LoggerFunc(func(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		entry := logger.WithFields(logrus.Fields(data))
		switch level {
		case tracelog.LogLevelError:
			entry.Error(msg)
		case tracelog.LogLevelWarn:
			entry.Warn(msg)
		default:
			entry.Debug(msg)
		}
	})
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

const pgErrUniqueViolation = "23505"

// isDuplicateKeyError reports a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
