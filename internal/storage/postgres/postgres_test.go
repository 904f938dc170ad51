package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_BadDSN(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://%zz", WithMaxConns(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse postgres dsn")
}

func TestQueryLogger_Levels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	l := queryLogger(logger)
	l.Log(context.Background(), tracelog.LogLevelInfo, "Query", map[string]any{"sql": "SELECT 1"})
	l.Log(context.Background(), tracelog.LogLevelError, "Query", map[string]any{"err": "boom"})

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, logrus.DebugLevel, entries[0].Level)
	assert.Equal(t, "SELECT 1", entries[0].Data["sql"])
	assert.Equal(t, "postgres", entries[0].Data["component"])
	assert.Equal(t, logrus.ErrorLevel, entries[1].Level)
}

func TestErrorClassification(t *testing.T) {
	dup := &pgconn.PgError{Code: pgErrUniqueViolation}
	assert.True(t, isDuplicateKeyError(dup))
	assert.True(t, isDuplicateKeyError(errors.Join(errors.New("insert"), dup)))
	assert.False(t, isDuplicateKeyError(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isDuplicateKeyError(nil))

	assert.True(t, isNotFoundError(pgx.ErrNoRows))
	assert.False(t, isNotFoundError(errors.New("other")))
}
