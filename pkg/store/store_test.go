package store_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/llmsentinel/pkg/config"
	"github.com/ethpandaops/llmsentinel/pkg/store"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func sqliteConfig(path string) *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: path},
	}
}

func setupTestStore(t *testing.T) store.Store {
	t.Helper()

	s := store.NewStore(testLogger(), sqliteConfig(":memory:"))
	require.NoError(t, s.Start(context.Background()))

	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func TestStore_AppendAndReadAll(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().Unix()

	first := &store.Record{
		TraceID:      "trace-manual-1",
		ModelName:    "m1",
		SampleID:     "s1",
		Query:        "What is 2+2?",
		Context:      "Arithmetic.",
		Faithfulness: 4,
		Relevance:    5,
		Latency:      0.25,
		CreatedAt:    now,
	}
	second := &store.Record{
		TraceID:   "trace-manual-2",
		ModelName: "m2",
		SampleID:  "s1",
		Latency:   1.5,
		CreatedAt: now + 1,
	}

	require.NoError(t, s.Append(ctx, first))
	require.NoError(t, s.Append(ctx, second))

	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	rows, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, *first, rows[0])
	assert.Equal(t, *second, rows[1])
}

func TestStore_ReadAllEmpty(t *testing.T) {
	s := setupTestStore(t)

	rows, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStore_CreatedAtIsNotRewritten(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	rec := &store.Record{ModelName: "m", CreatedAt: 1_700_000_000}
	require.NoError(t, s.Append(ctx, rec))

	rows, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1_700_000_000), rows[0].CreatedAt)
}

func TestStore_AppendRejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name    string
		record  *store.Record
		wantErr error
	}{
		{
			name:    "nil record",
			record:  nil,
			wantErr: store.ErrMissingCreatedAt,
		},
		{
			name:    "missing created_at",
			record:  &store.Record{ModelName: "m", Latency: 1},
			wantErr: store.ErrMissingCreatedAt,
		},
		{
			name:    "negative latency",
			record:  &store.Record{ModelName: "m", Latency: -0.1, CreatedAt: 1},
			wantErr: store.ErrInvalidLatency,
		},
		{
			name:    "nan latency",
			record:  &store.Record{ModelName: "m", Latency: math.NaN(), CreatedAt: 1},
			wantErr: store.ErrInvalidLatency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestStore(t)
			ctx := context.Background()

			err := s.Append(ctx, tt.record)
			require.Error(t, err)

			var storageErr *store.StorageError
			require.True(t, errors.As(err, &storageErr))
			assert.Equal(t, "append", storageErr.Op)
			assert.ErrorIs(t, err, tt.wantErr)

			rows, err := s.ReadAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestStore_StartIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "eval_results.db")
	ctx := context.Background()

	first := store.NewStore(testLogger(), sqliteConfig(path))
	require.NoError(t, first.Start(ctx))
	require.NoError(t, first.Append(ctx, &store.Record{ModelName: "m", CreatedAt: 42}))
	require.NoError(t, first.Stop())

	second := store.NewStore(testLogger(), sqliteConfig(path))
	require.NoError(t, second.Start(ctx))

	t.Cleanup(func() { _ = second.Stop() })

	rows, err := second.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "m", rows[0].ModelName)
}

func TestStore_UseBeforeStart(t *testing.T) {
	s := store.NewStore(testLogger(), sqliteConfig(":memory:"))

	_, err := s.ReadAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotStarted)

	err = s.Append(context.Background(), &store.Record{CreatedAt: 1})
	assert.ErrorIs(t, err, store.ErrNotStarted)

	assert.NoError(t, s.Stop())
}

func TestStore_UnsupportedDriver(t *testing.T) {
	s := store.NewStore(testLogger(), &config.DatabaseConfig{Driver: "mysql"})

	err := s.Start(context.Background())
	require.Error(t, err)

	var storageErr *store.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "initialize", storageErr.Op)
}
