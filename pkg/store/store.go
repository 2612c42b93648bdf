package store

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethpandaops/llmsentinel/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqliteBusyTimeoutMs = 5000

// Store persists evaluation records. The table is append-only.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// Append inserts a single record.
	Append(ctx context.Context, record *Record) error
	// ReadAll returns every record ordered by id ascending.
	ReadAll(ctx context.Context) ([]Record, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and creates the evaluations table if
// it does not exist. It is safe to run against an existing database.
func (s *store) Start(ctx context.Context) error {
	var (
		dialector gorm.Dialector
		err       error
	)

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dsn, err := sqliteDSN(s.cfg.SQLite.Path)
		if err != nil {
			return storageErr("initialize", err)
		}

		dialector = sqlite.Open(dsn)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return storageErr("initialize", fmt.Errorf("unsupported database driver: %s", s.cfg.Driver))
	}

	s.db, err = gorm.Open(dialector, gormCfg)
	if err != nil {
		return storageErr("initialize", fmt.Errorf("opening database: %w", err))
	}

	if s.cfg.Driver == "sqlite" {
		sqlDB, err := s.db.DB()
		if err != nil {
			return storageErr("initialize", fmt.Errorf("getting underlying db: %w", err))
		}

		// sqlite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(&Record{}); err != nil {
		return storageErr("initialize", fmt.Errorf("running migrations: %w", err))
	}

	s.log.WithField("driver", s.cfg.Driver).Debug("Database ready")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	s.db = nil

	return sqlDB.Close()
}

// Append validates and inserts a record. The record's ID is populated on
// success.
func (s *store) Append(ctx context.Context, record *Record) error {
	if record == nil || record.CreatedAt == 0 {
		return storageErr("append", ErrMissingCreatedAt)
	}

	if record.Latency < 0 || math.IsNaN(record.Latency) {
		return storageErr("append", ErrInvalidLatency)
	}

	if s.db == nil {
		return storageErr("append", ErrNotStarted)
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return storageErr("append", err)
	}

	s.log.WithFields(logrus.Fields{
		"id":       record.ID,
		"trace_id": record.TraceID,
		"model":    record.ModelName,
	}).Debug("Appended evaluation")

	return nil
}

// ReadAll returns all records ordered by id ascending.
func (s *store) ReadAll(ctx context.Context) ([]Record, error) {
	if s.db == nil {
		return nil, storageErr("read_all", ErrNotStarted)
	}

	var records []Record
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		return nil, storageErr("read_all", err)
	}

	return records, nil
}

// sqliteDSN prepares the sqlite data source, creating the parent directory
// of file-backed databases.
func sqliteDSN(path string) (string, error) {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating database directory: %w", err)
		}
	}

	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, sqliteBusyTimeoutMs), nil
}
