// Package metastore holds the transactional relational store of Users,
// Groups, Files, and Paths described by the data model: lookup/insert/
// update/delete with relational integrity, backed by GORM over either
// SQLite or PostgreSQL.
package metastore

import (
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DialectType selects the SQL backend.
type DialectType string

const (
	DialectSQLite   DialectType = "sqlite"
	DialectPostgres DialectType = "postgres"
)

// Config describes how to connect to the metadata store.
type Config struct {
	Dialect DialectType
	// DSN is the SQLite file path (or ":memory:") when Dialect is
	// DialectSQLite, or a libpq-style connection string when Dialect is
	// DialectPostgres.
	DSN string
}

// Store is the GORM-backed implementation of the MetaStore contract.
type Store struct {
	db    *gorm.DB
	locks *inodeLockTable
}

// Open connects to the configured database and runs AutoMigrate against
// every model in AllModels.
func Open(cfg Config) (*Store, error) {
	if cfg.Dialect == "" {
		cfg.Dialect = DialectSQLite
	}

	var dialector gorm.Dialector
	switch cfg.Dialect {
	case DialectSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "rfsd.db"
		}
		dialector = sqlite.Open(dsn + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	case DialectPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("postgres dialect requires a DSN")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported metastore dialect: %s", cfg.Dialect)
	}

	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to metastore: %w", err)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("migrating metastore schema: %w", err)
	}

	return &Store{db: db, locks: newInodeLockTable()}, nil
}

// DB returns the underlying GORM connection, for use by callers that need
// direct access (e.g. integration tests, migration tooling).
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
