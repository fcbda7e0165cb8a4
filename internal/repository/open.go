package repository

import (
	"database/sql"
	"fmt"
	"io"

	"harvest_monitor/internal/repository/db"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

// Options selects and locates the backing store.
type Options struct {
	Engine string
	Path   string // sqlite file
	DSN    string // postgres
}

// NewRepository wires the sqlite implementations onto an open handle.
func NewRepository(sqlDB *sql.DB) *Repository {
	return &Repository{
		ScanRepo: NewScanSQLite(sqlDB),
		Auth:     NewUserRepository(sqlDB),
	}
}

// NewGormRepository wires the gorm implementations.
func NewGormRepository(gdb *gorm.DB) *Repository {
	return &Repository{
		ScanRepo: NewScanGorm(gdb),
		Auth:     NewUserGorm(gdb),
	}
}

// Open connects to the configured engine. The returned closer owns the
// connection and must be closed on shutdown.
func Open(opts Options) (*Repository, io.Closer, error) {
	switch opts.Engine {
	case "", EngineSQLite:
		sqlDB, err := db.InitDB(opts.Path)
		if err != nil {
			return nil, nil, err
		}
		return NewRepository(sqlDB), sqlDB, nil
	case EnginePostgres:
		gdb, err := OpenPostgres(opts.DSN)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("postgres handle: %w", err)
		}
		return NewGormRepository(gdb), sqlDB, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage engine %q", opts.Engine)
	}
}

// OpenPostgres connects through gorm and migrates the scans and users tables.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := gdb.AutoMigrate(&scanRow{}, &userRow{}); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return gdb, nil
}
