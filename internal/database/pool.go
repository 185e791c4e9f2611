package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/supportflow/supportflow/config"
)

// Conn wraps an open GORM handle with lifecycle helpers.
type Conn struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	logger *zap.Logger
}

// Open connects to the configured backend and applies pool settings.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.Info("database connected",
		zap.String("driver", cfg.Driver),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)

	return &Conn{
		db:     db,
		sqlDB:  sqlDB,
		logger: logger.With(zap.String("component", "database")),
	}, nil
}

// DB returns the GORM handle.
func (c *Conn) DB() *gorm.DB { return c.db }

// Ping checks connectivity.
func (c *Conn) Ping(ctx context.Context) error {
	return c.sqlDB.PingContext(ctx)
}

// Stats reports pool statistics.
func (c *Conn) Stats() sql.DBStats { return c.sqlDB.Stats() }

// Close releases all pooled connections.
func (c *Conn) Close() error {
	c.logger.Info("closing database")
	return c.sqlDB.Close()
}
