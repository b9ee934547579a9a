package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-pos-ledger/internal/models"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options selects the database and how chatty gorm is.
type Options struct {
	Driver   string // "mysql" or "sqlite"
	DSN      string
	LogLevel string // silent, error, warn, info
	Attempts int    // connection attempts for mysql, default 5
}

func logLevel(s string) logger.LogLevel {
	switch s {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}

// Open connects to the configured database. MySQL is retried while the server comes up.
func Open(opts Options, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}

	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel(opts.LogLevel)),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		// Sale items and sellers are weak references; deleting a product or user must not cascade.
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	var dialector gorm.Dialector
	switch opts.Driver {
	case "mysql":
		dialector = gormmysql.Open(opts.DSN)
	case "sqlite":
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 5
	}
	if opts.Driver == "sqlite" {
		attempts = 1
	}

	// 1. Connect with GORM (Wait for DB to be ready)
	var db *gorm.DB
	var err error
	for i := 0; i < attempts; i++ {
		db, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		log.Warn("failed to connect to database, retrying",
			zap.Int("attempt", i+1), zap.Int("of", attempts), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s after %d attempts: %w", opts.Driver, attempts, err)
	}

	// 2. Pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.Driver == "sqlite" {
		// SQLite has a single writer; one connection serialises every transaction
		// instead of surfacing SQLITE_BUSY to concurrent sales.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	log.Info("✅ Successfully connected to database", zap.String("driver", opts.Driver))
	return db, nil
}

// Migrate syncs the schema. It is called once at startup, before the server accepts requests.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.QuantityEntry{},
		&models.PriceEntry{},
		&models.Image{},
		&models.Sale{},
		&models.SaleItem{},
	)
}

// IsRetryable reports whether a MySQL error is a deadlock or lock wait timeout,
// which are safe to retry once the transaction has been rolled back.
func IsRetryable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	return false
}

// IsDuplicateKey reports whether err is a unique constraint violation.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}

// Transact runs fn in one transaction. gorm rolls back when fn returns an error.
// A deadlock or lock wait timeout is retried once before being returned.
func Transact(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	err := db.WithContext(ctx).Transaction(fn)
	if err != nil && IsRetryable(err) {
		err = db.WithContext(ctx).Transaction(fn)
	}
	return err
}
