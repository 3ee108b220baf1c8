package db

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"enoriel/autos/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectLedger opens the relational ledger (bookings, messages, activities, inquiries),
// pings it and migrates the schema.
func ConnectLedger(dsn, logLevel string) (*gorm.DB, error) {
	resolved, err := resolveMySQLDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger DSN: %w", err)
	}

	gdb, err := gorm.Open(mysql.Open(resolved), &gorm.Config{Logger: NewLedgerLogger(logLevel)})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}

	if err := MigrateLedger(gdb); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	fmt.Println("Successfully connected to ledger!")
	return gdb, nil
}

// MigrateLedger creates or updates the ledger tables.
func MigrateLedger(gdb *gorm.DB) error {
	// Parents before children.
	if err := gdb.AutoMigrate(
		&models.Inquiry{},
		&models.Booking{},
		&models.Message{},
		&models.Activity{},
	); err != nil {
		return fmt.Errorf("failed to migrate ledger: %w", err)
	}
	return nil
}

// DisconnectLedger closes the underlying connection pool.
func DisconnectLedger(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	fmt.Println("Ledger connection closed.")
	return nil
}

// NewLedgerLogger returns the gorm logger used for the ledger. Queries slower than one
// second are always reported.
func NewLedgerLogger(level string) logger.Interface {
	lvl := logger.Warn
	switch strings.ToLower(level) {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  lvl,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// resolveMySQLDSN accepts either a go-sql-driver DSN or a mysql:// URL.
func resolveMySQLDSN(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty DSN")
	}
	if !strings.HasPrefix(raw, "mysql://") {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	user := u.User.Username()
	pass, _ := u.User.Password()
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "3306"
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return "", fmt.Errorf("mysql url missing database name")
	}

	q := u.Query()
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "True")
	}
	if q.Get("loc") == "" {
		q.Set("loc", "UTC")
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", user, pass, host, port, dbName, q.Encode()), nil
}
