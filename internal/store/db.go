// Package store is the SQLite persistence behind the reference backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/rayaadinda/kp-inventory/internal/classify"
	"github.com/rayaadinda/kp-inventory/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateCode = errors.New("product code already exists")
)

const timeLayout = "2006-01-02 15:04:05"

// Open connects to the database at path and brings the schema up to date.
// ":memory:" gives a private in-memory database limited to one connection.
func Open(path string, log *zap.Logger) (*sqlx.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dsn := path
	if path != ":memory:" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		dsn = path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		// SQLite can handle 1 writer + multiple readers with WAL mode
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := Migrate(db, log); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates missing tables and columns. It is safe to run repeatedly.
func Migrate(db *sqlx.DB, log *zap.Logger) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'staff' CHECK(role IN ('admin','staff')),
			failed_login_attempts INTEGER DEFAULT 0,
			locked_until TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS inventory (
			id TEXT PRIMARY KEY,
			product_code TEXT UNIQUE NOT NULL,
			product_name TEXT NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 0 CHECK(quantity >= 0),
			supplier TEXT DEFAULT '',
			location TEXT DEFAULT '',
			last_updated TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS checkouts (
			id TEXT PRIMARY KEY,
			work_order TEXT NOT NULL,
			operator TEXT DEFAULT '',
			status TEXT DEFAULT 'Completed',
			project TEXT DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS checkout_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			checkout_id TEXT NOT NULL,
			item_code TEXT NOT NULL,
			name TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK(quantity > 0),
			unit TEXT DEFAULT '',
			FOREIGN KEY (checkout_id) REFERENCES checkouts(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT DEFAULT 'system',
			action TEXT NOT NULL,
			module TEXT NOT NULL,
			record_id TEXT NOT NULL DEFAULT '',
			summary TEXT,
			before_value TEXT,
			after_value TEXT,
			ip_address TEXT,
			user_agent TEXT,
			created_at TEXT NOT NULL
		)`,
	}
	for _, t := range tables {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("migration error: %w\nSQL: %s", err, t)
		}
	}

	// unit and category arrived after the first release
	alterStmts := []string{
		"ALTER TABLE inventory ADD COLUMN unit TEXT DEFAULT ''",
		"ALTER TABLE inventory ADD COLUMN category TEXT DEFAULT ''",
	}
	for _, s := range alterStmts {
		if _, err := db.Exec(s); err != nil && !strings.Contains(err.Error(), "duplicate column") {
			log.Warn("migration warning", zap.String("sql", s), zap.Error(err))
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_checkouts_created_at ON checkouts(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_checkout_lines_checkout ON checkout_lines(checkout_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_module ON audit_log(module)",
	}
	for _, s := range indexes {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return backfillClassification(db)
}

// backfillClassification derives unit and category once for rows written
// before those columns existed.
func backfillClassification(db *sqlx.DB) error {
	var rows []models.InventoryItem
	if err := db.Select(&rows, "SELECT id, product_name FROM inventory WHERE COALESCE(unit,'')='' OR COALESCE(category,'')=''"); err != nil {
		return fmt.Errorf("backfill select: %w", err)
	}
	for _, r := range rows {
		_, err := db.Exec("UPDATE inventory SET unit=?, category=? WHERE id=?",
			string(classify.DetermineUnit(r.ProductName)), string(classify.DetermineCategory(r.ProductName)), r.ID)
		if err != nil {
			return fmt.Errorf("backfill %s: %w", r.ID, err)
		}
	}
	return nil
}

// SeedAdmin makes sure an admin account exists.
func SeedAdmin(ctx context.Context, db *sqlx.DB, email, password string) error {
	var n int
	if err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM users WHERE email = ?", email); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	_, err = db.ExecContext(ctx, "INSERT INTO users (id, name, email, password_hash, role) VALUES (?, ?, ?, ?, ?)",
		uuid.NewString(), "Administrator", email, string(hash), models.RoleAdmin)
	return err
}
