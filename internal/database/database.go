// Package database is the sqlite persistence layer for the hotel bot.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Sentinel errors surfaced to the bot layer for user-facing messages.
var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrRoomNotAvailable  = errors.New("room not available for the requested dates")
	ErrRoomNotFound      = errors.New("room not found")
	ErrMenuItemNotFound  = errors.New("menu item not found")
	ErrLedgerRowNotFound = errors.New("ledger row not found")
)

// DB wraps sql.DB for the hotel bot.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens the database at path and creates the schema.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{DB: db, path: path}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			property_id INTEGER NOT NULL,
			room_no TEXT NOT NULL,
			room_type TEXT,
			max_occupancy INTEGER NOT NULL DEFAULT 2,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(property_id, room_no)
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			property_id INTEGER NOT NULL,
			guest_name TEXT NOT NULL,
			room_no TEXT NOT NULL,
			check_in TEXT NOT NULL,
			check_out TEXT NOT NULL,
			adults INTEGER NOT NULL DEFAULT 1,
			children INTEGER NOT NULL DEFAULT 0,
			total_amount REAL NOT NULL DEFAULT 0,
			is_cancelled BOOLEAN NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT 'telegram',
			source_details TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS booking_charges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_id INTEGER NOT NULL,
			charge_type TEXT NOT NULL,
			description TEXT NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 1,
			unit_amount REAL NOT NULL DEFAULT 0,
			amount REAL NOT NULL DEFAULT 0,
			is_voided BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (booking_id) REFERENCES bookings(id)
		)`,

		`CREATE TABLE IF NOT EXISTS booking_payments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_id INTEGER NOT NULL,
			payment_type TEXT NOT NULL,
			method TEXT NOT NULL DEFAULT 'other',
			amount REAL NOT NULL DEFAULT 0,
			is_voided BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (booking_id) REFERENCES bookings(id)
		)`,

		`CREATE TABLE IF NOT EXISTS menu_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			property_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			category TEXT,
			price REAL NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1
		)`,

		`CREATE TABLE IF NOT EXISTS wizard_states (
			chat_id INTEGER PRIMARY KEY,
			user_id INTEGER,
			step TEXT NOT NULL,
			data TEXT NOT NULL DEFAULT '{}',
			updated_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_dates ON bookings(property_id, check_in, check_out)`,
		`CREATE INDEX IF NOT EXISTS idx_charges_booking ON booking_charges(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_booking ON booking_payments(booking_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}
