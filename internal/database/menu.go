package database

import (
	"context"
	"database/sql"
	"fmt"

	"innkeeper/internal/models"
)

// SearchMenuItems returns active menu items whose name contains the query,
// case-insensitively, up to limit rows.
func (db *DB) SearchMenuItems(ctx context.Context, propertyID int64, query string, limit int) ([]models.MenuItem, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, property_id, name, category, price, is_active
		FROM menu_items
		WHERE property_id = ? AND is_active = 1
		  AND name LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY name
		LIMIT ?`, propertyID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search menu items: %w", err)
	}
	defer rows.Close()

	var out []models.MenuItem
	for rows.Next() {
		var m models.MenuItem
		var category sql.NullString
		if err := rows.Scan(&m.ID, &m.PropertyID, &m.Name, &category, &m.Price, &m.IsActive); err != nil {
			return nil, err
		}
		if category.Valid {
			m.Category = category.String
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMenuItem returns a menu item by ID.
func (db *DB) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	var m models.MenuItem
	var category sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, property_id, name, category, price, is_active
		FROM menu_items WHERE id = ?`, id).Scan(
		&m.ID, &m.PropertyID, &m.Name, &category, &m.Price, &m.IsActive)
	if err == sql.ErrNoRows {
		return nil, ErrMenuItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get menu item %d: %w", id, err)
	}
	if category.Valid {
		m.Category = category.String
	}
	return &m, nil
}

// CreateMenuItem inserts a catalog entry. Used by admin commands and tests.
func (db *DB) CreateMenuItem(ctx context.Context, m *models.MenuItem) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO menu_items (property_id, name, category, price, is_active)
		VALUES (?, ?, ?, ?, 1)`,
		m.PropertyID, m.Name, m.Category, m.Price)
	if err != nil {
		return fmt.Errorf("create menu item: %w", err)
	}
	m.ID, err = res.LastInsertId()
	return err
}
