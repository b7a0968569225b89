package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"innkeeper/internal/models"
)

// CreateBooking inserts a booking and sets its ID.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO bookings (property_id, guest_name, room_no, check_in, check_out,
			adults, children, total_amount, is_cancelled, source, source_details,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		b.PropertyID, b.GuestName, b.RoomNo, b.CheckIn, b.CheckOut,
		b.Adults, b.Children, b.TotalAmount, b.Source, b.SourceDetails, now, now)
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create booking id: %w", err)
	}
	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// GetBooking returns a booking by ID.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var b models.Booking
	var details sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, property_id, guest_name, room_no, check_in, check_out,
		       adults, children, total_amount, is_cancelled, source, source_details,
		       created_at, updated_at
		FROM bookings WHERE id = ?`, id).Scan(
		&b.ID, &b.PropertyID, &b.GuestName, &b.RoomNo, &b.CheckIn, &b.CheckOut,
		&b.Adults, &b.Children, &b.TotalAmount, &b.IsCancelled, &b.Source, &details,
		&b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	if details.Valid {
		b.SourceDetails = details.String
	}
	return &b, nil
}

// UpdateBookingStay changes the room and dates of a booking.
func (db *DB) UpdateBookingStay(ctx context.Context, id int64, roomNo, checkIn, checkOut string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE bookings SET room_no = ?, check_in = ?, check_out = ?, updated_at = ?
		WHERE id = ? AND is_cancelled = 0`,
		roomNo, checkIn, checkOut, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update booking %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// CancelBooking marks a booking cancelled.
func (db *DB) CancelBooking(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE bookings SET is_cancelled = 1, updated_at = ?
		WHERE id = ? AND is_cancelled = 0`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("cancel booking %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// ListBookingsByRange returns non-cancelled bookings overlapping [from, to).
func (db *DB) ListBookingsByRange(ctx context.Context, propertyID int64, from, to string) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, property_id, guest_name, room_no, check_in, check_out,
		       adults, children, total_amount, is_cancelled, source, source_details,
		       created_at, updated_at
		FROM bookings
		WHERE property_id = ? AND is_cancelled = 0
		  AND check_in < ? AND check_out > ?
		ORDER BY check_in, room_no`, propertyID, to, from)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func scanBookings(rows *sql.Rows) ([]models.Booking, error) {
	var out []models.Booking
	for rows.Next() {
		var b models.Booking
		var details sql.NullString
		if err := rows.Scan(&b.ID, &b.PropertyID, &b.GuestName, &b.RoomNo, &b.CheckIn,
			&b.CheckOut, &b.Adults, &b.Children, &b.TotalAmount, &b.IsCancelled,
			&b.Source, &details, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		if details.Valid {
			b.SourceDetails = details.String
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetAvailableRooms returns active rooms with no overlapping non-cancelled
// booking in [checkIn, checkOut). Date ranges are half-open: a booking
// checking out on a date does not block a booking checking in that date.
// excludeBookingID lets a booking under modification keep its own room.
func (db *DB) GetAvailableRooms(ctx context.Context, propertyID int64, checkIn, checkOut string, excludeBookingID int64) ([]models.Room, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT r.id, r.property_id, r.room_no, r.room_type, r.max_occupancy,
		       r.is_active, r.created_at, r.updated_at
		FROM rooms r
		WHERE r.property_id = ? AND r.is_active = 1
		  AND NOT EXISTS (
			SELECT 1 FROM bookings b
			WHERE b.property_id = r.property_id
			  AND b.room_no = r.room_no
			  AND b.is_cancelled = 0
			  AND b.id != ?
			  AND b.check_in < ?
			  AND b.check_out > ?
		  )
		ORDER BY r.room_no`,
		propertyID, excludeBookingID, checkOut, checkIn)
	if err != nil {
		return nil, fmt.Errorf("available rooms: %w", err)
	}
	defer rows.Close()

	var out []models.Room
	for rows.Next() {
		var r models.Room
		var roomType sql.NullString
		if err := rows.Scan(&r.ID, &r.PropertyID, &r.RoomNo, &roomType,
			&r.MaxOccupancy, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if roomType.Valid {
			r.RoomType = roomType.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRoomMaxOccupancy returns the capacity of a room.
func (db *DB) GetRoomMaxOccupancy(ctx context.Context, propertyID int64, roomNo string) (int, error) {
	var max int
	err := db.QueryRowContext(ctx, `
		SELECT max_occupancy FROM rooms
		WHERE property_id = ? AND room_no = ? AND is_active = 1`,
		propertyID, roomNo).Scan(&max)
	if err == sql.ErrNoRows {
		return 0, ErrRoomNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("room occupancy %s: %w", roomNo, err)
	}
	return max, nil
}

// ListRooms returns all active rooms of a property.
func (db *DB) ListRooms(ctx context.Context, propertyID int64) ([]models.Room, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, property_id, room_no, room_type, max_occupancy,
		       is_active, created_at, updated_at
		FROM rooms WHERE property_id = ? AND is_active = 1
		ORDER BY room_no`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []models.Room
	for rows.Next() {
		var r models.Room
		var roomType sql.NullString
		if err := rows.Scan(&r.ID, &r.PropertyID, &r.RoomNo, &roomType,
			&r.MaxOccupancy, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if roomType.Valid {
			r.RoomType = roomType.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateRoom inserts a room. Used by admin commands and tests.
func (db *DB) CreateRoom(ctx context.Context, r *models.Room) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO rooms (property_id, room_no, room_type, max_occupancy, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)`,
		r.PropertyID, r.RoomNo, r.RoomType, r.MaxOccupancy, now, now)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}
