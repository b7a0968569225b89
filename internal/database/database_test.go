package database

import (
	"context"
	"path/filepath"
	"testing"

	"innkeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedRoom(t *testing.T, db *DB, roomNo string, maxOcc int) {
	t.Helper()
	require.NoError(t, db.CreateRoom(context.Background(), &models.Room{
		PropertyID:   1,
		RoomNo:       roomNo,
		RoomType:     "standard",
		MaxOccupancy: maxOcc,
	}))
}

func seedBooking(t *testing.T, db *DB, roomNo, checkIn, checkOut string) *models.Booking {
	t.Helper()
	b := &models.Booking{
		PropertyID:  1,
		GuestName:   "Test Guest",
		RoomNo:      roomNo,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Adults:      2,
		TotalAmount: 1000,
		Source:      "telegram",
	}
	require.NoError(t, db.CreateBooking(context.Background(), b))
	return b
}

func TestCreateAndGetBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	b := seedBooking(t, db, "101", "2025-03-01", "2025-03-04")
	assert.NotZero(t, b.ID)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Guest", got.GuestName)
	assert.Equal(t, "101", got.RoomNo)
	assert.Equal(t, 3, got.Nights())

	_, err = db.GetBooking(ctx, 9999)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCancelBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	b := seedBooking(t, db, "101", "2025-03-01", "2025-03-04")
	require.NoError(t, db.CancelBooking(ctx, b.ID))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCancelled)

	// already cancelled
	assert.ErrorIs(t, db.CancelBooking(ctx, b.ID), ErrBookingNotFound)
}

func TestGetAvailableRooms(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedRoom(t, db, "101", 2)
	seedRoom(t, db, "102", 4)
	seedBooking(t, db, "101", "2025-03-01", "2025-03-05")

	t.Run("OverlapBlocks", func(t *testing.T) {
		rooms, err := db.GetAvailableRooms(ctx, 1, "2025-03-02", "2025-03-04", 0)
		require.NoError(t, err)
		require.Len(t, rooms, 1)
		assert.Equal(t, "102", rooms[0].RoomNo)
	})

	t.Run("BackToBackStaysAllowed", func(t *testing.T) {
		// Half-open ranges: check-in on the previous guest's check-out day.
		rooms, err := db.GetAvailableRooms(ctx, 1, "2025-03-05", "2025-03-08", 0)
		require.NoError(t, err)
		assert.Len(t, rooms, 2)

		rooms, err = db.GetAvailableRooms(ctx, 1, "2025-02-25", "2025-03-01", 0)
		require.NoError(t, err)
		assert.Len(t, rooms, 2)
	})

	t.Run("CancelledBookingFreesRoom", func(t *testing.T) {
		b := seedBooking(t, db, "102", "2025-03-02", "2025-03-04")
		rooms, err := db.GetAvailableRooms(ctx, 1, "2025-03-02", "2025-03-04", 0)
		require.NoError(t, err)
		assert.Empty(t, rooms)

		require.NoError(t, db.CancelBooking(ctx, b.ID))
		rooms, err = db.GetAvailableRooms(ctx, 1, "2025-03-02", "2025-03-04", 0)
		require.NoError(t, err)
		require.Len(t, rooms, 1)
		assert.Equal(t, "102", rooms[0].RoomNo)
	})
}

func TestGetAvailableRoomsExcludesOwnBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedRoom(t, db, "101", 2)
	b := seedBooking(t, db, "101", "2025-03-01", "2025-03-05")

	// Without the exclusion the booking blocks its own room.
	rooms, err := db.GetAvailableRooms(ctx, 1, "2025-03-01", "2025-03-05", 0)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	rooms, err = db.GetAvailableRooms(ctx, 1, "2025-03-01", "2025-03-05", b.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "101", rooms[0].RoomNo)
}

func TestUpdateBookingStay(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedRoom(t, db, "101", 2)
	seedRoom(t, db, "102", 4)
	b := seedBooking(t, db, "101", "2025-03-01", "2025-03-05")

	require.NoError(t, db.UpdateBookingStay(ctx, b.ID, "102", "2025-03-10", "2025-03-12"))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "102", got.RoomNo)
	assert.Equal(t, "2025-03-10", got.CheckIn)
	assert.Equal(t, "2025-03-12", got.CheckOut)

	assert.ErrorIs(t, db.UpdateBookingStay(ctx, 9999, "101", "2025-03-01", "2025-03-02"), ErrBookingNotFound)
}

func TestListBookingsByRange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedBooking(t, db, "101", "2025-03-01", "2025-03-03")
	seedBooking(t, db, "102", "2025-03-03", "2025-03-05")
	cancelled := seedBooking(t, db, "103", "2025-03-01", "2025-03-05")
	require.NoError(t, db.CancelBooking(ctx, cancelled.ID))

	// arrivals on the 3rd: half-open [03, 04)
	got, err := db.ListBookingsByRange(ctx, 1, "2025-03-03", "2025-03-04")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "102", got[0].RoomNo)

	got, err = db.ListBookingsByRange(ctx, 1, "2025-03-01", "2025-03-06")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGetRoomMaxOccupancy(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedRoom(t, db, "101", 3)

	max, err := db.GetRoomMaxOccupancy(ctx, 1, "101")
	require.NoError(t, err)
	assert.Equal(t, 3, max)

	_, err = db.GetRoomMaxOccupancy(ctx, 1, "999")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
