package database

import (
	"context"
	"testing"
	"time"

	"innkeeper/internal/wizard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizardRepositoryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewWizardRepository(db, time.Hour)
	ctx := context.Background()

	st := wizard.New(42, 7, wizard.StepCheckOutDate)
	st.Data.GuestName = "Alice Smith"
	st.Data.CheckIn = "2025-03-01"
	require.NoError(t, repo.Save(ctx, st))

	got, err := repo.Load(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, wizard.StepCheckOutDate, got.Step)
	assert.Equal(t, "Alice Smith", got.Data.GuestName)
	assert.Equal(t, "2025-03-01", got.Data.CheckIn)
}

func TestWizardRepositoryUpsert(t *testing.T) {
	db := newTestDB(t)
	repo := NewWizardRepository(db, time.Hour)
	ctx := context.Background()

	st := wizard.New(1, 1, wizard.StepGuestName)
	require.NoError(t, repo.Save(ctx, st))

	st.Step = wizard.StepCheckInDate
	st.Data.GuestName = "Bob"
	require.NoError(t, repo.Save(ctx, st))

	got, err := repo.Load(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, wizard.StepCheckInDate, got.Step)
	assert.Equal(t, "Bob", got.Data.GuestName)
}

func TestWizardRepositoryClear(t *testing.T) {
	db := newTestDB(t)
	repo := NewWizardRepository(db, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, wizard.New(1, 1, wizard.StepGuestName)))
	require.NoError(t, repo.Clear(ctx, 1))

	got, err := repo.Load(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got, "cleared chat has no active flow")

	// clearing again is not an error
	require.NoError(t, repo.Clear(ctx, 1))
	require.NoError(t, repo.Clear(ctx, 999))
}

func TestWizardRepositoryTTL(t *testing.T) {
	db := newTestDB(t)
	repo := NewWizardRepository(db, time.Hour)
	ctx := context.Background()

	stale := wizard.New(5, 5, wizard.StepAmount)
	stale.UpdatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, repo.Save(ctx, stale))

	got, err := repo.Load(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, got, "expired row behaves like no row")

	// disabled expiry keeps stale rows
	forever := NewWizardRepository(db, 0)
	require.NoError(t, forever.Save(ctx, stale))
	got, err = forever.Load(ctx, 5)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestDeleteExpired(t *testing.T) {
	db := newTestDB(t)
	repo := NewWizardRepository(db, time.Hour)
	ctx := context.Background()

	fresh := wizard.New(1, 1, wizard.StepGuestName)
	require.NoError(t, repo.Save(ctx, fresh))

	stale := wizard.New(2, 2, wizard.StepAmount)
	stale.UpdatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, repo.Save(ctx, stale))

	n, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.Load(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, got, "fresh flow survives the sweep")

	// sweep is a no-op without a ttl
	forever := NewWizardRepository(db, 0)
	n, err = forever.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
