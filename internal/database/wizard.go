package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"innkeeper/internal/wizard"
)

// WizardRepository is the sqlite implementation of wizard.Repository.
// It doubles as the failover fallback when redis is configured.
type WizardRepository struct {
	db  *DB
	ttl time.Duration
}

// NewWizardRepository wraps the database as a wizard store. A non-positive
// ttl keeps abandoned rows forever.
func NewWizardRepository(db *DB, ttl time.Duration) *WizardRepository {
	return &WizardRepository{db: db, ttl: ttl}
}

func (r *WizardRepository) Load(ctx context.Context, chatID int64) (*wizard.State, error) {
	var (
		st   = &wizard.State{ChatID: chatID}
		user sql.NullInt64
		data []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, step, data, updated_at
		FROM wizard_states WHERE chat_id = ?`, chatID).Scan(
		&user, &st.Step, &data, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load wizard %d: %w", chatID, err)
	}
	if user.Valid {
		st.UserID = user.Int64
	}
	if st.Expired(r.ttl) {
		// Expiry is enforced at load so a stale row behaves like no row.
		_ = r.Clear(ctx, chatID)
		return nil, nil
	}
	if err := st.DecodeData(data); err != nil {
		return nil, fmt.Errorf("decode wizard %d: %w", chatID, err)
	}
	return st, nil
}

func (r *WizardRepository) Save(ctx context.Context, st *wizard.State) error {
	data, err := st.EncodeData()
	if err != nil {
		return fmt.Errorf("encode wizard %d: %w", st.ChatID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO wizard_states (chat_id, user_id, step, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			user_id = excluded.user_id,
			step = excluded.step,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		st.ChatID, st.UserID, string(st.Step), string(data), st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save wizard %d: %w", st.ChatID, err)
	}
	return nil
}

func (r *WizardRepository) Clear(ctx context.Context, chatID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM wizard_states WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("clear wizard %d: %w", chatID, err)
	}
	return nil
}

// DeleteExpired removes wizard rows older than the repository TTL and
// returns how many were swept. No-op when expiry is disabled.
func (r *WizardRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if r.ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-r.ttl)
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM wizard_states WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep wizards: %w", err)
	}
	return res.RowsAffected()
}
