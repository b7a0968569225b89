package wizard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const recoveryCheckInterval = time.Minute

// FailoverRepository reads and writes through a primary repository
// (redis) and falls back to a secondary (sqlite) while the primary is
// down. Once the primary fails, it is skipped until a recovery probe
// succeeds, so a dead redis does not add a timeout to every update.
type FailoverRepository struct {
	primary  Repository
	fallback Repository
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverRepository(primary, fallback Repository, logger *zerolog.Logger) *FailoverRepository {
	return &FailoverRepository{primary: primary, fallback: fallback, logger: logger}
}

// usePrimary reports whether the primary should be attempted.
func (f *FailoverRepository) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) >= recoveryCheckInterval {
		f.lastCheck = time.Now()
		return true
	}
	return false
}

func (f *FailoverRepository) markDown(op string, err error) {
	if f.isDown.CompareAndSwap(false, true) {
		f.logger.Warn().Err(err).Str("op", op).Msg("primary wizard store down, using fallback")
	}
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *FailoverRepository) markUp() {
	if f.isDown.CompareAndSwap(true, false) {
		f.logger.Info().Msg("primary wizard store recovered")
	}
}

func (f *FailoverRepository) Load(ctx context.Context, chatID int64) (*State, error) {
	if f.usePrimary() {
		st, err := f.primary.Load(ctx, chatID)
		if err == nil {
			f.markUp()
			return st, nil
		}
		f.markDown("load", err)
	}
	return f.fallback.Load(ctx, chatID)
}

func (f *FailoverRepository) Save(ctx context.Context, state *State) error {
	if f.usePrimary() {
		err := f.primary.Save(ctx, state)
		if err == nil {
			f.markUp()
			// Mirror to the fallback so a later primary outage resumes the
			// flow instead of losing it. Best effort.
			_ = f.fallback.Save(ctx, state)
			return nil
		}
		f.markDown("save", err)
	}
	return f.fallback.Save(ctx, state)
}

func (f *FailoverRepository) Clear(ctx context.Context, chatID int64) error {
	if f.usePrimary() {
		if err := f.primary.Clear(ctx, chatID); err == nil {
			f.markUp()
		} else {
			// Redis TTL and the confirm token cover a row that outlives
			// this failed delete.
			f.markDown("clear", err)
		}
	}
	// Always clear the fallback mirror.
	return f.fallback.Clear(ctx, chatID)
}
