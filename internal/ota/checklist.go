package ota

import (
	"context"
	"sync"
	"time"

	"innkeeper/internal/events"

	"github.com/rs/zerolog"
)

// ChecklistRow is one manual OTA update the operator still has to
// perform on an extranet after a booking mutation.
type ChecklistRow struct {
	Platform  string
	RoomNo    string
	CheckIn   string
	CheckOut  string
	Note      string
	Done      bool
	CreatedAt time.Time
}

// RowPusher receives checklist rows, typically a Google Sheet.
type RowPusher interface {
	PushChecklistRows(ctx context.Context, rows []ChecklistRow) error
}

// Checklist turns booking events into per-platform checklist rows and
// pushes them through the configured pusher. Rows that fail to push
// stay queued for the next flush.
type Checklist struct {
	platforms []string
	pusher    RowPusher
	logger    zerolog.Logger

	mu      sync.Mutex
	pending []ChecklistRow
}

// NewChecklist builds a checklist for the given OTA platform names.
func NewChecklist(platforms []string, pusher RowPusher, logger zerolog.Logger) *Checklist {
	return &Checklist{
		platforms: platforms,
		pusher:    pusher,
		logger:    logger.With().Str("component", "ota_checklist").Logger(),
	}
}

// Subscribe attaches the checklist to booking mutations on the bus.
func (c *Checklist) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.TypeBookingCreated, c.onBookingEvent("block dates"))
	bus.Subscribe(events.TypeBookingModified, c.onBookingEvent("move dates"))
	bus.Subscribe(events.TypeBookingCancelled, c.onBookingEvent("reopen dates"))
}

func (c *Checklist) onBookingEvent(note string) events.Handler {
	return func(ev events.BookingEvent) {
		c.mu.Lock()
		for _, platform := range c.platforms {
			c.pending = append(c.pending, ChecklistRow{
				Platform:  platform,
				RoomNo:    ev.RoomNo,
				CheckIn:   ev.CheckIn,
				CheckOut:  ev.CheckOut,
				Note:      note,
				CreatedAt: ev.At,
			})
		}
		n := len(c.pending)
		c.mu.Unlock()
		c.logger.Debug().Str("note", note).Str("room", ev.RoomNo).Int("pending", n).Msg("checklist rows queued")
	}
}

// Pending returns a snapshot of queued rows.
func (c *Checklist) Pending() []ChecklistRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ChecklistRow(nil), c.pending...)
}

// Flush pushes queued rows. On success the queue is emptied; on error
// the rows remain for the next attempt.
func (c *Checklist) Flush(ctx context.Context) error {
	c.mu.Lock()
	rows := append([]ChecklistRow(nil), c.pending...)
	c.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}
	if c.pusher == nil {
		// no consumer configured, drop instead of growing forever
		c.mu.Lock()
		c.pending = c.pending[len(rows):]
		c.mu.Unlock()
		c.logger.Warn().Int("rows", len(rows)).Msg("checklist rows dropped, no pusher configured")
		return nil
	}
	if err := c.pusher.PushChecklistRows(ctx, rows); err != nil {
		c.logger.Error().Err(err).Int("rows", len(rows)).Msg("checklist push failed")
		return err
	}

	c.mu.Lock()
	c.pending = c.pending[len(rows):]
	c.mu.Unlock()
	c.logger.Info().Int("rows", len(rows)).Msg("checklist rows pushed")
	return nil
}

// Run flushes on the interval until the context ends, then makes one
// final flush attempt.
func (c *Checklist) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			_ = c.Flush(ctx)
		}
	}
}
