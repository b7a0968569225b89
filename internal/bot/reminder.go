package bot

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StartArrivalsDigest schedules a daily message to every manager
// listing the next day's arrivals.
func (b *Bot) StartArrivalsDigest(ctx context.Context, hour int) {
	if len(b.managers) == 0 {
		return
	}

	go func() {
		// First wait until the next digest hour, then tick every 24h.
		timer := time.NewTimer(timeUntilNextHour(hour))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				b.sendArrivalsDigest(ctx)
				timer.Reset(24 * time.Hour)
			}
		}
	}()
}

func (b *Bot) sendArrivalsDigest(ctx context.Context) {
	tomorrow := time.Now().AddDate(0, 0, 1).Format(dateLayout)
	dayAfter := time.Now().AddDate(0, 0, 2).Format(dateLayout)

	bookings, err := b.db.ListBookingsByRange(ctx, b.propertyID, tomorrow, dayAfter)
	if err != nil {
		b.logger.Error().Err(err).Msg("arrivals digest: list bookings")
		return
	}

	var arrivals []string
	for _, bk := range bookings {
		if bk.CheckIn != tomorrow {
			continue
		}
		arrivals = append(arrivals, fmt.Sprintf("• %s — room %s, %d night(s), %d+%d guests",
			bk.GuestName, bk.RoomNo, bk.Nights(), bk.Adults, bk.Children))
	}
	if len(arrivals) == 0 {
		return
	}

	text := fmt.Sprintf("🔔 Arrivals tomorrow (%s):\n\n%s", tomorrow, strings.Join(arrivals, "\n"))
	for id := range b.managers {
		b.reply(id, text)
	}
}

func timeUntilNextHour(hour int) time.Duration {
	now := time.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
