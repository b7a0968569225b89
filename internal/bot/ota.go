package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"innkeeper/internal/ota"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ConfigureOTA sets the property name used in exported feeds, the
// directory occupancy workbooks are written to, and the external iCal
// feeds watched by StartFeedWatch.
func (b *Bot) ConfigureOTA(propertyName, exportDir string, feedURLs []string) {
	b.propertyName = propertyName
	b.exportDir = exportDir
	b.feedURLs = feedURLs
}

// handleExportOccupancy sends the current month's room-by-date grid as
// a workbook, and keeps a copy under the export directory when one is
// configured.
func (b *Bot) handleExportOccupancy(ctx context.Context, chatID int64) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 1, 0)

	rooms, err := b.db.ListRooms(ctx, b.propertyID)
	if err != nil {
		b.reply(chatID, "Failed to load rooms.")
		return
	}
	if len(rooms) == 0 {
		b.reply(chatID, "No rooms configured.")
		return
	}
	bookings, err := b.db.ListBookingsByRange(ctx,
		b.propertyID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		b.reply(chatID, "Failed to load bookings.")
		return
	}

	grid, err := ota.NewOccupancyGrid(rooms, bookings, from, to)
	if err != nil {
		b.reply(chatID, "Failed to build the occupancy grid.")
		return
	}
	defer grid.Close()

	if b.exportDir != "" {
		if err := os.MkdirAll(b.exportDir, 0o755); err == nil {
			path := ota.ExportPath(b.exportDir, from)
			if err := grid.SaveToFile(path); err != nil {
				b.logger.Error().Err(err).Str("path", path).Msg("occupancy export save failed")
			}
		}
	}

	var buf bytes.Buffer
	if err := grid.Save(&buf); err != nil {
		b.reply(chatID, "Failed to render the workbook.")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  filepath.Base(ota.ExportPath(".", from)),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("Occupancy %s", from.Format("January 2006"))
	_, _ = b.send(doc)
}

// handleExportICal sends the availability feed for the next year, the
// file an OTA extranet imports to block booked dates.
func (b *Bot) handleExportICal(ctx context.Context, chatID int64) {
	from := time.Now().Format(dateLayout)
	to := time.Now().AddDate(1, 0, 0).Format(dateLayout)

	bookings, err := b.db.ListBookingsByRange(ctx, b.propertyID, from, to)
	if err != nil {
		b.reply(chatID, "Failed to load bookings.")
		return
	}
	name := b.propertyName
	if name == "" {
		name = fmt.Sprintf("Property %d", b.propertyID)
	}
	feed := ota.GenerateICal(name, bookings)
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "availability.ics",
		Bytes: []byte(feed),
	})
	doc.Caption = fmt.Sprintf("Availability feed, %d stay(s)", strings.Count(feed, "BEGIN:VEVENT"))
	_, _ = b.send(doc)
}

// StartFeedWatch polls the configured OTA iCal feeds and reports the
// reconciliation diff to managers when something moved.
func (b *Bot) StartFeedWatch(ctx context.Context, interval time.Duration) {
	if len(b.feedURLs) == 0 || len(b.managers) == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.checkFeeds(ctx)
			}
		}
	}()
}

func (b *Bot) checkFeeds(ctx context.Context) {
	from := time.Now().Format(dateLayout)
	to := time.Now().AddDate(0, 6, 0).Format(dateLayout)
	local, err := b.db.ListBookingsByRange(ctx, b.propertyID, from, to)
	if err != nil {
		b.logger.Error().Err(err).Msg("feed watch: list bookings")
		return
	}

	for _, url := range b.feedURLs {
		feed, err := b.fetchFeed(ctx, url)
		if err != nil {
			b.logger.Error().Err(err).Str("url", url).Msg("feed fetch failed")
			continue
		}
		d := ota.Reconcile(feed, local)
		if len(d.New) == 0 && len(d.Changed) == 0 && len(d.Vanished) == 0 {
			continue
		}
		text := formatFeedDiff(url, d)
		for id := range b.managers {
			b.reply(id, text)
		}
	}
}

func (b *Bot) fetchFeed(ctx context.Context, url string) ([]ota.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return ota.ParseICal(string(body)), nil
}

func formatFeedDiff(url string, d ota.Diff) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "⚠️ OTA feed drift (%s):\n", url)
	for _, ev := range d.New {
		fmt.Fprintf(&sb, "\n• new: %s %s → %s", ev.Summary, ev.CheckIn, ev.CheckOut)
	}
	for _, ev := range d.Changed {
		fmt.Fprintf(&sb, "\n• moved: %s now %s → %s", ev.Summary, ev.CheckIn, ev.CheckOut)
	}
	for _, ev := range d.Vanished {
		fmt.Fprintf(&sb, "\n• gone from feed: %s %s → %s", ev.Summary, ev.CheckIn, ev.CheckOut)
	}
	return sb.String()
}
