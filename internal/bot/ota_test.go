package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"innkeeper/internal/models"
	"innkeeper/internal/ota"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) sendManagerText(text string) {
	e.bot.handleMessage(context.Background(), &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: 900},
		Chat: &tgbotapi.Chat{ID: 900},
	})
}

func TestExportOccupancyCommand(t *testing.T) {
	e := newTestEnv(t)
	e.seedRoom(t, "101", 2)
	ctx := context.Background()

	monthStart := time.Date(time.Now().Year(), time.Now().Month(), 1, 0, 0, 0, 0, time.Local)
	booking := &models.Booking{
		PropertyID: 1, GuestName: "Alice", RoomNo: "101",
		CheckIn:  monthStart.Format("2006-01-02"),
		CheckOut: monthStart.AddDate(0, 0, 2).Format("2006-01-02"),
		Adults:   1, TotalAmount: 200, Source: "telegram",
	}
	require.NoError(t, e.db.CreateBooking(ctx, booking))

	exportDir := t.TempDir()
	e.bot.ConfigureOTA("Seaside", exportDir, nil)

	e.sendManagerText("/export")

	doc := e.tg.lastDocument(t)
	fb, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Contains(t, fb.Name, "occupancy-")
	assert.NotEmpty(t, fb.Bytes)
	assert.Contains(t, doc.Caption, monthStart.Format("January 2006"))

	// a copy lands under the export directory
	_, err := os.Stat(ota.ExportPath(exportDir, monthStart))
	assert.NoError(t, err)
}

func TestExportOccupancyWithoutRooms(t *testing.T) {
	e := newTestEnv(t)
	e.sendManagerText("/export")
	assert.Contains(t, e.tg.lastMessage(t).Text, "No rooms configured")
}

func TestExportICalCommand(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	in := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	out := time.Now().AddDate(0, 0, 10).Format("2006-01-02")
	booking := &models.Booking{
		PropertyID: 1, GuestName: "Bob", RoomNo: "102",
		CheckIn: in, CheckOut: out, Adults: 2,
		TotalAmount: 300, Source: "telegram",
	}
	require.NoError(t, e.db.CreateBooking(ctx, booking))

	e.sendManagerText("/ical")

	doc := e.tg.lastDocument(t)
	fb, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "availability.ics", fb.Name)
	feed := string(fb.Bytes)
	assert.Contains(t, feed, "BEGIN:VEVENT")
	assert.Contains(t, feed, ota.BookingUID(booking.ID))
	assert.Contains(t, doc.Caption, "1 stay(s)")
}

func TestFeedWatchReportsDrift(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	in := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	out := time.Now().AddDate(0, 0, 9).Format("2006-01-02")
	booking := &models.Booking{
		PropertyID: 1, GuestName: "Bob", RoomNo: "102",
		CheckIn: in, CheckOut: out, Adults: 1,
		TotalAmount: 300, Source: "telegram",
	}
	require.NoError(t, e.db.CreateBooking(ctx, booking))

	// the feed knows our booking plus one stay we have no record of
	feed := fmt.Sprintf("BEGIN:VCALENDAR\r\n"+
		"BEGIN:VEVENT\r\nUID:%s\r\nDTSTART;VALUE=DATE:%s\r\nDTEND;VALUE=DATE:%s\r\nSUMMARY:Room 102\r\nEND:VEVENT\r\n"+
		"BEGIN:VEVENT\r\nUID:ext-42@airbnb\r\nDTSTART;VALUE=DATE:20991201\r\nDTEND;VALUE=DATE:20991203\r\nSUMMARY:Room 101\r\nEND:VEVENT\r\n"+
		"END:VCALENDAR\r\n",
		ota.BookingUID(booking.ID),
		time.Now().AddDate(0, 0, 7).Format("20060102"),
		time.Now().AddDate(0, 0, 9).Format("20060102"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	e.bot.ConfigureOTA("", "", []string{srv.URL})
	e.bot.checkFeeds(ctx)

	msg := e.tg.lastMessage(t)
	assert.Equal(t, int64(900), msg.ChatID, "drift goes to the manager")
	assert.Contains(t, msg.Text, "OTA feed drift")
	assert.Contains(t, msg.Text, "new: Room 101")
}

func TestFeedWatchQuietWhenInSync(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	}))
	defer srv.Close()

	e.bot.ConfigureOTA("", "", []string{srv.URL})
	e.bot.checkFeeds(ctx)

	assert.Empty(t, e.tg.sent)
}
