package bot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"innkeeper/internal/database"
	"innkeeper/internal/events"
	"innkeeper/internal/models"
	"innkeeper/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTelegram records outgoing traffic instead of hitting the API.
type fakeTelegram struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeTelegram) SelfUser() tgbotapi.User {
	return tgbotapi.User{UserName: "innkeeper_test_bot"}
}

func (f *fakeTelegram) lastMessage(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if m, ok := f.sent[i].(tgbotapi.MessageConfig); ok {
			return m
		}
	}
	t.Fatal("no message sent")
	return tgbotapi.MessageConfig{}
}

func (f *fakeTelegram) lastDocument(t *testing.T) tgbotapi.DocumentConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if d, ok := f.sent[i].(tgbotapi.DocumentConfig); ok {
			return d
		}
	}
	t.Fatal("no document sent")
	return tgbotapi.DocumentConfig{}
}

func (f *fakeTelegram) lastEdit(t *testing.T) tgbotapi.EditMessageTextConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if m, ok := f.sent[i].(tgbotapi.EditMessageTextConfig); ok {
			return m
		}
	}
	t.Fatal("no edit sent")
	return tgbotapi.EditMessageTextConfig{}
}

func (f *fakeTelegram) alerts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.requests {
		if cb, ok := r.(tgbotapi.CallbackConfig); ok && cb.ShowAlert {
			out = append(out, cb.Text)
		}
	}
	return out
}

func (f *fakeTelegram) lastAlert(t *testing.T) string {
	t.Helper()
	alerts := f.alerts()
	if len(alerts) == 0 {
		t.Fatal("no alert shown")
	}
	return alerts[len(alerts)-1]
}

type testEnv struct {
	bot     *Bot
	tg      *fakeTelegram
	db      *database.DB
	wizards wizard.Repository
	bus     *events.Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tg := &fakeTelegram{}
	wizards := database.NewWizardRepository(db, time.Hour)
	bus := events.NewBus()
	logger := zerolog.Nop()
	b := NewWithTelegramClient(tg, db, wizards, bus, 1, []int64{900}, &logger)
	return &testEnv{bot: b, tg: tg, db: db, wizards: wizards, bus: bus}
}

func (e *testEnv) seedRoom(t *testing.T, roomNo string, maxOcc int) {
	t.Helper()
	require.NoError(t, e.db.CreateRoom(context.Background(), &models.Room{
		PropertyID: 1, RoomNo: roomNo, RoomType: "standard", MaxOccupancy: maxOcc,
	}))
}

func (e *testEnv) sendText(text string) {
	e.bot.handleMessage(context.Background(), &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 100},
	})
}

func (e *testEnv) tap(data string) {
	e.bot.handleCallback(context.Background(), &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{
			MessageID: 55,
			Chat:      &tgbotapi.Chat{ID: 100},
		},
		Data: data,
	})
}

func (e *testEnv) state(t *testing.T) *wizard.State {
	t.Helper()
	st, err := e.wizards.Load(context.Background(), 100)
	require.NoError(t, err)
	return st
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		ok       bool
	}{
		{"5000", 5000, true},
		{"5,000", 5000, true},
		{"5,000.50", 5000.50, true},
		{"1 200 300", 1200300, true},
		{"49.99", 49.99, true},
		{"0", 0, false},
		{"-10", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"Inf", 0, false},
		{"NaN", 0, false},
	}
	for _, tt := range tests {
		v, err := parseAmount(tt.input)
		if tt.ok {
			assert.NoError(t, err, "input: %q", tt.input)
			assert.Equal(t, tt.expected, v, "input: %q", tt.input)
		} else {
			assert.Error(t, err, "input: %q", tt.input)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "5000", formatAmount(5000))
	assert.Equal(t, "49.99", formatAmount(49.99))
	assert.Equal(t, "0.5", formatAmount(0.5))
}

func TestBookingFlowEndToEnd(t *testing.T) {
	e := newTestEnv(t)
	e.seedRoom(t, "101", 3)
	ctx := context.Background()

	var created []events.BookingEvent
	e.bus.Subscribe(events.TypeBookingCreated, func(ev events.BookingEvent) {
		created = append(created, ev)
	})

	e.sendText("/book")
	assert.Equal(t, wizard.StepGuestName, e.state(t).Step)
	assert.Contains(t, e.tg.lastMessage(t).Text, "Guest name")

	e.sendText("A")
	assert.Equal(t, wizard.StepGuestName, e.state(t).Step, "short name re-prompts")

	e.sendText("Alice Smith")
	assert.Equal(t, wizard.StepCheckInDate, e.state(t).Step)

	e.tap("ci:select:2025-03-01")
	st := e.state(t)
	assert.Equal(t, wizard.StepCheckOutDate, st.Step)
	assert.Equal(t, "2025-03-01", st.Data.CheckIn)

	// check-out on the check-in day is rejected without advancing
	e.tap("co:select:2025-03-01")
	st = e.state(t)
	assert.Equal(t, wizard.StepCheckOutDate, st.Step)
	assert.Empty(t, st.Data.CheckOut)
	assert.Contains(t, e.tg.lastAlert(t), "after check-in")

	e.tap("co:select:2025-03-04")
	assert.Equal(t, wizard.StepRoom, e.state(t).Step)

	e.tap("room:101")
	assert.Equal(t, wizard.StepAdults, e.state(t).Step)

	e.tap("adults:2")
	assert.Equal(t, wizard.StepChildren, e.state(t).Step)

	e.tap("children:1")
	st = e.state(t)
	assert.Equal(t, wizard.StepAmount, st.Step)
	assert.True(t, st.Data.ChildrenSet)

	e.sendText("5,000")
	st = e.state(t)
	assert.Equal(t, wizard.StepConfirm, st.Step)
	require.NotEmpty(t, st.Data.Token)
	token := st.Data.Token

	// stale token is rejected and nothing is inserted
	e.tap("confirm:stale-token")
	assert.Contains(t, e.tg.lastAlert(t), "expired")
	_, err := e.db.GetBooking(ctx, 1)
	assert.ErrorIs(t, err, database.ErrBookingNotFound)

	e.tap("confirm:" + token)

	b, err := e.db.GetBooking(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", b.GuestName)
	assert.Equal(t, "101", b.RoomNo)
	assert.Equal(t, "2025-03-01", b.CheckIn)
	assert.Equal(t, "2025-03-04", b.CheckOut)
	assert.Equal(t, 2, b.Adults)
	assert.Equal(t, 1, b.Children)
	assert.Equal(t, 5000.0, b.TotalAmount)

	assert.Nil(t, e.state(t), "wizard cleared after insert")
	require.Len(t, created, 1)
	assert.Equal(t, b.ID, created[0].BookingID)
}

func TestChildrenPickerCappedByOccupancy(t *testing.T) {
	e := newTestEnv(t)
	e.seedRoom(t, "201", 2)

	st := wizard.New(100, 7, wizard.StepAdults)
	st.Data.PropertyID = 1
	st.Data.RoomNo = "201"
	require.NoError(t, e.wizards.Save(context.Background(), st))

	e.tap("adults:2")

	msg := e.tg.lastMessage(t)
	assert.Contains(t, msg.Text, "Children")
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 1, "all beds taken by adults")
	assert.Equal(t, "0", markup.InlineKeyboard[0][0].Text)
}

func TestAdultsRepickForcesChildrenRecapture(t *testing.T) {
	e := newTestEnv(t)
	e.seedRoom(t, "201", 3)

	st := wizard.New(100, 7, wizard.StepAdults)
	st.Data.PropertyID = 1
	st.Data.RoomNo = "201"
	st.Data.Children = 2
	st.Data.ChildrenSet = true
	require.NoError(t, e.wizards.Save(context.Background(), st))

	e.tap("adults:2")

	got := e.state(t)
	assert.Equal(t, wizard.StepChildren, got.Step)
	assert.False(t, got.Data.ChildrenSet, "stale child count dropped")
	assert.Zero(t, got.Data.Children)
	assert.Contains(t, e.tg.lastAlert(t), "pick again")
}

func TestChargeFlowWithCatalogPrice(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	booking := &models.Booking{
		PropertyID: 1, GuestName: "Bob", RoomNo: "101",
		CheckIn: "2025-03-01", CheckOut: "2025-03-03", Adults: 1,
		TotalAmount: 800, Source: "telegram",
	}
	require.NoError(t, e.db.CreateBooking(ctx, booking))
	require.NoError(t, e.db.CreateMenuItem(ctx, &models.MenuItem{
		PropertyID: 1, Name: "Green Tea", Category: "drinks", Price: 3.5,
	}))

	e.tap("bk:charge:1")
	assert.Equal(t, wizard.StepChargeType, e.state(t).Step)

	e.tap("chtype:fnb")
	assert.Equal(t, wizard.StepChargeFnBSearch, e.state(t).Step)

	e.sendText("tea")
	st := e.state(t)
	assert.Equal(t, wizard.StepChargeFnBPick, st.Step)
	require.Len(t, st.Data.FnBResults, 1)
	assert.Equal(t, "Green Tea", st.Data.FnBResults[0].Label)

	e.tap("fnb:0")
	assert.Equal(t, wizard.StepChargeQty, e.state(t).Step)

	e.sendText("2")
	assert.Equal(t, wizard.StepChargeUnitPrice, e.state(t).Step)

	// "." uses the catalog price
	e.sendText(".")
	assert.Equal(t, wizard.StepChargeConfirm, e.state(t).Step)

	e.tap("chsave")

	charges, err := e.db.ListCharges(ctx, booking.ID, 0)
	require.NoError(t, err)
	require.Len(t, charges, 1)
	assert.Equal(t, models.ChargeTypeFnB, charges[0].ChargeType)
	assert.Equal(t, "Green Tea", charges[0].Description)
	assert.Equal(t, 2, charges[0].Quantity)
	assert.Equal(t, 3.5, charges[0].UnitAmount)
	assert.Equal(t, 7.0, charges[0].Amount)
	assert.Nil(t, e.state(t), "sub-wizard cleared after save")
}

func TestStaleFnBIndexRejected(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	st := wizard.New(100, 7, wizard.StepChargeFnBPick)
	st.Data.PropertyID = 1
	st.Data.BookingID = 1
	st.Data.FnBResults = []wizard.CachedItem{{ID: 1, Label: "Tea", Amount: 3}}
	require.NoError(t, e.wizards.Save(ctx, st))

	e.tap("fnb:5")
	assert.Contains(t, e.tg.lastAlert(t), "no longer on the list")
	assert.Equal(t, wizard.StepChargeFnBPick, e.state(t).Step)
}

func TestPaymentFlow(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	booking := &models.Booking{
		PropertyID: 1, GuestName: "Bob", RoomNo: "101",
		CheckIn: "2025-03-01", CheckOut: "2025-03-03", Adults: 1,
		TotalAmount: 800, Source: "telegram",
	}
	require.NoError(t, e.db.CreateBooking(ctx, booking))

	e.tap("bk:pay:1")
	e.tap("pay:refund")
	assert.Equal(t, wizard.StepPaymentAmount, e.state(t).Step)

	e.sendText("150")
	assert.Equal(t, wizard.StepPaymentConfirm, e.state(t).Step)

	e.tap("paysave")

	payments, err := e.db.ListPayments(ctx, booking.ID, 0)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentTypeRefund, payments[0].PaymentType)
	assert.Equal(t, "other", payments[0].Method)
	assert.Equal(t, 150.0, payments[0].Amount)

	s, err := e.db.GetFinancialSummary(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, -150.0, s.PaymentsTotal)
}

func TestVoidChargeByStableID(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	booking := &models.Booking{
		PropertyID: 1, GuestName: "Bob", RoomNo: "101",
		CheckIn: "2025-03-01", CheckOut: "2025-03-03", Adults: 1,
		TotalAmount: 800, Source: "telegram",
	}
	require.NoError(t, e.db.CreateBooking(ctx, booking))

	c := &models.BookingCharge{
		BookingID: booking.ID, ChargeType: models.ChargeTypeMisc,
		Description: "Laundry", Quantity: 1, UnitAmount: 20, Amount: 20,
	}
	require.NoError(t, e.db.AddCharge(ctx, c))

	e.tap("vc:1:1:0")

	charges, err := e.db.ListCharges(ctx, booking.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, charges)

	// tapping the same stale button again alerts instead of erroring
	e.tap("vc:1:1:0")
	assert.Contains(t, e.tg.lastAlert(t), "Already voided")
}

func TestModifyFlowKeepsOwnRoom(t *testing.T) {
	e := newTestEnv(t)
	e.seedRoom(t, "101", 2)
	ctx := context.Background()

	booking := &models.Booking{
		PropertyID: 1, GuestName: "Bob", RoomNo: "101",
		CheckIn: "2025-03-01", CheckOut: "2025-03-05", Adults: 2,
		TotalAmount: 800, Source: "telegram",
	}
	require.NoError(t, e.db.CreateBooking(ctx, booking))

	var modified []events.BookingEvent
	e.bus.Subscribe(events.TypeBookingModified, func(ev events.BookingEvent) {
		modified = append(modified, ev)
	})

	e.tap("bk:modify:1")
	assert.Equal(t, wizard.StepModifyCheckIn, e.state(t).Step)

	// overlapping the booking's own dates still offers its room
	e.tap("mci:select:2025-03-02")
	e.tap("mco:select:2025-03-06")
	assert.Equal(t, wizard.StepModifyRoom, e.state(t).Step)

	e.tap("mroom:101")

	got, err := e.db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-02", got.CheckIn)
	assert.Equal(t, "2025-03-06", got.CheckOut)
	assert.Equal(t, "101", got.RoomNo)
	assert.Nil(t, e.state(t))
	require.Len(t, modified, 1)
	assert.Equal(t, booking.ID, modified[0].BookingID)
}

func TestCancelBookingNeedsConfirmTap(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	booking := &models.Booking{
		PropertyID: 1, GuestName: "Bob", RoomNo: "101",
		CheckIn: "2025-03-01", CheckOut: "2025-03-03", Adults: 1,
		TotalAmount: 800, Source: "telegram",
	}
	require.NoError(t, e.db.CreateBooking(ctx, booking))

	var cancelled []events.BookingEvent
	e.bus.Subscribe(events.TypeBookingCancelled, func(ev events.BookingEvent) {
		cancelled = append(cancelled, ev)
	})

	// first tap only asks, the booking stays live
	e.tap("bk:cancel:1")
	got, err := e.db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.False(t, got.IsCancelled)
	assert.Empty(t, cancelled)

	e.tap("bk:cancelyes:1")
	got, err = e.db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, booking.ID, cancelled[0].BookingID)
	assert.Contains(t, e.tg.lastEdit(t).Text, "CANCELLED")

	// a stale confirm tap alerts instead of double-cancelling
	e.tap("bk:cancelyes:1")
	assert.Contains(t, e.tg.lastAlert(t), "Already cancelled")
	assert.Len(t, cancelled, 1)
}

func TestCancelCommandClearsFlow(t *testing.T) {
	e := newTestEnv(t)

	e.sendText("/book")
	require.NotNil(t, e.state(t))

	e.sendText("/cancel")
	assert.Nil(t, e.state(t))
	assert.Contains(t, e.tg.lastMessage(t).Text, "Cancelled")
}

func TestInertCalendarCellsOnlyAck(t *testing.T) {
	e := newTestEnv(t)

	st := wizard.New(100, 7, wizard.StepCheckInDate)
	st.Data.PropertyID = 1
	require.NoError(t, e.wizards.Save(context.Background(), st))

	before := len(e.tg.sent)
	e.tap("ci:header")
	e.tap("ci:day_header")
	e.tap("ci:empty")

	assert.Equal(t, before, len(e.tg.sent), "no messages for inert cells")
	assert.Empty(t, e.tg.alerts())
	assert.Equal(t, wizard.StepCheckInDate, e.state(t).Step)
}

func TestManagerOnlyCommands(t *testing.T) {
	e := newTestEnv(t)

	// non-manager
	e.sendText("/today")
	assert.Contains(t, e.tg.lastMessage(t).Text, "Unknown command")

	// manager
	e.bot.handleMessage(context.Background(), &tgbotapi.Message{
		Text: "/today",
		From: &tgbotapi.User{ID: 900},
		Chat: &tgbotapi.Chat{ID: 200},
	})
	assert.False(t, strings.Contains(e.tg.lastMessage(t).Text, "Unknown command"))
}
