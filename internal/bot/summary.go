package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"innkeeper/internal/database"
	"innkeeper/internal/events"
	"innkeeper/internal/metrics"
	"innkeeper/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// sendBookingSummary renders the booking with freshly recomputed totals.
// When messageID is non-zero the existing message is edited in place;
// if the edit fails (deleted or too old) a new message is sent instead.
func (b *Bot) sendBookingSummary(ctx context.Context, chatID, bookingID int64, messageID int) {
	booking, err := b.db.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, database.ErrBookingNotFound) {
			b.reply(chatID, fmt.Sprintf("Booking #%d not found.", bookingID))
			return
		}
		b.reply(chatID, "Failed to load the booking.")
		return
	}
	summary, err := b.db.GetFinancialSummary(ctx, bookingID)
	if err != nil {
		b.reply(chatID, "Failed to compute totals.")
		return
	}

	text := formatBookingSummary(booking, summary)
	markup := bookingActionKeyboard(bookingID)

	if messageID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
		if _, err := b.send(edit); err == nil {
			return
		}
		zerolog.Ctx(ctx).Debug().Int("message_id", messageID).Msg("summary edit failed, sending fresh message")
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	_, _ = b.send(msg)
}

func formatBookingSummary(bk *models.Booking, s models.FinancialSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Booking #%d", bk.ID)
	if bk.IsCancelled {
		sb.WriteString(" (CANCELLED)")
	}
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "👤 Guest: %s\n", bk.GuestName)
	fmt.Fprintf(&sb, "🚪 Room: %s\n", bk.RoomNo)
	fmt.Fprintf(&sb, "📅 %s → %s (%d nights)\n", bk.CheckIn, bk.CheckOut, bk.Nights())
	fmt.Fprintf(&sb, "👥 Adults: %d, Children: %d\n\n", bk.Adults, bk.Children)
	fmt.Fprintf(&sb, "💰 Room total: %s\n", formatAmount(bk.TotalAmount))
	fmt.Fprintf(&sb, "🧾 Charges: %s\n", formatAmount(s.ChargesTotal))
	fmt.Fprintf(&sb, "💵 Payments: %s\n", formatAmount(s.PaymentsTotal))
	fmt.Fprintf(&sb, "⚖️ Balance due: %s", formatAmount(s.BalanceDue(bk.TotalAmount)))
	return sb.String()
}

func bookingActionKeyboard(bookingID int64) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(bookingID, 10)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Charge", "bk:charge:"+id),
			tgbotapi.NewInlineKeyboardButtonData("➕ Payment", "bk:pay:"+id),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧾 Charges", "bk:charges:"+id+":0"),
			tgbotapi.NewInlineKeyboardButtonData("💵 Payments", "bk:payments:"+id+":0"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Modify", "bk:modify:"+id),
			tgbotapi.NewInlineKeyboardButtonData("🚫 Cancel booking", "bk:cancel:"+id),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "bk:close"),
		),
	)
}

func cancelConfirmKeyboard(bookingID int64) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(bookingID, 10)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚫 Yes, cancel it", "bk:cancelyes:"+id),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Keep", "bk:summary:"+id),
		),
	)
}

// handleBookingAction routes the summary keyboard: "action:bookingID[:page]".
func (b *Bot) handleBookingAction(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, rest string) {
	if rest == "close" {
		b.ack(cq)
		return
	}
	parts := strings.Split(rest, ":")
	if len(parts) < 2 {
		b.ack(cq)
		return
	}
	action := parts[0]
	bookingID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || bookingID <= 0 {
		b.alert(cq, "Invalid booking.")
		return
	}
	page := 0
	if len(parts) > 2 {
		page, _ = strconv.Atoi(parts[2])
		if page < 0 {
			page = 0
		}
	}

	switch action {
	case "charge":
		b.startChargeFlow(ctx, chatID, cq, bookingID)
	case "pay":
		b.startPaymentFlow(ctx, chatID, cq, bookingID)
	case "charges":
		b.showLedgerPage(ctx, chatID, cq, bookingID, page, "charge")
	case "payments":
		b.showLedgerPage(ctx, chatID, cq, bookingID, page, "payment")
	case "modify":
		b.startModifyFlow(ctx, chatID, cq, bookingID)
	case "cancel":
		b.askCancelBooking(ctx, chatID, cq, bookingID)
	case "cancelyes":
		b.handleCancelBooking(ctx, chatID, cq, bookingID)
	case "summary":
		b.ack(cq)
		b.sendBookingSummary(ctx, chatID, bookingID, cq.Message.MessageID)
	default:
		b.ack(cq)
	}
}

// askCancelBooking swaps the keyboard for an explicit yes/keep confirm so a
// single stray tap cannot cancel a stay.
func (b *Bot) askCancelBooking(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, bookingID int64) {
	booking, err := b.db.GetBooking(ctx, bookingID)
	if err != nil {
		b.alert(cq, "Booking not found.")
		return
	}
	if booking.IsCancelled {
		b.alert(cq, "Already cancelled.")
		return
	}
	b.ack(cq)
	text := fmt.Sprintf("Cancel booking #%d (%s, room %s, %s → %s)?",
		booking.ID, booking.GuestName, booking.RoomNo, booking.CheckIn, booking.CheckOut)
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, cq.Message.MessageID, text, cancelConfirmKeyboard(bookingID))
	if _, err := b.send(edit); err != nil {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ReplyMarkup = cancelConfirmKeyboard(bookingID)
		_, _ = b.send(msg)
	}
}

func (b *Bot) handleCancelBooking(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, bookingID int64) {
	booking, err := b.db.GetBooking(ctx, bookingID)
	if err != nil {
		b.alert(cq, "Booking not found.")
		return
	}
	if booking.IsCancelled {
		b.alert(cq, "Already cancelled.")
		return
	}
	if err := b.db.CancelBooking(ctx, bookingID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("booking_id", bookingID).Msg("cancel booking failed")
		b.alert(cq, "Failed to cancel, try again.")
		return
	}
	metrics.IncBookingCancelled()
	b.bus.Publish(events.BookingEvent{
		Type:      events.TypeBookingCancelled,
		BookingID: bookingID,
		RoomNo:    booking.RoomNo,
		CheckIn:   booking.CheckIn,
		CheckOut:  booking.CheckOut,
	})
	b.ack(cq)
	b.sendBookingSummary(ctx, chatID, bookingID, cq.Message.MessageID)
}

func (b *Bot) handleTodayArrivals(ctx context.Context, chatID int64) {
	today := todayStr()
	tomorrow := addDays(today, 1)
	bookings, err := b.db.ListBookingsByRange(ctx, b.propertyID, today, tomorrow)
	if err != nil {
		b.reply(chatID, "Failed to load today's bookings.")
		return
	}
	if len(bookings) == 0 {
		b.reply(chatID, "No stays tonight ("+today+").")
		return
	}
	var sb strings.Builder
	sb.WriteString("🗓 In house / arriving " + today + ":\n\n")
	for _, bk := range bookings {
		fmt.Fprintf(&sb, "#%d %s | Room %s | %s → %s\n",
			bk.ID, bk.GuestName, bk.RoomNo, bk.CheckIn, bk.CheckOut)
	}
	b.reply(chatID, sb.String())
}

func todayStr() string {
	return time.Now().Format(dateLayout)
}

func addDays(date string, n int) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, n).Format(dateLayout)
}

func (b *Bot) handleListRooms(ctx context.Context, chatID int64) {
	rooms, err := b.db.ListRooms(ctx, b.propertyID)
	if err != nil {
		b.reply(chatID, "Failed to load rooms.")
		return
	}
	if len(rooms) == 0 {
		b.reply(chatID, "No rooms configured.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Rooms:\n")
	for _, r := range rooms {
		fmt.Fprintf(&sb, "%s | %s | sleeps %d\n", r.RoomNo, r.RoomType, r.MaxOccupancy)
	}
	b.reply(chatID, sb.String())
}
