package bot

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"innkeeper/internal/events"
	"innkeeper/internal/metrics"
	"innkeeper/internal/models"
	"innkeeper/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

func (b *Bot) startBookingFlow(ctx context.Context, chatID, userID int64) {
	b.clearWizard(ctx, chatID)
	st := wizard.New(chatID, userID, wizard.StepGuestName)
	st.Data.PropertyID = b.propertyID
	if !b.saveWizard(ctx, st) {
		return
	}
	metrics.IncWizardFlow("started")
	b.reply(chatID, "Guest name?")
}

func (b *Bot) cancelFlow(ctx context.Context, chatID int64) {
	b.clearWizard(ctx, chatID)
	metrics.IncWizardFlow("cancelled")
	b.reply(chatID, "Cancelled. /book to start over.")
}

// collectGuestName validates and stores the guest name, then asks for
// the check-in date. Invalid input re-prompts without advancing.
func (b *Bot) collectGuestName(ctx context.Context, chatID int64, st *wizard.State, text string) {
	if utf8.RuneCountInString(text) < 2 {
		b.reply(chatID, "Name must be at least 2 characters. Guest name?")
		return
	}
	st.Data.GuestName = text
	st.Transition(wizard.StepCheckInDate)
	if !b.saveWizard(ctx, st) {
		return
	}
	now := time.Now()
	b.sendCalendar(chatID, "ci", now.Year(), int(now.Month()), "Select check-in date:")
}

func (b *Bot) sendCalendar(chatID int64, prefix string, year, month int, title string) {
	out := tgbotapi.NewMessage(chatID, title)
	out.ReplyMarkup = generateCalendarKeyboard(year, month, prefix)
	_, _ = b.send(out)
}

// handleCalendarCallback handles all calendar interactions for one
// prefix/step pair: month navigation re-renders in place, selection
// advances the flow.
func (b *Bot) handleCalendarCallback(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, prefix string, step wizard.Step) {
	st, err := b.loadWizard(ctx, chatID)
	if err != nil {
		b.ack(cq)
		return
	}
	if st == nil || st.Step != step {
		b.alert(cq, "This calendar is no longer active. /book to start over.")
		return
	}

	action, params := parseCalendarCallback(cq.Data, prefix)
	switch action {
	case calActionPrev, calActionNext:
		if len(params) < 2 {
			b.ack(cq)
			return
		}
		year, _ := strconv.Atoi(params[0])
		month, _ := strconv.Atoi(params[1])
		if action == calActionPrev {
			month--
		} else {
			month++
		}
		b.ack(cq)
		markup := generateCalendarKeyboard(year, month, prefix)
		edit := tgbotapi.NewEditMessageReplyMarkup(chatID, cq.Message.MessageID, markup)
		_, _ = b.send(edit)
	case calActionToday:
		b.selectDate(ctx, chatID, cq, st, time.Now().Format(dateLayout))
	case calActionSelect:
		if len(params) < 1 {
			b.ack(cq)
			return
		}
		b.selectDate(ctx, chatID, cq, st, params[0])
	default:
		b.ack(cq)
	}
}

// selectDate applies a picked date to whichever date step the wizard is on.
func (b *Bot) selectDate(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, st *wizard.State, date string) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		b.alert(cq, "Invalid date")
		return
	}

	switch st.Step {
	case wizard.StepCheckInDate:
		st.Data.CheckIn = date
		st.Transition(wizard.StepCheckOutDate)
		if !b.saveWizard(ctx, st) {
			b.ack(cq)
			return
		}
		b.ack(cq)
		y, m := monthOf(date)
		b.sendCalendar(chatID, "co", y, m, fmt.Sprintf("Check-in %s. Select check-out date:", date))

	case wizard.StepCheckOutDate:
		if date <= st.Data.CheckIn {
			// Alert-style rejection, state unchanged.
			b.alert(cq, "Check-out must be after check-in.")
			return
		}
		rooms, err := b.db.GetAvailableRooms(ctx, st.Data.PropertyID, st.Data.CheckIn, date, 0)
		if err != nil {
			b.alert(cq, "Failed to check availability, try again.")
			return
		}
		if len(rooms) == 0 {
			b.alert(cq, "No rooms available for these dates. Pick different dates.")
			return
		}
		st.Data.CheckOut = date
		st.Transition(wizard.StepRoom)
		if !b.saveWizard(ctx, st) {
			b.ack(cq)
			return
		}
		b.ack(cq)
		b.sendRoomList(chatID, rooms, "room")

	case wizard.StepModifyCheckIn:
		st.Data.TempCheckIn = date
		st.Transition(wizard.StepModifyCheckOut)
		if !b.saveWizard(ctx, st) {
			b.ack(cq)
			return
		}
		b.ack(cq)
		y, m := monthOf(date)
		b.sendCalendar(chatID, "mco", y, m, fmt.Sprintf("New check-in %s. Select new check-out date:", date))

	case wizard.StepModifyCheckOut:
		b.selectModifyCheckOut(ctx, chatID, cq, st, date)
	}
}

func (b *Bot) sendRoomList(chatID int64, rooms []models.Room, prefix string) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rooms)+1)
	for _, r := range rooms {
		label := r.RoomNo
		if r.RoomType != "" {
			label = fmt.Sprintf("%s (%s)", r.RoomNo, r.RoomType)
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, prefix+":"+r.RoomNo),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel"),
	})
	msg := tgbotapi.NewMessage(chatID, "Select a room:")
	msg.ReplyMarkup = tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	_, _ = b.send(msg)
}

func (b *Bot) handleRoomPick(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, roomNo string) {
	st, err := b.loadWizard(ctx, chatID)
	if err != nil {
		b.ack(cq)
		return
	}
	if st == nil || st.Step != wizard.StepRoom {
		b.alert(cq, "This room list is no longer active. /book to start over.")
		return
	}
	maxOcc, err := b.db.GetRoomMaxOccupancy(ctx, st.Data.PropertyID, roomNo)
	if err != nil {
		b.alert(cq, "Room not found.")
		return
	}
	st.Data.RoomNo = roomNo
	st.Transition(wizard.StepAdults)
	if !b.saveWizard(ctx, st) {
		b.ack(cq)
		return
	}
	b.ack(cq)
	b.sendAdultsPicker(chatID, maxOcc)
}

func (b *Bot) sendAdultsPicker(chatID int64, maxOcc int) {
	row := make([]tgbotapi.InlineKeyboardButton, 0, maxOcc)
	for n := 1; n <= maxOcc; n++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			strconv.Itoa(n), fmt.Sprintf("adults:%d", n)))
	}
	msg := tgbotapi.NewMessage(chatID, "Adults?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	_, _ = b.send(msg)
}

func (b *Bot) handleAdultsPick(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, raw string) {
	st, err := b.loadWizard(ctx, chatID)
	if err != nil {
		b.ack(cq)
		return
	}
	if st == nil || st.Step != wizard.StepAdults {
		b.alert(cq, "This picker is no longer active. /book to start over.")
		return
	}
	adults, err := strconv.Atoi(raw)
	if err != nil || adults < 1 {
		b.alert(cq, "Invalid adult count.")
		return
	}
	maxOcc, err := b.db.GetRoomMaxOccupancy(ctx, st.Data.PropertyID, st.Data.RoomNo)
	if err != nil {
		b.alert(cq, "Room not found.")
		return
	}
	if adults > maxOcc {
		b.alert(cq, fmt.Sprintf("Room %s sleeps at most %d.", st.Data.RoomNo, maxOcc))
		return
	}

	st.Data.Adults = adults
	maxChildren := maxOcc - adults

	// A previously chosen child count that no longer fits forces a
	// recapture instead of a silent clamp.
	if st.Data.ChildrenSet && st.Data.Children > maxChildren {
		st.Data.ChildrenSet = false
		st.Data.Children = 0
		st.Transition(wizard.StepChildren)
		if !b.saveWizard(ctx, st) {
			b.ack(cq)
			return
		}
		b.alert(cq, "Child count no longer fits the room, please pick again.")
		b.sendChildrenPicker(chatID, maxChildren)
		return
	}

	st.Transition(wizard.StepChildren)
	if !b.saveWizard(ctx, st) {
		b.ack(cq)
		return
	}
	b.ack(cq)
	b.sendChildrenPicker(chatID, maxChildren)
}

func (b *Bot) sendChildrenPicker(chatID int64, maxChildren int) {
	row := make([]tgbotapi.InlineKeyboardButton, 0, maxChildren+1)
	for n := 0; n <= maxChildren; n++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			strconv.Itoa(n), fmt.Sprintf("children:%d", n)))
	}
	msg := tgbotapi.NewMessage(chatID, "Children?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	_, _ = b.send(msg)
}

func (b *Bot) handleChildrenPick(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, raw string) {
	st, err := b.loadWizard(ctx, chatID)
	if err != nil {
		b.ack(cq)
		return
	}
	if st == nil || st.Step != wizard.StepChildren {
		b.alert(cq, "This picker is no longer active. /book to start over.")
		return
	}
	children, err := strconv.Atoi(raw)
	if err != nil || children < 0 {
		b.alert(cq, "Invalid child count.")
		return
	}
	maxOcc, err := b.db.GetRoomMaxOccupancy(ctx, st.Data.PropertyID, st.Data.RoomNo)
	if err != nil {
		b.alert(cq, "Room not found.")
		return
	}
	if st.Data.Adults+children > maxOcc {
		b.alert(cq, fmt.Sprintf("Room %s sleeps at most %d.", st.Data.RoomNo, maxOcc))
		return
	}
	st.Data.Children = children
	st.Data.ChildrenSet = true
	st.Transition(wizard.StepAmount)
	if !b.saveWizard(ctx, st) {
		b.ack(cq)
		return
	}
	b.ack(cq)
	b.reply(chatID, "Total amount for the stay?")
}

func (b *Bot) collectBookingAmount(ctx context.Context, chatID int64, st *wizard.State, text string) {
	amount, err := parseAmount(text)
	if err != nil {
		b.reply(chatID, "Enter a positive amount, e.g. 5000 or 5,000.50")
		return
	}
	st.Data.Amount = amount
	st.Data.Token = uuid.New().String()
	st.Transition(wizard.StepConfirm)
	if !b.saveWizard(ctx, st) {
		return
	}
	b.sendBookingConfirm(chatID, st)
}

func (b *Bot) sendBookingConfirm(chatID int64, st *wizard.State) {
	d := &st.Data
	text := fmt.Sprintf(
		"Please confirm:\n\nGuest: %s\nRoom: %s\nCheck-in: %s\nCheck-out: %s\nAdults: %d\nChildren: %d\nAmount: %s",
		d.GuestName, d.RoomNo, d.CheckIn, d.CheckOut, d.Adults, d.Children, formatAmount(d.Amount))
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", "confirm:"+d.Token),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel"),
		),
	)
	_, _ = b.send(msg)
}

// handleBookingConfirm inserts the booking after the token check. The
// insert happens before the wizard row is cleared; Clear is idempotent,
// so a crash in between leaves no corrupt state on retry.
func (b *Bot) handleBookingConfirm(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, token string) {
	st, err := b.loadWizard(ctx, chatID)
	if err != nil {
		b.ack(cq)
		return
	}
	if st == nil || st.Step != wizard.StepConfirm || token == "" || st.Data.Token != token {
		metrics.IncConfirmTokenMismatch()
		b.alert(cq, "Confirmation expired. /book to start over.")
		return
	}

	booking := &models.Booking{
		PropertyID:  st.Data.PropertyID,
		GuestName:   st.Data.GuestName,
		RoomNo:      st.Data.RoomNo,
		CheckIn:     st.Data.CheckIn,
		CheckOut:    st.Data.CheckOut,
		Adults:      st.Data.Adults,
		Children:    st.Data.Children,
		TotalAmount: st.Data.Amount,
		Source:      "telegram",
	}
	if err := b.db.CreateBooking(ctx, booking); err != nil {
		// Step unchanged: the same Confirm tap can be retried.
		b.alert(cq, "Failed to save the booking, please try again.")
		return
	}
	metrics.IncBookingCreated()
	metrics.IncWizardFlow("completed")
	b.clearWizard(ctx, chatID)
	b.bus.Publish(events.BookingEvent{
		Type:      events.TypeBookingCreated,
		BookingID: booking.ID,
		RoomNo:    booking.RoomNo,
		CheckIn:   booking.CheckIn,
		CheckOut:  booking.CheckOut,
	})
	b.ack(cq)
	b.reply(chatID, fmt.Sprintf("✅ Booking #%d created.", booking.ID))
	b.sendBookingSummary(ctx, chatID, booking.ID, 0)
}

func monthOf(date string) (int, int) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		now := time.Now()
		return now.Year(), int(now.Month())
	}
	return t.Year(), int(t.Month())
}

// parseAmount parses a money amount after stripping thousands
// separators. Only positive finite values are accepted.
func parseAmount(text string) (float64, error) {
	s := strings.NewReplacer(",", "", " ", "").Replace(strings.TrimSpace(text))
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("amount must be positive")
	}
	return v, nil
}

func parsePositiveInt(text string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return v, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
