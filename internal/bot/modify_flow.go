package bot

import (
	"context"
	"fmt"
	"time"

	"innkeeper/internal/events"
	"innkeeper/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// startModifyFlow begins a date/room change for an existing booking.
func (b *Bot) startModifyFlow(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, bookingID int64) {
	booking, err := b.db.GetBooking(ctx, bookingID)
	if err != nil {
		b.alert(cq, "Booking not found.")
		return
	}
	b.clearWizard(ctx, chatID)
	st := wizard.New(chatID, cq.From.ID, wizard.StepModifyCheckIn)
	st.Data.PropertyID = b.propertyID
	st.Data.BookingID = bookingID
	st.Data.RoomNo = booking.RoomNo
	st.Data.SummaryMessageID = cq.Message.MessageID
	if !b.saveWizard(ctx, st) {
		b.ack(cq)
		return
	}
	b.ack(cq)
	y, m := monthOf(booking.CheckIn)
	b.sendCalendar(chatID, "mci", y, m,
		fmt.Sprintf("Booking #%d: %s → %s, room %s.\nSelect the new check-in date:",
			bookingID, booking.CheckIn, booking.CheckOut, booking.RoomNo))
}

// selectModifyCheckOut validates the new range and offers the rooms
// free for it. Availability excludes the booking's own rows so the
// current room stays pickable when only the dates move.
func (b *Bot) selectModifyCheckOut(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, st *wizard.State, date string) {
	if date <= st.Data.TempCheckIn {
		b.alert(cq, "Check-out must be after check-in.")
		return
	}
	rooms, err := b.db.GetAvailableRooms(ctx, st.Data.PropertyID, st.Data.TempCheckIn, date, st.Data.BookingID)
	if err != nil {
		b.alert(cq, "Failed to check availability, try again.")
		return
	}
	if len(rooms) == 0 {
		b.alert(cq, "No rooms available for these dates. Pick different dates.")
		return
	}
	st.Data.TempCheckOut = date
	st.Transition(wizard.StepModifyRoom)
	if !b.saveWizard(ctx, st) {
		b.ack(cq)
		return
	}
	b.ack(cq)
	b.sendRoomList(chatID, rooms, "mroom")
}

func (b *Bot) handleModifyRoomPick(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, roomNo string) {
	st, err := b.loadWizard(ctx, chatID)
	if err != nil {
		b.ack(cq)
		return
	}
	if st == nil || st.Step != wizard.StepModifyRoom {
		b.alert(cq, "This room list is no longer active.")
		return
	}
	if err := b.db.UpdateBookingStay(ctx, st.Data.BookingID, roomNo, st.Data.TempCheckIn, st.Data.TempCheckOut); err != nil {
		b.alert(cq, "Failed to update the booking, please try again.")
		return
	}
	bookingID := st.Data.BookingID
	summaryMsgID := st.Data.SummaryMessageID
	checkIn, checkOut := st.Data.TempCheckIn, st.Data.TempCheckOut
	b.clearWizard(ctx, chatID)
	b.ack(cq)
	b.bus.Publish(events.BookingEvent{
		Type:      events.TypeBookingModified,
		BookingID: bookingID,
		RoomNo:    roomNo,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		At:        time.Now(),
	})
	b.reply(chatID, fmt.Sprintf("✅ Booking #%d updated: %s → %s, room %s.", bookingID, checkIn, checkOut, roomNo))
	b.sendBookingSummary(ctx, chatID, bookingID, summaryMsgID)
}
