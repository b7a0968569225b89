package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"innkeeper/internal/database"
	"innkeeper/internal/metrics"
	"innkeeper/internal/models"
	"innkeeper/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// unitPriceSentinel, entered as the unit price, means "use the catalog
// price of the picked menu item".
const unitPriceSentinel = "."

func (b *Bot) startChargeFlow(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, bookingID int64) {
	if _, err := b.db.GetBooking(ctx, bookingID); err != nil {
		b.alert(cq, "Booking not found.")
		return
	}
	b.clearWizard(ctx, chatID)
	st := wizard.New(chatID, cq.From.ID, wizard.StepChargeType)
	st.Data.PropertyID = b.propertyID
	st.Data.BookingID = bookingID
	st.Data.SummaryMessageID = cq.Message.MessageID
	if !b.saveWizard(ctx, st) {
		b.ack(cq)
		return
	}
	b.ack(cq)
	msg := tgbotapi.NewMessage(chatID, "What kind of charge?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🍽 Food & Beverage", "chtype:fnb"),
			tgbotapi.NewInlineKeyboardButtonData("📦 Misc", "chtype:misc"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel"),
		),
	)
	_, _ = b.send(msg)
}

func (b *Bot) handleChargeType(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, typ string) {
	st, err := b.loadWizard(ctx, chatID)
	if err != nil {
		b.ack(cq)
		return
	}
	if st == nil || st.Step != wizard.StepChargeType {
		b.alert(cq, "This menu is no longer active.")
		return
	}
	switch typ {
	case models.ChargeTypeFnB:
		st.Data.ChargeType = models.ChargeTypeFnB
		st.Transition(wizard.StepChargeFnBSearch)
		if !b.saveWizard(ctx, st) {
			b.ack(cq)
			return
		}
		b.ack(cq)
		b.reply(chatID, "Type part of the item name to search the menu:")
	case models.ChargeTypeMisc:
		st.Data.ChargeType = models.ChargeTypeMisc
		st.Transition(wizard.StepChargeMiscDesc)
		if !b.saveWizard(ctx, st) {
			b.ack(cq)
			return
		}
		b.ack(cq)
		b.reply(chatID, "Describe the charge:")
	default:
		b.alert(cq, "Unknown charge type.")
	}
}

// collectFnBSearch runs the substring search and renders an
// index-addressed pick list. The result list is cached in the wizard
// data; the pick callback carries only the index, which is resolved
// against this cache within the same step.
func (b *Bot) collectFnBSearch(ctx context.Context, chatID int64, st *wizard.State, text string) {
	if len(text) < 2 {
		b.reply(chatID, "Type at least 2 characters to search.")
		return
	}
	items, err := b.db.SearchMenuItems(ctx, st.Data.PropertyID, text, 8)
	if err != nil {
		b.reply(chatID, "Search failed, try again.")
		return
	}
	if len(items) == 0 {
		b.reply(chatID, fmt.Sprintf("Nothing matches %q. Try another search:", text))
		return
	}

	st.Data.FnBResults = st.Data.FnBResults[:0]
	var sb strings.Builder
	sb.WriteString("Pick an item:\n\n")
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(items)+1)
	for i, it := range items {
		st.Data.FnBResults = append(st.Data.FnBResults, wizard.CachedItem{
			ID: it.ID, Label: it.Name, Amount: it.Price,
		})
		fmt.Fprintf(&sb, "%d. %s — %s\n", i+1, it.Name, formatAmount(it.Price))
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%d. %s", i+1, it.Name),
				fmt.Sprintf("fnb:%d", i)),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel"),
	})

	st.Transition(wizard.StepChargeFnBPick)
	if !b.saveWizard(ctx, st) {
		return
	}
	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ReplyMarkup = tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	_, _ = b.send(msg)
}

func (b *Bot) handleFnBPick(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, raw string) {
	st, err := b.loadWizard(ctx, chatID)
	if err != nil {
		b.ack(cq)
		return
	}
	if st == nil || st.Step != wizard.StepChargeFnBPick {
		b.alert(cq, "This list is no longer active.")
		return
	}
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 || idx >= len(st.Data.FnBResults) {
		b.alert(cq, "That item is no longer on the list, search again.")
		return
	}
	picked := st.Data.FnBResults[idx]
	st.Data.ChargeDesc = picked.Label
	st.Data.CatalogPrice = picked.Amount
	st.Transition(wizard.StepChargeQty)
	if !b.saveWizard(ctx, st) {
		b.ack(cq)
		return
	}
	b.ack(cq)
	b.reply(chatID, fmt.Sprintf("%s — quantity?", picked.Label))
}

func (b *Bot) collectMiscDescription(ctx context.Context, chatID int64, st *wizard.State, text string) {
	if len(text) < 2 {
		b.reply(chatID, "Description must be at least 2 characters.")
		return
	}
	st.Data.ChargeDesc = text
	st.Transition(wizard.StepChargeQty)
	if !b.saveWizard(ctx, st) {
		return
	}
	b.reply(chatID, "Quantity?")
}

func (b *Bot) collectChargeQty(ctx context.Context, chatID int64, st *wizard.State, text string) {
	qty, err := parsePositiveInt(text)
	if err != nil {
		b.reply(chatID, "Quantity must be a positive whole number.")
		return
	}
	st.Data.ChargeQty = qty
	st.Transition(wizard.StepChargeUnitPrice)
	if !b.saveWizard(ctx, st) {
		return
	}
	prompt := "Unit price?"
	if st.Data.ChargeType == models.ChargeTypeFnB {
		prompt = fmt.Sprintf("Unit price? (\"%s\" uses the menu price %s)",
			unitPriceSentinel, formatAmount(st.Data.CatalogPrice))
	}
	b.reply(chatID, prompt)
}

func (b *Bot) collectChargeUnitPrice(ctx context.Context, chatID int64, st *wizard.State, text string) {
	var price float64
	if text == unitPriceSentinel && st.Data.ChargeType == models.ChargeTypeFnB {
		price = st.Data.CatalogPrice
	} else {
		var err error
		price, err = parseAmount(text)
		if err != nil {
			b.reply(chatID, "Enter a positive price, or \".\" for the menu price.")
			return
		}
	}
	st.Data.UnitPrice = price
	st.Transition(wizard.StepChargeConfirm)
	if !b.saveWizard(ctx, st) {
		return
	}

	amount := float64(st.Data.ChargeQty) * price
	text = fmt.Sprintf("Add charge to booking #%d?\n\n%s\n%d × %s = %s",
		st.Data.BookingID, st.Data.ChargeDesc, st.Data.ChargeQty,
		formatAmount(price), formatAmount(amount))
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💾 Save", "chsave"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel"),
		),
	)
	_, _ = b.send(msg)
}

func (b *Bot) handleChargeSave(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery) {
	st, err := b.loadWizard(ctx, chatID)
	if err != nil {
		b.ack(cq)
		return
	}
	if st == nil || st.Step != wizard.StepChargeConfirm {
		b.alert(cq, "Confirmation expired.")
		return
	}
	charge := &models.BookingCharge{
		BookingID:   st.Data.BookingID,
		ChargeType:  st.Data.ChargeType,
		Description: st.Data.ChargeDesc,
		Quantity:    st.Data.ChargeQty,
		UnitAmount:  st.Data.UnitPrice,
		Amount:      float64(st.Data.ChargeQty) * st.Data.UnitPrice,
	}
	if err := b.db.AddCharge(ctx, charge); err != nil {
		b.alert(cq, "Failed to save the charge, please try again.")
		return
	}
	metrics.IncLedgerEntry(charge.ChargeType)
	summaryMsgID := st.Data.SummaryMessageID
	bookingID := st.Data.BookingID
	b.clearWizard(ctx, chatID)
	b.ack(cq)
	b.sendBookingSummary(ctx, chatID, bookingID, summaryMsgID)
}

func (b *Bot) startPaymentFlow(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, bookingID int64) {
	if _, err := b.db.GetBooking(ctx, bookingID); err != nil {
		b.alert(cq, "Booking not found.")
		return
	}
	b.clearWizard(ctx, chatID)
	st := wizard.New(chatID, cq.From.ID, wizard.StepPaymentType)
	st.Data.PropertyID = b.propertyID
	st.Data.BookingID = bookingID
	st.Data.SummaryMessageID = cq.Message.MessageID
	if !b.saveWizard(ctx, st) {
		b.ack(cq)
		return
	}
	b.ack(cq)
	msg := tgbotapi.NewMessage(chatID, "Payment or refund?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💵 Payment", "pay:payment"),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Refund", "pay:refund"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel"),
		),
	)
	_, _ = b.send(msg)
}

func (b *Bot) handlePaymentType(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, typ string) {
	st, err := b.loadWizard(ctx, chatID)
	if err != nil {
		b.ack(cq)
		return
	}
	if st == nil || st.Step != wizard.StepPaymentType {
		b.alert(cq, "This menu is no longer active.")
		return
	}
	if typ != models.PaymentTypePayment && typ != models.PaymentTypeRefund {
		b.alert(cq, "Unknown payment type.")
		return
	}
	st.Data.PaymentType = typ
	st.Transition(wizard.StepPaymentAmount)
	if !b.saveWizard(ctx, st) {
		b.ack(cq)
		return
	}
	b.ack(cq)
	b.reply(chatID, "Amount?")
}

func (b *Bot) collectPaymentAmount(ctx context.Context, chatID int64, st *wizard.State, text string) {
	amount, err := parseAmount(text)
	if err != nil {
		b.reply(chatID, "Enter a positive amount.")
		return
	}
	st.Data.Amount = amount
	st.Transition(wizard.StepPaymentConfirm)
	if !b.saveWizard(ctx, st) {
		return
	}
	label := "payment"
	if st.Data.PaymentType == models.PaymentTypeRefund {
		label = "refund"
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Record %s of %s against booking #%d?",
		label, formatAmount(amount), st.Data.BookingID))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💾 Save", "paysave"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel"),
		),
	)
	_, _ = b.send(msg)
}

func (b *Bot) handlePaymentSave(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery) {
	st, err := b.loadWizard(ctx, chatID)
	if err != nil {
		b.ack(cq)
		return
	}
	if st == nil || st.Step != wizard.StepPaymentConfirm {
		b.alert(cq, "Confirmation expired.")
		return
	}
	payment := &models.BookingPayment{
		BookingID:   st.Data.BookingID,
		PaymentType: st.Data.PaymentType,
		Method:      "other",
		Amount:      st.Data.Amount,
	}
	if err := b.db.AddPayment(ctx, payment); err != nil {
		b.alert(cq, "Failed to save the payment, please try again.")
		return
	}
	metrics.IncLedgerEntry(payment.PaymentType)
	summaryMsgID := st.Data.SummaryMessageID
	bookingID := st.Data.BookingID
	b.clearWizard(ctx, chatID)
	b.ack(cq)
	b.sendBookingSummary(ctx, chatID, bookingID, summaryMsgID)
}

// showLedgerPage lists one page of non-voided charges or payments.
// Void buttons carry the stable row ID, never a page index, so a stale
// or refreshed page can never void the wrong row.
func (b *Bot) showLedgerPage(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, bookingID int64, page int, kind string) {
	var (
		sb    strings.Builder
		rows  [][]tgbotapi.InlineKeyboardButton
		count int
		err   error
	)
	id := strconv.FormatInt(bookingID, 10)

	switch kind {
	case "charge":
		var charges []models.BookingCharge
		charges, err = b.db.ListCharges(ctx, bookingID, page)
		if err == nil {
			count, err = b.db.CountCharges(ctx, bookingID)
		}
		if err != nil {
			b.alert(cq, "Failed to load charges.")
			return
		}
		if len(charges) == 0 && page == 0 {
			b.alert(cq, "No charges yet.")
			return
		}
		fmt.Fprintf(&sb, "🧾 Charges for booking #%d\n\n", bookingID)
		for i, c := range charges {
			n := page*database.LedgerPageSize + i + 1
			fmt.Fprintf(&sb, "%d. %s — %d × %s = %s\n", n, c.Description,
				c.Quantity, formatAmount(c.UnitAmount), formatAmount(c.Amount))
			rows = append(rows, []tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("🚫 Void %d", n),
					fmt.Sprintf("vc:%d:%s:%d", c.ID, id, page)),
			})
		}
	case "payment":
		var payments []models.BookingPayment
		payments, err = b.db.ListPayments(ctx, bookingID, page)
		if err == nil {
			count, err = b.db.CountPayments(ctx, bookingID)
		}
		if err != nil {
			b.alert(cq, "Failed to load payments.")
			return
		}
		if len(payments) == 0 && page == 0 {
			b.alert(cq, "No payments yet.")
			return
		}
		fmt.Fprintf(&sb, "💵 Payments for booking #%d\n\n", bookingID)
		for i, p := range payments {
			n := page*database.LedgerPageSize + i + 1
			label := p.PaymentType
			fmt.Fprintf(&sb, "%d. %s — %s\n", n, label, formatAmount(p.Amount))
			rows = append(rows, []tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("🚫 Void %d", n),
					fmt.Sprintf("vp:%d:%s:%d", p.ID, id, page)),
			})
		}
	default:
		b.ack(cq)
		return
	}

	navAction := "charges"
	if kind == "payment" {
		navAction = "payments"
	}
	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️",
			fmt.Sprintf("bk:%s:%s:%d", navAction, id, page-1)))
	}
	if (page+1)*database.LedgerPageSize < count {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("➡️",
			fmt.Sprintf("bk:%s:%s:%d", navAction, id, page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Summary", "bk:summary:"+id),
	})

	fmt.Fprintf(&sb, "\nPage %d of %d", page+1, (count+database.LedgerPageSize-1)/database.LedgerPageSize)

	b.ack(cq)
	markup := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, cq.Message.MessageID, sb.String(), markup)
	if _, err := b.send(edit); err != nil {
		msg := tgbotapi.NewMessage(chatID, sb.String())
		msg.ReplyMarkup = markup
		_, _ = b.send(msg)
	}
}

// handleVoid soft-deletes a ledger row: "rowID:bookingID:page".
func (b *Bot) handleVoid(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, kind, rest string) {
	parts := strings.Split(rest, ":")
	if len(parts) < 3 {
		b.ack(cq)
		return
	}
	rowID, err1 := strconv.ParseInt(parts[0], 10, 64)
	bookingID, err2 := strconv.ParseInt(parts[1], 10, 64)
	page, _ := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || rowID <= 0 || bookingID <= 0 {
		b.alert(cq, "Invalid void request.")
		return
	}

	if kind == "charge" {
		err := b.db.VoidCharge(ctx, rowID)
		if errors.Is(err, database.ErrLedgerRowNotFound) {
			b.alert(cq, "Already voided.")
			return
		}
		if err != nil {
			b.alert(cq, "Failed to void.")
			return
		}
	} else {
		err := b.db.VoidPayment(ctx, rowID)
		if errors.Is(err, database.ErrLedgerRowNotFound) {
			b.alert(cq, "Already voided.")
			return
		}
		if err != nil {
			b.alert(cq, "Failed to void.")
			return
		}
	}
	metrics.IncLedgerVoid(kind)
	// Re-render the same page; the voided row disappears from it.
	b.showLedgerPage(ctx, chatID, cq, bookingID, page, kind)
}
