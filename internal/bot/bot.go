// Package bot is the Telegram front-end: it routes messages and button
// callbacks into the booking, charge and payment wizards.
package bot

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"innkeeper/internal/database"
	"innkeeper/internal/events"
	"innkeeper/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// Bot wires the Telegram transport to the wizard and the database.
type Bot struct {
	tg         telegramClient
	db         *database.DB
	wizards    wizard.Repository
	bus        *events.Bus
	propertyID int64
	managers   map[int64]struct{}
	limiter    *rate.Limiter
	logger     *zerolog.Logger
	httpc      *http.Client

	// set via ConfigureOTA
	propertyName string
	exportDir    string
	feedURLs     []string
}

func New(
	token string,
	db *database.DB,
	wizards wizard.Repository,
	bus *events.Bus,
	propertyID int64,
	managers []int64,
	logger *zerolog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newBot(&realTelegramClient{api: api}, db, wizards, bus, propertyID, managers, logger), nil
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(
	tg telegramClient,
	db *database.DB,
	wizards wizard.Repository,
	bus *events.Bus,
	propertyID int64,
	managers []int64,
	logger *zerolog.Logger,
) *Bot {
	return newBot(tg, db, wizards, bus, propertyID, managers, logger)
}

func newBot(
	tg telegramClient,
	db *database.DB,
	wizards wizard.Repository,
	bus *events.Bus,
	propertyID int64,
	managers []int64,
	logger *zerolog.Logger,
) *Bot {
	mgrs := make(map[int64]struct{})
	for _, id := range managers {
		mgrs[id] = struct{}{}
	}
	return &Bot{
		tg:         tg,
		db:         db,
		wizards:    wizards,
		bus:        bus,
		propertyID: propertyID,
		managers:   mgrs,
		// Telegram's bot API allows roughly 30 messages per second overall.
		limiter: rate.NewLimiter(rate.Limit(25), 30),
		logger:  logger,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Start begins polling updates and handles them until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("hotel bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			updateCtx := l.WithContext(ctx)
			b.handleUpdate(updateCtx, &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Str("text", update.Message.Text).
			Msg("handling message")
		b.handleMessage(ctx, update.Message)
		return
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)

	// Commands take priority and interrupt any active flow.
	if strings.HasPrefix(text, "/") {
		switch {
		case strings.HasPrefix(text, "/start"):
			b.clearWizard(ctx, msg.Chat.ID)
			b.reply(msg.Chat.ID, "Welcome! /book to create a booking, /booking <id> to open one, /help for all commands.")
			return
		case strings.HasPrefix(text, "/help"):
			help := "Commands:\n/book — new booking\n/booking <id> — open a booking\n/cancel — abort the current flow"
			if b.isManager(msg.From.ID) {
				help += "\n/today — tonight's stays\n/rooms — room list\n/export — occupancy workbook\n/ical — availability feed"
			}
			b.reply(msg.Chat.ID, help)
			return
		case strings.HasPrefix(text, "/booking"):
			b.handleOpenBooking(ctx, msg)
			return
		case strings.HasPrefix(text, "/book"):
			b.startBookingFlow(ctx, msg.Chat.ID, msg.From.ID)
			return
		case strings.HasPrefix(text, "/cancel"):
			b.cancelFlow(ctx, msg.Chat.ID)
			return
		}
		if b.isManager(msg.From.ID) && b.handleManagerCommand(ctx, msg) {
			return
		}
		b.reply(msg.Chat.ID, "Unknown command. /help")
		return
	}

	st, err := b.loadWizard(ctx, msg.Chat.ID)
	if err != nil {
		b.reply(msg.Chat.ID, "Something went wrong, please try again.")
		return
	}
	if st == nil {
		return
	}
	b.handleTextStep(ctx, msg, st)
}

// handleTextStep dispatches free-text input to the collector of the
// current step. Steps not listed here do not accept free text.
func (b *Bot) handleTextStep(ctx context.Context, msg *tgbotapi.Message, st *wizard.State) {
	text := strings.TrimSpace(msg.Text)
	switch st.Step {
	case wizard.StepGuestName:
		b.collectGuestName(ctx, msg.Chat.ID, st, text)
	case wizard.StepAmount:
		b.collectBookingAmount(ctx, msg.Chat.ID, st, text)
	case wizard.StepChargeFnBSearch:
		b.collectFnBSearch(ctx, msg.Chat.ID, st, text)
	case wizard.StepChargeMiscDesc:
		b.collectMiscDescription(ctx, msg.Chat.ID, st, text)
	case wizard.StepChargeQty:
		b.collectChargeQty(ctx, msg.Chat.ID, st, text)
	case wizard.StepChargeUnitPrice:
		b.collectChargeUnitPrice(ctx, msg.Chat.ID, st, text)
	case wizard.StepPaymentAmount:
		b.collectPaymentAmount(ctx, msg.Chat.ID, st, text)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil {
		return
	}
	data := cq.Data
	chatID := cq.Message.Chat.ID

	// Inert calendar cells ack without touching state. Every other
	// handler answers the callback itself, exactly once, so rejections
	// can use a blocking alert instead of a plain ack.
	if isInertCalendarCallback(data) || data == "noop" {
		_ = b.answerCallback(cq.ID, "")
		return
	}

	switch {
	case strings.HasPrefix(data, "ci:"):
		b.handleCalendarCallback(ctx, chatID, cq, "ci", wizard.StepCheckInDate)
	case strings.HasPrefix(data, "co:"):
		b.handleCalendarCallback(ctx, chatID, cq, "co", wizard.StepCheckOutDate)
	case strings.HasPrefix(data, "mci:"):
		b.handleCalendarCallback(ctx, chatID, cq, "mci", wizard.StepModifyCheckIn)
	case strings.HasPrefix(data, "mco:"):
		b.handleCalendarCallback(ctx, chatID, cq, "mco", wizard.StepModifyCheckOut)
	case strings.HasPrefix(data, "room:"):
		b.handleRoomPick(ctx, chatID, cq, strings.TrimPrefix(data, "room:"))
	case strings.HasPrefix(data, "mroom:"):
		b.handleModifyRoomPick(ctx, chatID, cq, strings.TrimPrefix(data, "mroom:"))
	case strings.HasPrefix(data, "adults:"):
		b.handleAdultsPick(ctx, chatID, cq, strings.TrimPrefix(data, "adults:"))
	case strings.HasPrefix(data, "children:"):
		b.handleChildrenPick(ctx, chatID, cq, strings.TrimPrefix(data, "children:"))
	case strings.HasPrefix(data, "confirm:"):
		b.handleBookingConfirm(ctx, chatID, cq, strings.TrimPrefix(data, "confirm:"))
	case data == "cancel":
		b.ack(cq)
		b.cancelFlow(ctx, chatID)
	case strings.HasPrefix(data, "bk:"):
		b.handleBookingAction(ctx, chatID, cq, strings.TrimPrefix(data, "bk:"))
	case strings.HasPrefix(data, "chtype:"):
		b.handleChargeType(ctx, chatID, cq, strings.TrimPrefix(data, "chtype:"))
	case strings.HasPrefix(data, "fnb:"):
		b.handleFnBPick(ctx, chatID, cq, strings.TrimPrefix(data, "fnb:"))
	case data == "chsave":
		b.handleChargeSave(ctx, chatID, cq)
	case strings.HasPrefix(data, "pay:"):
		b.handlePaymentType(ctx, chatID, cq, strings.TrimPrefix(data, "pay:"))
	case data == "paysave":
		b.handlePaymentSave(ctx, chatID, cq)
	case strings.HasPrefix(data, "vc:"):
		b.handleVoid(ctx, chatID, cq, "charge", strings.TrimPrefix(data, "vc:"))
	case strings.HasPrefix(data, "vp:"):
		b.handleVoid(ctx, chatID, cq, "payment", strings.TrimPrefix(data, "vp:"))
	}
}

func (b *Bot) handleOpenBooking(ctx context.Context, msg *tgbotapi.Message) {
	parts := strings.Fields(msg.Text)
	if len(parts) < 2 {
		b.reply(msg.Chat.ID, "Usage: /booking <id>")
		return
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		b.reply(msg.Chat.ID, "Invalid booking id")
		return
	}
	b.sendBookingSummary(ctx, msg.Chat.ID, id, 0)
}

func (b *Bot) handleManagerCommand(ctx context.Context, msg *tgbotapi.Message) bool {
	text := msg.Text
	switch {
	case strings.HasPrefix(text, "/today"):
		b.handleTodayArrivals(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/rooms"):
		b.handleListRooms(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/export"):
		b.handleExportOccupancy(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/ical"):
		b.handleExportICal(ctx, msg.Chat.ID)
	default:
		return false
	}
	return true
}

func (b *Bot) isManager(id int64) bool {
	_, ok := b.managers[id]
	return ok
}

// loadWizard fetches the chat's wizard state, absorbing store errors into
// logs so callers can treat (nil, err) uniformly.
func (b *Bot) loadWizard(ctx context.Context, chatID int64) (*wizard.State, error) {
	st, err := b.wizards.Load(ctx, chatID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("load wizard failed")
		return nil, err
	}
	return st, nil
}

func (b *Bot) saveWizard(ctx context.Context, st *wizard.State) bool {
	if err := b.wizards.Save(ctx, st); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", st.ChatID).Msg("save wizard failed")
		b.reply(st.ChatID, "Could not save your progress, please try again.")
		return false
	}
	return true
}

func (b *Bot) clearWizard(ctx context.Context, chatID int64) {
	if err := b.wizards.Clear(ctx, chatID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", chatID).Msg("clear wizard failed")
	}
}

func (b *Bot) send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	_ = b.limiter.Wait(context.Background())
	return b.tg.Send(msg)
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	_, _ = b.send(msg)
}

func (b *Bot) answerCallback(id, text string) error {
	_, err := b.tg.Request(tgbotapi.NewCallback(id, text))
	return err
}

func (b *Bot) ack(cq *tgbotapi.CallbackQuery) {
	_ = b.answerCallback(cq.ID, "")
}

// alert shows a blocking popup on the tapped button.
func (b *Bot) alert(cq *tgbotapi.CallbackQuery, text string) {
	_, _ = b.tg.Request(tgbotapi.NewCallbackWithAlert(cq.ID, text))
}
