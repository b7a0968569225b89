package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Calendar callback actions. Header, day_header and empty cells are
// inert: they exist only for grid alignment and must ack without
// changing state.
const (
	calActionSelect    = "select"
	calActionPrev      = "prev"
	calActionNext      = "next"
	calActionToday     = "today"
	calActionHeader    = "header"
	calActionDayHeader = "day_header"
	calActionEmpty     = "empty"
)

var inertCalendarActions = map[string]struct{}{
	calActionHeader:    {},
	calActionDayHeader: {},
	calActionEmpty:     {},
}

// isInertCalendarCallback reports whether the payload is a non-interactive
// grid cell of any calendar prefix.
func isInertCalendarCallback(data string) bool {
	parts := strings.Split(data, ":")
	if len(parts) < 2 {
		return false
	}
	_, ok := inertCalendarActions[parts[1]]
	return ok
}

// generateCalendarKeyboard builds a month grid of selectable dates.
// Callback payloads are "prefix:action[:params]" and stay well under
// Telegram's 64-byte callback-data budget.
func generateCalendarKeyboard(year, month int, prefix string) tgbotapi.InlineKeyboardMarkup {
	year, month = normalizeMonth(year, month)
	firstDay := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	weekdayOffset := int(firstDay.Weekday())
	if weekdayOffset == 0 {
		weekdayOffset = 7 // Monday-first grid
	}
	daysInMonth := daysIn(time.Month(month), year)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0)
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%s %d", time.Month(month).String(), year),
			prefix+":"+calActionHeader),
	})

	dayRow := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, d := range []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"} {
		dayRow = append(dayRow, tgbotapi.NewInlineKeyboardButtonData(d, prefix+":"+calActionDayHeader))
	}
	rows = append(rows, dayRow)

	day := 1
	for day <= daysInMonth {
		row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
		for col := 1; col <= 7; col++ {
			if (len(rows) == 2 && col < weekdayOffset) || day > daysInMonth {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", prefix+":"+calActionEmpty))
				continue
			}
			dateStr := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				strconv.Itoa(day),
				fmt.Sprintf("%s:%s:%s", prefix, calActionSelect, dateStr)))
			day++
		}
		rows = append(rows, row)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("«", fmt.Sprintf("%s:%s:%d:%d", prefix, calActionPrev, year, month)),
		tgbotapi.NewInlineKeyboardButtonData("Today", prefix+":"+calActionToday),
		tgbotapi.NewInlineKeyboardButtonData("»", fmt.Sprintf("%s:%s:%d:%d", prefix, calActionNext, year, month)),
	})

	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// normalizeMonth wraps out-of-range months across year boundaries:
// month 13 becomes January of the next year, month 0 December of the
// previous one.
func normalizeMonth(year, month int) (int, int) {
	for month > 12 {
		month -= 12
		year++
	}
	for month < 1 {
		month += 12
		year--
	}
	return year, month
}

// parseCalendarCallback splits "prefix:action[:params]" into its action
// and parameter parts.
func parseCalendarCallback(data, prefix string) (action string, params []string) {
	rest := strings.TrimPrefix(data, prefix+":")
	parts := strings.Split(rest, ":")
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}

func daysIn(m time.Month, year int) int {
	switch m {
	case time.February:
		if (year%4 == 0 && year%100 != 0) || year%400 == 0 {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}
