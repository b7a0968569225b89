package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMonth(t *testing.T) {
	tests := []struct {
		year, month         int
		wantYear, wantMonth int
	}{
		{2025, 6, 2025, 6},
		{2025, 13, 2026, 1},
		{2025, 0, 2024, 12},
		{2025, 14, 2026, 2},
		{2025, -1, 2024, 11},
		{2025, 25, 2027, 1},
	}
	for _, tt := range tests {
		y, m := normalizeMonth(tt.year, tt.month)
		assert.Equal(t, tt.wantYear, y, "%d-%d", tt.year, tt.month)
		assert.Equal(t, tt.wantMonth, m, "%d-%d", tt.year, tt.month)
	}
}

func TestGenerateCalendarKeyboard(t *testing.T) {
	markup := generateCalendarKeyboard(2025, 3, "ci")

	// header, day names, weeks, nav
	require.GreaterOrEqual(t, len(markup.InlineKeyboard), 4)
	header := markup.InlineKeyboard[0][0]
	assert.Equal(t, "March 2025", header.Text)
	assert.Equal(t, "ci:header", *header.CallbackData)

	var selects, empties int
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			data := *btn.CallbackData
			assert.LessOrEqual(t, len(data), 64, "callback payload budget: %q", data)
			switch {
			case btn.Text == " ":
				empties++
				assert.Equal(t, "ci:empty", data)
			case len(data) > len("ci:select:") && data[:len("ci:select:")] == "ci:select:":
				selects++
			}
		}
	}
	assert.Equal(t, 31, selects, "every day of March selectable")
	assert.NotZero(t, empties, "grid padding present")

	nav := markup.InlineKeyboard[len(markup.InlineKeyboard)-1]
	require.Len(t, nav, 3)
	assert.Equal(t, "ci:prev:2025:3", *nav[0].CallbackData)
	assert.Equal(t, "ci:today", *nav[1].CallbackData)
	assert.Equal(t, "ci:next:2025:3", *nav[2].CallbackData)
}

func TestGenerateCalendarKeyboardWrapsMonths(t *testing.T) {
	jan := generateCalendarKeyboard(2025, 13, "co")
	assert.Equal(t, "January 2026", jan.InlineKeyboard[0][0].Text)

	dec := generateCalendarKeyboard(2025, 0, "co")
	assert.Equal(t, "December 2024", dec.InlineKeyboard[0][0].Text)
}

func TestIsInertCalendarCallback(t *testing.T) {
	assert.True(t, isInertCalendarCallback("ci:header"))
	assert.True(t, isInertCalendarCallback("mco:day_header"))
	assert.True(t, isInertCalendarCallback("co:empty"))
	assert.False(t, isInertCalendarCallback("ci:select:2025-03-01"))
	assert.False(t, isInertCalendarCallback("ci:today"))
	assert.False(t, isInertCalendarCallback("cancel"))
}

func TestParseCalendarCallback(t *testing.T) {
	action, params := parseCalendarCallback("ci:select:2025-03-01", "ci")
	assert.Equal(t, "select", action)
	assert.Equal(t, []string{"2025-03-01"}, params)

	action, params = parseCalendarCallback("mco:prev:2025:1", "mco")
	assert.Equal(t, "prev", action)
	assert.Equal(t, []string{"2025", "1"}, params)

	action, params = parseCalendarCallback("ci:today", "ci")
	assert.Equal(t, "today", action)
	assert.Empty(t, params)
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, daysIn(time.February, 2024))
	assert.Equal(t, 28, daysIn(time.February, 2025))
	assert.Equal(t, 28, daysIn(time.February, 1900))
	assert.Equal(t, 29, daysIn(time.February, 2000))
	assert.Equal(t, 30, daysIn(time.April, 2025))
	assert.Equal(t, 31, daysIn(time.December, 2025))
}
