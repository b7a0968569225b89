// Package google pushes booking data and the OTA update checklist to
// Google Sheets.
package google

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"innkeeper/internal/models"
	"innkeeper/internal/ota"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsService appends rows to a spreadsheet. A row cache remembers
// where each booking landed so repeated syncs update in place instead
// of appending duplicates.
type SheetsService struct {
	service        *sheets.Service
	spreadsheetID  string
	checklistRange string
	bookingsRange  string
	logger         zerolog.Logger

	cacheMu  sync.RWMutex
	rowCache map[int64]int
}

// NewSheetsService builds the service from a credentials file. The
// checklist and the booking sync write to separate ranges, typically
// two tabs of the same spreadsheet.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, checklistRange, bookingsRange string, logger zerolog.Logger) (*SheetsService, error) {
	srv, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsService{
		service:        srv,
		spreadsheetID:  spreadsheetID,
		checklistRange: checklistRange,
		bookingsRange:  bookingsRange,
		logger:         logger.With().Str("component", "sheets").Logger(),
		rowCache:       make(map[int64]int),
	}, nil
}

// PushChecklistRows appends OTA checklist rows to the sheet.
func (s *SheetsService) PushChecklistRows(ctx context.Context, rows []ota.ChecklistRow) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, checklistRowValues(r))
	}
	vr := &sheets.ValueRange{Values: values}
	_, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, s.checklistRange, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append checklist rows: %w", err)
	}
	s.logger.Info().Int("rows", len(rows)).Msg("checklist rows appended")
	return nil
}

// SyncBookings writes the active bookings to the sheet, updating the
// cached row for a booking seen before and appending otherwise.
func (s *SheetsService) SyncBookings(ctx context.Context, bookings []models.Booking) error {
	active := s.filterActiveBookings(bookings)
	for i := range active {
		b := &active[i]
		if row, ok := s.getCachedRow(b.ID); ok {
			if err := s.updateRow(ctx, row, bookingRowValues(b)); err != nil {
				return err
			}
			continue
		}
		row, err := s.appendRow(ctx, bookingRowValues(b))
		if err != nil {
			return err
		}
		if row > 0 {
			s.setCachedRow(b.ID, row)
		}
	}
	return nil
}

func (s *SheetsService) appendRow(ctx context.Context, values []interface{}) (int, error) {
	vr := &sheets.ValueRange{Values: [][]interface{}{values}}
	resp, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, s.bookingsRange, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("append row: %w", err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return rowFromRange(resp.Updates.UpdatedRange), nil
	}
	return 0, nil
}

func (s *SheetsService) updateRow(ctx context.Context, row int, values []interface{}) error {
	rng := fmt.Sprintf("%sA%d", sheetPrefix(s.bookingsRange), row)
	vr := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := s.service.Spreadsheets.Values.
		Update(s.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update row %d: %w", row, err)
	}
	return nil
}

func (s *SheetsService) filterActiveBookings(bookings []models.Booking) []models.Booking {
	active := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.IsCancelled {
			continue
		}
		active = append(active, b)
	}
	return active
}

func (s *SheetsService) getCachedRow(bookingID int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[bookingID]
	return row, ok
}

func (s *SheetsService) setCachedRow(bookingID int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[bookingID] = row
}

func (s *SheetsService) deleteCachedRow(bookingID int64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.rowCache, bookingID)
}

// ClearCache drops the booking-to-row mapping, forcing the next sync
// to append fresh rows.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
}

func bookingRowValues(b *models.Booking) []interface{} {
	return []interface{}{
		b.ID,
		b.GuestName,
		b.RoomNo,
		b.CheckIn,
		b.CheckOut,
		b.Adults,
		b.Children,
		b.TotalAmount,
		b.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func checklistRowValues(r ota.ChecklistRow) []interface{} {
	done := "no"
	if r.Done {
		done = "yes"
	}
	return []interface{}{
		r.Platform,
		r.RoomNo,
		fmt.Sprintf("%s → %s", r.CheckIn, r.CheckOut),
		r.Note,
		done,
		r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// sheetPrefix keeps the "Tab!" part of a range so row updates land on
// the same tab the append wrote to.
func sheetPrefix(rangeName string) string {
	if idx := strings.Index(rangeName, "!"); idx >= 0 {
		return rangeName[:idx+1]
	}
	return ""
}

// rowFromRange pulls the row number out of an A1 range like
// "Sheet1!A7:F7".
func rowFromRange(a1 string) int {
	if idx := strings.LastIndex(a1, "!"); idx >= 0 {
		a1 = a1[idx+1:]
	}
	if idx := strings.Index(a1, ":"); idx >= 0 {
		a1 = a1[:idx]
	}
	// cell reference: column letters followed by the row number
	i := 0
	for i < len(a1) && a1[i] >= 'A' && a1[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(a1) {
		return 0
	}
	row := 0
	for ; i < len(a1); i++ {
		c := a1[i]
		if c < '0' || c > '9' {
			return 0
		}
		row = row*10 + int(c-'0')
	}
	return row
}
