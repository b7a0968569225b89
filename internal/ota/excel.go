package ota

import (
	"fmt"
	"io"
	"time"

	"innkeeper/internal/models"

	"github.com/xuri/excelize/v2"
)

// OccupancyGrid builds a room-by-date workbook used to update OTA
// extranets by hand: one row per room, one column per night, booked
// cells carry the guest name.
type OccupancyGrid struct {
	file  *excelize.File
	sheet string
}

// NewOccupancyGrid renders the grid for [from, to) in one sheet named
// after the month of the range start.
func NewOccupancyGrid(rooms []models.Room, bookings []models.Booking, from, to time.Time) (*OccupancyGrid, error) {
	g := &OccupancyGrid{file: excelize.NewFile()}

	sheet := from.Format("Jan 2006")
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	g.file.SetSheetName("Sheet1", sheet)
	g.sheet = sheet

	dates := nightsBetween(from, to)
	if err := g.writeHeader(dates); err != nil {
		return nil, err
	}

	occupied := occupancyMap(bookings)
	for i, room := range rooms {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := g.file.SetCellValue(g.sheet, cell, room.RoomNo); err != nil {
			return nil, err
		}
		for j, d := range dates {
			guest, ok := occupied[roomNight{room.RoomNo, d}]
			if !ok {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+2, row)
			if err != nil {
				return nil, err
			}
			if err := g.file.SetCellValue(g.sheet, cell, guest); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

func (g *OccupancyGrid) writeHeader(dates []string) error {
	cell, err := excelize.CoordinatesToCellName(1, 1)
	if err != nil {
		return err
	}
	if err := g.file.SetCellValue(g.sheet, cell, "Room"); err != nil {
		return err
	}
	for i, d := range dates {
		cell, err := excelize.CoordinatesToCellName(i+2, 1)
		if err != nil {
			return err
		}
		t, _ := time.Parse(dateLayout, d)
		if err := g.file.SetCellValue(g.sheet, cell, t.Format("02.01")); err != nil {
			return err
		}
	}

	style, err := g.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(dates)+1, 1)
		_ = g.file.SetCellStyle(g.sheet, startCell, endCell, style)
	}
	return nil
}

// CellValue reads one grid cell, allowing callers to inspect the
// rendered sheet without touching excelize directly.
func (g *OccupancyGrid) CellValue(col, row int) (string, error) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	return g.file.GetCellValue(g.sheet, cell)
}

// Save writes the workbook to the writer.
func (g *OccupancyGrid) Save(w io.Writer) error {
	return g.file.Write(w)
}

// SaveToFile writes the workbook to disk.
func (g *OccupancyGrid) SaveToFile(path string) error {
	return g.file.SaveAs(path)
}

// Close releases resources.
func (g *OccupancyGrid) Close() error {
	return g.file.Close()
}

type roomNight struct {
	roomNo string
	date   string
}

// occupancyMap expands each booking's half-open stay into per-night
// cells. Cancelled bookings leave their nights free.
func occupancyMap(bookings []models.Booking) map[roomNight]string {
	m := make(map[roomNight]string)
	for _, b := range bookings {
		if b.IsCancelled {
			continue
		}
		in, err := time.Parse(dateLayout, b.CheckIn)
		if err != nil {
			continue
		}
		out, err := time.Parse(dateLayout, b.CheckOut)
		if err != nil {
			continue
		}
		for d := in; d.Before(out); d = d.AddDate(0, 0, 1) {
			m[roomNight{b.RoomNo, d.Format(dateLayout)}] = b.GuestName
		}
	}
	return m
}

func nightsBetween(from, to time.Time) []string {
	var dates []string
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(dateLayout))
	}
	return dates
}

// ExportPath names the workbook file for a month, e.g.
// "occupancy-2025-01.xlsx" under dir.
func ExportPath(dir string, month time.Time) string {
	return fmt.Sprintf("%s/occupancy-%s.xlsx", dir, month.Format("2006-01"))
}
