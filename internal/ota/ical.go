// Package ota bridges bookings to external travel platforms: an iCal
// availability feed with reconciliation, an occupancy grid workbook and
// a manual-update checklist.
package ota

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"innkeeper/internal/models"
)

const (
	icalDateLayout = "20060102"
	dateLayout     = "2006-01-02"
)

// Event is one stay block in an iCal feed.
type Event struct {
	UID      string
	Summary  string
	CheckIn  string // YYYY-MM-DD
	CheckOut string // YYYY-MM-DD
}

// BookingUID derives the stable feed UID for a booking.
func BookingUID(bookingID int64) string {
	return fmt.Sprintf("booking-%d@innkeeper", bookingID)
}

// GenerateICal renders a feed of the given bookings. Cancelled bookings
// are skipped; DTEND is the check-out date, which iCal treats as
// exclusive, matching the half-open stay range.
func GenerateICal(propertyName string, bookings []models.Booking) string {
	var sb strings.Builder
	sb.WriteString("BEGIN:VCALENDAR\r\n")
	sb.WriteString("VERSION:2.0\r\n")
	sb.WriteString("PRODID:-//innkeeper//booking feed//EN\r\n")
	fmt.Fprintf(&sb, "X-WR-CALNAME:%s\r\n", escapeICalText(propertyName))

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
		sb.WriteString("BEGIN:VEVENT\r\n")
		fmt.Fprintf(&sb, "UID:%s\r\n", BookingUID(b.ID))
		fmt.Fprintf(&sb, "DTSTART;VALUE=DATE:%s\r\n", in.Format(icalDateLayout))
		fmt.Fprintf(&sb, "DTEND;VALUE=DATE:%s\r\n", out.Format(icalDateLayout))
		fmt.Fprintf(&sb, "SUMMARY:%s\r\n", escapeICalText("Room "+b.RoomNo))
		sb.WriteString("END:VEVENT\r\n")
	}

	sb.WriteString("END:VCALENDAR\r\n")
	return sb.String()
}

// ParseICal extracts stay events from a feed. Folded lines
// (continuation lines starting with a space or tab) are unfolded
// first. Events missing a date range are dropped.
func ParseICal(data string) []Event {
	lines := unfold(data)

	var (
		events []Event
		cur    *Event
	)
	for _, line := range lines {
		switch {
		case line == "BEGIN:VEVENT":
			cur = &Event{}
		case line == "END:VEVENT":
			if cur != nil && cur.CheckIn != "" && cur.CheckOut != "" {
				events = append(events, *cur)
			}
			cur = nil
		case cur == nil:
			continue
		default:
			name, value, ok := splitICalLine(line)
			if !ok {
				continue
			}
			switch name {
			case "UID":
				cur.UID = value
			case "SUMMARY":
				cur.Summary = unescapeICalText(value)
			case "DTSTART":
				if d, err := parseICalDate(value); err == nil {
					cur.CheckIn = d
				}
			case "DTEND":
				if d, err := parseICalDate(value); err == nil {
					cur.CheckOut = d
				}
			}
		}
	}
	return events
}

// Diff is the result of reconciling a remote feed against local
// bookings.
type Diff struct {
	New      []Event // in the feed, unknown locally
	Changed  []Event // known UID, different date range
	Vanished []Event // local booking absent from the feed
}

// Reconcile matches feed events to local bookings by UID. Local
// cancelled bookings are ignored: a feed event for one shows up as New
// so the operator re-checks it.
func Reconcile(feed []Event, local []models.Booking) Diff {
	byUID := make(map[string]models.Booking, len(local))
	for _, b := range local {
		if b.IsCancelled {
			continue
		}
		byUID[BookingUID(b.ID)] = b
	}

	var d Diff
	seen := make(map[string]bool, len(feed))
	for _, ev := range feed {
		b, ok := byUID[ev.UID]
		if !ok {
			d.New = append(d.New, ev)
			continue
		}
		seen[ev.UID] = true
		if b.CheckIn != ev.CheckIn || b.CheckOut != ev.CheckOut {
			d.Changed = append(d.Changed, ev)
		}
	}
	for uid, b := range byUID {
		if !seen[uid] {
			d.Vanished = append(d.Vanished, Event{
				UID:      uid,
				Summary:  "Room " + b.RoomNo,
				CheckIn:  b.CheckIn,
				CheckOut: b.CheckOut,
			})
		}
	}
	sort.Slice(d.Vanished, func(i, j int) bool { return d.Vanished[i].UID < d.Vanished[j].UID })
	return d
}

func unfold(data string) []string {
	raw := strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n")
	var lines []string
	for _, l := range raw {
		if l == "" {
			continue
		}
		if (strings.HasPrefix(l, " ") || strings.HasPrefix(l, "\t")) && len(lines) > 0 {
			lines[len(lines)-1] += l[1:]
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// splitICalLine separates "NAME;PARAM=...:VALUE" into the bare
// property name and its value.
func splitICalLine(line string) (name, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	name, value = line[:idx], line[idx+1:]
	if semi := strings.Index(name, ";"); semi >= 0 {
		name = name[:semi]
	}
	return strings.ToUpper(name), value, true
}

func parseICalDate(value string) (string, error) {
	// Date-times like 20250101T120000Z reduce to their date part.
	if idx := strings.Index(value, "T"); idx > 0 {
		value = value[:idx]
	}
	t, err := time.Parse(icalDateLayout, value)
	if err != nil {
		return "", err
	}
	return t.Format(dateLayout), nil
}

func escapeICalText(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}

func unescapeICalText(s string) string {
	r := strings.NewReplacer("\\\\", "\\", "\\;", ";", "\\,", ",", "\\n", "\n", "\\N", "\n")
	return r.Replace(s)
}
