// Package calendar implements the pure date-selection logic behind the
// scheduling dialog: a navigable month grid, quick-select shortcuts and
// strict HH:MM parsing. It has no side effects; every function is
// deterministic given its inputs.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ErrParse marks malformed operator date/time input.
// Use errors.Is(err, ErrParse) to detect it.
var ErrParse = errors.New("parse error")

type Direction int

const (
	Prev Direction = iota
	Next
)

// Cell is a single day slot in the month grid.
// Day == 0 means padding (a slot outside the month).
type Cell struct {
	Day  int
	Past bool // strictly before "today"; rendered disabled
}

// Grid is a month laid out in weeks. Weeks start on Monday.
type Grid struct {
	Year  int
	Month time.Month
	Weeks [][7]Cell
}

// Render lays out (year, month) as a week grid.
// today controls which day cells are flagged Past; its location is also
// used for date arithmetic.
func Render(year int, month time.Month, today time.Time) (Grid, error) {
	if month < time.January || month > time.December {
		return Grid{}, fmt.Errorf("%w: month %d out of range", ErrParse, month)
	}
	loc := today.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	days := DaysIn(year, month)

	// Monday-first column index of the 1st.
	lead := (int(first.Weekday()) + 6) % 7

	todayY, todayM, todayD := today.Date()
	cut := time.Date(todayY, todayM, todayD, 0, 0, 0, 0, loc)

	g := Grid{Year: year, Month: month}
	var week [7]Cell
	col := lead
	for day := 1; day <= days; day++ {
		week[col] = Cell{
			Day:  day,
			Past: time.Date(year, month, day, 0, 0, 0, 0, loc).Before(cut),
		}
		col++
		if col == 7 {
			g.Weeks = append(g.Weeks, week)
			week = [7]Cell{}
			col = 0
		}
	}
	if col > 0 {
		g.Weeks = append(g.Weeks, week)
	}
	return g, nil
}

// Navigate moves one month in the given direction, rolling the year over
// at the December/January boundary.
func Navigate(year int, month time.Month, dir Direction) (int, time.Month) {
	switch dir {
	case Prev:
		if month == time.January {
			return year - 1, time.December
		}
		return year, month - 1
	default:
		if month == time.December {
			return year + 1, time.January
		}
		return year, month + 1
	}
}

// QuickSelect resolves the today/tomorrow/day-after shortcuts:
// now + offsetDays, normalized to midnight in now's location.
func QuickSelect(now time.Time, offsetDays int) time.Time {
	y, m, d := now.AddDate(0, 0, offsetDays).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// ParseTime accepts strict 24-hour "HH:MM" (two digits each side).
func ParseTime(text string) (hour, minute int, err error) {
	if len(text) != 5 || text[2] != ':' {
		return 0, 0, fmt.Errorf("%w: time must be HH:MM", ErrParse)
	}
	for _, i := range [...]int{0, 1, 3, 4} {
		if text[i] < '0' || text[i] > '9' {
			return 0, 0, fmt.Errorf("%w: time must be HH:MM", ErrParse)
		}
	}
	hour = int(text[0]-'0')*10 + int(text[1]-'0')
	minute = int(text[3]-'0')*10 + int(text[4]-'0')
	if hour > 23 {
		return 0, 0, fmt.Errorf("%w: hour %d out of range", ErrParse, hour)
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("%w: minute %d out of range", ErrParse, minute)
	}
	return hour, minute, nil
}

// ParseDate accepts "YYYY-MM-DD" (the wire form used in callback payloads)
// and returns midnight of that day in loc.
func ParseDate(text string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", text, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrParse)
	}
	return t, nil
}

// At combines a date (only its Y/M/D are used) with an HH:MM time of day
// in loc.
func At(date time.Time, hour, minute int, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc)
}

// DaysIn returns the number of days in (year, month).
func DaysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
