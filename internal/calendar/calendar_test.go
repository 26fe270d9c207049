package calendar

import (
	"errors"
	"testing"
	"time"
)

func TestRenderGridIsConsecutive(t *testing.T) {
	t.Parallel()
	today := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	for year := 2024; year <= 2026; year++ {
		for month := time.January; month <= time.December; month++ {
			g, err := Render(year, month, today)
			if err != nil {
				t.Fatalf("Render(%d, %v) error: %v", year, month, err)
			}
			want := 1
			for _, week := range g.Weeks {
				for _, c := range week {
					if c.Day == 0 {
						continue
					}
					if c.Day != want {
						t.Fatalf("%d-%v: got day %d, want %d", year, month, c.Day, want)
					}
					want++
				}
			}
			if want-1 != DaysIn(year, month) {
				t.Fatalf("%d-%v: rendered %d days, want %d", year, month, want-1, DaysIn(year, month))
			}
		}
	}
}

func TestRenderFirstWeekday(t *testing.T) {
	t.Parallel()
	today := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)
	// September 2025 starts on a Monday.
	g, err := Render(2025, time.September, today)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if g.Weeks[0][0].Day != 1 {
		t.Fatalf("expected day 1 in Monday column, got %d", g.Weeks[0][0].Day)
	}
	// June 2025 starts on a Sunday (last column, Monday-first layout).
	g, err = Render(2025, time.June, today)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if g.Weeks[0][6].Day != 1 {
		t.Fatalf("expected day 1 in Sunday column, got %d", g.Weeks[0][6].Day)
	}
	for col := 0; col < 6; col++ {
		if g.Weeks[0][col].Day != 0 {
			t.Fatalf("expected padding in column %d, got day %d", col, g.Weeks[0][col].Day)
		}
	}
}

func TestRenderMarksPastDays(t *testing.T) {
	t.Parallel()
	today := time.Date(2025, time.March, 15, 13, 45, 0, 0, time.UTC)
	g, err := Render(2025, time.March, today)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	for _, week := range g.Weeks {
		for _, c := range week {
			if c.Day == 0 {
				continue
			}
			wantPast := c.Day < 15
			if c.Past != wantPast {
				t.Fatalf("day %d: Past = %v, want %v", c.Day, c.Past, wantPast)
			}
		}
	}
}

func TestNavigateYearRollover(t *testing.T) {
	t.Parallel()
	tests := []struct {
		year      int
		month     time.Month
		dir       Direction
		wantYear  int
		wantMonth time.Month
	}{
		{2025, time.December, Next, 2026, time.January},
		{2025, time.January, Prev, 2024, time.December},
		{2025, time.June, Next, 2025, time.July},
		{2025, time.June, Prev, 2025, time.May},
	}
	for _, tt := range tests {
		y, m := Navigate(tt.year, tt.month, tt.dir)
		if y != tt.wantYear || m != tt.wantMonth {
			t.Fatalf("Navigate(%d, %v, %v) = (%d, %v), want (%d, %v)",
				tt.year, tt.month, tt.dir, y, m, tt.wantYear, tt.wantMonth)
		}
	}
}

func TestQuickSelect(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	now := time.Date(2025, time.August, 31, 18, 22, 7, 0, loc)

	got := QuickSelect(now, 1)
	want := time.Date(2025, time.September, 1, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("QuickSelect(+1) = %v, want %v", got, want)
	}
	if got := QuickSelect(now, 0); got.Hour() != 0 || got.Day() != 31 {
		t.Fatalf("QuickSelect(+0) = %v, want midnight today", got)
	}
}

func TestParseTime(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in     string
		hour   int
		minute int
		ok     bool
	}{
		{"00:00", 0, 0, true},
		{"23:59", 23, 59, true},
		{"14:30", 14, 30, true},
		{"24:00", 0, 0, false},
		{"12:60", 0, 0, false},
		{"9:5", 0, 0, false},
		{"9:55", 0, 0, false},
		{"abc", 0, 0, false},
		{"1430", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		h, m, err := ParseTime(tt.in)
		if tt.ok {
			if err != nil {
				t.Fatalf("ParseTime(%q) error: %v", tt.in, err)
			}
			if h != tt.hour || m != tt.minute {
				t.Fatalf("ParseTime(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.hour, tt.minute)
			}
			continue
		}
		if err == nil {
			t.Fatalf("ParseTime(%q): expected error", tt.in)
		}
		if !errors.Is(err, ErrParse) {
			t.Fatalf("ParseTime(%q): error %v is not ErrParse", tt.in, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()
	d, err := ParseDate("2025-12-31", time.UTC)
	if err != nil {
		t.Fatalf("ParseDate error: %v", err)
	}
	if d.Year() != 2025 || d.Month() != time.December || d.Day() != 31 {
		t.Fatalf("unexpected date: %v", d)
	}
	if _, err := ParseDate("31.12.2025", time.UTC); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestAtCombines(t *testing.T) {
	t.Parallel()
	date := time.Date(2025, time.July, 4, 0, 0, 0, 0, time.UTC)
	got := At(date, 14, 30, time.UTC)
	want := time.Date(2025, time.July, 4, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("At = %v, want %v", got, want)
	}
}
