package schedule

import (
	"fmt"
	"strconv"
	"time"

	"castbot/internal/calendar"
)

// ActionNoop marks inert cells (padding, headers, past days). The transport
// layer still needs callback data for them, but the router ignores it.
const ActionNoop Action = "noop"

func quickSelectView(now time.Time) View {
	today := calendar.QuickSelect(now, 0)
	tomorrow := calendar.QuickSelect(now, 1)
	dayAfter := calendar.QuickSelect(now, 2)

	day := func(label string, d time.Time) Button {
		return Button{
			Label:   fmt.Sprintf("%s (%s)", label, d.Format("02.01")),
			Action:  ActionDate,
			Payload: d.Format("2006-01-02"),
		}
	}
	return View{
		Text: "When should this broadcast go out?",
		Rows: [][]Button{
			{day("Today", today), day("Tomorrow", tomorrow)},
			{day("Day after", dayAfter)},
			{{Label: "📅 Open calendar", Action: ActionExpand}},
			{{Label: "🚀 Send now", Action: ActionSendNow}},
			{{Label: "❌ Cancel", Action: ActionCancel}},
		},
	}
}

func monthView(g calendar.Grid) View {
	prevYear, prevMonth := calendar.Navigate(g.Year, g.Month, calendar.Prev)
	nextYear, nextMonth := calendar.Navigate(g.Year, g.Month, calendar.Next)

	rows := [][]Button{
		{
			{Label: "<<", Action: ActionNav, Payload: fmt.Sprintf("%04d-%02d", prevYear, prevMonth)},
			{Label: fmt.Sprintf("%s %d", g.Month, g.Year), Action: ActionNoop},
			{Label: ">>", Action: ActionNav, Payload: fmt.Sprintf("%04d-%02d", nextYear, nextMonth)},
		},
		weekdayRow(),
	}
	for _, week := range g.Weeks {
		row := make([]Button, 7)
		for i, c := range week {
			switch {
			case c.Day == 0:
				row[i] = Button{Label: " ", Action: ActionNoop}
			case c.Past:
				row[i] = Button{Label: strconv.Itoa(c.Day), Action: ActionNoop}
			default:
				row[i] = Button{
					Label:   strconv.Itoa(c.Day),
					Action:  ActionDate,
					Payload: fmt.Sprintf("%04d-%02d-%02d", g.Year, g.Month, c.Day),
				}
			}
		}
		rows = append(rows, row)
	}
	rows = append(rows, []Button{{Label: "❌ Cancel", Action: ActionCancel}})

	return View{Text: "Pick a delivery date:", Rows: rows}
}

func weekdayRow() []Button {
	names := [...]string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}
	row := make([]Button, len(names))
	for i, n := range names {
		row[i] = Button{Label: n, Action: ActionNoop}
	}
	return row
}

func confirmView(sess *session, at time.Time) View {
	text := "Send this broadcast to all subscribers right now?"
	if !sess.immediate {
		text = fmt.Sprintf("Schedule this broadcast for %s?", at.Format("02.01.2006 15:04"))
	}
	return View{
		Text: text,
		Rows: [][]Button{
			{{Label: "✅ Confirm", Action: ActionConfirm}},
			{{Label: "❌ Cancel", Action: ActionCancel}},
		},
	}
}
