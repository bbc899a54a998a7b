package util

import "time"

const dateLayout = "2006-01-02"

// ParseDate parses a calendar date in YYYY-MM-DD form (UTC, midnight).
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders a time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// Midnight truncates t to its UTC calendar date.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WindowStart returns the inclusive start of a trailing window of the given
// number of years ending at end.
func WindowStart(end time.Time, years int) time.Time {
	return Midnight(end).AddDate(-years, 0, 0)
}

// DaySpan returns every calendar date in [start, end], one entry per day,
// no gaps and no duplicates.
func DaySpan(start, end time.Time) []time.Time {
	start = Midnight(start)
	end = Midnight(end)
	if end.Before(start) {
		return nil
	}
	out := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Quarter returns the calendar quarter (1-4) of a date.
func Quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}
