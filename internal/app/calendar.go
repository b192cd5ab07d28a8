package app

import (
	"log/slog"
	"time"

	"github.com/scmhub/calendar"
)

// TradingDay is the session the daily job ingests.
type TradingDay struct {
	Date time.Time
}

// Yesterday returns the calendar date before now as seen in loc. A nil loc
// means time.Local. Date holds that calendar date at midnight UTC.
func Yesterday(now time.Time, loc *time.Location) TradingDay {
	if loc == nil {
		loc = time.Local
	}
	y := now.In(loc).AddDate(0, 0, -1)
	return TradingDay{Date: time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d TradingDay) String() string {
	return d.Date.Format(time.DateOnly)
}

// TradingCalendar answers whether NYSE traded on a date.
type TradingCalendar struct {
	cal *calendar.Calendar
}

// NewTradingCalendar loads the XNYS calendar. When it is unavailable every
// weekday counts as a trading day.
func NewTradingCalendar() *TradingCalendar {
	cal := calendar.GetCalendar("xnys")
	if cal == nil {
		slog.Warn("xnys calendar unavailable, using Mon-Fri")
	}
	return &TradingCalendar{cal: cal}
}

// Location is the exchange time zone, or time.Local without a calendar.
func (c *TradingCalendar) Location() *time.Location {
	if c == nil || c.cal == nil || c.cal.Loc == nil {
		return time.Local
	}
	return c.cal.Loc
}

// Yesterday returns the session date before now in exchange time.
func (c *TradingCalendar) Yesterday(now time.Time) TradingDay {
	return Yesterday(now, c.Location())
}

// IsTradingDay reports whether day's calendar date was a NYSE business day.
func (c *TradingCalendar) IsTradingDay(day TradingDay) bool {
	d := day.Date
	if c.cal == nil {
		return d.Weekday() != time.Saturday && d.Weekday() != time.Sunday
	}
	// Noon on the same calendar date in exchange time.
	local := time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, c.cal.Loc)
	return c.cal.IsBusinessDay(local)
}
