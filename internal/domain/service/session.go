package service

import "time"

const (
	DefaultOpenInterval   = 30 * time.Second
	DefaultClosedInterval = 300 * time.Second
)

// SessionClock maps an instant to the open/closed state of one exchange's
// regular session. It has no holiday calendar and is advisory only; the price
// source's marketOpen flag stays authoritative for display.
type SessionClock struct {
	loc            *time.Location
	openMinute     int // minutes after local midnight
	closeMinute    int
	OpenInterval   time.Duration
	ClosedInterval time.Duration
}

// NewSessionClock returns a clock for a 09:30-16:00 Mon-Fri session in the
// named timezone.
func NewSessionClock(timezone string) *SessionClock {
	return &SessionClock{
		loc:            loadLocation(timezone),
		openMinute:     9*60 + 30,
		closeMinute:    16 * 60,
		OpenInterval:   DefaultOpenInterval,
		ClosedInterval: DefaultClosedInterval,
	}
}

func loadLocation(name string) *time.Location {
	if name == "" {
		name = "America/New_York"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		// no tzdata in minimal containers: EST without DST
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// Location returns the exchange timezone.
func (c *SessionClock) Location() *time.Location { return c.loc }

// IsOpen reports whether now falls inside continuous trading.
func (c *SessionClock) IsOpen(now time.Time) bool {
	local := now.In(c.loc)
	if !tradingDay(local.Weekday()) {
		return false
	}
	m := minuteOfDay(local)
	return m >= c.openMinute && m < c.closeMinute
}

// PollInterval picks the polling cadence for now.
func (c *SessionClock) PollInterval(now time.Time) time.Duration {
	if c.IsOpen(now) {
		return c.OpenInterval
	}
	return c.ClosedInterval
}

// NextChange returns the next instant strictly after now at which IsOpen flips.
func (c *SessionClock) NextChange(now time.Time) time.Time {
	local := now.In(c.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	for i := 0; i < 8; i++ {
		d := day.AddDate(0, 0, i)
		if !tradingDay(d.Weekday()) {
			continue
		}
		open := atMinute(d, c.openMinute)
		if open.After(now) {
			return open
		}
		closing := atMinute(d, c.closeMinute)
		if closing.After(now) {
			return closing
		}
	}
	return now.Add(c.ClosedInterval)
}

func tradingDay(d time.Weekday) bool {
	return d != time.Saturday && d != time.Sunday
}

func atMinute(day time.Time, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, day.Location())
}

func minuteOfDay(t time.Time) int {
	h, m, _ := t.Clock()
	return h*60 + m
}
