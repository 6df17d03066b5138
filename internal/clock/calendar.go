// Package clock implements the effective trading-day rule for the
// Vietnamese market session.
package clock

import (
	"fmt"
	"time"

	"github.com/Hoangnph/vnstock-sub000/internal/domain"
)

// DefaultTimezone is the market's local timezone.
const DefaultTimezone = "Asia/Ho_Chi_Minh"

// DefaultCloseHour is the local hour after which today's session is
// considered complete.
const DefaultCloseHour = 16

// Calendar resolves effective trading-day bounds for the local market.
// Weekends and holidays need no special handling: the provider returns
// nothing for them and watermarks simply do not advance.
type Calendar struct {
	loc       *time.Location
	closeHour int
}

// NewCalendar creates a market calendar for the given timezone name and
// daily close hour.
func NewCalendar(timezone string, closeHour int) (*Calendar, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	if closeHour <= 0 || closeHour > 23 {
		closeHour = DefaultCloseHour
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load market timezone %q: %w", timezone, err)
	}
	return &Calendar{loc: loc, closeHour: closeHour}, nil
}

// MustCalendar is NewCalendar that panics on error. Used for defaults in
// tests and wiring where the timezone name is a compile-time constant.
func MustCalendar(timezone string, closeHour int) *Calendar {
	c, err := NewCalendar(timezone, closeHour)
	if err != nil {
		panic(err)
	}
	return c
}

// EffectiveEnd returns the last date whose session can be ingested.
// If target is today (in market local time) and the session has not
// closed yet, the effective end is yesterday; otherwise it is target.
// The result is a date at midnight UTC.
func (c *Calendar) EffectiveEnd(now time.Time, target time.Time) time.Time {
	local := now.In(c.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	targetDate := domain.Date(target)

	if targetDate.Equal(today) && local.Hour() < c.closeHour {
		return today.AddDate(0, 0, -1)
	}
	return targetDate
}

// Location returns the market timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// CloseHour returns the configured local close hour.
func (c *Calendar) CloseHour() int {
	return c.closeHour
}
