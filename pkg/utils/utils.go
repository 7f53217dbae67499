package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of decimals kept for monetary values
const CurrencyPlaces = 2

// StartOfDay truncates t to midnight in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// CalendarDate returns the date t carries in its own zone as midnight UTC.
// Postgres DATE values arrive as midnight with a zero offset and must not be
// shifted into another zone before reading their day.
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateIn returns the calendar date of the instant t as seen in loc
func DateIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return CalendarDate(t.In(loc))
}

// DaysBetween counts whole calendar days from one date to another. Both values
// are read as calendar dates in their own zones, so DST never yields a fractional day.
func DaysBetween(from, to time.Time) int {
	return int(CalendarDate(to).Sub(CalendarDate(from)).Hours() / 24)
}

// DaysOverdue returns max(0, today - dueDate) in whole days. dueDate is a
// calendar date; asOf is an instant whose day is taken in loc.
func DaysOverdue(dueDate, asOf time.Time, loc *time.Location) int {
	days := DaysBetween(dueDate, DateIn(asOf, loc))
	if days < 0 {
		return 0
	}
	return days
}

// SQLDate formats a calendar date for a Postgres DATE parameter
func SQLDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// SameMonth reports whether a and b fall in the same calendar month in loc
func SameMonth(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// RoundCurrency rounds to CurrencyPlaces decimals
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// NonNegative clamps negative amounts to zero
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
