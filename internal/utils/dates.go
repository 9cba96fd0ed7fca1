package utils

import (
	"fmt"
	"time"
)

// DaysPerYear is the ACT/365 day count used to turn dates into years.
const DaysPerYear = 365.0

// ExpirationLayout is the date format accepted for expirations.
const ExpirationLayout = "2006-01-02"

// YearsBetween returns the ACT/365 year fraction from now to expiry. Past
// expiries give 0.
func YearsBetween(now, expiry time.Time) float64 {
	d := expiry.Sub(now)
	if d <= 0 {
		return 0
	}
	return d.Hours() / 24 / DaysPerYear
}

// YearsToExpiration parses a YYYY-MM-DD expiration and returns the years from
// now until the close of that day (16:00 in now's location).
func YearsToExpiration(expiration string, now time.Time) (float64, error) {
	day, err := time.ParseInLocation(ExpirationLayout, expiration, now.Location())
	if err != nil {
		return 0, fmt.Errorf("invalid expiration %q: %w", expiration, err)
	}
	return YearsBetween(now, day.Add(16*time.Hour)), nil
}

// thirdFriday returns the third Friday of year-month.
func thirdFriday(year int, month time.Month, loc *time.Location) time.Time {
	firstFriday := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	for firstFriday.Weekday() != time.Friday {
		firstFriday = firstFriday.AddDate(0, 0, 1)
	}
	return firstFriday.AddDate(0, 0, 14)
}

// NextMonthlyExpiration returns the next standard monthly expiration (third
// Friday) on or after today, formatted as YYYY-MM-DD. Once the third Friday
// of the current month has passed, next month's is used.
func NextMonthlyExpiration(now time.Time) string {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	expiry := thirdFriday(today.Year(), today.Month(), today.Location())

	if today.After(expiry) {
		// Use next month's 3rd Friday; Date normalises month 13.
		next := time.Date(today.Year(), today.Month()+1, 1, 0, 0, 0, 0, today.Location())
		expiry = thirdFriday(next.Year(), next.Month(), next.Location())
	}

	return expiry.Format(ExpirationLayout)
}
