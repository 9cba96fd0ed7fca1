package utils

import (
	"math"
	"testing"
	"time"
)

func TestNextMonthlyExpiration(t *testing.T) {
	tests := []struct {
		now  string
		want string
	}{
		{"2026-10-01", "2026-10-16"},
		{"2026-10-16", "2026-10-16"},
		{"2026-10-17", "2026-11-20"},
		{"2026-12-30", "2027-01-15"},
	}
	for _, tt := range tests {
		now, _ := time.Parse(ExpirationLayout, tt.now)
		if got := NextMonthlyExpiration(now.Add(10 * time.Hour)); got != tt.want {
			t.Errorf("NextMonthlyExpiration(%s) = %s, want %s", tt.now, got, tt.want)
		}
	}
}

func TestYearsToExpiration(t *testing.T) {
	now := time.Date(2026, 1, 1, 16, 0, 0, 0, time.UTC)
	years, err := YearsToExpiration("2027-01-01", now)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(years-1) > 1e-12 {
		t.Errorf("Expected one year, got %g", years)
	}

	if years, _ := YearsToExpiration("2025-06-01", now); years != 0 {
		t.Errorf("Expected past expiration to give 0, got %g", years)
	}
	if _, err := YearsToExpiration("01/02/2027", now); err == nil {
		t.Errorf("Expected error for malformed date")
	}
}
