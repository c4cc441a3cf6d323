package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSalary(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		min, max float64
		currency string
	}{
		{"range with symbols", "$80,000 - $120,000 a year", 80000, 120000, "USD"},
		{"k suffix range", "£45k–£55k", 45000, 55000, "GBP"},
		{"shared k suffix", "80-100k USD", 80000, 100000, "USD"},
		{"single figure", "€60,000", 60000, 60000, "EUR"},
		{"hourly annualized", "$50 per hour", 104000, 104000, "USD"},
		{"hourly range", "$40 - $50/hr", 83200, 104000, "USD"},
		{"monthly annualized", "INR 50,000 per month", 600000, 600000, "INR"},
		{"reversed range ordered", "120000 to 90000", 90000, 120000, "USD"},
		{"canadian dollars", "C$95,000", 95000, 95000, "CAD"},
		{"indian grouping", "₹12,00,000", 1200000, 1200000, "INR"},
		{"decimals", "$72.5k", 72500, 72500, "USD"},
		{"work week is not a pay period", "$120,000 - $150,000, 4 days a week in office", 120000, 150000, "USD"},
		{"monthly standups are not a pay period", "$95,000 plus monthly team offsites", 95000, 95000, "USD"},
		{"weekly annualized", "$2,000 a week", 104000, 104000, "USD"},
		{"monthly with code", "3,000 EUR per month", 36000, 36000, "EUR"},
		{"hourly rate prefix", "Hourly rate: $45", 93600, 93600, "USD"},
		{"european grouping", "€50.000 - €60.000", 50000, 60000, "EUR"},
		{"european decimals", "€45.000,50", 45000.5, 45000.5, "EUR"},
		{"european monthly", "€3.500 /mo", 42000, 42000, "EUR"},
		{"standup cadence is not a period", "$100k, standups twice a week", 100000, 100000, "USD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, cur, ok := ParseSalary(tt.in)
			require.True(t, ok)
			assert.InDelta(t, tt.min, *lo, 0.01)
			assert.InDelta(t, tt.max, *hi, 0.01)
			assert.Equal(t, tt.currency, cur)
		})
	}
}

func TestParseSalary_NoFigure(t *testing.T) {
	for _, in := range []string{"", "Competitive", "DOE", "$0"} {
		_, _, _, ok := ParseSalary(in)
		assert.False(t, ok, in)
	}
}

func TestParseDate(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"just now", now},
		{"Today", now},
		{"yesterday", now.AddDate(0, 0, -1)},
		{"Posted 3 days ago", now.AddDate(0, 0, -3)},
		{"2 weeks ago", now.AddDate(0, 0, -14)},
		{"5 hours ago", now.Add(-5 * time.Hour)},
		{"30+ days ago", now.AddDate(0, 0, -30)},
		{"1 month ago", now.AddDate(0, -1, 0)},
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-03-01T09:30:00Z", time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)},
		{"Mar 1, 2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"March 1, 2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"1 March 2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"Posted on 03/01/2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in, now)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, ok := ParseDate("sometime soon", now)
	assert.False(t, ok)
}
