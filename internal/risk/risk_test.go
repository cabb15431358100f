package risk

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-12-25 is a Wednesday, 2024-12-28 a Saturday, 2024-12-29 a Sunday.
const (
	weekday  = "2024-12-25"
	saturday = "2024-12-28"
	sunday   = "2024-12-29"
)

func TestAssess(t *testing.T) {
	tests := []struct {
		name       string
		merchant   string
		amount     float64
		date       string
		wantStatus Status
		wantFlags  []Flag
	}{
		{
			name:       "clean receipt approved",
			merchant:   "Joe's Diner",
			amount:     50,
			date:       weekday,
			wantStatus: StatusApproved,
			wantFlags:  []Flag{FlagNone},
		},
		{
			name:       "casino high value",
			merchant:   "Casino Royale",
			amount:     8000,
			date:       "2026-01-01",
			wantStatus: StatusFlagged,
			wantFlags:  []Flag{FlagHighValue, FlagNonCompliantMerchant},
		},
		{
			name:       "threshold is exclusive",
			merchant:   "Office Depot",
			amount:     5000,
			date:       weekday,
			wantStatus: StatusApproved,
			wantFlags:  []Flag{FlagNone},
		},
		{
			name:       "just above threshold",
			merchant:   "Office Depot",
			amount:     5000.01,
			date:       weekday,
			wantStatus: StatusFlagged,
			wantFlags:  []Flag{FlagHighValue},
		},
		{
			name:       "case insensitive merchant",
			merchant:   "NETFLIX PREMIUM",
			amount:     10,
			date:       weekday,
			wantStatus: StatusFlagged,
			wantFlags:  []Flag{FlagNonCompliantMerchant},
		},
		{
			name:       "substring merchant match",
			merchant:   "Barstow Electronics",
			amount:     10,
			date:       weekday,
			wantStatus: StatusFlagged,
			wantFlags:  []Flag{FlagNonCompliantMerchant},
		},
		{
			name:       "saturday",
			merchant:   "Uber",
			amount:     12,
			date:       saturday,
			wantStatus: StatusFlagged,
			wantFlags:  []Flag{FlagWeekendExpense},
		},
		{
			name:       "sunday",
			merchant:   "Uber",
			amount:     12,
			date:       sunday,
			wantStatus: StatusFlagged,
			wantFlags:  []Flag{FlagWeekendExpense},
		},
		{
			name:       "all rules in order",
			merchant:   "Club Cafe",
			amount:     9000,
			date:       sunday,
			wantStatus: StatusFlagged,
			wantFlags:  []Flag{FlagHighValue, FlagNonCompliantMerchant, FlagWeekendExpense},
		},
		{
			name:       "invalid date skips weekend rule",
			merchant:   "Uber",
			amount:     12,
			date:       "2024-25-12",
			wantStatus: StatusApproved,
			wantFlags:  []Flag{FlagNone},
		},
		{
			name:       "invalid date keeps other flags",
			merchant:   "The Pub",
			amount:     6000,
			date:       "2024-02-31",
			wantStatus: StatusFlagged,
			wantFlags:  []Flag{FlagHighValue, FlagNonCompliantMerchant},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assess(tt.merchant, tt.amount, tt.date)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantFlags, got.Flags)
			assert.Equal(t, tt.wantStatus == StatusFlagged, got.NeedsReview())
		})
	}
}

func TestClassifier_LogsSkippedRule(t *testing.T) {
	buf := &bytes.Buffer{}
	c := NewClassifier(zerolog.New(buf))

	got := c.Assess("Uber", 10, "not-a-date")

	assert.Equal(t, StatusApproved, got.Status)
	assert.Contains(t, buf.String(), "Risk rule skipped")
	assert.Contains(t, buf.String(), string(FlagWeekendExpense))
}

func TestClassifier_CustomRules(t *testing.T) {
	c := NewClassifier(zerolog.Nop(), HighValueRule{Threshold: 100})

	assert.Equal(t, []Flag{FlagHighValue}, c.Assess("Casino", 150, saturday).Flags)
	assert.Equal(t, []Flag{FlagNone}, c.Assess("Casino", 50, saturday).Flags)
}

func TestAssess_Deterministic(t *testing.T) {
	first := Assess("Casino Royale", 8000, sunday)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, Assess("Casino Royale", 8000, sunday))
	}
}

func TestAssessment_FlagStrings(t *testing.T) {
	a := Assessment{Status: StatusFlagged, Flags: []Flag{FlagHighValue, FlagWeekendExpense}}
	assert.Equal(t, []string{"HIGH_VALUE", "WEEKEND_EXPENSE"}, a.FlagStrings())
}
