package risk

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultHighValueThreshold is the amount above which a receipt is high value.
	DefaultHighValueThreshold = 5000

	dateLayout = "2006-01-02"
)

// DefaultMerchantKeywords are substrings of merchant names that are not
// reimbursable.
var DefaultMerchantKeywords = []string{"bar", "pub", "gaming", "netflix", "casino", "club"}

// Rule is one independent compliance check.
// Evaluate returns an error only when the rule cannot be applied to the subject.
type Rule interface {
	Flag() Flag
	Evaluate(s Subject) (bool, error)
}

// DefaultRules returns the built-in rules in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		HighValueRule{Threshold: DefaultHighValueThreshold},
		MerchantKeywordRule{Keywords: DefaultMerchantKeywords},
		WeekendRule{},
	}
}

// HighValueRule fires when the amount is strictly above Threshold.
type HighValueRule struct {
	Threshold float64
}

func (r HighValueRule) Flag() Flag { return FlagHighValue }

func (r HighValueRule) Evaluate(s Subject) (bool, error) {
	return s.Amount > r.Threshold, nil
}

// MerchantKeywordRule fires when the case-folded merchant contains any keyword.
// Matching is by substring, so "Barstow Electronics" matches "bar".
type MerchantKeywordRule struct {
	Keywords []string
}

func (r MerchantKeywordRule) Flag() Flag { return FlagNonCompliantMerchant }

func (r MerchantKeywordRule) Evaluate(s Subject) (bool, error) {
	merchant := strings.ToLower(s.Merchant)
	for _, kw := range r.Keywords {
		if strings.Contains(merchant, strings.ToLower(kw)) {
			return true, nil
		}
	}
	return false, nil
}

// WeekendRule fires for dates on Saturday or Sunday.
type WeekendRule struct{}

func (WeekendRule) Flag() Flag { return FlagWeekendExpense }

func (WeekendRule) Evaluate(s Subject) (bool, error) {
	d, err := time.Parse(dateLayout, s.Date)
	if err != nil {
		return false, fmt.Errorf("WeekendRule: parsing date %q: %w", s.Date, err)
	}
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday, nil
}
