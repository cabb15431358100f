// Package risk classifies an extracted receipt as routine or requiring review
// by evaluating an ordered list of independent compliance rules.
package risk

import (
	"github.com/rs/zerolog"
)

// Status is the overall outcome of an assessment.
type Status string

const (
	StatusApproved Status = "APPROVED"
	StatusFlagged  Status = "FLAGGED"
)

// Flag identifies one triggered rule.
type Flag string

const (
	FlagHighValue            Flag = "HIGH_VALUE"
	FlagNonCompliantMerchant Flag = "NON_COMPLIANT_MERCHANT"
	FlagWeekendExpense       Flag = "WEEKEND_EXPENSE"

	// FlagNone is the only entry of an approved assessment.
	FlagNone Flag = "NONE"
)

// Subject is the part of an extracted receipt the rules look at.
type Subject struct {
	Merchant string
	Amount   float64
	Date     string // canonical YYYY-MM-DD
}

// Assessment is the immutable result of classifying one Subject.
type Assessment struct {
	Status Status `json:"status"`
	Flags  []Flag `json:"flags"`
}

// NeedsReview reports whether at least one rule fired.
func (a Assessment) NeedsReview() bool {
	return a.Status == StatusFlagged
}

// FlagStrings returns the flags as plain strings, in evaluation order.
func (a Assessment) FlagStrings() []string {
	out := make([]string, len(a.Flags))
	for i, f := range a.Flags {
		out[i] = string(f)
	}
	return out
}

// Classifier evaluates its rules in order and collects every flag raised.
type Classifier struct {
	rules []Rule
	log   zerolog.Logger
}

// NewClassifier creates a Classifier. With no rules it uses DefaultRules.
func NewClassifier(log zerolog.Logger, rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules, log: log}
}

// Assess classifies a receipt with the default rules and no logging.
func Assess(merchant string, amount float64, date string) Assessment {
	return NewClassifier(zerolog.Nop()).Assess(merchant, amount, date)
}

// Assess evaluates every rule against the receipt fields.
func (c *Classifier) Assess(merchant string, amount float64, date string) Assessment {
	subject := Subject{Merchant: merchant, Amount: amount, Date: date}

	var flags []Flag
	for _, rule := range c.rules {
		hit, err := rule.Evaluate(subject)
		if err != nil {
			c.log.Warn().
				Err(err).
				Str("rule", string(rule.Flag())).
				Str("date", date).
				Msg("Risk rule skipped")
			continue
		}
		if hit {
			flags = append(flags, rule.Flag())
		}
	}

	if len(flags) == 0 {
		return Assessment{Status: StatusApproved, Flags: []Flag{FlagNone}}
	}
	return Assessment{Status: StatusFlagged, Flags: flags}
}
