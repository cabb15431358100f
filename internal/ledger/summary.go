// Package ledger computes dashboard figures over audited receipts.
package ledger

import (
	"math/big"
	"sort"

	"github.com/dvloznov/receipt-auditor/internal/domain"
)

// DefaultTopN is the number of largest receipts reported by default.
const DefaultTopN = 5

// Summary holds the ledger KPIs. Money values are exact two-decimal strings.
type Summary struct {
	ReceiptCount  int                     `json:"receipt_count"`
	FlaggedCount  int                     `json:"flagged_count"`
	TotalSpend    string                  `json:"total_spend"`
	AverageTicket string                  `json:"average_ticket"`
	ByRiskStatus  map[string]int          `json:"by_risk_status"`
	ByFlag        map[string]int          `json:"by_flag"`
	Top           []domain.AuditedReceipt `json:"top"`
}

// Summarize aggregates receipts. Totals that do not parse as decimals count as zero.
// topN <= 0 uses DefaultTopN.
func Summarize(receipts []domain.AuditedReceipt, topN int) Summary {
	if topN <= 0 {
		topN = DefaultTopN
	}

	s := Summary{
		ReceiptCount: len(receipts),
		ByRiskStatus: make(map[string]int),
		ByFlag:       make(map[string]int),
	}

	sum := new(big.Rat)
	amounts := make([]*big.Rat, len(receipts))
	for i, r := range receipts {
		amounts[i] = parseAmount(r.Total)
		sum.Add(sum, amounts[i])

		if r.Flagged() {
			s.FlaggedCount++
		}
		if r.RiskStatus != "" {
			s.ByRiskStatus[r.RiskStatus]++
		}
		for _, f := range r.RiskFlags {
			if f != "NONE" {
				s.ByFlag[f]++
			}
		}
	}

	s.TotalSpend = sum.FloatString(2)
	avg := new(big.Rat)
	if len(receipts) > 0 {
		avg.Quo(sum, big.NewRat(int64(len(receipts)), 1))
	}
	s.AverageTicket = avg.FloatString(2)

	order := make([]int, len(receipts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return amounts[order[a]].Cmp(amounts[order[b]]) > 0
	})
	if len(order) > topN {
		order = order[:topN]
	}
	s.Top = make([]domain.AuditedReceipt, len(order))
	for i, idx := range order {
		s.Top[i] = receipts[idx]
	}

	return s
}

func parseAmount(s string) *big.Rat {
	r, ok := new(big.Rat).SetString(s)
	if !ok || r.Sign() < 0 {
		return new(big.Rat)
	}
	return r
}
