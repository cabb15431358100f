package ledger

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/dvloznov/receipt-auditor/internal/domain"
	"github.com/dvloznov/receipt-auditor/internal/extract"
	"github.com/dvloznov/receipt-auditor/internal/risk"
	"github.com/google/uuid"
)

// MockMerchants are the merchants used for demo ledger rows.
var MockMerchants = []string{
	"Uber", "Starbucks", "Apple Store", "The Leela Palace",
	"Netflix", "Local Taxi", "Amazon AWS", "Go Air",
}

// MockReceipts generates n demo ledger entries dated within 30 days before now.
// Each entry is assessed by c, so flags match what a real audit would raise.
func MockReceipts(rng *rand.Rand, n int, now time.Time, c *risk.Classifier) []domain.AuditedReceipt {
	out := make([]domain.AuditedReceipt, 0, n)
	for i := 0; i < n; i++ {
		merchant := MockMerchants[rng.Intn(len(MockMerchants))]
		// Cents in [100.00, 15000.00].
		cents := 10000 + rng.Int63n(1490001)
		total := fmt.Sprintf("%d.%02d", cents/100, cents%100)
		date := now.AddDate(0, 0, -rng.Intn(31)).Format(extract.DateLayout)

		assessment := c.Assess(merchant, float64(cents)/100, date)
		out = append(out, domain.AuditedReceipt{
			ReceiptID:  uuid.NewString(),
			Filename:   fmt.Sprintf("mock-%d.jpg", i),
			Checksum:   fmt.Sprintf("mock-%d-%s", i, total),
			Merchant:   merchant,
			Date:       date,
			Total:      total,
			Status:     domain.StatusAudited,
			RiskStatus: string(assessment.Status),
			RiskFlags:  assessment.FlagStrings(),
			UploadedAt: now,
			AuditedAt:  now,
		})
	}
	return out
}
