package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	// MaxPlausibleAmount bounds amounts; larger values are phone numbers or barcodes.
	MaxPlausibleAmount = 200000

	minYear = 2018
	maxYear = 2030
)

// Lines containing any of these never carry the receipt total.
var noiseKeywords = []string{"subtotal", "tax", "vat", "change", "tender"}

var scoreKeywords = []struct {
	word  string
	score int
}{
	{"total", 10},
	{"amount", 5},
	{"due", 5},
}

// moneyPattern matches an optional currency symbol followed by either
// comma-grouped thousands or a plain digit run, with an optional cents part.
var moneyPattern = regexp.MustCompile(`[$£€]?\s*(\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\d+(?:\.\d{2})?)`)

// Candidate is one numeric token considered as the receipt total.
type Candidate struct {
	Amount float64
	Score  int
}

// Candidates returns every total candidate in lines that survives the noise
// and sanity filters, in line order.
func Candidates(lines []string) []Candidate {
	var out []Candidate
	for _, line := range lines {
		lower := strings.ToLower(line)
		if containsAny(lower, noiseKeywords) {
			continue
		}

		m := moneyPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		token := m[1]
		amount, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", ""), 64)
		if err != nil {
			continue
		}
		if !plausibleAmount(amount, token) {
			continue
		}

		out = append(out, Candidate{Amount: amount, Score: scoreLine(lower)})
	}
	return out
}

// extractTotal picks the best candidate by (score, amount), defaulting to 0.
func extractTotal(lines []string) float64 {
	candidates := Candidates(lines)
	if len(candidates) == 0 {
		return 0.0
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Amount > candidates[j].Amount
	})

	return candidates[0].Amount
}

func plausibleAmount(amount float64, token string) bool {
	if amount > MaxPlausibleAmount {
		return false
	}
	// A bare integer in the year range is a date fragment.
	if amount >= minYear && amount <= maxYear && !strings.Contains(token, ".") {
		return false
	}
	return true
}

func scoreLine(lower string) int {
	score := 0
	for _, kw := range scoreKeywords {
		if strings.Contains(lower, kw.word) {
			score += kw.score
		}
	}
	return score
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
