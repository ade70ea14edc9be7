package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ammerola/medboard/internal/core/domain"
)

// MaxDiseases caps the number of extracted diagnoses.
const MaxDiseases = 5

var (
	diagnosisHeader = regexp.MustCompile(`(?i)(possible\s+diagnos[ie]s|differential\s+diagnos[ie]s|potential\s+conditions)`)
	enumeratedItem  = regexp.MustCompile(`^\s*(?:\d+[.)]|-|\*|•)\s*([^:]+)`)
	labelledItem    = regexp.MustCompile(`^\s*([^:]+):\s`)
)

// ExtractDiseases finds the diagnosis section of text and returns up to five
// candidates with decreasing display weights summing to exactly 100.
func ExtractDiseases(text string) []domain.ExtractedDisease {
	loc := diagnosisHeader.FindStringIndex(text)
	if loc == nil {
		return nil
	}

	rest := text[loc[1]:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		rest = ""
	}

	var names []string
	for _, line := range splitLines(rest) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Contains(strings.ToLower(line), "conclusion") {
			break
		}

		var m []string
		if m = enumeratedItem.FindStringSubmatch(line); m == nil {
			m = labelledItem.FindStringSubmatch(line)
		}
		if m == nil {
			continue
		}

		name := strings.Trim(strings.ReplaceAll(m[1], "**", ""), "*# \t")
		lower := strings.ToLower(name)
		if len([]rune(name)) < 3 || strings.Contains(lower, "summary") {
			continue
		}

		names = append(names, name)
		if len(names) == MaxDiseases {
			break
		}
	}

	return weigh(names)
}

// weigh assigns the i-th name the weight 100/(i+1.5), normalizes the weights
// to integer percentages and applies the rounding residual to the first name.
// Weights are scaled to integers first so halves round the same way every time.
func weigh(names []string) []domain.ExtractedDisease {
	if len(names) == 0 {
		return nil
	}

	// 100/(i+1.5) == 200/(2i+3); scale every weight by the lcm of the divisors.
	scale := int64(1)
	for i := range names {
		scale = lcm(scale, int64(2*i+3))
	}
	weights := make([]int64, len(names))
	total := int64(0)
	for i := range names {
		weights[i] = scale / int64(2*i+3)
		total += weights[i]
	}

	hundred := decimal.NewFromInt(100)
	out := make([]domain.ExtractedDisease, len(names))
	sum := int64(0)
	for i, name := range names {
		p := decimal.NewFromInt(weights[i]).Mul(hundred).Div(decimal.NewFromInt(total)).Round(0).IntPart()
		out[i] = domain.ExtractedDisease{Name: name, Probability: int(p)}
		sum += p
	}
	out[0].Probability += int(100 - sum)

	return out
}

func lcm(a, b int64) int64 {
	x, y := a, b
	for y != 0 {
		x, y = y, x%y
	}
	return a / x * b
}
