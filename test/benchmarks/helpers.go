// test/benchmarks/helpers.go
package benchmarks

import (
	"fmt"
	"strings"
)

// createLargeAnswer builds a backend answer with n numbered diagnoses, a
// recovery timeline and a reference list, the shape the extractors parse.
func createLargeAnswer(n int) string {
	var b strings.Builder
	b.WriteString("## Possible Diagnoses\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d. **Condition %d** - presents with fever and fatigue (likelihood %d%%)\n", i, i, 100-i%100)
	}
	b.WriteString("\n## Recovery Timeline\n")
	for i := 1; i <= n/4+1; i++ {
		fmt.Fprintf(&b, "%d. Phase %d (week %d): rest, hydration and follow-up\n", i, i, i)
	}
	b.WriteString("\n## Required Resources\n")
	for i := 1; i <= n/4+1; i++ {
		fmt.Fprintf(&b, "- Medication: Drug %d 500mg\n- Equipment: Monitor model %d\n", i, i)
	}
	b.WriteString("\nReferences:\n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "%d. Clinical guideline volume %d\n", i, i)
	}
	return b.String()
}
