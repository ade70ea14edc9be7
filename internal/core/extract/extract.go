// Package extract pulls structured hints out of free-form clinical answers.
// Every function is pure and total: malformed input yields an empty result
// or a fixed fallback, never an error or a panic.
package extract

import (
	"regexp"
	"strings"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/ports"
)

// Extractor is the regex based implementation of the three extraction
// strategies.
type Extractor struct{}

var (
	_ ports.DiseaseExtractor  = Extractor{}
	_ ports.RecoveryExtractor = Extractor{}
	_ ports.ResourceExtractor = Extractor{}
)

// New returns the default extractor
func New() Extractor { return Extractor{} }

func (Extractor) ExtractDiseases(text string) []domain.ExtractedDisease {
	return ExtractDiseases(text)
}

func (Extractor) ExtractRecoveryStages(text string) []domain.RecoveryStage {
	return ExtractRecoveryStages(text)
}

func (Extractor) ExtractResources(text string) domain.Resources {
	return ExtractResources(text)
}

var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

// cleanLine removes list markers, markdown heading hashes and bold markers.
func cleanLine(line string) string {
	line = listMarker.ReplaceAllString(line, "")
	line = strings.TrimLeft(line, "# ")
	line = strings.ReplaceAll(line, "**", "")
	return strings.TrimSpace(line)
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}
