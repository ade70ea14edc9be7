package extract

import (
	"regexp"
	"strings"

	"github.com/ammerola/medboard/internal/core/domain"
)

const (
	maxStages         = 5
	minDurationTokens = 3
	minStages         = 3
	defaultStageTitle = "Recovery Stage"
	defaultStageTime  = "Varies"
)

var (
	durationToken = regexp.MustCompile(`(?i)\b\d+(?:\s*(?:-|–|to)\s*\d+)?\s*(?:day|week|month|year)s?\b`)
	stageKeyword  = regexp.MustCompile(`(?i)recovery|healing|treatment|phase|timeline|stage`)
	digit         = regexp.MustCompile(`\d`)
)

// FallbackRecoveryStages is returned when the text carries too little timing
// information to build a timeline.
func FallbackRecoveryStages() []domain.RecoveryStage {
	return []domain.RecoveryStage{
		{Title: "Acute Phase", Time: "Week 1-2", Description: "Rest, symptom control and close monitoring of vital signs.", Current: true},
		{Title: "Early Recovery", Time: "Week 3-4", Description: "Gradual return to light activity with continued treatment."},
		{Title: "Mid Recovery", Time: "Month 2", Description: "Rebuilding strength and reviewing progress with the care team."},
		{Title: "Late Recovery", Time: "Month 3-4", Description: "Resuming most daily activities and tapering treatment."},
		{Title: "Full Recovery", Time: "Month 5-6", Description: "Return to normal function with periodic follow-up."},
	}
}

// ExtractRecoveryStages builds up to five stages from lines that mention a
// recovery keyword and a number. Texts with fewer than three duration tokens
// or fewer than three usable lines yield FallbackRecoveryStages.
func ExtractRecoveryStages(text string) []domain.RecoveryStage {
	if len(durationToken.FindAllStringIndex(text, -1)) < minDurationTokens {
		return FallbackRecoveryStages()
	}

	var stages []domain.RecoveryStage
	for _, raw := range splitLines(text) {
		if !stageKeyword.MatchString(raw) || !digit.MatchString(raw) {
			continue
		}
		line := cleanLine(raw)
		if line == "" {
			continue
		}
		stages = append(stages, parseStage(line))
		if len(stages) == maxStages {
			break
		}
	}

	if len(stages) < minStages {
		return FallbackRecoveryStages()
	}
	stages[0].Current = true
	return stages
}

func parseStage(line string) domain.RecoveryStage {
	stage := domain.RecoveryStage{
		Title:       defaultStageTitle,
		Time:        defaultStageTime,
		Description: line,
	}

	if idx := strings.IndexAny(line, ":."); idx > 0 {
		title := strings.TrimSpace(line[:idx])
		desc := strings.TrimSpace(line[idx+1:])
		if title != "" {
			stage.Title = title
		}
		if desc != "" {
			stage.Description = desc
		}
	}

	if d := durationToken.FindString(line); d != "" {
		stage.Time = d
	}
	return stage
}
