package extract

import (
	"regexp"
	"strings"

	"github.com/ammerola/medboard/internal/core/domain"
)

const (
	maxResourceRunes = 60
	truncatedRunes   = 57
)

type resourceRule struct {
	category string
	pattern  *regexp.Regexp
}

func keywordPattern(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:` + strings.Join(words, "|") + `)`)
}

// Rules are evaluated in display order; the first match wins.
var resourceRules = []resourceRule{
	{domain.ResourceMedications, keywordPattern("medication", "medicine", "drug", "antibiotic", "tablet", "dose", "dosage", "prescription", "analgesic", "antiviral", "vaccine", "insulin")},
	{domain.ResourceEquipment, keywordPattern("equipment", "device", "monitor", "ventilator", "oxygen", "machine", "kit", "syringe", "catheter", "wheelchair")},
	{domain.ResourceStaff, keywordPattern("doctor", "physician", "nurse", "specialist", "therapist", "surgeon", "staff", "consultant", "technician", "caregiver")},
	{domain.ResourceFacilities, keywordPattern("hospital", "clinic", "icu", "facility", "facilities", "center", "centre", "room", "laborator")},
}

var categoryEcho = regexp.MustCompile(`(?i)^(?:medications?|equipment|staff(?:ing)?|facilit(?:y|ies))\s*:\s*`)

// FallbackResources is returned when no line matches any category.
func FallbackResources() domain.Resources {
	return domain.Resources{
		{Category: domain.ResourceMedications, Items: []string{"Pain relievers as prescribed", "Anti-inflammatory medication", "Condition-specific prescriptions"}},
		{Category: domain.ResourceEquipment, Items: []string{"Basic diagnostic equipment", "Vital signs monitor", "Mobility aids if required"}},
		{Category: domain.ResourceStaff, Items: []string{"Primary care physician", "Registered nurse", "Specialist consultation as needed"}},
		{Category: domain.ResourceFacilities, Items: []string{"Outpatient clinic", "Diagnostic laboratory", "Pharmacy access"}},
	}
}

// ExtractResources assigns each line to the first category whose keywords
// it mentions. Items are cleaned, truncated to 60 characters and deduplicated;
// only non-empty categories are returned, in display order.
func ExtractResources(text string) domain.Resources {
	found := make(map[string][]string, len(resourceRules))
	seen := make(map[string]map[string]bool, len(resourceRules))

	for _, raw := range splitLines(text) {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		rule, ok := classify(raw)
		if !ok {
			continue
		}

		item := categoryEcho.ReplaceAllString(cleanLine(raw), "")
		item = strings.TrimSpace(item)
		if item == "" || strings.EqualFold(item, rule.category) {
			continue
		}
		item = truncate(item)

		if seen[rule.category] == nil {
			seen[rule.category] = make(map[string]bool)
		}
		if seen[rule.category][item] {
			continue
		}
		seen[rule.category][item] = true
		found[rule.category] = append(found[rule.category], item)
	}

	var out domain.Resources
	for _, rule := range resourceRules {
		if items := found[rule.category]; len(items) > 0 {
			out = append(out, domain.ResourceGroup{Category: rule.category, Items: items})
		}
	}
	if len(out) == 0 {
		return FallbackResources()
	}
	return out
}

func classify(line string) (resourceRule, bool) {
	for _, rule := range resourceRules {
		if rule.pattern.MatchString(line) {
			return rule, true
		}
	}
	return resourceRule{}, false
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxResourceRunes {
		return s
	}
	return string(r[:truncatedRunes]) + "..."
}
