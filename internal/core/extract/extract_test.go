package extract_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/extract"
)

func probabilitySum(ds []domain.ExtractedDisease) int {
	sum := 0
	for _, d := range ds {
		sum += d.Probability
	}
	return sum
}

func TestExtractDiseases(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantNames []string
	}{
		{
			name:      "two_enumerated_candidates",
			text:      "Possible Diagnoses:\n1. Influenza\n2. Common cold\n",
			wantNames: []string{"Influenza", "Common cold"},
		},
		{
			name:      "labelled_candidates_with_bold",
			text:      "## Differential Diagnosis\n**Pneumonia**: fever and productive cough\n**Bronchitis**: persistent cough\n",
			wantNames: []string{"Pneumonia", "Bronchitis"},
		},
		{
			name:      "stops_at_conclusion",
			text:      "Potential conditions\n- Migraine\n- Tension headache\nIn conclusion, rest.\n- Cluster headache\n",
			wantNames: []string{"Migraine", "Tension headache"},
		},
		{
			name:      "drops_short_and_summary_candidates",
			text:      "possible diagnosis:\n- TB\n- Summary of findings\n- Strep throat\n",
			wantNames: []string{"Strep throat"},
		},
		{
			name:      "caps_at_five",
			text:      "Possible diagnoses\n1. Alpha\n2. Bravo\n3. Charlie\n4. Delta\n5. Echo\n6. Foxtrot\n",
			wantNames: []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo"},
		},
		{
			name:      "bold_name_followed_by_description",
			text:      "Possible diagnoses:\n1. **Influenza** - viral infection\n2. **Common cold**\n",
			wantNames: []string{"Influenza - viral infection", "Common cold"},
		},
		{
			name: "no_header",
			text: "1. Influenza\n2. Common cold\n",
		},
		{
			name: "header_on_last_line",
			text: "Possible diagnoses",
		},
		{
			name: "empty",
			text: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extract.ExtractDiseases(tt.text)
			if len(tt.wantNames) == 0 {
				assert.Empty(t, got)
				return
			}

			names := make([]string, len(got))
			for i, d := range got {
				names[i] = d.Name
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, 100, probabilitySum(got))
			for i := 1; i < len(got); i++ {
				assert.GreaterOrEqual(t, got[i-1].Probability, got[i].Probability)
			}
		})
	}
}

func TestExtractDiseases_TwoCandidateWeights(t *testing.T) {
	got := extract.ExtractDiseases("Possible Diagnoses:\n1. Influenza\n2. Common cold\n")
	require.Len(t, got, 2)
	assert.Equal(t, 62, got[0].Probability)
	assert.Equal(t, 38, got[1].Probability)
}

func TestExtractRecoveryStages(t *testing.T) {
	text := strings.Join([]string{
		"Recovery Timeline",
		"1. Initial healing phase: 1-2 weeks of rest",
		"2. Physical therapy stage: 3-6 weeks of guided exercise",
		"3. Strength recovery. Expect 2 months before full activity",
		"Follow up with your doctor.",
	}, "\n")

	got := extract.ExtractRecoveryStages(text)
	require.Len(t, got, 3)

	assert.Equal(t, "Initial healing phase", got[0].Title)
	assert.Equal(t, "1-2 weeks", got[0].Time)
	assert.Equal(t, "1-2 weeks of rest", got[0].Description)
	assert.True(t, got[0].Current)

	assert.Equal(t, "3-6 weeks", got[1].Time)
	assert.False(t, got[1].Current)

	assert.Equal(t, "Strength recovery", got[2].Title)
	assert.Equal(t, "2 months", got[2].Time)
}

func TestExtractRecoveryStages_Fallback(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "too_few_durations", text: "Recovery phase lasts 2 weeks.\nHealing stage 3 takes 1 month."},
		{name: "durations_but_no_stage_lines", text: "Rest 2 days. Walk 3 weeks. Run 4 months."},
		{name: "empty", text: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extract.ExtractRecoveryStages(tt.text)
			assert.Equal(t, extract.FallbackRecoveryStages(), got)
			assert.Equal(t, "Acute Phase", got[0].Title)
			assert.Equal(t, "Week 1-2", got[0].Time)
			assert.Equal(t, "Full Recovery", got[4].Title)
			assert.Equal(t, "Month 5-6", got[4].Time)
		})
	}
}

func TestExtractResources(t *testing.T) {
	text := strings.Join([]string{
		"### Medications",
		"- Medications: Amoxicillin 500mg three times daily",
		"- Paracetamol tablet as needed",
		"- Paracetamol tablet as needed",
		"**Equipment**",
		"* Pulse oximeter monitor",
		"* Nurse to check oxygen levels daily",
		"1. Physical therapist visits twice weekly",
		"Nothing relevant here",
	}, "\n")

	got := extract.ExtractResources(text)

	assert.Equal(t, []string{"Amoxicillin 500mg three times daily", "Paracetamol tablet as needed"},
		got.Items(domain.ResourceMedications))
	// first match wins: "oxygen" is equipment even though "nurse" is staff
	assert.Equal(t, []string{"Pulse oximeter monitor", "Nurse to check oxygen levels daily"},
		got.Items(domain.ResourceEquipment))
	assert.Equal(t, []string{"Physical therapist visits twice weekly"}, got.Items(domain.ResourceStaff))
	assert.Nil(t, got.Items(domain.ResourceFacilities))

	require.Len(t, got, 3)
	assert.Equal(t, domain.ResourceMedications, got[0].Category)
	assert.Equal(t, domain.ResourceStaff, got[2].Category)
}

func TestExtractResources_KeywordInsideWord(t *testing.T) {
	tests := []struct {
		name         string
		line         string
		wantCategory string
	}{
		{name: "suffix_of_compound_word", line: "- Multidrug therapy", wantCategory: domain.ResourceMedications},
		{name: "room_inside_bathroom", line: "- Bathroom grab bars", wantCategory: domain.ResourceFacilities},
		{name: "prefixed_word", line: "* Antidrug counselling", wantCategory: domain.ResourceMedications},
		{name: "plain_keyword", line: "- Anticoagulant injections via syringe", wantCategory: domain.ResourceEquipment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extract.ExtractResources(tt.line)
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantCategory, got[0].Category)
		})
	}
}

func TestExtractResources_Truncates(t *testing.T) {
	long := "Hospital admission for observation and intravenous fluids over several days"
	got := extract.ExtractResources(long)

	items := got.Items(domain.ResourceFacilities)
	require.Len(t, items, 1)
	assert.Len(t, []rune(items[0]), 60)
	assert.True(t, strings.HasSuffix(items[0], "..."))
}

func TestExtractResources_Fallback(t *testing.T) {
	got := extract.ExtractResources("Drink water and rest.\n\nSee you soon.")
	assert.Equal(t, extract.FallbackResources(), got)
	assert.Equal(t, []string{"Pain relievers as prescribed", "Anti-inflammatory medication", "Condition-specific prescriptions"},
		got.Items(domain.ResourceMedications))
	assert.Equal(t, []string{"Outpatient clinic", "Diagnostic laboratory", "Pharmacy access"},
		got.Items(domain.ResourceFacilities))
}

func TestExtractor_ImplementsStrategies(t *testing.T) {
	e := extract.New()
	assert.NotEmpty(t, e.ExtractRecoveryStages(""))
	assert.NotEmpty(t, e.ExtractResources(""))
	assert.Empty(t, e.ExtractDiseases(""))
}

func FuzzExtract(f *testing.F) {
	f.Add("Possible diagnoses:\n1. Flu\n")
	f.Add("Recovery stage 1: 2 weeks\n")
	f.Add("\x00\xff: \n-")
	f.Fuzz(func(t *testing.T, s string) {
		ds := extract.ExtractDiseases(s)
		if len(ds) > 0 && probabilitySum(ds) != 100 {
			t.Fatalf("probabilities sum to %d", probabilitySum(ds))
		}
		if len(extract.ExtractRecoveryStages(s)) == 0 {
			t.Fatal("empty recovery timeline")
		}
		if len(extract.ExtractResources(s)) == 0 {
			t.Fatal("empty resources")
		}
	})
}
