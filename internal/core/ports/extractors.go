// internal/core/ports/extractors.go
package ports

import "github.com/ammerola/medboard/internal/core/domain"

// DiseaseExtractor pulls candidate diagnoses out of response text
type DiseaseExtractor interface {
	ExtractDiseases(text string) []domain.ExtractedDisease
}

// RecoveryExtractor builds a recovery timeline from response text
type RecoveryExtractor interface {
	ExtractRecoveryStages(text string) []domain.RecoveryStage
}

// ResourceExtractor groups resource mentions by category
type ResourceExtractor interface {
	ExtractResources(text string) domain.Resources
}
