// internal/core/domain/query.go
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// QueryType selects the prompt family used by the RAG backend
type QueryType string

const (
	QueryGeneral   QueryType = "general"
	QueryDisease   QueryType = "disease"
	QueryRecovery  QueryType = "recovery"
	QueryResources QueryType = "resources"
)

// ParseQueryType returns the query type for s, defaulting to general.
func ParseQueryType(s string) QueryType {
	switch QueryType(strings.ToLower(strings.TrimSpace(s))) {
	case QueryDisease:
		return QueryDisease
	case QueryRecovery:
		return QueryRecovery
	case QueryResources:
		return QueryResources
	default:
		return QueryGeneral
	}
}

// IsMedical reports whether the query goes to the clinical endpoint
func (q QueryType) IsMedical() bool {
	return q != QueryGeneral
}

// QueryRequest is the form state of one submission
type QueryRequest struct {
	QueryType      QueryType `json:"queryType"`
	Symptoms       string    `json:"symptoms,omitempty"`
	PatientDetails string    `json:"patientDetails,omitempty"`
	GeneralQuery   string    `json:"query,omitempty"`
}

// Validate enforces the per-type required fields
func (r *QueryRequest) Validate() error {
	if r.QueryType == "" {
		r.QueryType = QueryGeneral
	}
	if r.QueryType.IsMedical() {
		if strings.TrimSpace(r.Symptoms) == "" && strings.TrimSpace(r.PatientDetails) == "" {
			return &ValidationError{Field: "symptoms", Message: "please enter symptoms or patient details"}
		}
		return nil
	}
	if strings.TrimSpace(r.GeneralQuery) == "" {
		return &ValidationError{Field: "query", Message: "please enter a question"}
	}
	return nil
}

// PatientCaseDateLayout renders PatientCase.Date
const PatientCaseDateLayout = "Jan 2, 2006 3:04 PM"

// PatientCase is one saved query submission. ID is the creation time in
// milliseconds; two saves within the same millisecond would collide.
type PatientCase struct {
	ID             int64     `json:"id"`
	Date           string    `json:"date"`
	QueryType      QueryType `json:"queryType"`
	Symptoms       string    `json:"symptoms"`
	PatientDetails string    `json:"patientDetails"`
}

// NewPatientCase builds a case for req stamped at now
func NewPatientCase(req QueryRequest, now time.Time) PatientCase {
	return PatientCase{
		ID:             now.UnixMilli(),
		Date:           now.Format(PatientCaseDateLayout),
		QueryType:      req.QueryType,
		Symptoms:       req.Symptoms,
		PatientDetails: req.PatientDetails,
	}
}

// ExtractedDisease is a candidate diagnosis with its display weight
type ExtractedDisease struct {
	Name        string `json:"name"`
	Probability int    `json:"probability"`
}

// RecoveryStage is one step of a recovery timeline
type RecoveryStage struct {
	Title       string `json:"title"`
	Time        string `json:"time"`
	Description string `json:"description"`
	Current     bool   `json:"current"`
}

// Resource categories in display order.
const (
	ResourceMedications = "Medications"
	ResourceEquipment   = "Equipment"
	ResourceStaff       = "Staff"
	ResourceFacilities  = "Facilities"
)

// ResourceCategories lists the resource categories in display order
var ResourceCategories = []string{ResourceMedications, ResourceEquipment, ResourceStaff, ResourceFacilities}

// ResourceGroup holds the items found for one category
type ResourceGroup struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

// Resources is the ordered category → items mapping
type Resources []ResourceGroup

// Items returns the items of category, or nil
func (r Resources) Items(category string) []string {
	for _, g := range r {
		if g.Category == category {
			return g.Items
		}
	}
	return nil
}

// EstimateRequest asks the backend for a treatment estimate
type EstimateRequest struct {
	PatientInfo string `json:"patient_info"`
}

// EstimatedResource is one line of an estimate
type EstimatedResource struct {
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

// EstimateResult is the backend's estimate response
type EstimateResult struct {
	EstimatedTime string              `json:"estimated_time"`
	Resources     []EstimatedResource `json:"resources"`
	Explanation   string              `json:"explanation"`
	// Raw is the untouched response body, including fields not decoded above.
	Raw json.RawMessage `json:"raw,omitempty"`
}
