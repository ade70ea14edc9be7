package domain_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/medboard/internal/core/domain"
)

func TestQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       domain.QueryRequest
		wantField string
	}{
		{name: "general_with_query", req: domain.QueryRequest{QueryType: domain.QueryGeneral, GeneralQuery: "stock of masks?"}},
		{name: "general_empty", req: domain.QueryRequest{QueryType: domain.QueryGeneral, GeneralQuery: "   "}, wantField: "query"},
		{name: "disease_with_symptoms", req: domain.QueryRequest{QueryType: domain.QueryDisease, Symptoms: "fever"}},
		{name: "recovery_with_details_only", req: domain.QueryRequest{QueryType: domain.QueryRecovery, PatientDetails: "65yo, hip fracture"}},
		{name: "resources_empty", req: domain.QueryRequest{QueryType: domain.QueryResources}, wantField: "symptoms"},
		{name: "missing_type_defaults_to_general", req: domain.QueryRequest{}, wantField: "query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestParseQueryType(t *testing.T) {
	assert.Equal(t, domain.QueryDisease, domain.ParseQueryType(" Disease "))
	assert.Equal(t, domain.QueryResources, domain.ParseQueryType("resources"))
	assert.Equal(t, domain.QueryGeneral, domain.ParseQueryType("unknown"))
	assert.False(t, domain.QueryGeneral.IsMedical())
	assert.True(t, domain.QueryRecovery.IsMedical())
}

func TestNewPatientCase(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	c := domain.NewPatientCase(domain.QueryRequest{QueryType: domain.QueryDisease, Symptoms: "cough"}, now)

	assert.Equal(t, now.UnixMilli(), c.ID)
	assert.Equal(t, "Mar 5, 2024 2:07 PM", c.Date)
	assert.Equal(t, "cough", c.Symptoms)
}

func TestStatusForQuantity(t *testing.T) {
	assert.Equal(t, domain.StatusLow, domain.StatusForQuantity(0))
	assert.Equal(t, domain.StatusLow, domain.StatusForQuantity(49))
	assert.Equal(t, domain.StatusMedium, domain.StatusForQuantity(50))
	assert.Equal(t, domain.StatusMedium, domain.StatusForQuantity(199))
	assert.Equal(t, domain.StatusGood, domain.StatusForQuantity(200))
}

func TestInventoryItem_IsCritical(t *testing.T) {
	tests := []struct {
		name string
		item domain.InventoryItem
		want bool
	}{
		{name: "low_status", item: domain.InventoryItem{Status: domain.StatusLow, Quantity: 500}, want: true},
		{name: "small_quantity_good_status", item: domain.InventoryItem{Status: domain.StatusGood, Quantity: 10}, want: true},
		{name: "healthy", item: domain.InventoryItem{Status: domain.StatusMedium, Quantity: 50}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.IsCritical())
		})
	}
}

func TestInventoryItem_Matches(t *testing.T) {
	item := domain.InventoryItem{Name: "Surgical Masks", Category: "PPE", Location: "Storage A"}
	assert.True(t, item.Matches("mask"))
	assert.True(t, item.Matches("ppe"))
	assert.True(t, item.Matches("STORAGE"))
	assert.True(t, item.Matches(""))
	assert.False(t, item.Matches("insulin"))
}

func TestInventoryItem_Validate(t *testing.T) {
	assert.NoError(t, (&domain.InventoryItem{Name: "Gloves", Status: domain.StatusGood}).Validate())
	assert.Error(t, (&domain.InventoryItem{Name: "", Status: domain.StatusGood}).Validate())
	assert.Error(t, (&domain.InventoryItem{Name: "Gloves", Quantity: -1, Status: domain.StatusGood}).Validate())
	assert.Error(t, (&domain.InventoryItem{Name: "Gloves", Status: "plenty"}).Validate())
}

func TestParseLastUpdated(t *testing.T) {
	now := time.Date(2024, 6, 10, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		input  string
		want   time.Time
		wantOK bool
	}{
		{name: "absolute_date", input: "Jun 01, 2024", want: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "today", input: "Today, 03:15 PM", want: time.Date(2024, 6, 10, 15, 15, 0, 0, time.UTC), wantOK: true},
		{name: "yesterday", input: "Yesterday, 09:00 AM", want: time.Date(2024, 6, 9, 9, 0, 0, 0, time.UTC), wantOK: true},
		{name: "rfc3339", input: "2024-05-02T10:00:00Z", want: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC), wantOK: true},
		{name: "garbage", input: "sometime", wantOK: false},
		{name: "empty", input: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := domain.ParseLastUpdated(tt.input, now)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("save case: %w", &domain.StorageError{Op: "set", Key: "cases:abc", Err: cause})

	var serr *domain.StorageError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "cases:abc")

	nerr := &domain.NetworkError{Endpoint: "/api/query", StatusCode: 500}
	assert.Equal(t, "backend /api/query returned status 500", nerr.Error())
}
