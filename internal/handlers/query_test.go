package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/services"
)

const diseaseAnswer = `## Possible Diagnoses
1. Influenza - most consistent with fever and body aches
2. Common cold - milder presentation

References:
1. CDC Influenza Guidelines`

func TestQueryHandler_SubmitQuery(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMocks     func(*fixture)
		expectedStatus int
		validate       func(*testing.T, *fixture, map[string]interface{})
	}{
		{
			name: "medical_query_saved_to_history",
			body: `{"queryType":"disease","symptoms":"fever, aches","patientDetails":"34y","save_to_history":true}`,
			setupMocks: func(f *fixture) {
				f.backend.EXPECT().MedicalQuery(gomock.Any(), domain.QueryRequest{
					QueryType:      domain.QueryDisease,
					Symptoms:       "fever, aches",
					PatientDetails: "34y",
				}).Return(diseaseAnswer, nil)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, f *fixture, resp map[string]interface{}) {
				assert.Equal(t, diseaseAnswer, resp["answer"])
				assert.NotNil(t, resp["case"])
				diseases, ok := resp["diseases"].([]interface{})
				require.True(t, ok)
				assert.Len(t, diseases, 2)

				cases, err := f.cases.List(context.Background(), testSession)
				require.NoError(t, err)
				require.Len(t, cases, 1)
				assert.Equal(t, "fever, aches", cases[0].Symptoms)
			},
		},
		{
			name: "general_query_not_saved",
			body: `{"queryType":"general","query":"What is triage?"}`,
			setupMocks: func(f *fixture) {
				f.backend.EXPECT().Query(gomock.Any(), "What is triage?").Return("Triage sorts patients.", nil)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, f *fixture, resp map[string]interface{}) {
				assert.Nil(t, resp["case"])
				cases, err := f.cases.List(context.Background(), testSession)
				require.NoError(t, err)
				assert.Empty(t, cases)
			},
		},
		{
			name:           "missing_symptoms",
			body:           `{"queryType":"recovery"}`,
			setupMocks:     func(*fixture) {},
			expectedStatus: http.StatusBadRequest,
			validate: func(t *testing.T, _ *fixture, resp map[string]interface{}) {
				assert.Equal(t, "please enter symptoms or patient details", resp["error"])
			},
		},
		{
			name:           "malformed_body",
			body:           `{"queryType":`,
			setupMocks:     func(*fixture) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "backend_reports_error",
			body: `{"query":"hello"}`,
			setupMocks: func(f *fixture) {
				f.backend.EXPECT().Query(gomock.Any(), "hello").
					Return("", &domain.BackendError{Endpoint: "/api/query", Message: "vector store empty"})
			},
			expectedStatus: http.StatusBadGateway,
			validate: func(t *testing.T, _ *fixture, resp map[string]interface{}) {
				assert.Equal(t, "vector store empty", resp["error"])
			},
		},
		{
			name: "backend_times_out",
			body: `{"query":"slow"}`,
			setupMocks: func(f *fixture) {
				f.backend.EXPECT().Query(gomock.Any(), "slow").
					DoAndReturn(func(ctx context.Context, _ string) (string, error) {
						<-ctx.Done()
						return "", ctx.Err()
					})
			},
			expectedStatus: http.StatusGatewayTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMocks(f)

			rec := f.request(http.MethodPost, "/api/v1/queries", strings.NewReader(tt.body))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.validate != nil {
				var resp map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				tt.validate(t, f, resp)
			}
		})
	}
}

func TestQueryHandler_SupersededQueryIsConflict(t *testing.T) {
	f := newFixture(t)

	started := make(chan struct{})
	f.backend.EXPECT().Query(gomock.Any(), "first").
		DoAndReturn(func(ctx context.Context, _ string) (string, error) {
			close(started)
			<-ctx.Done()
			return "", ctx.Err()
		})
	f.backend.EXPECT().Query(gomock.Any(), "second").Return("second answer", nil)

	first := make(chan int)
	go func() {
		rec := f.request(http.MethodPost, "/api/v1/queries", strings.NewReader(`{"query":"first"}`))
		first <- rec.Code
	}()
	<-started

	rec := f.request(http.MethodPost, "/api/v1/queries", strings.NewReader(`{"query":"second"}`))
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case code := <-first:
		assert.Equal(t, http.StatusConflict, code)
	case <-time.After(2 * time.Second):
		t.Fatal("first query never returned")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Queries.WithLabelValues("general", "stale")))
}

func TestQueryHandler_QueryFragment(t *testing.T) {
	f := newFixture(t)
	f.backend.EXPECT().MedicalQuery(gomock.Any(), gomock.Any()).Return(diseaseAnswer, nil)

	form := url.Values{
		"queryType":       {"disease"},
		"symptoms":        {"fever"},
		"save_to_history": {"true"},
	}
	req := httptest.NewRequest(http.MethodPost, "/fragments/query", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Disease Assessment")
	assert.Contains(t, body, "Influenza")
	assert.Contains(t, body, "CDC Influenza Guidelines")
	assert.Contains(t, body, "Saved to case history")
}

func TestQueryHandler_QueryFragmentValidation(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/fragments/query", strings.NewReader("queryType=general"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := f.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "please enter a question")
}

func TestQueryHandler_Cases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	saved := domain.NewPatientCase(domain.QueryRequest{QueryType: domain.QueryRecovery, Symptoms: "sprain"}, now)
	require.NoError(t, f.cases.Save(ctx, testSession, saved))

	rec := f.request(http.MethodGet, "/api/v1/cases", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cases []domain.PatientCase
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cases))
	require.Len(t, cases, 1)
	assert.Equal(t, saved, cases[0])

	tests := []struct {
		name           string
		id             string
		expectedStatus int
	}{
		{"deletes_existing", fmt.Sprint(saved.ID), http.StatusNoContent},
		{"already_deleted", fmt.Sprint(saved.ID), http.StatusNotFound},
		{"invalid_id", "abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.request(http.MethodDelete, "/api/v1/cases/"+tt.id, nil)
			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestQueryHandler_CasesIsolatedPerClient(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	require.NoError(t, f.cases.Save(context.Background(), "someone-else",
		domain.NewPatientCase(domain.QueryRequest{QueryType: domain.QueryDisease, Symptoms: "cough"}, now)))

	rec := f.request(http.MethodGet, "/api/v1/cases", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestPreferencesHandler_DarkMode(t *testing.T) {
	f := newFixture(t)

	rec := f.request(http.MethodGet, "/api/v1/preferences/dark-mode", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled": false}`, rec.Body.String())

	rec = f.request(http.MethodPut, "/api/v1/preferences/dark-mode", strings.NewReader(`{"enabled": true}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(http.MethodGet, "/api/v1/preferences/dark-mode", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled": true}`, rec.Body.String())

	rec = f.request(http.MethodPut, "/api/v1/preferences/dark-mode", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreferencesHandler_MalformedValue(t *testing.T) {
	f := newFixture(t)
	key := services.Keys{Prefix: "test"}.DarkMode(testSession)
	require.NoError(t, f.store.Set(context.Background(), key, []byte("maybe"), 0))

	rec := f.request(http.MethodGet, "/api/v1/preferences/dark-mode", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled": false}`, rec.Body.String())
}
