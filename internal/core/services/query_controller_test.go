package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/extract"
	"github.com/ammerola/medboard/internal/core/services"
	"github.com/ammerola/medboard/test/helpers"
	"github.com/ammerola/medboard/test/mocks"
)

type recordingSaver struct {
	mu    sync.Mutex
	saved []domain.PatientCase
	err   error
}

func (r *recordingSaver) Save(_ context.Context, _ string, c domain.PatientCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, c)
	return nil
}

func extractors() services.Extractors {
	e := extract.New()
	return services.Extractors{Diseases: e, Recovery: e, Resources: e}
}

var fixedNow = time.Date(2024, time.March, 5, 14, 7, 0, 0, time.UTC)

func newQueryController(backend *mocks.MockBackendClient, saver services.CaseSaver, opts ...services.QueryOption) *services.QueryController {
	opts = append([]services.QueryOption{services.WithClock(func() time.Time { return fixedNow })}, opts...)
	return services.NewQueryController("client-1", backend, saver, extractors(), helpers.TestLogger(), opts...)
}

func TestQueryController_Submit(t *testing.T) {
	diseaseAnswer := "Possible Diagnoses:\n1. Influenza\n2. Common cold\n\nReferences:\n[1] cdc.pdf"

	tests := []struct {
		name       string
		req        domain.QueryRequest
		setupMocks func(b *mocks.MockBackendClient)
		check      func(t *testing.T, r *services.QueryResult)
	}{
		{
			name: "disease_uses_medical_endpoint",
			req:  domain.QueryRequest{QueryType: domain.QueryDisease, Symptoms: "fever, cough"},
			setupMocks: func(b *mocks.MockBackendClient) {
				b.EXPECT().MedicalQuery(gomock.Any(), gomock.Any()).Return(diseaseAnswer, nil)
			},
			check: func(t *testing.T, r *services.QueryResult) {
				require.Len(t, r.Diseases, 2)
				assert.Equal(t, 62, r.Diseases[0].Probability)
				assert.Equal(t, []string{"[1] cdc.pdf"}, r.Response.Sources)
				assert.Equal(t, "Disease Assessment", r.Response.Title)
				assert.Nil(t, r.Stages)
				assert.Nil(t, r.Resources)
			},
		},
		{
			name: "recovery_extracts_timeline_only",
			req:  domain.QueryRequest{QueryType: domain.QueryRecovery, PatientDetails: "post-op knee"},
			setupMocks: func(b *mocks.MockBackendClient) {
				b.EXPECT().MedicalQuery(gomock.Any(), gomock.Any()).Return("Rest well.", nil)
			},
			check: func(t *testing.T, r *services.QueryResult) {
				assert.Equal(t, extract.FallbackRecoveryStages(), r.Stages)
				assert.Nil(t, r.Diseases)
				assert.Nil(t, r.Resources)
			},
		},
		{
			name: "resources_extracts_resources_only",
			req:  domain.QueryRequest{QueryType: domain.QueryResources, Symptoms: "burns"},
			setupMocks: func(b *mocks.MockBackendClient) {
				b.EXPECT().MedicalQuery(gomock.Any(), gomock.Any()).Return("- Burn dressing kit\n- Silver sulfadiazine cream medication", nil)
			},
			check: func(t *testing.T, r *services.QueryResult) {
				assert.NotEmpty(t, r.Resources)
				assert.Nil(t, r.Stages)
			},
		},
		{
			name: "general_uses_query_endpoint_and_all_extractors",
			req:  domain.QueryRequest{QueryType: domain.QueryGeneral, GeneralQuery: "How do I store insulin?"},
			setupMocks: func(b *mocks.MockBackendClient) {
				b.EXPECT().Query(gomock.Any(), "How do I store insulin?").Return("Refrigerate it.", nil)
			},
			check: func(t *testing.T, r *services.QueryResult) {
				assert.Empty(t, r.Diseases)
				assert.Equal(t, extract.FallbackRecoveryStages(), r.Stages)
				assert.Equal(t, extract.FallbackResources(), r.Resources)
				assert.Equal(t, "Medical Analysis", r.Response.Title)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			backend := mocks.NewMockBackendClient(ctrl)
			tt.setupMocks(backend)

			c := newQueryController(backend, &recordingSaver{})
			result, err := c.Submit(context.Background(), tt.req, false)

			require.NoError(t, err)
			assert.Equal(t, uint64(1), result.Sequence)
			assert.Nil(t, result.Case)
			tt.check(t, result)
		})
	}
}

func TestQueryController_ValidationBlocksNetwork(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackendClient(ctrl)
	c := newQueryController(backend, &recordingSaver{})

	_, err := c.Submit(context.Background(), domain.QueryRequest{QueryType: domain.QueryDisease}, true)

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "symptoms", validationErr.Field)
}

func TestQueryController_SavesCase(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackendClient(ctrl)
	backend.EXPECT().MedicalQuery(gomock.Any(), gomock.Any()).Return("ok", nil)
	saver := &recordingSaver{}

	c := newQueryController(backend, saver)
	req := domain.QueryRequest{QueryType: domain.QueryDisease, Symptoms: "rash", PatientDetails: "age 4"}
	result, err := c.Submit(context.Background(), req, true)

	require.NoError(t, err)
	require.NotNil(t, result.Case)
	require.Len(t, saver.saved, 1)
	assert.Equal(t, fixedNow.UnixMilli(), saver.saved[0].ID)
	assert.Equal(t, "Mar 5, 2024 2:07 PM", saver.saved[0].Date)
	assert.Equal(t, "rash", saver.saved[0].Symptoms)
}

func TestQueryController_HistoryFailureDoesNotFailQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackendClient(ctrl)
	backend.EXPECT().MedicalQuery(gomock.Any(), gomock.Any()).Return("ok", nil)
	saver := &recordingSaver{err: &domain.StorageError{Op: "write", Key: "k", Err: errors.New("full")}}

	c := newQueryController(backend, saver)
	result, err := c.Submit(context.Background(),
		domain.QueryRequest{QueryType: domain.QueryRecovery, Symptoms: "sprain"}, true)

	require.NoError(t, err)
	assert.Nil(t, result.Case)
	var storageErr *domain.StorageError
	assert.ErrorAs(t, result.HistoryErr, &storageErr)
}

func TestQueryController_NewerSubmissionSupersedesOlder(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackendClient(ctrl)

	started := make(chan struct{})
	backend.EXPECT().Query(gomock.Any(), "first").DoAndReturn(
		func(ctx context.Context, _ string) (string, error) {
			close(started)
			<-ctx.Done()
			return "", &domain.NetworkError{Endpoint: "/api/query", Err: ctx.Err()}
		})
	backend.EXPECT().Query(gomock.Any(), "second").Return("second answer", nil)

	c := newQueryController(backend, &recordingSaver{})

	var accepted []*services.QueryResult
	c.OnResult(func(r *services.QueryResult) { accepted = append(accepted, r) })

	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), domain.QueryRequest{GeneralQuery: "first"}, false)
		firstErr <- err
	}()
	<-started

	second, err := c.Submit(context.Background(), domain.QueryRequest{GeneralQuery: "second"}, false)
	require.NoError(t, err)
	assert.Equal(t, "second answer", second.Answer)
	assert.Equal(t, uint64(2), second.Sequence)

	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, domain.ErrStaleResponse)
	case <-time.After(2 * time.Second):
		t.Fatal("first submission was not cancelled")
	}

	require.Len(t, accepted, 1)
	assert.Equal(t, uint64(2), accepted[0].Sequence)
}

func TestQueryController_ConcurrentSubmissionsKeepNewest(t *testing.T) {
	const n = 8

	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackendClient(ctrl)

	var entered sync.WaitGroup
	entered.Add(n)
	release := make(chan struct{})
	backend.EXPECT().Query(gomock.Any(), gomock.Any()).Times(n).DoAndReturn(
		func(ctx context.Context, q string) (string, error) {
			entered.Done()
			select {
			case <-ctx.Done():
				return "", &domain.NetworkError{Endpoint: "/api/query", Err: ctx.Err()}
			case <-release:
				return "answer " + q, nil
			}
		})

	c := newQueryController(backend, &recordingSaver{})

	type outcome struct {
		result *services.QueryResult
		err    error
	}
	outcomes := make(chan outcome, n)
	for i := 0; i < n; i++ {
		go func() {
			r, err := c.Submit(context.Background(), domain.QueryRequest{GeneralQuery: "q"}, false)
			outcomes <- outcome{r, err}
		}()
	}
	entered.Wait()
	close(release)

	var winners []*services.QueryResult
	for i := 0; i < n; i++ {
		o := <-outcomes
		if o.err != nil {
			assert.ErrorIs(t, o.err, domain.ErrStaleResponse)
			continue
		}
		winners = append(winners, o.result)
	}
	require.Len(t, winners, 1)
	assert.Equal(t, uint64(n), winners[0].Sequence)
}

func TestQueryController_TimeoutIsDistinct(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackendClient(ctrl)
	backend.EXPECT().MedicalQuery(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ domain.QueryRequest) (string, error) {
			<-ctx.Done()
			return "", &domain.NetworkError{Endpoint: "/api/medical-query", Err: ctx.Err()}
		})

	c := newQueryController(backend, &recordingSaver{}, services.WithQueryTimeout(20*time.Millisecond))
	_, err := c.Submit(context.Background(),
		domain.QueryRequest{QueryType: domain.QueryDisease, Symptoms: "x"}, false)

	var timeoutErr *domain.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "/api/medical-query", timeoutErr.Endpoint)
	assert.Equal(t, 20*time.Millisecond, timeoutErr.After)
}

func TestQueryController_NetworkErrorPassesThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackendClient(ctrl)
	backend.EXPECT().Query(gomock.Any(), gomock.Any()).
		Return("", &domain.NetworkError{Endpoint: "/api/query", StatusCode: 500})

	c := newQueryController(backend, &recordingSaver{})
	_, err := c.Submit(context.Background(), domain.QueryRequest{GeneralQuery: "q"}, false)

	var networkErr *domain.NetworkError
	require.ErrorAs(t, err, &networkErr)
	assert.Equal(t, 500, networkErr.StatusCode)
}
