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
	"github.com/ammerola/medboard/internal/core/services"
	"github.com/ammerola/medboard/test/helpers"
	"github.com/ammerola/medboard/test/mocks"
)

var testKeys = services.Keys{Prefix: "medboard"}

// backedKV wires a mock KV store to an in-memory map.
func backedKV(ctrl *gomock.Controller) (*mocks.MockKVStore, map[string][]byte) {
	var mu sync.Mutex
	data := make(map[string][]byte)
	kv := mocks.NewMockKVStore(ctrl)

	kv.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, key string) ([]byte, error) {
			mu.Lock()
			defer mu.Unlock()
			v, ok := data[key]
			if !ok {
				return nil, domain.ErrKeyNotFound
			}
			return v, nil
		}).AnyTimes()
	kv.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, key string, value []byte, _ time.Duration) error {
			mu.Lock()
			defer mu.Unlock()
			data[key] = append([]byte(nil), value...)
			return nil
		}).AnyTimes()
	kv.EXPECT().Delete(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, key string) error {
			mu.Lock()
			defer mu.Unlock()
			delete(data, key)
			return nil
		}).AnyTimes()

	return kv, data
}

func testCase(id int64, qt domain.QueryType) domain.PatientCase {
	return domain.PatientCase{
		ID:        id,
		Date:      "Mar 5, 2024 2:07 PM",
		QueryType: qt,
		Symptoms:  "fever",
	}
}

func TestCaseStore_SaveThenList(t *testing.T) {
	ctrl := gomock.NewController(t)
	kv, data := backedKV(ctrl)
	store := services.NewCaseStore(kv, testKeys, helpers.TestLogger())
	ctx := context.Background()

	empty, err := store.List(ctx, "client-a")
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)

	require.NoError(t, store.Save(ctx, "client-a", testCase(1, domain.QueryDisease)))
	require.NoError(t, store.Save(ctx, "client-a", testCase(2, domain.QueryRecovery)))

	got, err := store.List(ctx, "client-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, testCase(1, domain.QueryDisease), got[0])
	assert.Equal(t, testCase(2, domain.QueryRecovery), got[1])

	assert.Contains(t, data, "medboard:cases:client-a")

	other, err := store.List(ctx, "client-b")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCaseStore_Delete(t *testing.T) {
	ctrl := gomock.NewController(t)
	kv, _ := backedKV(ctrl)
	store := services.NewCaseStore(kv, testKeys, helpers.TestLogger())
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, store.Save(ctx, "c", testCase(id, domain.QueryGeneral)))
	}

	require.NoError(t, store.Delete(ctx, "c", 2))
	got, err := store.List(ctx, "c")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)

	err = store.Delete(ctx, "c", 42)
	assert.ErrorIs(t, err, domain.ErrCaseNotFound)
}

func TestCaseStore_ConcurrentSavesAreSerialized(t *testing.T) {
	ctrl := gomock.NewController(t)
	kv, _ := backedKV(ctrl)
	store := services.NewCaseStore(kv, testKeys, helpers.TestLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			assert.NoError(t, store.Save(ctx, "c", testCase(id, domain.QueryGeneral)))
		}(int64(i))
	}
	wg.Wait()

	got, err := store.List(ctx, "c")
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

func TestCaseStore_StorageErrors(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name       string
		setupMocks func(kv *mocks.MockKVStore)
		run        func(s *services.CaseStore) error
		wantOp     string
	}{
		{
			name: "read_failure_on_list",
			setupMocks: func(kv *mocks.MockKVStore) {
				kv.EXPECT().Get(gomock.Any(), "medboard:cases:c").Return(nil, boom)
			},
			run: func(s *services.CaseStore) error {
				_, err := s.List(context.Background(), "c")
				return err
			},
			wantOp: "read",
		},
		{
			name: "corrupt_journal",
			setupMocks: func(kv *mocks.MockKVStore) {
				kv.EXPECT().Get(gomock.Any(), "medboard:cases:c").Return([]byte("{not json"), nil)
			},
			run: func(s *services.CaseStore) error {
				_, err := s.List(context.Background(), "c")
				return err
			},
			wantOp: "decode",
		},
		{
			name: "write_failure_on_save",
			setupMocks: func(kv *mocks.MockKVStore) {
				kv.EXPECT().Get(gomock.Any(), "medboard:cases:c").Return(nil, domain.ErrKeyNotFound)
				kv.EXPECT().Set(gomock.Any(), "medboard:cases:c", gomock.Any(), time.Duration(0)).Return(boom)
			},
			run: func(s *services.CaseStore) error {
				return s.Save(context.Background(), "c", testCase(1, domain.QueryGeneral))
			},
			wantOp: "write",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			kv := mocks.NewMockKVStore(ctrl)
			tt.setupMocks(kv)

			err := tt.run(services.NewCaseStore(kv, testKeys, helpers.TestLogger()))

			var storageErr *domain.StorageError
			require.ErrorAs(t, err, &storageErr)
			assert.Equal(t, tt.wantOp, storageErr.Op)
			assert.Equal(t, "medboard:cases:c", storageErr.Key)
		})
	}
}

func TestPreferenceStore_DarkMode(t *testing.T) {
	ctrl := gomock.NewController(t)
	kv, data := backedKV(ctrl)
	prefs := services.NewPreferenceStore(kv, testKeys, helpers.TestLogger())
	ctx := context.Background()

	enabled, err := prefs.DarkMode(ctx, "c")
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, prefs.SetDarkMode(ctx, "c", true))
	assert.Equal(t, []byte("true"), data["medboard:prefs:c:dark_mode"])

	enabled, err = prefs.DarkMode(ctx, "c")
	require.NoError(t, err)
	assert.True(t, enabled)

	data["medboard:prefs:c:dark_mode"] = []byte("maybe")
	enabled, err = prefs.DarkMode(ctx, "c")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestJobStore_Lifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	kv, _ := backedKV(ctrl)
	jobs := services.NewJobStore(kv, testKeys, time.Hour, helpers.TestLogger())
	ctx := context.Background()

	job, err := jobs.Create(ctx, "job-1", "guide.pdf", 1024)
	require.NoError(t, err)
	assert.Equal(t, domain.JobQueued, job.Status)

	updated, err := jobs.Update(ctx, "job-1", func(j *domain.IngestJob) {
		j.Status = domain.JobCompleted
		j.Pages = 3
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, updated.Status)

	got, err := jobs.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Pages)
	assert.Equal(t, "guide.pdf", got.Filename)

	_, err = jobs.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "medboard:cases:abc", testKeys.Cases("abc"))
	assert.Equal(t, "medboard:prefs:abc:dark_mode", testKeys.DarkMode("abc"))
	assert.Equal(t, "medboard:jobs:j1", testKeys.Job("j1"))
	assert.Equal(t, "cases:abc", services.Keys{}.Cases("abc"))
}
