package workers_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/medboard/internal/pkg/metrics"
	"github.com/ammerola/medboard/internal/workers"
	"github.com/ammerola/medboard/test/helpers"
	"github.com/ammerola/medboard/test/mocks"
)

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	at := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, at, at))
	return path
}

func TestCleanupProcessor_CleanupExpired(t *testing.T) {
	dir := workers.UploadDir(t.TempDir())
	require.NoError(t, os.MkdirAll(dir, 0o755))

	stale := writeAged(t, dir, "old.pdf", 48*time.Hour)
	fresh := writeAged(t, dir, "new.pdf", time.Minute)
	other := writeAged(t, dir, "notes.txt", 48*time.Hour)

	ctrl := gomock.NewController(t)
	purger := mocks.NewMockKVPurger(ctrl)
	purger.EXPECT().PurgeExpired(gomock.Any()).Return(int64(3), nil)

	m := metrics.New("test")
	processor := workers.NewCleanupProcessor(purger, dir, 24*time.Hour, m, helpers.TestLogger())

	err := processor.CleanupExpired(context.Background(), workers.NewCleanupTask())

	require.NoError(t, err)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ExpiredKeysPurged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TempFilesRemoved))
}

func TestCleanupProcessor_NoPurgerNoDir(t *testing.T) {
	processor := workers.NewCleanupProcessor(nil, filepath.Join(t.TempDir(), "missing"), time.Hour, nil, helpers.TestLogger())

	assert.NoError(t, processor.CleanupExpired(context.Background(), workers.NewCleanupTask()))
}

func TestCleanupProcessor_PurgeError(t *testing.T) {
	ctrl := gomock.NewController(t)
	purger := mocks.NewMockKVPurger(ctrl)
	purger.EXPECT().PurgeExpired(gomock.Any()).Return(int64(0), errors.New("db down"))

	processor := workers.NewCleanupProcessor(purger, t.TempDir(), time.Hour, nil, helpers.TestLogger())

	err := processor.CleanupExpired(context.Background(), workers.NewCleanupTask())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
