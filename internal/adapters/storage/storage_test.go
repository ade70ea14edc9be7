package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/medboard/test/helpers"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = input
	b, _ := io.ReadAll(input.Body)
	f.body = string(b)
	return &manager.UploadOutput{Location: "https://bucket.s3/" + aws.ToString(input.Key)}, nil
}

func TestArchiveKey(t *testing.T) {
	at := time.Date(2024, 3, 5, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))

	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{name: "plain", filename: "guide.pdf", want: "documents/2024/03/06/job-1/guide.pdf"},
		{name: "spaces", filename: "ward notes.pdf", want: "documents/2024/03/06/job-1/ward_notes.pdf"},
		{name: "traversal", filename: "../../etc/passwd.pdf", want: "documents/2024/03/06/job-1/passwd.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ArchiveKey("job-1", tt.filename, at))
		})
	}
}

func TestS3Archive_Upload(t *testing.T) {
	up := &fakeUploader{}
	archive := &S3Archive{
		uploader: up,
		bucket:   "medboard-docs",
		now:      func() time.Time { return time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC) },
		logger:   helpers.TestLogger(),
	}

	loc, err := archive.Upload(context.Background(), "documents/a/guide.pdf", strings.NewReader("%PDF"), "")

	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3/documents/a/guide.pdf", loc)
	assert.Equal(t, "medboard-docs", aws.ToString(up.input.Bucket))
	assert.Equal(t, "application/pdf", aws.ToString(up.input.ContentType))
	assert.Equal(t, "2024-03-05T14:07:00Z", up.input.Metadata["archived-at"])
	assert.Equal(t, "%PDF", up.body)
}

func TestS3Archive_UploadError(t *testing.T) {
	archive := &S3Archive{
		uploader: &fakeUploader{err: errors.New("access denied")},
		now:      time.Now,
		logger:   helpers.TestLogger(),
	}

	_, err := archive.Upload(context.Background(), "k.pdf", strings.NewReader(""), "application/pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestLocalArchive_Upload(t *testing.T) {
	base := t.TempDir()
	archive := NewLocalArchive(base, helpers.TestLogger())

	loc, err := archive.Upload(context.Background(), "documents/2024/03/05/job-1/guide.pdf", strings.NewReader("%PDF-1.4"), "application/pdf")

	require.NoError(t, err)
	dest := filepath.Join(base, "documents", "2024", "03", "05", "job-1", "guide.pdf")
	assert.Equal(t, "file://"+filepath.ToSlash(dest), loc)
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(b))
}

func TestLocalArchive_RejectsEscape(t *testing.T) {
	archive := NewLocalArchive(t.TempDir(), helpers.TestLogger())

	_, err := archive.Upload(context.Background(), "../outside.pdf", strings.NewReader("x"), "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes base path")
}
