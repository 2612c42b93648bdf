package export

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/llmsentinel/pkg/config"
)

func TestResolvePrefix(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		baseName string
		want     string
	}{
		{
			name:     "default prefix",
			prefix:   "",
			baseName: "exports",
			want:     "llmsentinel/exports/exports",
		},
		{
			name:     "custom prefix",
			prefix:   "team/evals",
			baseName: "2025-03-01",
			want:     "team/evals/2025-03-01",
		},
		{
			name:     "trailing slash stripped",
			prefix:   "my-prefix/",
			baseName: "run123",
			want:     "my-prefix/run123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &s3Uploader{
				cfg: &config.S3UploadConfig{Prefix: tt.prefix},
			}
			assert.Equal(t, tt.want, u.resolvePrefix(tt.baseName))
		})
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		path       string
		wantPrefix string
	}{
		{path: "out/avg_scores_by_model.svg", wantPrefix: "image/svg+xml"},
		{path: "out/summary.json", wantPrefix: "application/json"},
		{path: "out/README", wantPrefix: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Contains(t, detectContentType(tt.path), tt.wantPrefix)
		})
	}
}

// fakeS3 records the objects put through a path-style endpoint.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	status  int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	if f.status != 0 {
		w.WriteHeader(f.status)

		return
	}

	f.mu.Lock()
	f.objects[r.URL.Path] = string(body)
	f.mu.Unlock()

	w.Header().Set("ETag", `"etag"`)
	w.WriteHeader(http.StatusOK)
}

func newTestUploader(t *testing.T, fake *fakeS3) Uploader {
	t.Helper()

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)

	return NewS3Uploader(log, &config.S3UploadConfig{
		Enabled:         true,
		EndpointURL:     srv.URL,
		Bucket:          "evals",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		ForcePathStyle:  true,
		Prefix:          "nightly",
	})
}

func TestS3Uploader_Upload(t *testing.T) {
	fake := &fakeS3{objects: make(map[string]string)}
	u := newTestUploader(t, fake)

	dir := filepath.Join(t.TempDir(), "run-1")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.svg"), []byte("<svg/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("id\n1\n"), 0o644))

	keys, err := u.Upload(context.Background(), dir)
	require.NoError(t, err)

	sort.Strings(keys)
	assert.Equal(t, []string{"nightly/run-1/a.svg", "nightly/run-1/b.csv"}, keys)

	fake.mu.Lock()
	defer fake.mu.Unlock()

	require.Len(t, fake.objects, 2)
	assert.Equal(t, "<svg/>", fake.objects["/evals/nightly/run-1/a.svg"])
	assert.True(t, strings.Contains(fake.objects["/evals/nightly/run-1/b.csv"], "id\n1\n"))
}

func TestS3Uploader_Preflight(t *testing.T) {
	fake := &fakeS3{objects: make(map[string]string)}
	u := newTestUploader(t, fake)

	require.NoError(t, u.Preflight(context.Background()))

	fake.mu.Lock()
	defer fake.mu.Unlock()

	require.Contains(t, fake.objects, "/evals/nightly/.llmsentinel-write-test")
}

func TestS3Uploader_UploadFailure(t *testing.T) {
	fake := &fakeS3{objects: make(map[string]string), status: http.StatusForbidden}
	u := newTestUploader(t, fake)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.svg"), []byte("<svg/>"), 0o644))

	_, err := u.Upload(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uploading a.svg")
}

func TestS3Uploader_MissingDirectory(t *testing.T) {
	u := newTestUploader(t, &fakeS3{objects: make(map[string]string)})

	_, err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
