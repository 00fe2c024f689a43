package archive

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nus-fire-evac/backend/config"
)

// fakeS3 只处理 PutObject，记录收到的 key 与内容
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	status  int
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	body, _ := io.ReadAll(req.Body)
	f.mu.Lock()
	f.objects[strings.TrimPrefix(req.URL.Path, "/")] = body
	f.mu.Unlock()

	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	h := http.Header{}
	h.Set("ETag", `"etag"`)
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Request:    req,
	}, nil
}

func newTestStore(t *testing.T, rt *fakeS3) *S3Store {
	t.Helper()
	store, err := NewS3Store(context.Background(), &config.ArchiveConfig{
		Bucket:          "evac-reports",
		Region:          "ap-southeast-1",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		KeyPrefix:       "incident-reports/",
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
	})
	require.NoError(t, err)
	return store
}

func TestS3Store_Put(t *testing.T) {
	rt := &fakeS3{objects: map[string][]byte{}}
	store := newTestStore(t, rt)

	key, err := store.Put(context.Background(), "inc-1.xlsx", []byte("report-bytes"), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "incident-reports/inc-1.xlsx", key)

	got, ok := rt.objects["evac-reports/incident-reports/inc-1.xlsx"]
	require.True(t, ok, "应以 path-style 写入 bucket/key")
	assert.Contains(t, string(got), "report-bytes")
}

func TestS3Store_PutError(t *testing.T) {
	rt := &fakeS3{objects: map[string][]byte{}, status: http.StatusForbidden}
	store := newTestStore(t, rt)

	_, err := store.Put(context.Background(), "inc-1.xlsx", []byte("x"), "")
	assert.Error(t, err)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), &config.ArchiveConfig{})
	assert.Error(t, err)
}
