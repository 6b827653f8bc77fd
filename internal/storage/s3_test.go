package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "test-bucket"

// fakeS3 is a minimal path-style S3 endpoint for a single bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	prefix := "/" + testBucket + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}
	key := strings.TrimPrefix(r.URL.Path, prefix)

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		if src := r.Header.Get("X-Amz-Copy-Source"); src != "" {
			src, _ = url.PathUnescape(src)
			srcKey := strings.TrimPrefix(src, testBucket+"/")
			data, ok := f.objects[srcKey]
			if !ok {
				writeS3Error(w, http.StatusNotFound, "NoSuchKey")
				return
			}
			f.objects[key] = bytes.Clone(data)
			f.types[key] = f.types[srcKey]
			w.Header().Set("Content-Type", "application/xml")
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><CopyObjectResult><ETag>"etag"</ETag></CopyObjectResult>`)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeS3Error(w, http.StatusInternalServerError, "InternalError")
			return
		}
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Type", f.types[key])
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		_, _ = w.Write(data)
	default:
		writeS3Error(w, http.StatusMethodNotAllowed, "MethodNotAllowed")
	}
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

func newTestS3Client(endpoint string) *s3.Client {
	return s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("test-access-key", "test-secret-key", ""),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	})
}

func setupS3(t *testing.T) (*S3Storage, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return NewS3Storage(newTestS3Client(server.URL), StaticBucket(testBucket), nil), fake
}

func TestS3Storage_PutAndGet(t *testing.T) {
	store, fake := setupS3(t)
	ctx := context.Background()

	payload := []byte("test content")
	err := store.Put(ctx, "videos/clip.mp4", bytes.NewReader(payload), int64(len(payload)), "video/mp4")
	require.NoError(t, err)

	fake.mu.Lock()
	assert.Equal(t, "test content", string(fake.objects["videos/clip.mp4"]))
	assert.Equal(t, "video/mp4", fake.types["videos/clip.mp4"])
	fake.mu.Unlock()

	obj, err := store.Get(ctx, "videos/clip.mp4")
	require.NoError(t, err)
	defer obj.Body.Close()

	got, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "test content", string(got))
	assert.Equal(t, "video/mp4", obj.ContentType)
	assert.Equal(t, int64(len(payload)), obj.Size)
}

func TestS3Storage_GetMissingKey(t *testing.T) {
	store, _ := setupS3(t)

	_, err := store.Get(context.Background(), "nope.mp4")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Storage_Copy(t *testing.T) {
	store, fake := setupS3(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "clip.mp4", strings.NewReader("abc"), 3, "video/mp4"))
	require.NoError(t, store.Copy(ctx, "clip.mp4", "backup/1700000000000-clip.mp4"))

	fake.mu.Lock()
	assert.Equal(t, "abc", string(fake.objects["backup/1700000000000-clip.mp4"]))
	fake.mu.Unlock()

	err := store.Copy(ctx, "missing.mp4", "backup/1-missing.mp4")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Storage_PresignGet(t *testing.T) {
	store, _ := setupS3(t)

	u, err := store.PresignGet(context.Background(), "clip.mp4", time.Hour)
	require.NoError(t, err)

	parsed, err := url.Parse(u)
	require.NoError(t, err)
	assert.Equal(t, "/"+testBucket+"/clip.mp4", parsed.Path)
	assert.Equal(t, "3600", parsed.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, parsed.Query().Get("X-Amz-Signature"))
}

func TestS3Storage_BucketResolutionError(t *testing.T) {
	resolveErr := errors.New("bucket parameter missing")
	store := NewS3Storage(newTestS3Client("http://127.0.0.1:1"), func(context.Context) (string, error) {
		return "", resolveErr
	}, nil)
	ctx := context.Background()

	assert.ErrorIs(t, store.Put(ctx, "k", strings.NewReader("x"), 1, ""), resolveErr)
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, resolveErr)
	assert.ErrorIs(t, store.Copy(ctx, "a", "b"), resolveErr)
	_, err = store.PresignGet(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, resolveErr)
}
