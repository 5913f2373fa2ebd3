package blob

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	info, err := store.Put(ctx, "submissions/connect/a.json", strings.NewReader(`{"a":1}`), PutOptions{ContentType: "application/json"})
	require.NoError(t, err)
	assert.Equal(t, "submissions/connect/a.json", info.Key)
	assert.Equal(t, int64(7), info.Size)

	_, err = store.Put(ctx, "submissions/connect/b.json", strings.NewReader(`{}`), PutOptions{})
	require.NoError(t, err)
	_, err = store.Put(ctx, "submissions/prayer/c.json", strings.NewReader(`{}`), PutOptions{})
	require.NoError(t, err)

	// Put overwrites.
	_, err = store.Put(ctx, "submissions/connect/b.json", strings.NewReader(`{"b":2}`), PutOptions{})
	require.NoError(t, err)

	_, rc, err := store.Get(ctx, "submissions/connect/b.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, `{"b":2}`, string(data))

	list, err := store.List(ctx, "submissions/connect/")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "submissions/connect/a.json", list[0].Key)
	assert.Equal(t, "submissions/connect/b.json", list[1].Key)

	_, _, err = store.Get(ctx, "submissions/missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFilesystem(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, store)

	_, err = store.Put(context.Background(), "../escape", strings.NewReader("x"), PutOptions{})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, Config{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, store.Driver())

	store, err = Open(ctx, Config{FSRoot: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, store.Driver())

	_, err = Open(ctx, Config{Driver: "gcs"})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: "s3"})
	assert.Error(t, err)
}

// fakeS3 serves the handful of S3 calls the adapter makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []*http.Request
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	header := http.Header{}

	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for k, body := range f.objects {
			if strings.HasPrefix(k, prefix) {
				b.WriteString("<Contents><Key>" + k + "</Key><Size>")
				b.WriteString(strconv.Itoa(len(body)))
				b.WriteString("</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>")
			}
		}
		b.WriteString("</ListBucketResult>")
		header.Set("Content-Type", "application/xml")
		return respond(200, header, []byte(b.String())), nil
	}

	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.objects[key] = body
		f.puts = append(f.puts, req)
		header.Set("ETag", `"etag"`)
		return respond(200, header, nil), nil
	case http.MethodHead, http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			header.Set("Content-Type", "application/xml")
			return respond(404, header, []byte(`<Error><Code>NoSuchKey</Code></Error>`)), nil
		}
		header.Set("Content-Length", strconv.Itoa(len(body)))
		header.Set("Content-Type", "application/json")
		header.Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		if req.Method == http.MethodHead {
			return respond(200, header, nil), nil
		}
		return respond(200, header, body), nil
	}
	return respond(501, header, nil), nil
}

func respond(status int, header http.Header, body []byte) *http.Response {
	return &http.Response{StatusCode: status, Header: header, Body: io.NopCloser(bytes.NewReader(body)), ContentLength: int64(len(body))}
}

func newFakeS3(t *testing.T) (*S3, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string][]byte)}
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.HTTPClient = &http.Client{Transport: fake}
		o.UsePathStyle = true
	})
	return &S3{client: client, bucket: "archive"}, fake
}

func TestS3(t *testing.T) {
	store, fake := newFakeS3(t)
	ctx := context.Background()

	info, err := store.Put(ctx, "submissions/connect/a.json", strings.NewReader(`{"a":1}`), PutOptions{ContentType: "application/json"})
	require.NoError(t, err)
	assert.Equal(t, "submissions/connect/a.json", info.Key)
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "/archive/submissions/connect/a.json", fake.puts[0].URL.Path)
	assert.Contains(t, string(fake.objects["submissions/connect/a.json"]), `{"a":1}`)

	fake.objects["submissions/connect/b.json"] = []byte(`{"b":2}`)
	got, rc, err := store.Get(ctx, "submissions/connect/b.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, `{"b":2}`, string(data))
	assert.Equal(t, "application/json", got.ContentType)

	list, err := store.List(ctx, "submissions/connect/")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "submissions/connect/a.json", list[0].Key)

	_, _, err = store.Get(ctx, "submissions/missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, DriverS3, store.Driver())
}

func TestNewS3(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{})
	assert.Error(t, err)

	store, err := NewS3(context.Background(), S3Config{
		Bucket:          "archive",
		Endpoint:        "https://minio.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, DriverS3, store.Driver())
}
