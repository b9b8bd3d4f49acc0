package veo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testTokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
}

func newTestClient(t *testing.T, baseURL string, opts ...ClientOption) *HTTPClient {
	t.Helper()
	opts = append([]ClientOption{
		WithBaseURL(baseURL),
		WithTokenSource(testTokenSource()),
		WithMaxRetries(2),
		WithBaseBackoff(time.Millisecond),
	}, opts...)
	c, err := NewClient("test-project", "us-central1", "gs://test-bucket/outputs", opts...)
	require.NoError(t, err)
	return c
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("", "us-central1", "gs://bucket/out")
	assert.ErrorIs(t, err, ErrProjectIDRequired)

	_, err = NewClient("proj", "us-central1", "")
	assert.ErrorIs(t, err, ErrOutputPrefixRequired)
}

func TestStartGeneration(t *testing.T) {
	var gotPath string
	var gotBody predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(predictResponse{Name: "operations/op-42"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	name, err := c.StartGeneration(context.Background(), []byte("png-bytes"), "a quiet sunrise")
	require.NoError(t, err)
	assert.Equal(t, "operations/op-42", name)

	assert.Equal(t,
		"/projects/test-project/locations/us-central1/publishers/google/models/veo-3.0-fast-generate-001:predictLongRunning",
		gotPath)

	require.Len(t, gotBody.Instances, 1)
	assert.Equal(t, "a quiet sunrise", gotBody.Instances[0].Prompt)
	assert.Equal(t, "image/png", gotBody.Instances[0].Image.MimeType)
	assert.NotEmpty(t, gotBody.Instances[0].Image.BytesBase64Encoded)

	assert.Equal(t, "720p", gotBody.Parameters.Resolution)
	assert.False(t, gotBody.Parameters.GenerateAudio)
	assert.Equal(t, 1, gotBody.Parameters.SampleCount)
	// Each submission gets a unique directory under the prefix.
	assert.Regexp(t, `^gs://test-bucket/outputs/[0-9a-f-]+/$`, gotBody.Parameters.StorageURI)
}

func TestStartGenerationNoOperation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(predictResponse{})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.StartGeneration(context.Background(), []byte("png"), "prompt")
	assert.ErrorIs(t, err, ErrNoOperationReturned)
}

func TestFetchOperationStates(t *testing.T) {
	tests := []struct {
		name string
		resp operationResponse
		want OperationResult
	}{
		{
			name: "still running",
			resp: operationResponse{Done: false},
			want: OperationResult{Done: false},
		},
		{
			name: "failed with message",
			resp: operationResponse{Done: true, Error: &operationError{Code: 3, Message: "unsafe content"}},
			want: OperationResult{Done: true, ErrorMessage: "unsafe content"},
		},
		{
			name: "failed without message",
			resp: operationResponse{Done: true, Error: &operationError{Code: 13}},
			want: OperationResult{Done: true, ErrorMessage: "operation failed with code 13"},
		},
		{
			name: "succeeded",
			resp: operationResponse{Done: true, Response: &generationResponse{
				Videos: []generatedVideo{{GCSURI: "gs://test-bucket/outputs/x/video.mp4", MimeType: "video/mp4"}},
			}},
			want: OperationResult{Done: true, VideoURI: "gs://test-bucket/outputs/x/video.mp4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq fetchOperationRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.URL.Path, ":fetchPredictOperation")
				require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
				_ = json.NewEncoder(w).Encode(tt.resp)
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL)
			got, err := c.FetchOperation(context.Background(), "operations/op-42")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "operations/op-42", gotReq.Name)
		})
	}
}

func TestFetchOperationDoneWithoutVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(operationResponse{Done: true, Response: &generationResponse{}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchOperation(context.Background(), "operations/op-42")
	assert.ErrorIs(t, err, ErrNoVideoReturned)
}

func TestFetchOperationRequiresName(t *testing.T) {
	c := newTestClient(t, "http://unused")
	_, err := c.FetchOperation(context.Background(), "")
	assert.ErrorIs(t, err, ErrOperationNameRequired)
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "backend overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(predictResponse{Name: "operations/op-42"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	name, err := c.StartGeneration(context.Background(), []byte("png"), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "operations/op-42", name)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryExhaustionIsTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.StartGeneration(context.Background(), []byte("png"), "prompt")
	require.Error(t, err)
	// The transient marker survives the retry wrapper.
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, int32(3), calls.Load(), "maxRetries=2 means three attempts")
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid argument", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.StartGeneration(context.Background(), []byte("png"), "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.NotErrorIs(t, err, ErrTransient)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/b/test-bucket/o/outputs%2Fx%2Fvideo.mp4", r.URL.EscapedPath())
		assert.Equal(t, "media", r.URL.Query().Get("alt"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	c := newTestClient(t, "http://unused", WithStorageBaseURL(srv.URL))
	data, err := c.Download(context.Background(), "gs://test-bucket/outputs/x/video.mp4")
	require.NoError(t, err)
	assert.Equal(t, []byte("video-bytes"), data)
}

func TestDownloadErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not yet consistent", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, "http://unused", WithStorageBaseURL(srv.URL))

	_, err := c.Download(context.Background(), "gs://test-bucket/outputs/x/video.mp4")
	assert.ErrorIs(t, err, ErrTransient)

	_, err = c.Download(context.Background(), "not-a-gcs-uri")
	assert.ErrorIs(t, err, ErrInvalidGCSURI)
}

func TestSplitGCSURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{"gs://bucket/object.mp4", "bucket", "object.mp4", false},
		{"gs://bucket/deep/path/object.mp4", "bucket", "deep/path/object.mp4", false},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"https://bucket/object", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		bucket, object, err := splitGCSURI(tt.uri)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidGCSURI, tt.uri)
			continue
		}
		require.NoError(t, err, tt.uri)
		assert.Equal(t, tt.bucket, bucket)
		assert.Equal(t, tt.object, object)
	}
}
