package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reframelab/reframe-api/internal/job"
	"github.com/reframelab/reframe-api/internal/ratio"
)

// fakeService scripts the JobService responses.
type fakeService struct {
	submitted  *job.Job
	submitErr  error
	view       job.StatusView
	pollErr    error
	abandonErr error
	result     []byte
	readErr    error

	gotPrompt string
}

func (f *fakeService) Submit(_ context.Context, imageBytes []byte, customPrompt string) (*job.Job, error) {
	f.gotPrompt = customPrompt
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if _, _, err := ratio.Decode(imageBytes); err != nil {
		return nil, err
	}
	return f.submitted, nil
}

func (f *fakeService) Poll(_ context.Context, _ string) (job.StatusView, error) {
	return f.view, f.pollErr
}

func (f *fakeService) Abandon(_ context.Context, _ string) (job.StatusView, error) {
	return f.view, f.abandonErr
}

func (f *fakeService) ReadResult(_ context.Context, _ string) ([]byte, error) {
	return f.result, f.readErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(svc *fakeService) http.Handler {
	return NewRouter(NewHandlers(svc, testLogger()), testLogger(), DefaultConfig())
}

func testImageBase64(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestRouter(&fakeService{}), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestResize(t *testing.T) {
	rec := doJSON(t, newTestRouter(&fakeService{}), http.MethodPost, "/resize",
		ResizeRequest{ImageBase64: testImageBase64(t, 100, 100)})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ResizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 178, resp.Width)
	assert.Equal(t, 100, resp.Height)
	assert.Equal(t, 100, resp.SourceWidth)
	assert.Equal(t, "png", resp.Format)
	assert.Equal(t, ratio.OrientationPillarbox, resp.Geometry.Orientation)
	assert.Equal(t, 39, resp.Geometry.Left)

	// The returned image decodes to the padded canvas.
	padded, err := base64.StdEncoding.DecodeString(resp.ImageBase64)
	require.NoError(t, err)
	img, _, err := ratio.Decode(padded)
	require.NoError(t, err)
	assert.Equal(t, 178, img.Bounds().Dx())
}

func TestResizeBadRequests(t *testing.T) {
	router := newTestRouter(&fakeService{})

	tests := []struct {
		name string
		body string
		code string
	}{
		{"invalid json", "{not json", "INVALID_JSON"},
		{"missing image", `{}`, "VALIDATION_ERROR"},
		{"not base64", `{"image_base64":"!!!"}`, "VALIDATION_ERROR"},
		{"not an image", `{"image_base64":"` + base64.StdEncoding.EncodeToString([]byte("plain text")) + `"}`, "INVALID_IMAGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/resize", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestCreateJob(t *testing.T) {
	svc := &fakeService{submitted: job.NewWithID("job-1")}
	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/jobs",
		CreateJobRequest{ImageBase64: testImageBase64(t, 100, 100), Prompt: "dolly zoom"})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp CreateJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.ID)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, "dolly zoom", svc.gotPrompt)
}

func TestCreateJobInvalidImage(t *testing.T) {
	svc := &fakeService{submitted: job.NewWithID("job-1")}
	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/jobs",
		CreateJobRequest{ImageBase64: base64.StdEncoding.EncodeToString([]byte("nope"))})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_IMAGE", resp.Code)
}

func TestGetJobRunning(t *testing.T) {
	svc := &fakeService{view: job.StatusView{
		ID:          "job-1",
		Status:      job.StatusRunning,
		SubmittedAt: time.Now(),
	}}
	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/jobs/job-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "RUNNING", resp.Status)
	assert.Empty(t, resp.VideoBase64)
	assert.Empty(t, resp.VideoURL)
}

func TestGetJobSucceededLocal(t *testing.T) {
	svc := &fakeService{
		view: job.StatusView{
			ID:            "job-1",
			Status:        job.StatusSucceeded,
			ResultLocator: "/data/results/job-1.mp4",
			SubmittedAt:   time.Now(),
			CompletedAt:   time.Now(),
		},
		result: []byte("video-bytes"),
	}
	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/jobs/job-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SUCCEEDED", resp.Status)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("video-bytes")), resp.VideoBase64)
	assert.Empty(t, resp.VideoURL)
}

func TestGetJobSucceededS3(t *testing.T) {
	svc := &fakeService{view: job.StatusView{
		ID:            "job-1",
		Status:        job.StatusSucceeded,
		ResultLocator: "https://bucket.s3.eu-west-1.amazonaws.com/results/job-1.mp4",
		SubmittedAt:   time.Now(),
		CompletedAt:   time.Now(),
	}}
	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/jobs/job-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://bucket.s3.eu-west-1.amazonaws.com/results/job-1.mp4", resp.VideoURL)
	assert.Empty(t, resp.VideoBase64)
}

func TestGetJobFailed(t *testing.T) {
	svc := &fakeService{view: job.StatusView{
		ID:          "job-1",
		Status:      job.StatusFailed,
		Error:       "content policy violation",
		ErrorStage:  job.StageGeneration,
		SubmittedAt: time.Now(),
		CompletedAt: time.Now(),
	}}
	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/jobs/job-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "FAILED", resp.Status)
	assert.Equal(t, "content policy violation", resp.Error)
	assert.Equal(t, "generation", resp.ErrorStage)
}

func TestGetJobNotFound(t *testing.T) {
	svc := &fakeService{pollErr: job.ErrJobNotFound}
	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/jobs/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "JOB_NOT_FOUND", resp.Code)
}

func TestAbandonJob(t *testing.T) {
	svc := &fakeService{view: job.StatusView{
		ID:          "job-1",
		Status:      job.StatusAbandoned,
		SubmittedAt: time.Now(),
		CompletedAt: time.Now(),
	}}
	rec := doJSON(t, newTestRouter(svc), http.MethodDelete, "/jobs/job-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ABANDONED", resp.Status)
}

func TestAbandonJobAlreadyTerminal(t *testing.T) {
	svc := &fakeService{abandonErr: job.ErrInvalidTransition}
	rec := doJSON(t, newTestRouter(svc), http.MethodDelete, "/jobs/job-1", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "JOB_ALREADY_TERMINAL", resp.Code)
}

func TestAbandonJobNotFound(t *testing.T) {
	svc := &fakeService{abandonErr: job.ErrJobNotFound}
	rec := doJSON(t, newTestRouter(svc), http.MethodDelete, "/jobs/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := doJSON(t, newTestRouter(&fakeService{}), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(&fakeService{})
	req := httptest.NewRequest(http.MethodOptions, "/jobs", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
