// Package veo is a client for the Vertex AI Veo video generation REST API.
// Generation is a long-running operation: predictLongRunning starts it,
// fetchPredictOperation polls it, and the finished video lands in a GCS
// bucket the client downloads from.
package veo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Static errors for Veo client operations.
var (
	// ErrProjectIDRequired is returned when the GCP project ID is not provided.
	ErrProjectIDRequired = errors.New("veo: project ID is required")
	// ErrOutputPrefixRequired is returned when no gs:// output prefix is provided.
	ErrOutputPrefixRequired = errors.New("veo: output URI prefix is required")
	// ErrOperationNameRequired is returned when the operation name is not provided.
	ErrOperationNameRequired = errors.New("veo: operation name is required")
	// ErrNoOperationReturned is returned when the start response has no operation name.
	ErrNoOperationReturned = errors.New("veo: start failed: no operation name returned")
	// ErrNoVideoReturned is returned when a finished operation carries no video.
	ErrNoVideoReturned = errors.New("veo: operation finished but returned no video")
	// ErrInvalidGCSURI is returned for result references that are not gs:// URIs.
	ErrInvalidGCSURI = errors.New("veo: invalid gs:// URI")
	// ErrRequestFailed is returned when a request fails with a non-retryable status.
	ErrRequestFailed = errors.New("veo: request failed")

	// ErrTransient marks transport-level failures (network errors, 5xx, 429)
	// that say nothing about the operation itself. Callers must treat these
	// as "try again later", never as a generation failure.
	ErrTransient = errors.New("veo: transient backend error")
)

// Client defines the operations the pipeline needs from Veo.
type Client interface {
	// StartGeneration submits an image and prompt, returning the operation
	// name to poll.
	StartGeneration(ctx context.Context, imagePNG []byte, prompt string) (string, error)

	// FetchOperation polls a long-running operation once.
	FetchOperation(ctx context.Context, operationName string) (OperationResult, error)

	// Download retrieves a generated video from its gs:// URI.
	Download(ctx context.Context, gcsURI string) ([]byte, error)
}

// HTTPClient is the HTTP implementation of Client.
type HTTPClient struct {
	projectID    string
	location     string
	modelID      string
	outputPrefix string
	baseURL      string
	storageURL   string
	resolution   string
	tokenSource  oauth2.TokenSource
	httpClient   *http.Client
	maxRetries   int
	baseBackoff  time.Duration
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithModelID overrides the default Veo model.
func WithModelID(id string) ClientOption {
	return func(c *HTTPClient) { c.modelID = id }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// WithBaseURL overrides the regional Vertex AI endpoint. Mainly for tests.
func WithBaseURL(u string) ClientOption {
	return func(c *HTTPClient) { c.baseURL = u }
}

// WithStorageBaseURL overrides the GCS JSON API endpoint. Mainly for tests.
func WithStorageBaseURL(u string) ClientOption {
	return func(c *HTTPClient) { c.storageURL = u }
}

// WithTokenSource sets the OAuth2 token source used for all requests.
func WithTokenSource(ts oauth2.TokenSource) ClientOption {
	return func(c *HTTPClient) { c.tokenSource = ts }
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) { c.maxRetries = n }
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.baseBackoff = d }
}

// NewClient creates a new Veo HTTP client. The output prefix must be a
// gs:// URI the service account can write to. If no token source is
// provided, Application Default Credentials are used.
func NewClient(projectID, location, outputPrefix string, opts ...ClientOption) (*HTTPClient, error) {
	if projectID == "" {
		return nil, ErrProjectIDRequired
	}
	if outputPrefix == "" {
		return nil, ErrOutputPrefixRequired
	}
	if location == "" {
		location = "us-central1"
	}

	c := &HTTPClient{
		projectID:    projectID,
		location:     location,
		modelID:      "veo-3.0-fast-generate-001",
		outputPrefix: strings.TrimSuffix(outputPrefix, "/"),
		baseURL:      fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", location),
		storageURL:   "https://storage.googleapis.com",
		resolution:   "720p",
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		maxRetries:   3,
		baseBackoff:  1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.tokenSource == nil {
		ts, err := google.DefaultTokenSource(context.Background(),
			"https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return nil, fmt.Errorf("veo: default credentials: %w", err)
		}
		c.tokenSource = ts
	}

	return c, nil
}

// modelURL builds the publisher model endpoint for the given verb.
func (c *HTTPClient) modelURL(verb string) string {
	return fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:%s",
		c.baseURL, c.projectID, c.location, c.modelID, verb)
}

// StartGeneration submits an image and prompt to predictLongRunning and
// returns the operation name. Each submission gets its own output directory
// under the configured prefix so concurrent jobs never collide.
func (c *HTTPClient) StartGeneration(ctx context.Context, imagePNG []byte, prompt string) (string, error) {
	reqBody := predictRequest{
		Instances: []predictInstance{{
			Prompt: prompt,
			Image: inlineImage{
				BytesBase64Encoded: base64.StdEncoding.EncodeToString(imagePNG),
				MimeType:           "image/png",
			},
		}},
		Parameters: predictParameters{
			Resolution:    c.resolution,
			GenerateAudio: false,
			StorageURI:    fmt.Sprintf("%s/%s/", c.outputPrefix, uuid.NewString()),
			SampleCount:   1,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("veo: marshal request: %w", err)
	}

	var resp predictResponse
	if err := c.doRequestWithRetry(ctx, c.modelURL("predictLongRunning"), body, &resp); err != nil {
		return "", err
	}
	if resp.Name == "" {
		return "", ErrNoOperationReturned
	}
	return resp.Name, nil
}

// FetchOperation polls a long-running operation once via fetchPredictOperation.
func (c *HTTPClient) FetchOperation(ctx context.Context, operationName string) (OperationResult, error) {
	if operationName == "" {
		return OperationResult{}, ErrOperationNameRequired
	}

	body, err := json.Marshal(fetchOperationRequest{Name: operationName})
	if err != nil {
		return OperationResult{}, fmt.Errorf("veo: marshal request: %w", err)
	}

	var resp operationResponse
	if err := c.doRequestWithRetry(ctx, c.modelURL("fetchPredictOperation"), body, &resp); err != nil {
		return OperationResult{}, err
	}

	result := OperationResult{Done: resp.Done}
	if !resp.Done {
		return result, nil
	}

	if resp.Error != nil {
		result.ErrorMessage = resp.Error.Message
		if result.ErrorMessage == "" {
			result.ErrorMessage = fmt.Sprintf("operation failed with code %d", resp.Error.Code)
		}
		return result, nil
	}

	if resp.Response == nil || len(resp.Response.Videos) == 0 {
		return OperationResult{}, fmt.Errorf("%w: %s", ErrNoVideoReturned, operationName)
	}
	result.VideoURI = resp.Response.Videos[0].GCSURI
	return result, nil
}

// Download retrieves an object through the GCS JSON API using the client's
// credentials.
func (c *HTTPClient) Download(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := splitGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media",
		c.storageURL, url.PathEscape(bucket), url.PathEscape(object))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("veo: create download request: %w", err)
	}
	if err := c.authorize(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download: %v", ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: download status %d: %s", ErrTransient, resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("%w: download status %d: %s", ErrRequestFailed, resp.StatusCode, msg)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read download: %v", ErrTransient, err)
	}
	return data, nil
}

// splitGCSURI splits "gs://bucket/path/to/object" into bucket and object.
func splitGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidGCSURI, uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidGCSURI, uri)
	}
	return bucket, object, nil
}

func (c *HTTPClient) authorize(req *http.Request) error {
	tok, err := c.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("%w: token: %v", ErrTransient, err)
	}
	tok.SetAuthHeader(req)
	return nil
}

// doRequestWithRetry performs a POST with exponential backoff on transient
// failures.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, url string, body []byte, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("veo: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, url, body, result)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransient) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("veo: max retries exceeded: %w", lastErr)
}

// doRequest performs a single authenticated POST.
func (c *HTTPClient) doRequest(ctx context.Context, url string, body []byte, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("veo: create request: %w", err)
	}
	if err := c.authorize(req); err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrTransient, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: status %d: %s", ErrTransient, resp.StatusCode, respBody)
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("veo: unmarshal response: %w", err)
		}
	}
	return nil
}
