// Package hub provides the shared HTTP plumbing for Hugging Face hosted
// inference endpoints. Task-specific adapters (caption, vqa) embed Adapter to
// get auth, request building, typed transient errors, and call statistics.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ronwebb/pixtell/pkg/hub/stats"
	"github.com/ronwebb/pixtell/pkg/imageref"
)

// DefaultBaseURL is the hosted inference API endpoint.
const DefaultBaseURL = "https://api-inference.huggingface.co"

// Captioner produces a natural-language description of an image.
type Captioner interface {
	Caption(ctx context.Context, img imageref.Image) (string, error)
}

// Answerer answers a free-form question about an image.
type Answerer interface {
	Answer(ctx context.Context, img imageref.Image, question string) (string, error)
}

// StatsReporter provides call statistics from an adapter.
// Adapters that embed Adapter implement this interface automatically.
type StatsReporter interface {
	StatsTracker() *stats.Tracker
}

// RateLimitError is returned when the hub responds with HTTP 429 (Too Many
// Requests). It carries an optional RetryAfter duration parsed from the
// Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %s", e.RetryAfter, e.Body)
	}
	return fmt.Sprintf("rate limited: %s", e.Body)
}

// ModelLoadingError is returned when the hub responds with HTTP 503 because
// the model is still being loaded onto an inference worker. EstimatedTime is
// the hub's own estimate of how long the load will take, when reported.
type ModelLoadingError struct {
	Model         string
	EstimatedTime time.Duration
	Body          string
}

func (e *ModelLoadingError) Error() string {
	if e.EstimatedTime > 0 {
		return fmt.Sprintf("model %s is loading (estimated %s): %s", e.Model, e.EstimatedTime, e.Body)
	}
	return fmt.Sprintf("model %s is loading: %s", e.Model, e.Body)
}

// UnexpectedResponseError is returned when the hub answers with a 2xx status
// but the payload does not contain a usable result.
type UnexpectedResponseError struct {
	Model  string
	Detail string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("model %s returned an unexpected response: %s", e.Model, e.Detail)
}

// ParseRetryAfter parses the Retry-After header value as either seconds
// (integer) or an HTTP-date (RFC 7231). Returns zero if unparseable or if the
// date is in the past.
func ParseRetryAfter(val string) time.Duration {
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(val); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d
		}
		return 0
	}
	return 0
}

// Auth holds authentication settings for the hub API.
type Auth struct {
	Key    string // API token value (the HF_TOKEN credential).
	Header string // Header name (default: "Authorization").
	Scheme string // Scheme prefix (default: "Bearer" when Header is "Authorization").
}

// Adapter holds shared state for hub task adapters. Embed it in concrete
// adapter structs to get HTTP helpers, auth, custom headers, and call
// statistics. Concrete types define their own task method (Caption, Answer).
type Adapter struct {
	Model   string            // Hub model identifier (e.g. "Salesforce/blip-image-captioning-large").
	Auth    Auth              // Authentication settings.
	BaseURL string            // API base URL (no trailing slash).
	Client  *http.Client      // HTTP client; falls back to a default with a bounded timeout.
	Headers map[string]string // Extra headers applied to every request.
	Stats   stats.Tracker     // Call statistics tracker.

	clientOnce    sync.Once
	defaultClient *http.Client
}

// New creates an Adapter with the given settings.
// A nil client falls back to a default client at call time.
func New(baseURL string, auth Auth, client *http.Client) Adapter {
	return Adapter{
		Auth:    auth,
		BaseURL: baseURL,
		Client:  client,
	}
}

// StatsTracker returns the adapter's call statistics tracker.
func (a *Adapter) StatsTracker() *stats.Tracker { return &a.Stats }

// httpClient returns the configured client or a cached default client with a
// 2-minute timeout.
func (a *Adapter) httpClient() *http.Client {
	if a.Client != nil {
		return a.Client
	}

	a.clientOnce.Do(func() {
		a.defaultClient = &http.Client{Timeout: 2 * time.Minute}
	})

	return a.defaultClient
}

// modelPath returns the inference path for the adapter's model.
func (a *Adapter) modelPath() string {
	return "/models/" + a.Model
}

// NewRequest builds an *http.Request with the base URL, auth, and custom
// headers already applied.
func (a *Adapter) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	url := a.BaseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	// Apply auth.
	if a.Auth.Key != "" {
		header := a.Auth.Header
		if header == "" {
			header = "Authorization"
		}

		value := a.Auth.Key
		if header == "Authorization" {
			scheme := a.Auth.Scheme
			if scheme == "" {
				scheme = "Bearer"
			}

			value = scheme + " " + value
		} else if a.Auth.Scheme != "" {
			value = a.Auth.Scheme + " " + value
		}

		req.Header.Set(header, value)
	}

	// Apply custom headers.
	for k, v := range a.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// Do sends the request using the configured HTTP client.
func (a *Adapter) Do(req *http.Request) (*http.Response, error) {
	return a.httpClient().Do(req) //nolint:gosec // URL is built from trusted BaseURL config, not user input.
}

// Infer posts a raw payload to the adapter's model endpoint, checks for a 2xx
// status, records call statistics, and unmarshals the JSON response into dest.
// 429 and 503 responses are converted to their typed transient errors so
// callers can retry them.
func (a *Adapter) Infer(ctx context.Context, contentType string, payload []byte, dest any) error {
	req, err := a.NewRequest(ctx, http.MethodPost, a.modelPath(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)

	start := time.Now()

	resp, err := a.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		respBody, _ := io.ReadAll(resp.Body)
		return &RateLimitError{
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After")),
			Body:       string(respBody),
		}
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		respBody, _ := io.ReadAll(resp.Body)
		return &ModelLoadingError{
			Model:         a.Model,
			EstimatedTime: parseEstimatedTime(respBody),
			Body:          string(respBody),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	a.Stats.Add(stats.Call{Model: a.Model, Duration: time.Since(start)})

	if dest == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// InferJSON marshals payload as JSON and posts it via Infer.
func (a *Adapter) InferJSON(ctx context.Context, payload any, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	return a.Infer(ctx, "application/json", body, dest)
}

// parseEstimatedTime extracts the hub's load-time estimate from a 503 body of
// the form {"error": "...", "estimated_time": 20.0}.
func parseEstimatedTime(body []byte) time.Duration {
	var payload struct {
		EstimatedTime float64 `json:"estimated_time"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0
	}
	if payload.EstimatedTime <= 0 {
		return 0
	}
	return time.Duration(payload.EstimatedTime * float64(time.Second))
}

// IsTransient reports whether err is a hub error worth retrying.
func IsTransient(err error) bool {
	var rle *RateLimitError
	var mle *ModelLoadingError
	return errors.As(err, &rle) || errors.As(err, &mle)
}
