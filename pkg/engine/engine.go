// Package engine is the composition root. It assembles the hub adapters and
// image loader from configuration and exposes sessions — one conversation
// about one image at a time — through a frontend-agnostic API.
package engine

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/ronwebb/pixtell/pkg/hub"
	"github.com/ronwebb/pixtell/pkg/hub/caption"
	"github.com/ronwebb/pixtell/pkg/hub/stats"
	"github.com/ronwebb/pixtell/pkg/hub/vqa"
	"github.com/ronwebb/pixtell/pkg/imageref"
)

// Engine assembles all components from configuration.
type Engine struct {
	cfg       Config
	captioner hub.Captioner
	answerer  hub.Answerer
	loader    *imageref.Loader

	mu       sync.Mutex
	sessions map[string]*Session
	nextID   int
}

// New creates an Engine from the given configuration. It validates the
// config, applies defaults, and builds the hub adapters wrapped with
// transient-error retry.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Hub.BaseURL == "" {
		cfg.Hub.BaseURL = hub.DefaultBaseURL
	}
	if cfg.Models.Caption == "" {
		cfg.Models.Caption = caption.DefaultModel
	}
	if cfg.Models.VQA == "" {
		cfg.Models.VQA = vqa.DefaultModel
	}

	var client *http.Client
	if timeout, _ := cfg.hubTimeout(); timeout > 0 {
		client = &http.Client{Timeout: timeout}
	}

	baseDelay, _ := cfg.retryBaseDelay()
	retryOpts := hub.RetryOpts{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  baseDelay,
	}

	captionAdapter := caption.New(cfg.Hub.BaseURL, cfg.Hub.Token, cfg.Models.Caption)
	captionAdapter.Client = client

	vqaAdapter := vqa.New(cfg.Hub.BaseURL, cfg.Hub.Token, cfg.Models.VQA)
	vqaAdapter.Client = client

	return &Engine{
		cfg:       cfg,
		captioner: hub.NewRetryingCaptioner(captionAdapter, retryOpts),
		answerer:  hub.NewRetryingAnswerer(vqaAdapter, retryOpts),
		loader:    &imageref.Loader{Client: client, MaxBytes: cfg.Image.MaxBytes},
		sessions:  make(map[string]*Session),
	}, nil
}

// Config returns the effective configuration, with defaults applied.
func (e *Engine) Config() Config { return e.cfg }

// Captioner returns the engine's captioner (retry-wrapped).
func (e *Engine) Captioner() hub.Captioner { return e.captioner }

// Answerer returns the engine's answerer (retry-wrapped).
func (e *Engine) Answerer() hub.Answerer { return e.answerer }

// CaptionStats returns the call statistics tracker for the captioning model.
func (e *Engine) CaptionStats() *stats.Tracker {
	if sr, ok := e.captioner.(hub.StatsReporter); ok {
		return sr.StatsTracker()
	}
	return nil
}

// AnswerStats returns the call statistics tracker for the VQA model.
func (e *Engine) AnswerStats() *stats.Tracker {
	if sr, ok := e.answerer.(hub.StatsReporter); ok {
		return sr.StatsTracker()
	}
	return nil
}

// NewSession creates a new session with a unique ID.
func (e *Engine) NewSession() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := fmt.Sprintf("session-%d", e.nextID)

	s := newSession(id, e.captioner, e.answerer, e.loader)
	e.sessions[id] = s

	return s
}

// RemoveSession removes the session with the given ID.
func (e *Engine) RemoveSession(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.sessions, id)
}
