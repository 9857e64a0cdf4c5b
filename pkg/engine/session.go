package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/ronwebb/pixtell/pkg/hub"
	"github.com/ronwebb/pixtell/pkg/imageref"
)

// Session represents one conversation about one image. Only one hub call may
// be active at a time; the image must be set before Describe or Ask.
type Session struct {
	id        string
	captioner hub.Captioner
	answerer  hub.Answerer
	loader    *imageref.Loader

	mu     sync.Mutex
	active bool
	img    *imageref.Image
}

func newSession(id string, c hub.Captioner, a hub.Answerer, l *imageref.Loader) *Session {
	return &Session{
		id:        id,
		captioner: c,
		answerer:  a,
		loader:    l,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SetImage resolves and loads ref, making it the session's current image.
// Loading happens entirely locally (or via plain HTTP download for URLs); the
// hub is not contacted, so an unreadable reference never costs an inference
// call.
func (s *Session) SetImage(ctx context.Context, ref string) error {
	img, err := s.loader.Load(ctx, ref)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.img = &img

	return nil
}

// Image returns the current image. The bool is false when no image is set.
func (s *Session) Image() (imageref.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img == nil {
		return imageref.Image{}, false
	}

	return *s.img, true
}

// ClearImage forgets the current image.
func (s *Session) ClearImage() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.img = nil
}

// Describe generates a caption for the current image. Exactly one captioning
// call is made per invocation on the happy path.
func (s *Session) Describe(ctx context.Context) (string, error) {
	img, err := s.acquire()
	if err != nil {
		return "", err
	}
	defer s.release()

	return s.captioner.Caption(ctx, img)
}

// Ask answers a free-form question about the current image.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	img, err := s.acquire()
	if err != nil {
		return "", err
	}
	defer s.release()

	return s.answerer.Answer(ctx, img, question)
}

// acquire marks the session busy and returns the current image.
func (s *Session) acquire() (imageref.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img == nil {
		return imageref.Image{}, fmt.Errorf("engine: session %s: no image set", s.id)
	}

	if s.active {
		return imageref.Image{}, fmt.Errorf("engine: session %s: another call is already active", s.id)
	}
	s.active = true

	return *s.img, nil
}

func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = false
}
