// Package imageref resolves user-supplied image references. A reference is
// either a local file path or an http(s) URL; Load turns it into raw image
// bytes with a sniffed content type, rejecting anything that is not an image
// before it ever reaches the inference hub.
package imageref

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
)

// ErrEmptyPath is returned when the image reference is empty.
var ErrEmptyPath = errors.New("imageref: image path is empty")

// NotFoundError is returned when a local image file does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("imageref: image file not found: %s", e.Path)
}

// UnsupportedFormatError is returned when the loaded bytes do not sniff as an
// image content type.
type UnsupportedFormatError struct {
	Source      string
	ContentType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("imageref: %s is not a supported image (detected %s)", e.Source, e.ContentType)
}

// Image is a fully loaded image ready to be sent to the hub.
type Image struct {
	Source      string // Original path or URL.
	Data        []byte // Raw image bytes.
	ContentType string // Sniffed content type (e.g. "image/png").
}

var urlPattern = regexp.MustCompile(`(?i)^https?://`)

// IsURL reports whether the reference is an http(s) URL rather than a local path.
func IsURL(ref string) bool {
	return urlPattern.MatchString(ref)
}

const (
	// DefaultMaxBytes caps how much image data Load will read.
	DefaultMaxBytes = 32 << 20 // 32 MiB

	defaultDownloadTimeout = 10 * time.Second
)

// Loader loads image references from disk or over HTTP.
// The zero value is usable; a nil Client falls back to a default client with
// a bounded download timeout.
type Loader struct {
	Client   *http.Client // HTTP client for URL references.
	MaxBytes int64        // Maximum bytes to read (0 = DefaultMaxBytes).
}

// Load resolves ref and returns the image bytes with a sniffed content type.
// Empty references, missing local files, failed downloads, and non-image
// content are all reported as errors without touching the hub.
func (l *Loader) Load(ctx context.Context, ref string) (Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Image{}, ErrEmptyPath
	}

	var (
		data []byte
		err  error
	)

	if IsURL(ref) {
		data, err = l.download(ctx, ref)
	} else {
		data, err = l.readFile(ref)
	}

	if err != nil {
		return Image{}, err
	}

	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return Image{}, &UnsupportedFormatError{Source: ref, ContentType: ct}
	}

	return Image{Source: ref, Data: data, ContentType: ct}, nil
}

func (l *Loader) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("imageref: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("imageref: %s is a directory, not an image", path)
	}
	if info.Size() > l.maxBytes() {
		return nil, fmt.Errorf("imageref: %s exceeds the %d byte limit", path, l.maxBytes())
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided input by design
	if err != nil {
		return nil, fmt.Errorf("imageref: read %s: %w", path, err)
	}

	return data, nil
}

func (l *Loader) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("imageref: build request: %w", err)
	}

	resp, err := l.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("imageref: download %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("imageref: download %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes()+1))
	if err != nil {
		return nil, fmt.Errorf("imageref: download %s: %w", url, err)
	}
	if int64(len(data)) > l.maxBytes() {
		return nil, fmt.Errorf("imageref: %s exceeds the %d byte limit", url, l.maxBytes())
	}

	return data, nil
}

func (l *Loader) maxBytes() int64 {
	if l.MaxBytes > 0 {
		return l.MaxBytes
	}
	return DefaultMaxBytes
}

func (l *Loader) httpClient() *http.Client {
	if l.Client != nil {
		return l.Client
	}
	return &http.Client{Timeout: defaultDownloadTimeout}
}
