// Package caption provides a Captioner implementation for the hub's
// image-to-text task. The raw image bytes are posted to the model endpoint
// and the first generated caption is returned verbatim.
package caption

import (
	"context"
	"fmt"

	"github.com/ronwebb/pixtell/pkg/hub"
	"github.com/ronwebb/pixtell/pkg/imageref"
)

// DefaultModel is the captioning model used when the config names none.
const DefaultModel = "Salesforce/blip-image-captioning-large"

var (
	_ hub.Captioner     = (*Adapter)(nil)
	_ hub.StatsReporter = (*Adapter)(nil)
)

// Adapter implements hub.Captioner for the image-to-text inference task.
type Adapter struct {
	hub.Adapter
}

// New creates an Adapter for the given model.
// The baseURL should be "https://api-inference.huggingface.co" (no trailing slash).
func New(baseURL, token, model string) *Adapter {
	a := &Adapter{}
	a.BaseURL = baseURL
	a.Auth = hub.Auth{Key: token}
	a.Model = model

	return a
}

// apiCandidate is one generated caption in the hub response.
type apiCandidate struct {
	GeneratedText string `json:"generated_text"`
}

// Caption sends the image to the hub and returns the generated caption.
func (a *Adapter) Caption(ctx context.Context, img imageref.Image) (string, error) {
	var resp []apiCandidate
	if err := a.Infer(ctx, img.ContentType, img.Data, &resp); err != nil {
		return "", fmt.Errorf("caption: %w", err)
	}

	if len(resp) == 0 || resp[0].GeneratedText == "" {
		return "", &hub.UnexpectedResponseError{Model: a.Model, Detail: "no generated text"}
	}

	return resp[0].GeneratedText, nil
}
