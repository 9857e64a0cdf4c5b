// Package vqa provides an Answerer implementation for the hub's
// visual-question-answering task.
package vqa

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/ronwebb/pixtell/pkg/hub"
	"github.com/ronwebb/pixtell/pkg/imageref"
)

// DefaultModel is the VQA model used when the config names none.
const DefaultModel = "Salesforce/blip-vqa-base"

var (
	_ hub.Answerer      = (*Adapter)(nil)
	_ hub.StatsReporter = (*Adapter)(nil)
)

// Adapter implements hub.Answerer for the visual-question-answering task.
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

// --- request types ---

type apiRequest struct {
	Inputs apiInputs `json:"inputs"`
}

type apiInputs struct {
	Question string `json:"question"`
	Image    string `json:"image"` // base64-encoded image bytes
}

// --- response types ---

type apiAnswer struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
}

// Answer sends the image and question to the hub and returns the
// highest-scoring answer.
func (a *Adapter) Answer(ctx context.Context, img imageref.Image, question string) (string, error) {
	req := apiRequest{
		Inputs: apiInputs{
			Question: question,
			Image:    base64.StdEncoding.EncodeToString(img.Data),
		},
	}

	var resp []apiAnswer
	if err := a.InferJSON(ctx, req, &resp); err != nil {
		return "", fmt.Errorf("vqa: %w", err)
	}

	best := ""
	bestScore := -1.0
	for _, cand := range resp {
		if cand.Answer != "" && cand.Score > bestScore {
			best = cand.Answer
			bestScore = cand.Score
		}
	}

	if best == "" {
		return "", &hub.UnexpectedResponseError{Model: a.Model, Detail: "no answer candidates"}
	}

	return best, nil
}
