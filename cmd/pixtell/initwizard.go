package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"

	"github.com/ronwebb/pixtell/pkg/hub/caption"
	"github.com/ronwebb/pixtell/pkg/hub/vqa"
)

type wizardConfig struct {
	Token        string //nolint:gosec // env var reference, not a secret
	CaptionModel string
	VQAModel     string
	MaxRetries   string
	BaseDelay    string
	Timeout      string
}

func runWizard() ([]byte, error) {
	cfg := wizardConfig{
		Token:        "${HF_TOKEN}",
		CaptionModel: caption.DefaultModel,
		VQAModel:     vqa.DefaultModel,
	}

	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Hub token (env var reference or literal)").Value(&cfg.Token),
		huh.NewInput().Title("Captioning model").Value(&cfg.CaptionModel),
		huh.NewInput().Title("Question answering model").Value(&cfg.VQAModel),
	)).Run(); err != nil {
		return nil, err
	}

	var configRetry bool
	if err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title("Configure retry and timeouts?").Value(&configRetry),
	)).Run(); err != nil {
		return nil, err
	}

	if configRetry {
		cfg.MaxRetries = "3"
		cfg.BaseDelay = "1s"
		cfg.Timeout = "2m"

		if err := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Max retries on 429/503").Value(&cfg.MaxRetries).Validate(validateNonNegativeInt),
			huh.NewInput().Title("Base backoff delay (e.g. 1s, 500ms)").Value(&cfg.BaseDelay).Validate(validateDuration),
			huh.NewInput().Title("HTTP timeout (e.g. 2m, 30s)").Value(&cfg.Timeout).Validate(validateDuration),
		)).Run(); err != nil {
			return nil, err
		}
	}

	return marshalWizardConfig(cfg)
}

func validateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("must be a non-negative integer")
	}

	return nil
}

func validateDuration(s string) error {
	if s == "" {
		return nil
	}

	if _, err := time.ParseDuration(s); err != nil {
		return fmt.Errorf("must be a valid duration (e.g. 1s, 500ms)")
	}

	return nil
}

// YAML output types.

type configFileYAML struct {
	Hub    hubYAML    `yaml:"hub"`
	Models modelsYAML `yaml:"models"`
	Retry  *retryYAML `yaml:"retry,omitempty"`
}

type hubYAML struct {
	Token   string `yaml:"token"` //nolint:gosec // env var reference, not a secret
	Timeout string `yaml:"timeout,omitempty"`
}

type modelsYAML struct {
	Caption string `yaml:"caption"`
	VQA     string `yaml:"vqa"`
}

type retryYAML struct {
	MaxRetries int    `yaml:"max_retries,omitempty"`
	BaseDelay  string `yaml:"base_delay,omitempty"`
}

func marshalWizardConfig(cfg wizardConfig) ([]byte, error) {
	yc := configFileYAML{
		Hub: hubYAML{
			Token:   cfg.Token,
			Timeout: cfg.Timeout,
		},
		Models: modelsYAML{
			Caption: cfg.CaptionModel,
			VQA:     cfg.VQAModel,
		},
	}

	maxRetries, _ := strconv.Atoi(cfg.MaxRetries)
	if maxRetries > 0 || cfg.BaseDelay != "" {
		yc.Retry = &retryYAML{
			MaxRetries: maxRetries,
			BaseDelay:  cfg.BaseDelay,
		}
	}

	return yaml.Marshal(yc)
}
