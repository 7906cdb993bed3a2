// Package generator wraps the instruction-following model that answers
// normalized English questions. One Engine is built at startup and shared
// by all requests.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valpere/bhasha/internal/markdown"
	"github.com/valpere/bhasha/internal/postprocess"
)

const DefaultModel = "Qwen/Qwen2.5-0.5B-Instruct"

var ErrEmptyOutput = errors.New("model returned no text")

// Params controls a single generation. A nil Temperature leaves sampling at
// the backend default.
type Params struct {
	MaxNewTokens int
	Temperature  *float64
}

// Temperature is a helper for building Params literals.
func Temperature(t float64) *float64 {
	return &t
}

type Generator interface {
	Generate(ctx context.Context, prompt string, p Params) (string, error)
}

type ServiceConfig struct {
	Backend       string        `mapstructure:"backend" json:"backend"`
	Model         string        `mapstructure:"model" json:"model"`
	BaseURL       string        `mapstructure:"base_url" json:"base_url"`
	APIKey        string        `mapstructure:"api_key" json:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout" json:"timeout"`
	DeviceAuto    bool          `mapstructure:"device_auto" json:"device_auto"`
	StripMarkdown bool          `mapstructure:"strip_markdown" json:"strip_markdown"`
}

// GenerationError reports a failed or empty completion.
type GenerationError struct {
	Backend string
	Model   string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation with %s (%s) failed: %v", e.Model, e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type backend interface {
	name() string
	complete(ctx context.Context, prompt string, p Params) (string, error)
}

// Engine cleans raw completions from a backend.
type Engine struct {
	b             backend
	model         string
	stripMarkdown bool
}

// New builds the engine for cfg.Backend: "hf" (default), "ollama" or "openai".
func New(cfg ServiceConfig) (*Engine, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	var b backend
	switch cfg.Backend {
	case "", "hf":
		b = newHFBackend(cfg)
	case "ollama":
		b = newOllamaBackend(cfg)
	case "openai", "openrouter":
		b = newOpenAIBackend(cfg)
	default:
		return nil, fmt.Errorf("unknown generator backend: %s", cfg.Backend)
	}

	return &Engine{b: b, model: cfg.Model, stripMarkdown: cfg.StripMarkdown}, nil
}

func (e *Engine) Name() string {
	return e.b.name() + ":" + e.model
}

func (e *Engine) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	out, err := e.b.complete(ctx, prompt, p)
	if err != nil {
		return "", &GenerationError{Backend: e.b.name(), Model: e.model, Err: err}
	}

	out = postprocess.Clean(out)
	if e.stripMarkdown {
		out = markdown.ToPlainText(out)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &GenerationError{Backend: e.b.name(), Model: e.model, Err: ErrEmptyOutput}
	}
	return out, nil
}
