// Package orchestrator runs one chat turn: normalize the question to
// English, generate an answer, localize it back. Any failure in that
// pipeline triggers a single reduced fallback attempt.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valpere/bhasha/internal/generator"
	"github.com/valpere/bhasha/internal/lang"
	"github.com/valpere/bhasha/internal/prompt"
)

// ErrEmptyInput rejects a request whose text is blank after trimming.
var ErrEmptyInput = errors.New("empty text")

// Stage names where a request is in the pipeline, or where it stopped.
type Stage string

const (
	StageValidating  Stage = "validating"
	StageNormalizing Stage = "normalizing"
	StageGenerating  Stage = "generating"
	StageLocalizing  Stage = "localizing"
	StageDone        Stage = "done"
	StageFallback    Stage = "fallback"
	StageFailed      Stage = "failed"
)

// Translator is the part of translator.Cache the orchestrator needs.
type Translator interface {
	Translate(ctx context.Context, text string, source, target lang.Code) (string, error)
}

// OrchestratorConfig holds the generation budgets of both attempts.
type OrchestratorConfig struct {
	PrimaryTokens      int
	PrimaryTemperature float64
	FallbackTokens     int
	// Timeout bounds each attempt separately. Zero means no bound.
	Timeout time.Duration
}

// DefaultConfig is 256 tokens at temperature 0.4, then 200 tokens for the
// fallback.
func DefaultConfig() OrchestratorConfig {
	return OrchestratorConfig{
		PrimaryTokens:      256,
		PrimaryTemperature: 0.4,
		FallbackTokens:     200,
	}
}

// Request is the body of POST /chat. An empty Lang means English.
type Request struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// Debug exposes the English question the answer was generated from.
type Debug struct {
	NormalizedEN string `json:"normalized_en"`
}

// Reply is the outcome of a validated request. OK=false means both attempts
// failed and Error holds the fallback's cause.
type Reply struct {
	OK     bool   `json:"ok"`
	Lang   string `json:"lang,omitempty"`
	Answer string `json:"answer,omitempty"`
	Debug  *Debug `json:"debug,omitempty"`
	Warn   string `json:"warn,omitempty"`
	Error  string `json:"error,omitempty"`

	ID         string `json:"-"`
	Stage      Stage  `json:"-"`
	Normalized string `json:"-"`
}

// Orchestrator runs chat turns. It is safe for concurrent use.
type Orchestrator struct {
	translator Translator
	generator  generator.Generator
	config     OrchestratorConfig
	logger     *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithConfig(cfg OrchestratorConfig) Option {
	return func(o *Orchestrator) { o.config = cfg }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New wires a translator and a generator with DefaultConfig and a no-op logger
// unless overridden.
func New(t Translator, g generator.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		translator: t,
		generator:  g,
		config:     DefaultConfig(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// attempt is the result of one pass through the pipeline. stage is where
// it stopped: StageDone on success, otherwise the stage that failed.
type attempt struct {
	stage      Stage
	normalized string
	answer     string
	err        error
}

// Handle validates req and runs the pipeline. The returned error is set only
// for client errors (ErrUnsupportedLanguage, ErrEmptyInput); pipeline
// failures are reported inside the Reply.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Reply, error) {
	code, err := lang.Parse(req.Lang)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	id := uuid.NewString()
	log := o.logger.With(zap.String("request_id", id), zap.String("lang", string(code)))

	primary := o.run(ctx, text, code, generator.Params{
		MaxNewTokens: o.config.PrimaryTokens,
		Temperature:  generator.Temperature(o.config.PrimaryTemperature),
	})
	if primary.err == nil {
		log.Debug("answered", zap.String("stage", string(primary.stage)))
		return &Reply{
			OK:         true,
			Lang:       string(code),
			Answer:     primary.answer,
			Debug:      &Debug{NormalizedEN: primary.normalized},
			ID:         id,
			Stage:      StageDone,
			Normalized: primary.normalized,
		}, nil
	}

	log.Warn("primary attempt failed",
		zap.String("stage", string(primary.stage)),
		zap.Error(primary.err))
	reply := o.runFallback(ctx, text, code, primary, log)
	reply.ID = id
	return reply, nil
}

// runFallback starts over from the original text with a smaller token
// budget and default sampling.
func (o *Orchestrator) runFallback(ctx context.Context, text string, code lang.Code, primary attempt, log *zap.Logger) *Reply {
	fb := o.run(ctx, text, code, generator.Params{MaxNewTokens: o.config.FallbackTokens})
	if fb.err != nil {
		log.Error("fallback failed",
			zap.String("stage", string(fb.stage)),
			zap.NamedError("primary", primary.err),
			zap.Error(fb.err))
		return &Reply{
			OK:         false,
			Error:      fb.err.Error(),
			Stage:      StageFailed,
			Normalized: fb.normalized,
		}
	}

	return &Reply{
		OK:         true,
		Lang:       string(code),
		Answer:     fb.answer,
		Warn:       primary.err.Error(),
		Stage:      StageFallback,
		Normalized: fb.normalized,
	}
}

func (o *Orchestrator) run(ctx context.Context, text string, code lang.Code, p generator.Params) attempt {
	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}

	a := attempt{stage: StageNormalizing, normalized: text}
	if code != lang.Pivot {
		normalized, err := o.translator.Translate(ctx, text, code, lang.Pivot)
		if err != nil {
			a.err = err
			return a
		}
		a.normalized = normalized
	}

	a.stage = StageGenerating
	answer, err := o.generator.Generate(ctx, prompt.Build(a.normalized), p)
	if err != nil {
		a.err = err
		return a
	}

	a.stage = StageLocalizing
	if code != lang.Pivot {
		answer, err = o.translator.Translate(ctx, answer, lang.Pivot, code)
		if err != nil {
			a.err = err
			return a
		}
	}

	a.stage = StageDone
	a.answer = answer
	return a
}
