package translator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valpere/bhasha/internal/lang"
)

// DefaultMaxLength bounds the length of a single translation output.
const DefaultMaxLength = 512

// ErrEmptyTranslation is returned when an engine produces nothing for
// non-empty input.
var ErrEmptyTranslation = errors.New("empty translation")

type ServiceConfig struct {
	Backend      string        `mapstructure:"backend" json:"backend"`
	BaseURL      string        `mapstructure:"base_url" json:"base_url"`
	APIKey       string        `mapstructure:"api_key" json:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxLength    int           `mapstructure:"max_length" json:"max_length"`
	ChunkChars   int           `mapstructure:"chunk_chars" json:"chunk_chars"`
	LambdaPrefix string        `mapstructure:"lambda_prefix" json:"lambda_prefix"`
	Region       string        `mapstructure:"region" json:"region"`
	Credentials  string        `mapstructure:"credentials" json:"credentials"`
	ProjectID    string        `mapstructure:"project_id" json:"project_id"`
	Validate     bool          `mapstructure:"validate" json:"validate"`
	Serialize    bool          `mapstructure:"serialize" json:"serialize"`
}

type TranslateRequest struct {
	Text      string         `json:"text"`
	Direction lang.Direction `json:"-"`
	MaxLength int            `json:"max_length"`
}

type Result struct {
	Text    string        `json:"text"`
	Engine  string        `json:"engine"`
	Latency time.Duration `json:"latency"`
}

// Handle is a loaded translation engine bound to one direction.
// Implementations must be safe for concurrent use unless wrapped by Serialize.
type Handle interface {
	Name() string
	Translate(ctx context.Context, req TranslateRequest) (*Result, error)
}

// Factory constructs the handle for a direction. It is called at most once
// per direction by a Cache.
type Factory func(ctx context.Context, dir lang.Direction, model string) (Handle, error)

// TranslationError reports a failed load or invocation of a translation engine.
type TranslationError struct {
	Direction lang.Direction
	Err       error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation %s failed: %v", e.Direction, e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}
