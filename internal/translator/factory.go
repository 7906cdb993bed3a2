package translator

import (
	"context"
	"fmt"
	"sync"

	"github.com/valpere/bhasha/internal/lang"
)

// NewFactory returns a Factory for the configured backend:
// "hf" (default), "lambda" or "google".
func NewFactory(cfg ServiceConfig) (Factory, error) {
	var f Factory

	switch cfg.Backend {
	case "", "hf":
		f = func(ctx context.Context, dir lang.Direction, model string) (Handle, error) {
			return NewHFEngine(cfg.BaseURL, cfg.APIKey, model, cfg.Timeout), nil
		}
	case "lambda":
		f = func(ctx context.Context, dir lang.Direction, model string) (Handle, error) {
			return NewLambdaEngine(ctx, cfg.Region, cfg.LambdaPrefix, model, dir.Target)
		}
	case "google":
		f = func(ctx context.Context, dir lang.Direction, model string) (Handle, error) {
			return NewGoogleEngine(ctx, cfg.Credentials, cfg.ProjectID, dir)
		}
	default:
		return nil, fmt.Errorf("unknown translator backend: %s", cfg.Backend)
	}

	if cfg.Serialize {
		inner := f
		f = func(ctx context.Context, dir lang.Direction, model string) (Handle, error) {
			h, err := inner(ctx, dir, model)
			if err != nil {
				return nil, err
			}
			return Serialize(h), nil
		}
	}
	return f, nil
}

// serialized admits one Translate call at a time for engines that are not
// reentrant.
type serialized struct {
	mu sync.Mutex
	h  Handle
}

func Serialize(h Handle) Handle {
	return &serialized{h: h}
}

func (s *serialized) Name() string {
	return s.h.Name()
}

func (s *serialized) Translate(ctx context.Context, req TranslateRequest) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.Translate(ctx, req)
}

func (s *serialized) Close() error {
	if cl, ok := s.h.(interface{ Close() error }); ok {
		return cl.Close()
	}
	return nil
}
