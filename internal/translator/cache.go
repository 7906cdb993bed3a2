package translator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/valpere/bhasha/internal/chunker"
	"github.com/valpere/bhasha/internal/lang"
)

// Memory is a persistent translation memory consulted before an engine call.
type Memory interface {
	GetCachedTranslation(ctx context.Context, sourceText, sourceLang, targetLang string) (string, bool, error)
	SaveToMemory(ctx context.Context, sourceText, sourceLang, targetLang, finalText, serviceUsed string) error
}

// Validator checks that an output is written in the expected language.
type Validator interface {
	IsValid(text string, target lang.Code) (bool, error)
}

// Cache owns one Handle per direction. Handles are built lazily on first
// use, at most once per direction, and kept for the life of the process.
// Builds for different directions do not block each other.
type Cache struct {
	factory    Factory
	maxLength  int
	chunkChars int
	memory     Memory
	validator  Validator
	logger     *zap.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	handles map[lang.Direction]Handle
}

type Option func(*Cache)

func WithMaxLength(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxLength = n
		}
	}
}

// WithChunking splits inputs longer than n runes before translation.
func WithChunking(n int) Option {
	return func(c *Cache) { c.chunkChars = n }
}

func WithMemory(m Memory) Option {
	return func(c *Cache) { c.memory = m }
}

func WithValidator(v Validator) Option {
	return func(c *Cache) { c.validator = v }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

func NewCache(factory Factory, opts ...Option) *Cache {
	c := &Cache{
		factory:   factory,
		maxLength: DefaultMaxLength,
		logger:    zap.NewNop(),
		handles:   make(map[lang.Direction]Handle),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Obtain returns the handle for d, building it if needed. Identity
// directions need no handle and yield (nil, nil).
func (c *Cache) Obtain(ctx context.Context, d lang.Direction) (Handle, error) {
	if d.Identity() {
		return nil, nil
	}
	model, err := lang.ModelFor(d)
	if err != nil {
		return nil, err
	}

	if h, ok := c.lookup(d); ok {
		return h, nil
	}

	// Handles live for the whole process: the build never sees the
	// caller's cancellation, while each caller stops waiting on its own.
	buildCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(d.String(), func() (interface{}, error) {
		// A build that finished between lookup and Do already stored it.
		if h, ok := c.lookup(d); ok {
			return h, nil
		}

		start := time.Now()
		h, err := c.factory(buildCtx, d, model)
		if err != nil {
			c.logger.Warn("translator load failed",
				zap.String("direction", d.String()),
				zap.String("model", model),
				zap.Error(err))
			return nil, fmt.Errorf("load %s: %w", model, err)
		}

		c.mu.Lock()
		c.handles[d] = h
		c.mu.Unlock()

		c.logger.Info("translator loaded",
			zap.String("direction", d.String()),
			zap.String("model", model),
			zap.String("engine", h.Name()),
			zap.Duration("took", time.Since(start)))
		return h, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Handle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) lookup(d lang.Direction) (Handle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handles[d]
	return h, ok
}

// Len reports how many handles have been built.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handles)
}

// Translate converts text from source to target. Empty text and identity
// directions are returned unchanged without touching any engine.
func (c *Cache) Translate(ctx context.Context, text string, source, target lang.Code) (string, error) {
	d := lang.Direction{Source: source, Target: target}
	if text == "" || d.Identity() {
		return text, nil
	}

	h, err := c.Obtain(ctx, d)
	if err != nil {
		if errors.Is(err, lang.ErrUnsupportedDirection) {
			return "", err
		}
		return "", &TranslationError{Direction: d, Err: err}
	}

	if c.memory != nil {
		cached, found, err := c.memory.GetCachedTranslation(ctx, text, string(source), string(target))
		if err != nil {
			c.logger.Warn("translation memory lookup failed", zap.Error(err))
		} else if found {
			return cached, nil
		}
	}

	out, err := c.run(ctx, h, d, text)
	if err != nil {
		return "", &TranslationError{Direction: d, Err: err}
	}
	if out == "" {
		return "", &TranslationError{Direction: d, Err: ErrEmptyTranslation}
	}

	if c.validator != nil {
		if ok, err := c.validator.IsValid(out, target); !ok {
			return "", &TranslationError{Direction: d, Err: fmt.Errorf("output language check: %w", err)}
		}
	}

	if c.memory != nil {
		if err := c.memory.SaveToMemory(ctx, text, string(source), string(target), out, h.Name()); err != nil {
			c.logger.Warn("translation memory save failed", zap.Error(err))
		}
	}

	return out, nil
}

func (c *Cache) run(ctx context.Context, h Handle, d lang.Direction, text string) (string, error) {
	chunks := chunker.Chunk(text, c.chunkChars)
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		res, err := h.Translate(ctx, TranslateRequest{
			Text:      chunk,
			Direction: d,
			MaxLength: c.maxLength,
		})
		if err != nil {
			return "", err
		}
		parts = append(parts, strings.TrimSpace(res.Text))
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

// Warm builds every configured direction concurrently.
func (c *Cache) Warm(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, d := range lang.Directions() {
		g.Go(func() error {
			_, err := c.Obtain(ctx, d)
			return err
		})
	}
	return g.Wait()
}

// Close releases handles that hold resources.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for d, h := range c.handles {
		if cl, ok := h.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", d, err))
			}
		}
	}
	return errors.Join(errs...)
}
