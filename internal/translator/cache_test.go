package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/bhasha/internal/lang"
)

type mockHandle struct {
	name        string
	translateFn func(ctx context.Context, req TranslateRequest) (*Result, error)
	calls       atomic.Int32
}

func (m *mockHandle) Name() string { return m.name }

func (m *mockHandle) Translate(ctx context.Context, req TranslateRequest) (*Result, error) {
	m.calls.Add(1)
	return m.translateFn(ctx, req)
}

func echoHandle(prefix string) *mockHandle {
	return &mockHandle{
		name: "mock",
		translateFn: func(_ context.Context, req TranslateRequest) (*Result, error) {
			return &Result{Text: "  " + prefix + req.Text + "\n"}, nil
		},
	}
}

func staticFactory(h Handle, builds *atomic.Int32) Factory {
	return func(ctx context.Context, dir lang.Direction, model string) (Handle, error) {
		builds.Add(1)
		return h, nil
	}
}

func TestCache_IdentityNeverBuilds(t *testing.T) {
	var builds atomic.Int32
	c := NewCache(staticFactory(echoHandle(""), &builds))

	for _, code := range lang.Supported() {
		h, err := c.Obtain(context.Background(), lang.Direction{Source: code, Target: code})
		require.NoError(t, err)
		assert.Nil(t, h)

		out, err := c.Translate(context.Background(), "unchanged text", code, code)
		require.NoError(t, err)
		assert.Equal(t, "unchanged text", out)
	}
	assert.Equal(t, int32(0), builds.Load())
	assert.Equal(t, 0, c.Len())
}

func TestCache_EmptyText(t *testing.T) {
	var builds atomic.Int32
	c := NewCache(staticFactory(echoHandle("x"), &builds))

	out, err := c.Translate(context.Background(), "", lang.HI, lang.EN)
	require.NoError(t, err)
	assert.Equal(t, "", out)
	assert.Equal(t, int32(0), builds.Load())
}

func TestCache_UnsupportedDirection(t *testing.T) {
	var builds atomic.Int32
	c := NewCache(staticFactory(echoHandle("x"), &builds))

	for _, d := range []lang.Direction{{Source: lang.HI, Target: lang.PA}, {Source: lang.PA, Target: lang.HI}} {
		_, err := c.Obtain(context.Background(), d)
		assert.ErrorIs(t, err, lang.ErrUnsupportedDirection)

		_, err = c.Translate(context.Background(), "text", d.Source, d.Target)
		assert.ErrorIs(t, err, lang.ErrUnsupportedDirection)
		var te *TranslationError
		assert.False(t, errors.As(err, &te))
	}
	assert.Equal(t, int32(0), builds.Load())
}

func TestCache_TranslateTrimsAndPassesMaxLength(t *testing.T) {
	var gotMax atomic.Int32
	h := &mockHandle{
		name: "mock",
		translateFn: func(_ context.Context, req TranslateRequest) (*Result, error) {
			gotMax.Store(int32(req.MaxLength))
			assert.Equal(t, lang.Direction{Source: lang.HI, Target: lang.EN}, req.Direction)
			return &Result{Text: "  I have a headache \n"}, nil
		},
	}
	var builds atomic.Int32
	c := NewCache(staticFactory(h, &builds))

	out, err := c.Translate(context.Background(), "मुझे सिरदर्द है", lang.HI, lang.EN)
	require.NoError(t, err)
	assert.Equal(t, "I have a headache", out)
	assert.Equal(t, int32(DefaultMaxLength), gotMax.Load())
}

func TestCache_HandleReused(t *testing.T) {
	h := echoHandle("t:")
	var builds atomic.Int32
	c := NewCache(staticFactory(h, &builds))

	for i := 0; i < 5; i++ {
		_, err := c.Translate(context.Background(), "hello", lang.EN, lang.PA)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), builds.Load())
	assert.Equal(t, int32(5), h.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCache_ConcurrentFirstUseBuildsOnce(t *testing.T) {
	var builds atomic.Int32
	factory := func(ctx context.Context, dir lang.Direction, model string) (Handle, error) {
		builds.Add(1)
		time.Sleep(20 * time.Millisecond)
		return echoHandle(""), nil
	}
	c := NewCache(factory)

	const n = 50
	var wg sync.WaitGroup
	handles := make([]Handle, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = c.Obtain(context.Background(), lang.Direction{Source: lang.HI, Target: lang.EN})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, handles[0], handles[i])
	}
}

func TestCache_DirectionsBuildIndependently(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	factory := func(ctx context.Context, dir lang.Direction, model string) (Handle, error) {
		if dir.Source == lang.HI {
			close(started)
			<-release
		}
		return echoHandle(""), nil
	}
	c := NewCache(factory)

	done := make(chan error, 1)
	go func() {
		_, err := c.Obtain(context.Background(), lang.Direction{Source: lang.HI, Target: lang.EN})
		done <- err
	}()
	<-started

	other := make(chan error, 1)
	go func() {
		_, err := c.Obtain(context.Background(), lang.Direction{Source: lang.EN, Target: lang.HI})
		other <- err
	}()

	select {
	case err := <-other:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("building en-hi blocked on hi-en")
	}

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 2, c.Len())
}

func TestCache_FailedBuildIsRetried(t *testing.T) {
	var builds atomic.Int32
	factory := func(ctx context.Context, dir lang.Direction, model string) (Handle, error) {
		if builds.Add(1) == 1 {
			return nil, fmt.Errorf("model download failed")
		}
		return echoHandle("ok:"), nil
	}
	c := NewCache(factory)

	_, err := c.Translate(context.Background(), "hello", lang.EN, lang.HI)
	require.Error(t, err)
	var te *TranslationError
	require.True(t, errors.As(err, &te))
	assert.Contains(t, err.Error(), "model download failed")
	assert.Equal(t, 0, c.Len())

	out, err := c.Translate(context.Background(), "hello", lang.EN, lang.HI)
	require.NoError(t, err)
	assert.Equal(t, "ok:hello", out)
	assert.Equal(t, int32(2), builds.Load())
}

func TestCache_EngineErrorWrapped(t *testing.T) {
	h := &mockHandle{
		name: "mock",
		translateFn: func(context.Context, TranslateRequest) (*Result, error) {
			return nil, fmt.Errorf("engine exploded")
		},
	}
	var builds atomic.Int32
	c := NewCache(staticFactory(h, &builds))

	_, err := c.Translate(context.Background(), "hello", lang.EN, lang.PA)
	var te *TranslationError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, lang.Direction{Source: lang.EN, Target: lang.PA}, te.Direction)
	assert.EqualError(t, err, "translation en-pa failed: engine exploded")
}

func TestCache_Chunking(t *testing.T) {
	h := echoHandle("")
	var builds atomic.Int32
	c := NewCache(staticFactory(h, &builds), WithChunking(30))

	text := "First sentence is here. Second sentence is here. Third one."
	out, err := c.Translate(context.Background(), text, lang.EN, lang.HI)
	require.NoError(t, err)
	assert.Greater(t, h.calls.Load(), int32(1))
	for _, w := range strings.Fields(text) {
		assert.Contains(t, out, strings.Trim(w, "."))
	}
}

type fakeMemory struct {
	mu    sync.Mutex
	data  map[string]string
	saves int
}

func (m *fakeMemory) key(text, src, tgt string) string { return src + "|" + tgt + "|" + text }

func (m *fakeMemory) GetCachedTranslation(_ context.Context, text, src, tgt string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[m.key(text, src, tgt)]
	return v, ok, nil
}

func (m *fakeMemory) SaveToMemory(_ context.Context, text, src, tgt, final, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[m.key(text, src, tgt)] = final
	m.saves++
	return nil
}

func TestCache_Memory(t *testing.T) {
	h := echoHandle("t:")
	mem := &fakeMemory{data: map[string]string{}}
	var builds atomic.Int32
	c := NewCache(staticFactory(h, &builds), WithMemory(mem))

	first, err := c.Translate(context.Background(), "hello", lang.EN, lang.HI)
	require.NoError(t, err)
	second, err := c.Translate(context.Background(), "hello", lang.EN, lang.HI)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), h.calls.Load())
	assert.Equal(t, 1, mem.saves)
}

type rejectAll struct{}

func (rejectAll) IsValid(text string, target lang.Code) (bool, error) {
	return false, fmt.Errorf("expected %s but detected en", target)
}

func TestCache_ValidatorRejects(t *testing.T) {
	var builds atomic.Int32
	c := NewCache(staticFactory(echoHandle(""), &builds), WithValidator(rejectAll{}))

	_, err := c.Translate(context.Background(), "hello", lang.EN, lang.HI)
	var te *TranslationError
	require.True(t, errors.As(err, &te))
	assert.Contains(t, err.Error(), "expected hi but detected en")
}

func TestCache_Warm(t *testing.T) {
	var builds atomic.Int32
	c := NewCache(staticFactory(echoHandle(""), &builds))

	require.NoError(t, c.Warm(context.Background()))
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, int32(4), builds.Load())

	require.NoError(t, c.Warm(context.Background()))
	assert.Equal(t, int32(4), builds.Load())
}

func TestSerialize(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	inner := &mockHandle{
		name: "slow",
		translateFn: func(_ context.Context, req TranslateRequest) (*Result, error) {
			n := inFlight.Add(1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return &Result{Text: req.Text}, nil
		},
	}
	h := Serialize(inner)
	assert.Equal(t, "slow", h.Name())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Translate(context.Background(), TranslateRequest{Text: "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestNewFactory(t *testing.T) {
	f, err := NewFactory(ServiceConfig{})
	require.NoError(t, err)
	h, err := f(context.Background(), lang.Direction{Source: lang.HI, Target: lang.EN}, "Helsinki-NLP/opus-mt-hi-en")
	require.NoError(t, err)
	assert.Equal(t, "hf:Helsinki-NLP/opus-mt-hi-en", h.Name())

	f, err = NewFactory(ServiceConfig{Backend: "hf", Serialize: true})
	require.NoError(t, err)
	h, err = f(context.Background(), lang.Direction{Source: lang.EN, Target: lang.HI}, "Helsinki-NLP/opus-mt-en-hi")
	require.NoError(t, err)
	_, ok := h.(*serialized)
	assert.True(t, ok)

	_, err = NewFactory(ServiceConfig{Backend: "babelfish"})
	assert.Error(t, err)
}

func TestCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var builds atomic.Int32
	factory := func(ctx context.Context, dir lang.Direction, model string) (Handle, error) {
		builds.Add(1)
		close(started)
		select {
		case <-release:
			return echoHandle("ok:"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c := NewCache(factory)
	d := lang.Direction{Source: lang.HI, Target: lang.EN}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Obtain(first, d)
		firstErr <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		_, err := c.Translate(context.Background(), "नमस्ते", lang.HI, lang.EN)
		second <- err
	}()
	// Let the second caller join the build in flight.
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller kept waiting for the build")
	}

	close(release)
	require.NoError(t, <-second)
	assert.Equal(t, int32(1), builds.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCache_HandleOutlivesBuildingRequest(t *testing.T) {
	factory := func(ctx context.Context, dir lang.Direction, model string) (Handle, error) {
		return &mockHandle{
			name: "ctx-bound",
			translateFn: func(_ context.Context, req TranslateRequest) (*Result, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return &Result{Text: "ok:" + req.Text}, nil
			},
		}, nil
	}
	c := NewCache(factory)

	reqCtx, cancel := context.WithCancel(context.Background())
	out, err := c.Translate(reqCtx, "hello", lang.EN, lang.HI)
	require.NoError(t, err)
	assert.Equal(t, "ok:hello", out)
	cancel()

	out, err = c.Translate(context.Background(), "again", lang.EN, lang.HI)
	require.NoError(t, err)
	assert.Equal(t, "ok:again", out)
}

func TestCache_EmptyOutputIsTranslationError(t *testing.T) {
	h := &mockHandle{
		name: "blank",
		translateFn: func(context.Context, TranslateRequest) (*Result, error) {
			return &Result{Text: "  \n"}, nil
		},
	}
	var builds atomic.Int32
	mem := &fakeMemory{data: map[string]string{}}
	c := NewCache(staticFactory(h, &builds), WithMemory(mem))

	_, err := c.Translate(context.Background(), "Drink water.", lang.EN, lang.HI)
	var te *TranslationError
	require.True(t, errors.As(err, &te))
	assert.ErrorIs(t, err, ErrEmptyTranslation)
	assert.Equal(t, 0, mem.saves)
}
