package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/valpere/bhasha/internal/lang"
	"github.com/valpere/bhasha/internal/orchestrator"
)

type stubChat struct {
	reply *orchestrator.Reply
	err   error
	got   orchestrator.Request
}

func (s *stubChat) Handle(ctx context.Context, req orchestrator.Request) (*orchestrator.Reply, error) {
	s.got = req
	return s.reply, s.err
}

func noWarm(context.Context) error { return nil }

func TestLambdaHandlerChat(t *testing.T) {
	chat := &stubChat{reply: &orchestrator.Reply{OK: true, Lang: "hi", Answer: "उत्तर"}}
	h := newLambdaHandler(chat, noWarm, zap.NewNop())

	reply, err := h(context.Background(), lambdaEvent{Text: "प्रश्न", Lang: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "उत्तर", reply.Answer)
	assert.Equal(t, orchestrator.Request{Text: "प्रश्न", Lang: "hi"}, chat.got)
}

func TestLambdaHandlerWarmup(t *testing.T) {
	chat := &stubChat{}
	warmed := false
	h := newLambdaHandler(chat, func(context.Context) error {
		warmed = true
		return nil
	}, zap.NewNop())

	reply, err := h(context.Background(), lambdaEvent{Source: "warmup"})
	require.NoError(t, err)
	assert.True(t, reply.OK)
	assert.True(t, warmed)
	assert.Empty(t, chat.got.Text, "warmup must not reach the pipeline")
}

func TestLambdaHandlerWarmupFailure(t *testing.T) {
	h := newLambdaHandler(&stubChat{}, func(context.Context) error {
		return errors.New("model unavailable")
	}, zap.NewNop())

	reply, err := h(context.Background(), lambdaEvent{Source: "warmup"})
	require.NoError(t, err)
	assert.False(t, reply.OK)
	assert.Equal(t, "model unavailable", reply.Error)
}

func TestLambdaHandlerClientErrors(t *testing.T) {
	h := newLambdaHandler(&stubChat{err: orchestrator.ErrEmptyInput}, noWarm, zap.NewNop())
	reply, err := h(context.Background(), lambdaEvent{Text: " "})
	require.NoError(t, err)
	assert.Equal(t, "Empty text", reply.Error)

	h = newLambdaHandler(&stubChat{err: &lang.UnsupportedError{Lang: "fr"}}, noWarm, zap.NewNop())
	reply, err = h(context.Background(), lambdaEvent{Text: "bonjour", Lang: "fr"})
	require.NoError(t, err)
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Error, "Unsupported lang 'fr'")
}

func TestLambdaHandlerUnexpectedError(t *testing.T) {
	h := newLambdaHandler(&stubChat{err: errors.New("boom")}, noWarm, zap.NewNop())
	_, err := h(context.Background(), lambdaEvent{Text: "q"})
	assert.EqualError(t, err, "boom")
}
