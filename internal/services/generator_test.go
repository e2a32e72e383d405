package services

import (
	"context"
	"testing"

	"github.com/csipbllm/backend-go/internal/llm"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGuardedGenerator_RecordsPurpose(t *testing.T) {
	inner := &MockLLM{}
	inner.On("Generate", mock.Anything, "halo").Return("hai", nil).Once()
	metrics := NewMetricsService()

	g := NewGuardedGenerator(inner, nil, metrics)
	text, err := g.For(PurposeJudge).Generate(context.Background(), "halo")
	require.NoError(t, err)
	assert.Equal(t, "hai", text)

	assert.Equal(t, 1, testutil.CollectAndCount(metrics.modelDuration))
	inner.AssertExpectations(t)
}

func TestGuardedGenerator_BreakerCountsConnectivityOnly(t *testing.T) {
	inner := &MockLLM{}
	inner.On("Generate", mock.Anything, "bad").Return("", &llm.APIError{Status: 400, Body: "bad request"})
	inner.On("Generate", mock.Anything, "down").Return("", llm.ErrUnavailable)

	breaker := NewCircuitBreaker("ollama-test", CircuitBreakerOptions{
		FailureThreshold: 2,
		IsFailure:        IsConnectivityFailure,
	})
	g := NewGuardedGenerator(inner, breaker, nil)

	for i := 0; i < 3; i++ {
		_, err := g.Generate(context.Background(), "bad")
		assert.Error(t, err)
	}
	assert.Equal(t, StateClosed, breaker.GetState())

	_, _ = g.Generate(context.Background(), "down")
	_, _ = g.Generate(context.Background(), "down")
	assert.Equal(t, StateOpen, breaker.GetState())

	_, err := g.Generate(context.Background(), "down")
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestGenerateOrSentinel(t *testing.T) {
	inner := &MockLLM{}
	inner.On("Generate", mock.Anything, "ok").Return("jawaban", nil)
	inner.On("Generate", mock.Anything, "timeout").Return("", llm.ErrTimeout)
	inner.On("Generate", mock.Anything, "empty").Return("", llm.ErrEmptyResponse)
	g := NewGuardedGenerator(inner, nil, nil)

	assert.Equal(t, "jawaban", generateOrSentinel(context.Background(), g, PurposeAnswer, "ok"))
	assert.Equal(t, "[Error Ollama API] Timeout.", generateOrSentinel(context.Background(), g, PurposeAnswer, "timeout"))
	assert.Equal(t, "[Error] Model tidak mengembalikan jawaban.", generateOrSentinel(context.Background(), g, PurposeAnswer, "empty"))
}

func TestIsConnectivityFailure(t *testing.T) {
	assert.True(t, IsConnectivityFailure(llm.ErrUnavailable))
	assert.True(t, IsConnectivityFailure(llm.ErrTimeout))
	assert.False(t, IsConnectivityFailure(llm.ErrInvalidJSON))
	assert.False(t, IsConnectivityFailure(&llm.APIError{Status: 404}))
}
