package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBruteForceIndex_Search(t *testing.T) {
	ctx := context.Background()
	index := NewBruteForceIndex()

	_, err := index.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrIndexNotBuilt)

	require.NoError(t, index.Build(ctx, [][]float32{
		{0, 1},
		{1, 0},
		{0.6, 0.8},
	}))

	matches, err := index.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 1, matches[0].Index)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, 2, matches[1].Index)
	assert.InDelta(t, 0.6, matches[1].Score, 1e-6)
}

func TestBruteForceIndex_TiesKeepOrder(t *testing.T) {
	ctx := context.Background()
	index := NewBruteForceIndex()
	require.NoError(t, index.Build(ctx, [][]float32{{1, 0}, {1, 0}, {1, 0}}))

	matches, err := index.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for i, m := range matches {
		assert.Equal(t, i, m.Index)
	}
}

func TestBruteForceIndex_ZeroK(t *testing.T) {
	ctx := context.Background()
	index := NewBruteForceIndex()
	require.NoError(t, index.Build(ctx, [][]float32{{1, 0}}))

	matches, err := index.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFallbackIndex_PrimaryBuildFails(t *testing.T) {
	ctx := context.Background()
	index := NewFallbackIndex(&stubIndex{buildErr: errBoom})

	require.NoError(t, index.Build(ctx, [][]float32{{1, 0}, {0, 1}}))
	assert.Equal(t, "bruteforce", index.Name())

	matches, err := index.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Index)
}

func TestFallbackIndex_UsesPrimary(t *testing.T) {
	ctx := context.Background()
	primary := &stubIndex{matches: []Match{{Index: 0, Score: 0.42}}}
	index := NewFallbackIndex(primary)

	require.NoError(t, index.Build(ctx, [][]float32{{1, 0}, {0, 1}}))
	assert.Equal(t, "stub", index.Name())

	matches, err := index.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, []Match{{Index: 0, Score: 0.42}}, matches)
}

func TestFallbackIndex_PrimarySearchFails(t *testing.T) {
	ctx := context.Background()
	primary := &stubIndex{}
	index := NewFallbackIndex(primary)
	require.NoError(t, index.Build(ctx, [][]float32{{1, 0}, {0, 1}}))

	primary.searchErr = errBoom
	matches, err := index.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Index)
}

func TestFallbackIndex_NilPrimary(t *testing.T) {
	ctx := context.Background()
	index := NewFallbackIndex(nil)
	assert.False(t, index.Ready())

	require.NoError(t, index.Build(ctx, nil))
	assert.True(t, index.Ready())
	assert.Same(t, index, NewFallbackIndex(index))
}
