package utility

import (
	"context"
	"testing"

	"bvrag/internal/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUtilityStore struct {
	byChunk map[uint]float64
}

func (f *fakeUtilityStore) GetUtilities(ctx context.Context, chunkIDs []uint, category Category) (map[uint]float64, error) {
	out := make(map[uint]float64, len(chunkIDs))
	for _, id := range chunkIDs {
		if v, ok := f.byChunk[id]; ok {
			out[id] = v
		} else {
			out[id] = defaultUtility
		}
	}
	return out, nil
}

func (f *fakeUtilityStore) ApplyReward(ctx context.Context, chunkID uint, category Category, reward float64) error {
	return nil
}

func TestRerank_BlendsNormalisedFusionScoreWithUtility(t *testing.T) {
	store := &fakeUtilityStore{byChunk: map[uint]float64{1: 1.0, 2: 0.0}}
	r := NewReranker(store, 0.3)

	candidates := []retrieval.Candidate{
		{ChunkID: 1, FusedScore: 0.05}, // normalised to 0.5
		{ChunkID: 2, FusedScore: 0.05},
	}
	out, err := r.Rerank(context.Background(), candidates, string(CategoryGeneral))
	require.NoError(t, err)

	var score1, score2 float64
	for _, c := range out {
		if c.ChunkID == 1 {
			score1 = c.CombinedScore
		}
		if c.ChunkID == 2 {
			score2 = c.CombinedScore
		}
	}
	assert.InDelta(t, 0.7*0.5+0.3*1.0, score1, 1e-9)
	assert.InDelta(t, 0.7*0.5+0.3*0.0, score2, 1e-9)
	assert.Greater(t, score1, score2)
}

func TestRerank_ClipsFusedScoreAboveCeiling(t *testing.T) {
	store := &fakeUtilityStore{byChunk: map[uint]float64{1: 0.0}}
	r := NewReranker(store, 0.0)

	candidates := []retrieval.Candidate{{ChunkID: 1, FusedScore: 10.0}}
	out, err := r.Rerank(context.Background(), candidates, string(CategoryGeneral))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out[0].CombinedScore, 1e-9)
}

func TestRerank_ReordersByCombinedScoreDescending(t *testing.T) {
	store := &fakeUtilityStore{byChunk: map[uint]float64{1: 0.1, 2: 0.9}}
	r := NewReranker(store, 0.5)

	candidates := []retrieval.Candidate{
		{ChunkID: 1, FusedScore: 0.05},
		{ChunkID: 2, FusedScore: 0.05},
	}
	out, err := r.Rerank(context.Background(), candidates, string(CategoryGeneral))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint(2), out[0].ChunkID)
	assert.Equal(t, uint(1), out[1].ChunkID)
}

func TestRerank_EmptyInputReturnsEmptyWithoutStoreCall(t *testing.T) {
	r := NewReranker(&fakeUtilityStore{}, 0.3)
	out, err := r.Rerank(context.Background(), nil, string(CategoryGeneral))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNewReranker_ClampsAlphaToValidRange(t *testing.T) {
	r := NewReranker(&fakeUtilityStore{}, 0.9)
	assert.Equal(t, 0.5, r.alpha)

	r2 := NewReranker(&fakeUtilityStore{}, -1)
	assert.Equal(t, 0.3, r2.alpha)
}
