package utility

import (
	"context"

	"bvrag/internal/retrieval"
)

// normalisationCeiling is the configured ceiling fusion scores are clipped at
// before blending with utility (spec.md §4.7 Open Question (b): "suggested
// 0.1 for raw RRF").
const normalisationCeiling = 0.1

// Reranker implements retrieval.Reranker (C6's rerank contract, spec.md §4.6).
type Reranker struct {
	store Store
	alpha float64
}

// NewReranker constructs C6's reranking half. alpha is the utility blend
// weight in [0, 0.5], default 0.3.
func NewReranker(store Store, alpha float64) *Reranker {
	if alpha < 0 {
		alpha = 0.3
	}
	if alpha > 0.5 {
		alpha = 0.5
	}
	return &Reranker{store: store, alpha: alpha}
}

var _ retrieval.Reranker = (*Reranker)(nil)

// Rerank reorders candidates by combined_score = (1-α)·normalised_fusion_score + α·utility,
// ties broken by original fusion rank (spec.md §4.6 rerank contract).
func (r *Reranker) Rerank(ctx context.Context, candidates []retrieval.Candidate, queryCategory string) ([]retrieval.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	chunkIDs := make([]uint, len(candidates))
	for i, c := range candidates {
		chunkIDs[i] = c.ChunkID
	}
	utilities, err := r.store.GetUtilities(ctx, chunkIDs, Category(queryCategory))
	if err != nil {
		return nil, err
	}

	out := make([]retrieval.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		normFused := out[i].FusedScore / normalisationCeiling
		if normFused > 1 {
			normFused = 1
		}
		if normFused < 0 {
			normFused = 0
		}
		u := utilities[out[i].ChunkID]
		out[i].UtilityScore = u
		out[i].CombinedScore = (1-r.alpha)*normFused + r.alpha*u
	}

	stableSortByCombinedScore(out)
	return out, nil
}

// stableSortByCombinedScore sorts descending by CombinedScore, preserving
// original order (= fusion rank) on ties.
func stableSortByCombinedScore(candidates []retrieval.Candidate) {
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].CombinedScore > candidates[j-1].CombinedScore; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
}
