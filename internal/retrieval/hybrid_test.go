package retrieval

import (
	"context"
	"testing"

	"bvrag/internal/config"
	"bvrag/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVectorClient struct {
	result []Candidate
	err    error
}

func (f *fakeVectorClient) Search(ctx context.Context, queryText string, topK int, filters Filters) ([]Candidate, error) {
	return f.result, f.err
}

type fakeLexicalClient struct {
	result    []Candidate
	byRegResult []Candidate
	err       error
}

func (f *fakeLexicalClient) Search(ctx context.Context, queryText string, topK int, filters Filters) ([]Candidate, error) {
	return f.result, f.err
}

func (f *fakeLexicalClient) SearchByRegulationNumber(ctx context.Context, regulationNo string, topK int) ([]Candidate, error) {
	return f.byRegResult, f.err
}

type fakeGraphClient struct {
	crossRefs map[uint][]model.CrossReference
	regsByID  map[uint]*model.Regulation
}

func (f *fakeGraphClient) GetByID(ctx context.Context, regulationID uint) (*model.Regulation, error) {
	return f.regsByID[regulationID], nil
}
func (f *fakeGraphClient) GetParentChain(ctx context.Context, regulationID uint) ([]model.Regulation, error) {
	return nil, nil
}
func (f *fakeGraphClient) GetChildren(ctx context.Context, regulationID uint) ([]model.Regulation, error) {
	return nil, nil
}
func (f *fakeGraphClient) GetCrossReferences(ctx context.Context, regulationID uint) ([]model.CrossReference, error) {
	return f.crossRefs[regulationID], nil
}
func (f *fakeGraphClient) GetInterpretations(ctx context.Context, regulationID uint) ([]model.CrossReference, error) {
	return nil, nil
}
func (f *fakeGraphClient) GetAmendments(ctx context.Context, regulationID uint) ([]model.CrossReference, error) {
	return nil, nil
}
func (f *fakeGraphClient) GetRelatedByConcept(ctx context.Context, conceptName string) ([]model.Regulation, error) {
	return nil, nil
}

type passthroughReranker struct{}

func (passthroughReranker) Rerank(ctx context.Context, candidates []Candidate, queryCategory string) ([]Candidate, error) {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].CombinedScore = out[i].FusedScore
	}
	return out, nil
}

func newTestRetriever(vector VectorClient, lexical LexicalClient, graph GraphClient) *HybridRetriever {
	return NewHybridRetriever(vector, lexical, graph, passthroughReranker{}, config.RetrievalConfig{RRFConstant: 60})
}

func TestResolveStrategy_ExplicitOverridesAuto(t *testing.T) {
	r := newTestRetriever(&fakeVectorClient{}, &fakeLexicalClient{}, &fakeGraphClient{})
	assert.Equal(t, StrategySemantic, r.resolveStrategy(StrategySemantic, "anything"))
}

func TestResolveStrategy_ExactReferenceForcesKeyword(t *testing.T) {
	r := newTestRetriever(&fakeVectorClient{}, &fakeLexicalClient{}, &fakeGraphClient{})
	assert.Equal(t, StrategyKeyword, r.resolveStrategy(StrategyAuto, "SOLAS II-2/Reg 9"))
}

func TestResolveStrategy_DefaultsToHybrid(t *testing.T) {
	r := newTestRetriever(&fakeVectorClient{}, &fakeLexicalClient{}, &fakeGraphClient{})
	assert.Equal(t, StrategyHybrid, r.resolveStrategy(StrategyAuto, "what is stability"))
}

func TestDynamicTopK_EnlargesForComparisonQuery(t *testing.T) {
	r := newTestRetriever(&fakeVectorClient{}, &fakeLexicalClient{}, &fakeGraphClient{})
	got := r.dynamicTopK(8, "SOLAS III/31 和 SOLAS III/21 有什么区别")
	assert.Equal(t, 13, got)
}

func TestDynamicTopK_EnlargesForThreeOrMoreIdentifiers(t *testing.T) {
	r := newTestRetriever(&fakeVectorClient{}, &fakeLexicalClient{}, &fakeGraphClient{})
	got := r.dynamicTopK(8, "SOLAS III/31, SOLAS III/21 and MARPOL Annex I Regulation 1")
	assert.Equal(t, 13, got)
}

func TestDynamicTopK_CapsAtAbsoluteMax(t *testing.T) {
	r := newTestRetriever(&fakeVectorClient{}, &fakeLexicalClient{}, &fakeGraphClient{})
	got := r.dynamicTopK(14, "区别 difference")
	assert.Equal(t, absoluteTopKCap, got)
}

func TestDynamicTopK_UnchangedWithoutComparisonOrMultipleRefs(t *testing.T) {
	r := newTestRetriever(&fakeVectorClient{}, &fakeLexicalClient{}, &fakeGraphClient{})
	assert.Equal(t, 8, r.dynamicTopK(8, "what is a liferaft"))
}

func TestFuse_CombinesScoresAcrossLegsForSharedChunk(t *testing.T) {
	r := newTestRetriever(&fakeVectorClient{}, &fakeLexicalClient{}, &fakeGraphClient{})
	legResults := map[string][]Candidate{
		legVector:  {{ChunkID: 1, Score: 0.9}, {ChunkID: 2, Score: 0.5}},
		legLexical: {{ChunkID: 1, Score: 0.8}, {ChunkID: 3, Score: 0.4}},
	}
	fused := r.fuse(legResults)
	require.Len(t, fused, 3)

	var chunk1Score float64
	for _, c := range fused {
		if c.ChunkID == 1 {
			chunk1Score = c.FusedScore
		}
	}
	// chunk 1 ranked #1 in both legs: 1/(60+1) + 1/(60+1)
	assert.InDelta(t, 2.0/61.0, chunk1Score, 1e-9)
}

func TestApplyAuthorityWeights_ScalesByConfiguredWeight(t *testing.T) {
	cfg := config.RetrievalConfig{AuthorityWeights: map[string]float64{model.AuthorityConvention: 1.0, model.AuthorityGuidanceNote: 0.5}}
	r := NewHybridRetriever(&fakeVectorClient{}, &fakeLexicalClient{}, &fakeGraphClient{}, passthroughReranker{}, cfg)

	candidates := []Candidate{
		{ChunkID: 1, AuthorityLevel: model.AuthorityConvention, FusedScore: 1.0},
		{ChunkID: 2, AuthorityLevel: model.AuthorityGuidanceNote, FusedScore: 1.0},
	}
	r.applyAuthorityWeights(candidates)
	assert.Equal(t, 1.0, candidates[0].FusedScore)
	assert.Equal(t, 0.5, candidates[1].FusedScore)
}

func TestApplyAuthorityWeights_FallsBackToDefaultsWhenUnconfigured(t *testing.T) {
	r := newTestRetriever(&fakeVectorClient{}, &fakeLexicalClient{}, &fakeGraphClient{})
	candidates := []Candidate{{ChunkID: 1, AuthorityLevel: model.AuthorityIACSResolution, FusedScore: 1.0}}
	r.applyAuthorityWeights(candidates)
	assert.Equal(t, 0.85, candidates[0].FusedScore)
}

func TestRetrieve_AllLegsFailingReturnsUnavailableError(t *testing.T) {
	vector := &fakeVectorClient{err: assert.AnError}
	lexical := &fakeLexicalClient{err: assert.AnError}
	graph := &fakeGraphClient{}
	r := newTestRetriever(vector, lexical, graph)

	// An explicit identifier makes the graph leg do a lexical lookup, which fails too.
	_, err := r.Retrieve(context.Background(), RetrieveInput{EnhancedQuery: "what is stability", TopK: 8, ExplicitIdentifiers: []string{"SOLAS II-2/Reg 9"}})
	require.Error(t, err)
}

func TestRetrieve_PartialRetrievalWhenOneLegFails(t *testing.T) {
	vector := &fakeVectorClient{result: []Candidate{{ChunkID: 1, RegulationID: 10, Score: 0.9, AuthorityLevel: model.AuthorityConvention}}}
	lexical := &fakeLexicalClient{err: assert.AnError}
	graph := &fakeGraphClient{}
	r := newTestRetriever(vector, lexical, graph)

	result, err := r.Retrieve(context.Background(), RetrieveInput{EnhancedQuery: "what is stability", TopK: 8})
	require.NoError(t, err)
	assert.True(t, result.PartialRetrieval)
	assert.NotEmpty(t, result.Candidates)
}

func TestRetrieve_KeywordStrategyOnlyRunsLexicalLeg(t *testing.T) {
	vector := &fakeVectorClient{result: []Candidate{{ChunkID: 99, RegulationID: 1, Score: 1.0}}}
	lexical := &fakeLexicalClient{result: []Candidate{{ChunkID: 1, RegulationID: 10, Score: 0.9, AuthorityLevel: model.AuthorityConvention}}}
	graph := &fakeGraphClient{}
	r := newTestRetriever(vector, lexical, graph)

	result, err := r.Retrieve(context.Background(), RetrieveInput{EnhancedQuery: "SOLAS II-2/Reg 9", TopK: 8})
	require.NoError(t, err)
	for _, c := range result.Candidates {
		assert.NotEqual(t, uint(99), c.ChunkID)
	}
}
