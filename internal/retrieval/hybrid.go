package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bvrag/internal/apperr"
	"bvrag/internal/config"
	"bvrag/internal/model"
	"bvrag/pkg/log"

	"golang.org/x/sync/errgroup"
)

// Strategy names accepted by Retrieve (spec.md §4.7).
const (
	StrategyAuto     = "auto"
	StrategyKeyword  = "keyword"
	StrategySemantic = "semantic"
	StrategyHybrid   = "hybrid"
)

const (
	legVector  = "vector"
	legLexical = "lexical"
	legGraph   = "graph"
)

// comparisonTerms triggers the dynamic top-k enlargement alongside the
// "three or more regulations named" rule (spec.md §4.7).
var comparisonTerms = []string{"区别", "不同", "比较", "对比", "difference", "compare", "versus", " vs "}

const (
	maxTopKDelta   = 5
	absoluteTopKCap = 15
	finalExpandTop  = 5
	maxGraphExpand  = 5
	graphFusedScore = 0.01
)

// Reranker is C6, consumed here to avoid a retrieval→utility import cycle;
// the utility package implements it.
type Reranker interface {
	Rerank(ctx context.Context, candidates []Candidate, queryCategory string) ([]Candidate, error)
}

// HybridRetriever is C7.
type HybridRetriever struct {
	vector  VectorClient
	lexical LexicalClient
	graph   GraphClient
	rerank  Reranker
	cfg     config.RetrievalConfig
}

// NewHybridRetriever constructs C7, grounded on the teacher's
// internal/service/search_service.go HybridSearch (which fanned out an ES
// KNN query and an ES lexical query via goroutines+sync.WaitGroup); here
// generalised to three legs via golang.org/x/sync/errgroup, enriched from
// BaSui01-agentflow's errgroup-based fan-out pattern.
func NewHybridRetriever(vector VectorClient, lexical LexicalClient, graph GraphClient, rerank Reranker, cfg config.RetrievalConfig) *HybridRetriever {
	return &HybridRetriever{vector: vector, lexical: lexical, graph: graph, rerank: rerank, cfg: cfg}
}

// RetrieveInput bundles Retrieve's parameters beyond the query text itself.
type RetrieveInput struct {
	EnhancedQuery       string
	TopK                int
	Strategy            string
	Filters             Filters
	QueryCategory       string
	ExplicitIdentifiers []string // regulation identifiers for graph seeding (the orchestrator passes C5's regulation hints)
	Concept             string   // concept name emitted by C4, if any
}

// Retrieve implements C7's contract.
func (r *HybridRetriever) Retrieve(ctx context.Context, in RetrieveInput) (*Result, error) {
	start := time.Now()
	strategy := r.resolveStrategy(in.Strategy, in.EnhancedQuery)
	topK := r.dynamicTopK(in.TopK, in.EnhancedQuery)
	oversample := topK * 2

	legResults, legLatencies, allFailed := r.fanOut(ctx, strategy, in, oversample)
	if allFailed {
		return nil, apperr.New(apperr.KindUnavailable, "retrieval.hybrid", "all retrieval legs unavailable", apperr.ErrAllLegsFailed)
	}
	partial := len(legLatencies) == 0 || len(legResults) < expectedLegCount(strategy)

	fused := r.fuse(legResults)
	r.applyAuthorityWeights(fused)

	sort.Slice(fused, func(i, j int) bool { return fused[i].FusedScore > fused[j].FusedScore })

	rerankCount := oversample
	if rerankCount > 20 {
		rerankCount = 20
	}
	if rerankCount > len(fused) {
		rerankCount = len(fused)
	}
	reranked := fused[:rerankCount]
	if r.rerank != nil {
		var err error
		reranked, err = r.rerank.Rerank(ctx, reranked, in.QueryCategory)
		if err != nil {
			log.Errorf("[HybridRetriever] C6 重排序失败，回退到融合分数顺序: %v", err)
			reranked = fused[:rerankCount]
			for i := range reranked {
				reranked[i].CombinedScore = reranked[i].FusedScore
			}
		}
	} else {
		for i := range reranked {
			reranked[i].CombinedScore = reranked[i].FusedScore
		}
	}

	final := r.expandGraph(ctx, reranked)
	r.attachGraphContext(ctx, final)

	if len(final) > topK && topK > 0 {
		final = final[:min(len(final), topK+maxGraphExpand)]
	}

	return &Result{
		Candidates:       final,
		PartialRetrieval: partial,
		LegLatenciesMS:   legLatencies,
		TotalLatencyMS:   time.Since(start).Milliseconds(),
	}, nil
}

func (r *HybridRetriever) resolveStrategy(requested, query string) string {
	if requested != "" && requested != StrategyAuto {
		return requested
	}
	if ExactRefPattern.MatchString(query) {
		return StrategyKeyword
	}
	return StrategyHybrid
}

func (r *HybridRetriever) dynamicTopK(topK int, query string) int {
	regCount := len(ExactRefPattern.FindAllString(query, -1))
	hasComparison := false
	for _, t := range comparisonTerms {
		if strings.Contains(query, t) {
			hasComparison = true
			break
		}
	}
	if regCount >= 3 || hasComparison {
		enlarged := topK + maxTopKDelta
		if enlarged > absoluteTopKCap {
			enlarged = absoluteTopKCap
		}
		return enlarged
	}
	return topK
}

func expectedLegCount(strategy string) int {
	if strategy == StrategyHybrid {
		return 3
	}
	return 1
}

func (r *HybridRetriever) fanOut(ctx context.Context, strategy string, in RetrieveInput, oversample int) (map[string][]Candidate, map[string]int64, bool) {
	legResults := make(map[string][]Candidate)
	legLatencies := make(map[string]int64)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	runLeg := func(name string, fn func(context.Context) ([]Candidate, error)) {
		g.Go(func() error {
			legStart := time.Now()
			cands, err := fn(gctx)
			elapsed := time.Since(legStart).Milliseconds()
			mu.Lock()
			legLatencies[name] = elapsed
			if err != nil {
				log.Errorf("[HybridRetriever] leg %s 失败: %v", name, err)
			} else {
				legResults[name] = cands
			}
			mu.Unlock()
			return nil // a single leg's failure never aborts the group (spec.md §4.7 failure semantics)
		})
	}

	switch strategy {
	case StrategyKeyword:
		runLeg(legLexical, func(c context.Context) ([]Candidate, error) {
			if len(in.ExplicitIdentifiers) > 0 {
				return r.lexical.SearchByRegulationNumber(c, in.ExplicitIdentifiers[0], oversample)
			}
			return r.lexical.Search(c, in.EnhancedQuery, oversample, in.Filters)
		})
	case StrategySemantic:
		runLeg(legVector, func(c context.Context) ([]Candidate, error) {
			return r.vector.Search(c, in.EnhancedQuery, oversample, in.Filters)
		})
	default: // hybrid
		runLeg(legVector, func(c context.Context) ([]Candidate, error) {
			return r.vector.Search(c, in.EnhancedQuery, oversample, in.Filters)
		})
		runLeg(legLexical, func(c context.Context) ([]Candidate, error) {
			return r.lexical.Search(c, in.EnhancedQuery, oversample, in.Filters)
		})
		runLeg(legGraph, func(c context.Context) ([]Candidate, error) {
			return r.graphLeg(c, in, oversample)
		})
	}

	_ = g.Wait()
	return legResults, legLatencies, len(legResults) == 0
}

// graphLeg resolves concept/identifier hits back to chunks via the lexical
// client, per spec.md §4.7's "graph leg ... contributes candidates by
// resolving the targeted regulation identifiers back to chunks via a
// lexical lookup on the identifier".
func (r *HybridRetriever) graphLeg(ctx context.Context, in RetrieveInput, oversample int) ([]Candidate, error) {
	var out []Candidate
	seen := map[string]bool{}

	if in.Concept != "" {
		regs, err := r.graph.GetRelatedByConcept(ctx, in.Concept)
		if err != nil {
			return nil, err
		}
		for _, reg := range regs {
			if seen[reg.RegulationNo] {
				continue
			}
			seen[reg.RegulationNo] = true
			cands, err := r.lexical.SearchByRegulationNumber(ctx, reg.RegulationNo, 1)
			if err != nil {
				return nil, err
			}
			out = append(out, cands...)
		}
	}

	for _, ident := range in.ExplicitIdentifiers {
		cands, err := r.lexical.SearchByRegulationNumber(ctx, ident, oversample)
		if err != nil {
			return nil, err
		}
		for _, c := range cands {
			if seen[c.RegulationNo] {
				continue
			}
			seen[c.RegulationNo] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// fuse implements Reciprocal Rank Fusion with k=60 (spec.md §4.7).
func (r *HybridRetriever) fuse(legResults map[string][]Candidate) []Candidate {
	k := r.cfg.RRFConstant
	if k <= 0 {
		k = 60
	}
	byChunk := make(map[uint]*Candidate)
	order := make([]uint, 0)

	for _, cands := range legResults {
		ranked := append([]Candidate(nil), cands...)
		sort.Slice(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
		for i, c := range ranked {
			rank := i + 1
			contribution := 1.0 / float64(k+rank)
			if existing, ok := byChunk[c.ChunkID]; ok {
				existing.FusedScore += contribution
			} else {
				cc := c
				cc.FusedScore = contribution
				byChunk[cc.ChunkID] = &cc
				order = append(order, cc.ChunkID)
			}
		}
	}

	out := make([]Candidate, 0, len(order))
	for _, id := range order {
		out = append(out, *byChunk[id])
	}
	return out
}

func (r *HybridRetriever) applyAuthorityWeights(candidates []Candidate) {
	for i := range candidates {
		candidates[i].FusedScore *= r.authorityWeight(candidates[i].AuthorityLevel)
	}
}

func (r *HybridRetriever) authorityWeight(level string) float64 {
	if r.cfg.AuthorityWeights != nil {
		if w, ok := r.cfg.AuthorityWeights[level]; ok {
			return w
		}
	}
	switch level {
	case model.AuthorityConvention:
		return 1.0
	case model.AuthorityIACSResolution:
		return 0.85
	case model.AuthorityClassificationR:
		return 0.7
	case model.AuthorityGuidanceNote:
		return 0.5
	default:
		return 0.6
	}
}

// expandGraph appends at most maxGraphExpand new candidates reached by a
// single cross-reference hop from the top-5 reranked candidates.
func (r *HybridRetriever) expandGraph(ctx context.Context, candidates []Candidate) []Candidate {
	present := map[uint]bool{}
	for _, c := range candidates {
		present[c.ChunkID] = true
	}

	top := candidates
	if len(top) > finalExpandTop {
		top = top[:finalExpandTop]
	}

	out := append([]Candidate(nil), candidates...)
	added := 0
	for _, c := range top {
		if added >= maxGraphExpand {
			break
		}
		refs, err := r.graph.GetCrossReferences(ctx, c.RegulationID)
		if err != nil {
			log.Errorf("[HybridRetriever] 图扩展查询交叉引用失败: %v", err)
			continue
		}
		for _, ref := range refs {
			if added >= maxGraphExpand {
				break
			}
			targetID := ref.ToRegulationID
			if targetID == c.RegulationID {
				targetID = ref.FromRegulationID
			}
			target, err := r.regulationByID(ctx, targetID)
			if err != nil || target == nil {
				continue
			}
			hits, err := r.lexical.SearchByRegulationNumber(ctx, target.RegulationNo, 1)
			if err != nil || len(hits) == 0 {
				continue
			}
			best := hits[0]
			if present[best.ChunkID] {
				continue
			}
			present[best.ChunkID] = true
			best.FusedScore = graphFusedScore
			best.CombinedScore = graphFusedScore
			best.GraphExpanded = true
			out = append(out, best)
			added++
		}
	}
	return out
}

func (r *HybridRetriever) regulationByID(ctx context.Context, id uint) (*model.Regulation, error) {
	return r.graph.GetByID(ctx, id)
}

// attachGraphContext fills in parent-chain title, interpretation count, and
// has-amendments for each final candidate; purely informational (spec.md §4.7
// "Context attachment ... does not affect ranking").
func (r *HybridRetriever) attachGraphContext(ctx context.Context, candidates []Candidate) {
	for i := range candidates {
		c := &candidates[i]
		chain, err := r.graph.GetParentChain(ctx, c.RegulationID)
		if err != nil {
			continue
		}
		gctx := &GraphContext{}
		if len(chain) > 0 {
			gctx.ParentChainTitle = chain[0].Title
		}
		interps, err := r.graph.GetInterpretations(ctx, c.RegulationID)
		if err == nil {
			gctx.InterpretationCount = len(interps)
		}
		amendments, err := r.graph.GetAmendments(ctx, c.RegulationID)
		if err == nil {
			gctx.HasAmendments = len(amendments) > 0
		}
		c.GraphContext = gctx
	}
}

