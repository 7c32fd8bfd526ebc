// Package retrieval implements C1 (Vector Index Client), C2 (Lexical Index
// Client), C3 (Reference-Graph Client) and C7 (Hybrid Retriever).
package retrieval

import "bvrag/internal/model"

// Filters constrains a leg search to equality matches (spec.md §4.1/§4.2).
type Filters struct {
	Document       string
	AuthorityLevel string
	ChunkType      string
}

// GraphContext is attached to a final candidate for the generator's benefit;
// it never affects ranking (spec.md §4.7 "Context attachment").
type GraphContext struct {
	ParentChainTitle    string
	InterpretationCount int
	HasAmendments       bool
}

// Candidate is a retrieval result, progressively enriched as it moves through
// fusion, authority weighting, utility reranking, and graph expansion.
type Candidate struct {
	ChunkID        uint
	RegulationID   uint
	Document       string
	RegulationNo   string
	BreadcrumbPath string
	AuthorityLevel string
	Text           string
	Score          float64 // raw leg score (first leg fusion saw this chunk from, informational only)
	FusedScore     float64 // post-RRF, then multiplied in place by the authority weight
	CombinedScore  float64 // post-authority-weighting, post-utility-rerank — the generator's "combined score"
	UtilityScore   float64
	GraphExpanded  bool
	GraphContext   *GraphContext
	Metadata       model.ChunkMetadata
}

// Result is C7's output batch.
type Result struct {
	Candidates       []Candidate
	PartialRetrieval bool
	LegLatenciesMS   map[string]int64
	TotalLatencyMS   int64
}
