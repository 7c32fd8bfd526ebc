package retrieval

import (
	"context"
	"regexp"

	"bvrag/internal/apperr"
	"bvrag/internal/config"
	"bvrag/pkg/es"
	"bvrag/pkg/log"
)

// LexicalClient is C2: BM25-equivalent full-text search plus exact
// regulation-number lookup, grounded on original_source/db/bm25_search.py's
// search_by_regulation_number (reimplemented against Elasticsearch instead of
// Postgres tsvector, since the teacher's lexical backend is ES).
type LexicalClient interface {
	Search(ctx context.Context, queryText string, topK int, filters Filters) ([]Candidate, error)
	SearchByRegulationNumber(ctx context.Context, ref string, topK int) ([]Candidate, error)
}

type lexicalClient struct {
	indexName string
}

// NewLexicalClient constructs C2.
func NewLexicalClient(esCfg config.ElasticsearchConfig) LexicalClient {
	return &lexicalClient{indexName: esCfg.IndexName}
}

func (c *lexicalClient) Search(ctx context.Context, queryText string, topK int, filters Filters) ([]Candidate, error) {
	hits, err := es.SearchLexical(ctx, c.indexName, queryText, topK)
	if err != nil {
		log.Errorf("[LexicalClient] ES 词法查询失败: %v", err)
		return nil, apperr.New(apperr.KindUnavailable, "retrieval.lexical", "lexical index unavailable", apperr.ErrIndexUnavailable)
	}
	candidates := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		if !matchesFilters(h.Source.Document, h.Source.AuthorityLevel, h.Source.ChunkType, filters) {
			continue
		}
		candidates = append(candidates, hitToCandidate(h))
	}
	return candidates, nil
}

func (c *lexicalClient) SearchByRegulationNumber(ctx context.Context, ref string, topK int) ([]Candidate, error) {
	hits, err := es.SearchByRegulationNumber(ctx, c.indexName, ref, topK)
	if err != nil {
		log.Errorf("[LexicalClient] 精确法规编号查询失败: %v", err)
		return nil, apperr.New(apperr.KindUnavailable, "retrieval.lexical", "lexical index unavailable", apperr.ErrIndexUnavailable)
	}
	candidates := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, hitToCandidate(h))
	}
	return candidates, nil
}

// ExactRefPattern matches an explicit "Document + chapter/regulation/rule/part/section + numeral"
// identifier (e.g. "SOLAS II-1/3-6", "MARPOL Annex VI Reg 14"), grounded on
// original_source/retrieval/query_router.py's EXACT_REF_PATTERN; used by C7's
// strategy=auto selection (spec.md §4.7).
var ExactRefPattern = regexp.MustCompile(`(?i)(SOLAS|MARPOL|STCW|COLREG|MSC|MEPC|ISM|ISPS|LSA|FSS|FTP|Resolution)\s*[A-Z\-]*\s*(Chapter|Annex|Rule|Part|Section|Reg\.?|Regulation)?\s*[IVXLCDM0-9][0-9A-Za-z\-/.]*`)
