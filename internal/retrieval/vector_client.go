package retrieval

import (
	"context"

	"bvrag/internal/apperr"
	"bvrag/internal/config"
	"bvrag/internal/model"
	"bvrag/pkg/embedding"
	"bvrag/pkg/es"
	"bvrag/pkg/log"
)

// VectorClient is C1: embeds text and runs top-k nearest-neighbour search.
type VectorClient interface {
	Search(ctx context.Context, queryText string, topK int, filters Filters) ([]Candidate, error)
}

type vectorClient struct {
	embedClient embedding.Client
	indexName   string
}

// NewVectorClient constructs C1, grounded on the teacher's
// internal/service/search_service.go HybridSearch (embed-then-knn) pattern,
// split out of its combined ES query into an independently callable leg.
func NewVectorClient(embedClient embedding.Client, esCfg config.ElasticsearchConfig) VectorClient {
	return &vectorClient{embedClient: embedClient, indexName: esCfg.IndexName}
}

func (c *vectorClient) Search(ctx context.Context, queryText string, topK int, filters Filters) ([]Candidate, error) {
	vector, err := c.embedClient.CreateEmbedding(ctx, queryText)
	if err != nil {
		log.Errorf("[VectorClient] embedding 调用失败: %v", err)
		return nil, apperr.New(apperr.KindUnavailable, "retrieval.vector", "embedding backend unavailable", apperr.ErrEmbeddingUnavailable)
	}

	hits, err := es.SearchKNN(ctx, c.indexName, vector, topK)
	if err != nil {
		log.Errorf("[VectorClient] ES KNN 查询失败: %v", err)
		return nil, apperr.New(apperr.KindUnavailable, "retrieval.vector", "vector index unavailable", apperr.ErrIndexUnavailable)
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

func matchesFilters(document, authority, chunkType string, f Filters) bool {
	if f.Document != "" && f.Document != document {
		return false
	}
	if f.AuthorityLevel != "" && f.AuthorityLevel != authority {
		return false
	}
	if f.ChunkType != "" && f.ChunkType != chunkType {
		return false
	}
	return true
}

func hitToCandidate(h es.Hit) Candidate {
	return Candidate{
		ChunkID:        h.Source.ChunkID,
		RegulationID:   h.Source.RegulationID,
		Document:       h.Source.Document,
		RegulationNo:   h.Source.RegulationNo,
		BreadcrumbPath: h.Source.BreadcrumbPath,
		AuthorityLevel: h.Source.AuthorityLevel,
		Text:           h.Source.TextContent,
		Score:          h.Score,
		Metadata:       model.ChunkMetadata{ChunkType: h.Source.ChunkType},
	}
}
