package handler

import (
	"net/http"

	"bvrag/internal/retrieval"
	"bvrag/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler exposes C7 directly, bypassing C10/generation entirely —
// intended for debugging and evaluation (spec.md §6).
type SearchHandler struct {
	retriever *retrieval.HybridRetriever
}

// NewSearchHandler constructs the raw-retrieval debug handler.
func NewSearchHandler(retriever *retrieval.HybridRetriever) *SearchHandler {
	return &SearchHandler{retriever: retriever}
}

type searchRequest struct {
	Query           string `json:"query" binding:"required"`
	TopK            int    `json:"top_k"`
	DocumentFilter  string `json:"document_filter"`
}

type searchCandidate struct {
	ChunkID  uint        `json:"chunk_id"`
	Text     string      `json:"text"`
	Score    float64     `json:"score"`
	Metadata interface{} `json:"metadata"`
}

// Search implements POST /api/v1/search.
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[SearchHandler] 无效的请求负载: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}

	result, err := h.retriever.Retrieve(c.Request.Context(), retrieval.RetrieveInput{
		EnhancedQuery: req.Query,
		TopK:          req.TopK,
		Strategy:      retrieval.StrategyAuto,
		Filters:       retrieval.Filters{Document: req.DocumentFilter},
	})
	if err != nil {
		log.Errorf("[SearchHandler] 检索失败: %v", err)
		c.Error(err)
		return
	}

	out := make([]searchCandidate, 0, len(result.Candidates))
	for _, cand := range result.Candidates {
		out = append(out, searchCandidate{
			ChunkID:  cand.ChunkID,
			Text:     cand.Text,
			Score:    cand.CombinedScore,
			Metadata: cand.Metadata,
		})
	}
	c.JSON(http.StatusOK, out)
}
