package handler

import (
	"net/http"
	"strconv"

	"bvrag/internal/apperr"
	"bvrag/internal/retrieval"
	"bvrag/pkg/log"

	"github.com/gin-gonic/gin"
)

// RegulationHandler exposes C3 (the reference-graph client) directly for
// regulation lookup by ID (spec.md §6).
type RegulationHandler struct {
	graph retrieval.GraphClient
}

// NewRegulationHandler constructs the regulation-lookup handler.
func NewRegulationHandler(graph retrieval.GraphClient) *RegulationHandler {
	return &RegulationHandler{graph: graph}
}

// Get implements GET /api/v1/regulation/{doc_id}.
func (h *RegulationHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("doc_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid regulation id"})
		return
	}
	regulationID := uint(id)

	regulation, err := h.graph.GetByID(c.Request.Context(), regulationID)
	if err != nil {
		log.Errorf("[RegulationHandler] 获取法规失败: %v", err)
		c.Error(err)
		return
	}
	if regulation == nil {
		c.Error(apperr.New(apperr.KindNotFound, "handler.regulation", "regulation not found", nil))
		return
	}

	crossRefs, err := h.graph.GetCrossReferences(c.Request.Context(), regulationID)
	if err != nil {
		log.Errorf("[RegulationHandler] 获取交叉引用失败: %v", err)
		c.Error(err)
		return
	}
	children, err := h.graph.GetChildren(c.Request.Context(), regulationID)
	if err != nil {
		log.Errorf("[RegulationHandler] 获取子条款失败: %v", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"regulation":      regulation,
		"cross_references": crossRefs,
		"children":        children,
	})
}
