// Package handler wires C11's pipeline and C1-C3/C12's direct-access
// endpoints onto BV-RAG's HTTP surface (spec.md §6), following the teacher's
// one-struct-per-resource handler layout (internal/handler/search_handler.go
// et al.) with a constructor injecting the dependencies it calls into.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler answers the liveness probe.
type HealthHandler struct{}

// NewHealthHandler constructs the health-check handler.
func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

// Check implements GET /health.
func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
