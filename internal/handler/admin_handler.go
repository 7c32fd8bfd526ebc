package handler

import (
	"net/http"
	"strconv"

	"bvrag/internal/admin"
	"bvrag/internal/apperr"
	"bvrag/internal/memory"
	"bvrag/pkg/log"
	"bvrag/pkg/token"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminHandler backs /api/v1/admin/* (spec.md §6): a single shared
// bearer-token login, plus read-only corpus/session/utility inspection.
type AdminHandler struct {
	service    *admin.Service
	sessions   memory.Store
	jwtManager *token.JWTManager
	tokenHash  string
}

// NewAdminHandler constructs the admin handler.
func NewAdminHandler(service *admin.Service, sessions memory.Store, jwtManager *token.JWTManager, tokenHash string) *AdminHandler {
	return &AdminHandler{service: service, sessions: sessions, jwtManager: jwtManager, tokenHash: tokenHash}
}

type adminLoginRequest struct {
	Token string `json:"token" binding:"required"`
}

// Login exchanges the shared admin bearer token for a scoped JWT, checked
// against the bcrypt hash stored in configuration (SPEC_FULL.md §2).
func (h *AdminHandler) Login(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.tokenHash), []byte(req.Token)); err != nil {
		log.Warnf("[AdminHandler] 管理员 token 校验失败")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
		return
	}

	jwtToken, err := h.jwtManager.GenerateToken("admin")
	if err != nil {
		log.Errorf("[AdminHandler] 签发 JWT 失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": jwtToken})
}

// Stats implements GET /api/v1/admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.Error(apperr.Wrap("admin.stats", err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// UtilityStats implements GET /api/v1/admin/utility-stats.
func (h *AdminHandler) UtilityStats(c *gin.Context) {
	rows, err := h.service.UtilityStats(c.Request.Context())
	if err != nil {
		c.Error(apperr.Wrap("admin.utility_stats", err))
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Session implements GET /api/v1/admin/session/{session_id}.
func (h *AdminHandler) Session(c *gin.Context) {
	sessionID := c.Param("session_id")
	session, err := h.sessions.GetOrCreate(c.Request.Context(), sessionID)
	if err != nil {
		c.Error(apperr.New(apperr.KindUnavailable, "admin.session", "session store unavailable", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":         session.SessionID,
		"turn_count":         strconv.Itoa(len(session.Turns)),
		"turns":              session.Turns,
		"active_regulations": session.ActiveRegulations,
		"active_topics":      session.ActiveTopics,
		"active_ship_type":   session.ActiveShipType,
	})
}
