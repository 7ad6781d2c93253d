package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/David-Krivoklatsky/GreedAdvisor/internal/auth"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/report"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/storage"
	"github.com/gin-gonic/gin"
	"log/slog"
)

type ReportStore interface {
	FindActiveOwned(ctx context.Context, kind storage.KeyKind, userID, keyID int64) (*storage.APIKey, error)
	TouchKeyLastUsed(ctx context.Context, kind storage.KeyKind, keyID int64) error
}

// ReportHandler answers simulated AI trading reports. The referenced keys
// must belong to the caller; their last-used stamps are updated best-effort.
type ReportHandler struct {
	Store  ReportStore
	Logger *slog.Logger
	Clock  Clock
}

func NewReportHandler(store ReportStore, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{Store: store, Logger: logger, Clock: systemClock{}}
}

func (h *ReportHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/ai/generate-report", h.Generate)
}

type generateReportRequest struct {
	TradingKeyID int64  `json:"tradingKeyId" binding:"required"`
	AiKeyID      int64  `json:"aiKeyId" binding:"required"`
	ReportType   string `json:"reportType" binding:"required,oneof=daily weekly monthly"`
	Symbol       string `json:"symbol"`
}

func (h *ReportHandler) Generate(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req generateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	tradingKey, err := h.Store.FindActiveOwned(c.Request.Context(), storage.KindTrading, userID, req.TradingKeyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Trading key not found"})
			return
		}
		h.Logger.Error("trading key lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	aiKey, err := h.Store.FindActiveOwned(c.Request.Context(), storage.KindAI, userID, req.AiKeyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "AI key not found"})
			return
		}
		h.Logger.Error("ai key lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// Last-used stamps are advisory; failures are logged, never surfaced.
	if err := h.Store.TouchKeyLastUsed(c.Request.Context(), storage.KindTrading, tradingKey.ID); err != nil {
		h.Logger.Error("touch trading key failed", "error", err)
	}
	if err := h.Store.TouchKeyLastUsed(c.Request.Context(), storage.KindAI, aiKey.ID); err != nil {
		h.Logger.Error("touch ai key failed", "error", err)
	}

	now := h.Clock.Now()
	generated := report.Generate(now.UnixMilli(), req.ReportType, req.Symbol, now)

	c.JSON(http.StatusCreated, gin.H{"report": generated})
}
