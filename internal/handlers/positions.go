package handlers

import (
	"net/http"
	"time"

	"github.com/David-Krivoklatsky/GreedAdvisor/internal/auth"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/report"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"log/slog"
)

// PositionsHandler serves the dashboard's mocked position data; there is no
// positions table yet.
type PositionsHandler struct {
	Logger *slog.Logger
	Clock  Clock
}

func NewPositionsHandler(logger *slog.Logger) *PositionsHandler {
	return &PositionsHandler{Logger: logger, Clock: systemClock{}}
}

func (h *PositionsHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/user/positions", h.List)
	g.POST("/user/positions", h.Create)
}

type createPositionRequest struct {
	Symbol string          `json:"symbol" binding:"required"`
	Type   string          `json:"type" binding:"required,oneof=BUY SELL"`
	Size   decimal.Decimal `json:"size" binding:"required"`
	Price  decimal.Decimal `json:"price" binding:"required"`
}

func (h *PositionsHandler) List(c *gin.Context) {
	if _, ok := auth.UserID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": report.MockPositions()})
}

func (h *PositionsHandler) Create(c *gin.Context) {
	if _, ok := auth.UserID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req createPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	now := h.Clock.Now().UTC()
	position := report.Position{
		ID:           now.UnixMilli(),
		Symbol:       req.Symbol,
		Type:         req.Type,
		Size:         req.Size,
		OpenPrice:    req.Price,
		CurrentPrice: req.Price,
		PnL:          decimal.Zero,
		Status:       "OPEN",
		OpenTime:     now.Truncate(time.Millisecond),
	}

	c.JSON(http.StatusCreated, gin.H{"position": position})
}
