package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/David-Krivoklatsky/GreedAdvisor/internal/auth"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/storage"
	"github.com/gin-gonic/gin"
	"log/slog"
)

type KeyStore interface {
	ListKeys(ctx context.Context, kind storage.KeyKind, userID int64) ([]storage.APIKey, error)
	CreateKey(ctx context.Context, kind storage.KeyKind, userID int64, title, discriminator, apiKey string, log storage.KeyLog) (*storage.APIKey, error)
	UpdateKey(ctx context.Context, kind storage.KeyKind, userID, keyID int64, patch storage.KeyPatch, log storage.KeyLog) (*storage.APIKey, error)
	SoftDeleteKey(ctx context.Context, kind storage.KeyKind, userID, keyID int64, log storage.KeyLog) error
}

// KindConfig describes how one credential kind appears on the wire.
type KindConfig struct {
	Kind          storage.KeyKind
	Path          string   // route segment under /user
	Discriminator string   // JSON field name: "provider" or "accessType"
	Allowed       []string // accepted discriminator values, lowercase
	ListField     string   // JSON field wrapping list responses
	ItemField     string   // JSON field wrapping single-key responses
	Label         string   // human label used in messages
}

var (
	AIKeysConfig = KindConfig{
		Kind:          storage.KindAI,
		Path:          "ai-keys",
		Discriminator: "provider",
		Allowed:       []string{"openai", "anthropic", "google", "claude"},
		ListField:     "aiKeys",
		ItemField:     "aiKey",
		Label:         "AI key",
	}
	TradingKeysConfig = KindConfig{
		Kind:          storage.KindTrading,
		Path:          "trading-keys",
		Discriminator: "accessType",
		Allowed:       []string{"read-only", "full-access"},
		ListField:     "tradingKeys",
		ItemField:     "tradingKey",
		Label:         "Trading key",
	}
	MarketDataKeysConfig = KindConfig{
		Kind:          storage.KindMarketData,
		Path:          "market-data-keys",
		Discriminator: "provider",
		Allowed:       []string{"alphavantage", "finnhub", "iexcloud", "polygon", "tradingview", "other"},
		ListField:     "marketDataKeys",
		ItemField:     "marketDataKey",
		Label:         "Market data key",
	}
)

type KeyHandler struct {
	Store  KeyStore
	Logger *slog.Logger
	Config KindConfig
}

func NewKeyHandler(store KeyStore, logger *slog.Logger, cfg KindConfig) *KeyHandler {
	return &KeyHandler{Store: store, Logger: logger, Config: cfg}
}

func (h *KeyHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/user/"+h.Config.Path, h.List)
	g.POST("/user/"+h.Config.Path, h.Create)
	g.PUT("/user/"+h.Config.Path+"/:id", h.Update)
	g.DELETE("/user/"+h.Config.Path+"/:id", h.Delete)
}

type createKeyRequest struct {
	Title      string `json:"title" binding:"required"`
	Provider   string `json:"provider"`
	AccessType string `json:"accessType"`
	APIKey     string `json:"apiKey" binding:"required"`
}

type updateKeyRequest struct {
	Title      *string `json:"title"`
	Provider   *string `json:"provider"`
	AccessType *string `json:"accessType"`
	APIKey     *string `json:"apiKey"`
	IsActive   *bool   `json:"isActive"`
}

func (h *KeyHandler) List(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	keys, err := h.Store.ListKeys(c.Request.Context(), h.Config.Kind, userID)
	if err != nil {
		h.Logger.Error("list keys failed", "kind", string(h.Config.Kind), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	items := make([]gin.H, 0, len(keys))
	for i := range keys {
		items = append(items, h.keyJSON(&keys[i], true))
	}
	c.JSON(http.StatusOK, gin.H{h.Config.ListField: items})
}

func (h *KeyHandler) Create(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	discriminator, ok := h.validDiscriminator(req.Provider, req.AccessType)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + h.Config.Discriminator})
		return
	}

	key, err := h.Store.CreateKey(c.Request.Context(), h.Config.Kind, userID,
		strings.TrimSpace(req.Title), discriminator, req.APIKey, h.auditLog(c, userID, storage.ActionCreated))
	if err != nil {
		h.Logger.Error("create key failed", "kind", string(h.Config.Kind), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	resp := gin.H{"message": h.Config.Label + " created successfully"}
	resp[h.Config.ItemField] = h.keyJSON(key, false)
	c.JSON(http.StatusCreated, resp)
}

func (h *KeyHandler) Update(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	keyID, ok := parseKeyID(c)
	if !ok {
		return
	}

	var req updateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	patch, ok := h.buildPatch(c, req)
	if !ok {
		return
	}

	key, err := h.Store.UpdateKey(c.Request.Context(), h.Config.Kind, userID, keyID, patch,
		h.auditLog(c, userID, storage.ActionUpdated))
	if err != nil {
		// Foreign or soft-deleted keys answer 404, never 403.
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": h.Config.Label + " not found"})
			return
		}
		h.Logger.Error("update key failed", "kind", string(h.Config.Kind), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	resp := gin.H{"message": h.Config.Label + " updated successfully"}
	resp[h.Config.ItemField] = h.keyJSON(key, false)
	c.JSON(http.StatusOK, resp)
}

func (h *KeyHandler) Delete(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	keyID, ok := parseKeyID(c)
	if !ok {
		return
	}

	err := h.Store.SoftDeleteKey(c.Request.Context(), h.Config.Kind, userID, keyID,
		h.auditLog(c, userID, storage.ActionDeleted))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": h.Config.Label + " not found"})
			return
		}
		h.Logger.Error("delete key failed", "kind", string(h.Config.Kind), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": h.Config.Label + " deleted successfully"})
}

func (h *KeyHandler) validDiscriminator(provider, accessType string) (string, bool) {
	raw := provider
	if h.Config.Discriminator == "accessType" {
		raw = accessType
	}
	value := strings.ToLower(strings.TrimSpace(raw))
	for _, allowed := range h.Config.Allowed {
		if value == allowed {
			return value, true
		}
	}
	return "", false
}

func (h *KeyHandler) buildPatch(c *gin.Context, req updateKeyRequest) (storage.KeyPatch, bool) {
	patch := storage.KeyPatch{APIKey: req.APIKey, IsActive: req.IsActive}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
			return storage.KeyPatch{}, false
		}
		patch.Title = &title
	}
	if req.APIKey != nil && *req.APIKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return storage.KeyPatch{}, false
	}

	raw := req.Provider
	if h.Config.Discriminator == "accessType" {
		raw = req.AccessType
	}
	if raw != nil {
		value, ok := h.validDiscriminator(*raw, *raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + h.Config.Discriminator})
			return storage.KeyPatch{}, false
		}
		patch.Discriminator = &value
	}

	return patch, true
}

func (h *KeyHandler) auditLog(c *gin.Context, userID int64, action string) storage.KeyLog {
	return storage.KeyLog{
		UserID:    userID,
		KeyType:   h.Config.Kind,
		Action:    action,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func (h *KeyHandler) keyJSON(key *storage.APIKey, includeSecret bool) gin.H {
	out := gin.H{
		"id":        key.ID,
		"title":     key.Title,
		"isActive":  key.IsActive,
		"lastUsed":  key.LastUsed,
		"createdAt": key.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt": key.UpdatedAt.UTC().Format(time.RFC3339),
	}
	out[h.Config.Discriminator] = key.Discriminator
	if includeSecret {
		// Raw credential is returned on list so the UI can display it.
		out["apiKey"] = key.APIKey
	}
	return out
}

func parseKeyID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid key ID"})
		return 0, false
	}
	return id, true
}
