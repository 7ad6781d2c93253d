package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/David-Krivoklatsky/GreedAdvisor/internal/auth"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/security"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/storage"
	"github.com/gin-gonic/gin"
	"log/slog"
)

type ProfileStore interface {
	GetUserByID(ctx context.Context, userID int64) (*storage.User, error)
	UpdateUser(ctx context.Context, userID int64, patch storage.UserPatch) (*storage.User, error)
	ListKeys(ctx context.Context, kind storage.KeyKind, userID int64) ([]storage.APIKey, error)
}

type ProfileHandler struct {
	Store      ProfileStore
	Logger     *slog.Logger
	BcryptCost int
}

func NewProfileHandler(store ProfileStore, logger *slog.Logger, bcryptCost int) *ProfileHandler {
	return &ProfileHandler{Store: store, Logger: logger, BcryptCost: bcryptCost}
}

func (h *ProfileHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/user/profile", h.Get)
	g.PUT("/user/profile", h.Update)
}

type updateProfileRequest struct {
	Email          *string `json:"email" binding:"omitempty,email"`
	Password       *string `json:"password" binding:"omitempty,min=6"`
	FirstName      *string `json:"firstName"`
	LastName       *string `json:"lastName"`
	ProfilePicture *string `json:"profilePicture"`
}

func (h *ProfileHandler) Get(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	user, err := h.Store.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.Logger.Error("profile lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	summaries := map[string][]gin.H{}
	for _, cfg := range []KindConfig{AIKeysConfig, TradingKeysConfig, MarketDataKeysConfig} {
		keys, err := h.Store.ListKeys(c.Request.Context(), cfg.Kind, userID)
		if err != nil {
			h.Logger.Error("profile keys lookup failed", "kind", string(cfg.Kind), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		items := make([]gin.H, 0, len(keys))
		for _, key := range keys {
			item := gin.H{
				"id":        key.ID,
				"title":     key.Title,
				"isActive":  key.IsActive,
				"createdAt": key.CreatedAt.UTC().Format(time.RFC3339),
			}
			item[cfg.Discriminator] = key.Discriminator
			items = append(items, item)
		}
		summaries[cfg.ListField] = items
	}

	c.JSON(http.StatusOK, gin.H{
		"user":           sanitizeUser(user),
		"aiKeys":         summaries[AIKeysConfig.ListField],
		"tradingKeys":    summaries[TradingKeysConfig.ListField],
		"marketDataKeys": summaries[MarketDataKeysConfig.ListField],
	})
}

func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	patch := storage.UserPatch{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		ProfilePicture: req.ProfilePicture,
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		patch.Email = &email
	}
	if req.Password != nil {
		hash, err := security.HashPassword(*req.Password, h.BcryptCost)
		if err != nil {
			h.Logger.Error("password hash failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		patch.PasswordHash = &hash
	}

	user, err := h.Store.UpdateUser(c.Request.Context(), userID, patch)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "User with this email already exists"})
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			h.Logger.Error("profile update failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    sanitizeUser(user),
	})
}
