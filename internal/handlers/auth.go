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

const refreshCookieName = "refreshToken"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*storage.User, error)
	GetUserByEmail(ctx context.Context, email string) (*storage.User, error)
	GetUserByID(ctx context.Context, userID int64) (*storage.User, error)
}

type AuthHandler struct {
	Store         UserStore
	Logger        *slog.Logger
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	BcryptCost    int
	SecureCookies bool
	Clock         Clock
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID             int64   `json:"id"`
	Email          string  `json:"email"`
	FirstName      *string `json:"firstName,omitempty"`
	LastName       *string `json:"lastName,omitempty"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
	CreatedAt      string  `json:"createdAt"`
}

func NewAuthHandler(store UserStore, logger *slog.Logger, accessSecret, refreshSecret string,
	accessTTL, refreshTTL time.Duration, bcryptCost int, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		Store:         store,
		Logger:        logger,
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		BcryptCost:    bcryptCost,
		SecureCookies: secureCookies,
		Clock:         systemClock{},
	}
}

func (h *AuthHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/auth/register", h.Register)
	g.POST("/auth/login", h.Login)
	g.POST("/auth/refresh", h.Refresh)
	g.POST("/auth/logout", h.Logout)
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := h.Store.GetUserByEmail(c.Request.Context(), email); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "User with this email already exists"})
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		h.Logger.Error("register lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	hash, err := security.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		h.Logger.Error("password hash failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	user, err := h.Store.CreateUser(c.Request.Context(), email, hash)
	if err != nil {
		// Insert races the pre-check; the unique index is authoritative.
		if errors.Is(err, storage.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "User with this email already exists"})
			return
		}
		h.Logger.Error("user insert failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	accessToken, ok := h.issueTokens(c, user)
	if !ok {
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     "User created successfully",
		"accessToken": accessToken,
		"user":        sanitizeUser(user),
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.Store.GetUserByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Same body as the wrong-password branch: no user-existence leak.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		h.Logger.Error("login lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if !security.VerifyPassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	accessToken, ok := h.issueTokens(c, user)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Login successful",
		"accessToken": accessToken,
		"user":        sanitizeUser(user),
	})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(refreshCookieName)
	if err != nil || refreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token not found"})
		return
	}

	claims, err := auth.ParseToken(refreshToken, h.RefreshSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	user, err := h.Store.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found or inactive"})
			return
		}
		h.Logger.Error("refresh lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found or inactive"})
		return
	}

	// The refresh token itself is not rotated; it stays valid until expiry.
	accessToken, err := auth.NewToken(user.ID, user.Email, h.AccessSecret, h.AccessTTL, h.Clock.Now())
	if err != nil {
		h.Logger.Error("jwt sign failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
		"user":        sanitizeUser(user),
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.setRefreshCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// issueTokens signs the access token and sets the refresh cookie, answering
// 500 itself on failure.
func (h *AuthHandler) issueTokens(c *gin.Context, user *storage.User) (string, bool) {
	now := h.Clock.Now()

	accessToken, err := auth.NewToken(user.ID, user.Email, h.AccessSecret, h.AccessTTL, now)
	if err != nil {
		h.Logger.Error("jwt sign failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return "", false
	}

	refreshToken, err := auth.NewToken(user.ID, user.Email, h.RefreshSecret, h.RefreshTTL, now)
	if err != nil {
		h.Logger.Error("refresh jwt sign failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return "", false
	}

	h.setRefreshCookie(c, refreshToken, int(h.RefreshTTL.Seconds()))
	return accessToken, true
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, value, maxAge, "/", "", h.SecureCookies, true)
}

func sanitizeUser(user *storage.User) userResponse {
	return userResponse{
		ID:             user.ID,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		ProfilePicture: user.ProfilePicture,
		CreatedAt:      user.CreatedAt.UTC().Format(time.RFC3339),
	}
}
