package handlers

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/David-Krivoklatsky/GreedAdvisor/internal/auth"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"log/slog"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type UploadStore interface {
	UpdateUser(ctx context.Context, userID int64, patch storage.UserPatch) (*storage.User, error)
}

type UploadHandler struct {
	Store   UploadStore
	Logger  *slog.Logger
	Dir     string
	MaxSize int64
}

func NewUploadHandler(store UploadStore, logger *slog.Logger, dir string, maxSize int64) *UploadHandler {
	return &UploadHandler{Store: store, Logger: logger, Dir: dir, MaxSize: maxSize}
}

func (h *UploadHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/user/profile-picture", h.Upload)
}

func (h *UploadHandler) Upload(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("profilePicture")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	if fileHeader.Size > h.MaxSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large. Maximum size is 5MB."})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.Logger.Error("open upload failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer file.Close()

	// Sniff the content rather than trusting the client Content-Type.
	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		h.Logger.Error("detect mime failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	ext, allowed := allowedImageTypes[mtype.String()]
	if !allowed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type. Only JPEG, PNG, GIF, and WebP are allowed."})
		return
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.Logger.Error("rewind upload failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := os.MkdirAll(h.Dir, 0o755); err != nil {
		h.Logger.Error("create upload dir failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	fileName := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(h.Dir, fileName))
	if err != nil {
		h.Logger.Error("create upload file failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		h.Logger.Error("write upload failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	url := "/uploads/profile-pictures/" + fileName
	if _, err := h.Store.UpdateUser(c.Request.Context(), userID, storage.UserPatch{ProfilePicture: &url}); err != nil {
		h.Logger.Error("persist profile picture failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":           "Profile picture uploaded successfully",
		"profilePictureUrl": url,
	})
}
