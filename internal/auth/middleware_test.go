package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func middlewareRouter(secret []byte) *gin.Engine {
	router := gin.New()
	router.GET("/protected", Middleware(secret), func(c *gin.Context) {
		id, ok := UserID(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no user id in context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": id})
	})
	return router
}

func get(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMiddlewareAllowsValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := middlewareRouter(testSecret)
	token, err := NewToken(7, "a@x.com", testSecret, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}

	resp := get(router, "Bearer "+token)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	resp := get(middlewareRouter(testSecret), "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestMiddlewareRejectsForgedToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := middlewareRouter(testSecret)
	forged, err := NewToken(7, "a@x.com", []byte("attacker-secret"), time.Hour, time.Now())
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}

	resp := get(router, "Bearer "+forged)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}
