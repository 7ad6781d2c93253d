package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/David-Krivoklatsky/GreedAdvisor/internal/auth"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/security"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/storage"
	"github.com/David-Krivoklatsky/GreedAdvisor/testutil"
	"github.com/gin-gonic/gin"
)

func profileRouter(store *memStore) *gin.Engine {
	router := gin.New()
	protected := router.Group("/api")
	protected.Use(auth.Middleware(testAccessSecret))
	NewProfileHandler(store, testLogger(), 4).RegisterRoutes(protected)
	return router
}

func TestGetProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	user := store.addUser("a@x.com", "hash")
	store.addKey(storage.KindAI, user.ID, "gpt", "openai", "sk-1")
	store.addKey(storage.KindTrading, user.ID, "t212", "read-only", "tk-1")

	router := profileRouter(store)

	resp := testutil.MakeAuthRequest(router, http.MethodGet, "/api/user/profile", nil, tokenFor(t, user))
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)

	var out struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
		AIKeys []struct {
			Title  string `json:"title"`
			APIKey string `json:"apiKey"`
		} `json:"aiKeys"`
		TradingKeys    []json.RawMessage `json:"tradingKeys"`
		MarketDataKeys []json.RawMessage `json:"marketDataKeys"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.User.Email != "a@x.com" {
		t.Fatalf("unexpected user %+v", out.User)
	}
	if len(out.AIKeys) != 1 || len(out.TradingKeys) != 1 || len(out.MarketDataKeys) != 0 {
		t.Fatalf("unexpected key summaries: %s", resp.Body.String())
	}
	// Profile summaries never include credential material.
	if out.AIKeys[0].APIKey != "" {
		t.Fatalf("profile leaked a secret: %s", resp.Body.String())
	}
}

func TestUpdateProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	hash, _ := security.HashPassword("oldpass", 4)
	user := store.addUser("a@x.com", hash)
	router := profileRouter(store)
	token := tokenFor(t, user)

	resp := testutil.MakeAuthRequest(router, http.MethodPut, "/api/user/profile",
		gin.H{"firstName": "Ada", "password": "newpass1"}, token)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)

	if user.FirstName == nil || *user.FirstName != "Ada" {
		t.Fatalf("first name not applied: %+v", user)
	}
	if !security.VerifyPassword("newpass1", user.PasswordHash) {
		t.Fatalf("password not re-hashed")
	}
	if security.VerifyPassword("oldpass", user.PasswordHash) {
		t.Fatalf("old password still valid")
	}
}

func TestUpdateProfileEmailConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	user := store.addUser("a@x.com", "hash")
	store.addUser("taken@x.com", "hash")
	router := profileRouter(store)

	resp := testutil.MakeAuthRequest(router, http.MethodPut, "/api/user/profile",
		gin.H{"email": "taken@x.com"}, tokenFor(t, user))
	testutil.AssertHTTPStatus(t, resp, http.StatusConflict)
	testutil.AssertErrorMessage(t, resp, "User with this email already exists")

	if user.Email != "a@x.com" {
		t.Fatalf("conflicting update must not change the email")
	}
}

func TestUpdateProfileRejectsShortPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	user := store.addUser("a@x.com", "hash")
	router := profileRouter(store)

	resp := testutil.MakeAuthRequest(router, http.MethodPut, "/api/user/profile",
		gin.H{"password": "short"}, tokenFor(t, user))
	testutil.AssertHTTPStatus(t, resp, http.StatusBadRequest)
}

func TestProfileExpiredToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	user := store.addUser("a@x.com", "hash")
	router := profileRouter(store)

	expired, err := testutil.GenerateJWT(user.ID, user.Email, testAccessSecret,
		time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	resp := testutil.MakeAuthRequest(router, http.MethodGet, "/api/user/profile", nil, expired)
	testutil.AssertHTTPStatus(t, resp, http.StatusUnauthorized)
	testutil.AssertErrorMessage(t, resp, "Invalid or expired token")
}
