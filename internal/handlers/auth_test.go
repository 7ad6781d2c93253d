package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/David-Krivoklatsky/GreedAdvisor/internal/auth"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/httpmiddleware"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/rate"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/security"
	"github.com/David-Krivoklatsky/GreedAdvisor/internal/storage"
	"github.com/David-Krivoklatsky/GreedAdvisor/testutil"
	"github.com/gin-gonic/gin"
	"log/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func setupAuthHandler(store *memStore, now time.Time) *AuthHandler {
	h := NewAuthHandler(store, testLogger(), "access-secret", "refresh-secret",
		30*time.Minute, 30*24*time.Hour, 4, false)
	h.Clock = fakeClock{now: now}
	return h
}

func authRouter(h *AuthHandler) *gin.Engine {
	router := gin.New()
	h.RegisterRoutes(router.Group("/api"))
	return router
}

func performRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	router := authRouter(setupAuthHandler(store, time.Now()))

	resp := performRequest(router, http.MethodPost, "/api/auth/register",
		gin.H{"email": "a@x.com", "password": "secret1"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", resp.Code, resp.Body.String())
	}

	var out struct {
		AccessToken string `json:"accessToken"`
		User        struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.AccessToken == "" {
		t.Fatalf("expected access token")
	}
	if out.User.Email != "a@x.com" {
		t.Fatalf("expected sanitized user, got %+v", out.User)
	}
	if strings.Contains(resp.Body.String(), "password") {
		t.Fatalf("response leaks password material: %s", resp.Body.String())
	}

	cookie := refreshCookieFrom(t, resp)
	if cookie.Value == "" || !cookie.HttpOnly {
		t.Fatalf("expected httpOnly refresh cookie, got %+v", cookie)
	}
	if cookie.Path != "/" {
		t.Fatalf("expected cookie path /, got %q", cookie.Path)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	router := authRouter(setupAuthHandler(store, time.Now()))

	resp := performRequest(router, http.MethodPost, "/api/auth/register",
		gin.H{"email": "a@x.com", "password": "secret1"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	resp = performRequest(router, http.MethodPost, "/api/auth/register",
		gin.H{"email": "a@x.com", "password": "secret1"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	if len(store.users) != 1 {
		t.Fatalf("expected a single user row, got %d", len(store.users))
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := authRouter(setupAuthHandler(newMemStore(), time.Now()))

	cases := []gin.H{
		{"email": "not-an-email", "password": "secret1"},
		{"email": "a@x.com", "password": "short"},
		{"email": "a@x.com"},
	}
	for _, body := range cases {
		resp := performRequest(router, http.MethodPost, "/api/auth/register", body)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", body, resp.Code)
		}
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	hash, err := security.HashPassword("secret1", 4)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	store.addUser("a@x.com", hash)

	router := authRouter(setupAuthHandler(store, time.Now()))

	wrongPassword := performRequest(router, http.MethodPost, "/api/auth/login",
		gin.H{"email": "a@x.com", "password": "wrong-pass"})
	unknownEmail := performRequest(router, http.MethodPost, "/api/auth/login",
		gin.H{"email": "nobody@x.com", "password": "wrong-pass"})

	if wrongPassword.Code != http.StatusUnauthorized || unknownEmail.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrongPassword.Code, unknownEmail.Code)
	}
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Fatalf("error bodies differ: %q vs %q", wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}

func TestLoginSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	hash, _ := security.HashPassword("secret1", 4)
	store.addUser("a@x.com", hash)

	router := authRouter(setupAuthHandler(store, time.Now()))

	resp := performRequest(router, http.MethodPost, "/api/auth/login",
		gin.H{"email": "a@x.com", "password": "secret1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	if cookie := refreshCookieFrom(t, resp); cookie.Value == "" {
		t.Fatalf("expected refresh cookie on login")
	}
}

func TestRefreshFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	user := store.addUser("a@x.com", "irrelevant")

	now := time.Now()
	h := setupAuthHandler(store, now)
	router := authRouter(h)

	t.Run("missing cookie", func(t *testing.T) {
		resp := performRequest(router, http.MethodPost, "/api/auth/refresh", nil)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.Code)
		}
	})

	t.Run("garbage cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "garbage"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	refreshToken, err := auth.NewToken(user.ID, user.Email, h.RefreshSecret, h.RefreshTTL, now)
	if err != nil {
		t.Fatalf("sign refresh token: %v", err)
	}

	t.Run("valid cookie mints access token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refreshToken})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
		}

		var out struct {
			AccessToken string `json:"accessToken"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		claims, err := auth.ParseToken(out.AccessToken, h.AccessSecret)
		if err != nil {
			t.Fatalf("minted access token invalid: %v", err)
		}
		if claims.UserID != user.ID || claims.Email != user.Email {
			t.Fatalf("unexpected claims %+v", claims)
		}
	})

	t.Run("deactivated user rejected", func(t *testing.T) {
		user.IsActive = false
		defer func() { user.IsActive = true }()

		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refreshToken})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("expired refresh token rejected", func(t *testing.T) {
		expired, err := auth.NewToken(user.ID, user.Email, h.RefreshSecret, time.Minute, now.Add(-time.Hour))
		if err != nil {
			t.Fatalf("sign expired token: %v", err)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: expired})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})
}

func TestLogoutClearsCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := authRouter(setupAuthHandler(newMemStore(), time.Now()))

	resp := performRequest(router, http.MethodPost, "/api/auth/logout", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	cookie := refreshCookieFrom(t, resp)
	if cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got %+v", cookie)
	}
}

// Mirrors the happy-path walkthrough: register, duplicate register, bad
// login, good login.
func TestRegisterLoginEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	router := authRouter(setupAuthHandler(store, time.Now()))

	resp := performRequest(router, http.MethodPost, "/api/auth/register",
		gin.H{"email": "a@x.com", "password": "secret1"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.Code)
	}

	resp = performRequest(router, http.MethodPost, "/api/auth/register",
		gin.H{"email": "a@x.com", "password": "secret1"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", resp.Code)
	}

	resp = performRequest(router, http.MethodPost, "/api/auth/login",
		gin.H{"email": "a@x.com", "password": "wrongpw"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", resp.Code)
	}

	resp = performRequest(router, http.MethodPost, "/api/auth/login",
		gin.H{"email": "a@x.com", "password": "secret1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.Code)
	}
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil || out.AccessToken == "" {
		t.Fatalf("expected access token in login response")
	}
}

// Assembles the router the way main does: the limiter gates only the auth
// routes, so credential CRUD keeps answering after the auth window is spent.
func TestRateLimitCoversOnlyAuthRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	hash, _ := security.HashPassword("secret1", 4)
	user := store.addUser("a@x.com", hash)
	store.addKey(storage.KindAI, user.ID, "gpt", "openai", "sk-1")

	limiter := rate.NewMemory(1, time.Minute)

	router := gin.New()
	api := router.Group("/api")
	authRoutes := api.Group("/", httpmiddleware.RateLimit(limiter, testLogger()))
	setupAuthHandler(store, time.Now()).RegisterRoutes(authRoutes)
	protected := api.Group("/", auth.Middleware([]byte("access-secret")))
	NewKeyHandler(store, testLogger(), AIKeysConfig).RegisterRoutes(protected)

	login := performRequest(router, http.MethodPost, "/api/auth/login",
		gin.H{"email": "a@x.com", "password": "secret1"})
	if login.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", login.Code)
	}
	var session struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(login.Body.Bytes(), &session); err != nil || session.AccessToken == "" {
		t.Fatalf("expected access token in login response")
	}

	limited := performRequest(router, http.MethodPost, "/api/auth/login",
		gin.H{"email": "a@x.com", "password": "secret1"})
	if limited.Code != http.StatusTooManyRequests {
		t.Fatalf("second login: expected 429, got %d", limited.Code)
	}

	for i := 0; i < 3; i++ {
		resp := testutil.MakeAuthRequest(router, http.MethodGet, "/api/user/ai-keys", nil, session.AccessToken)
		if resp.Code != http.StatusOK {
			t.Fatalf("key listing %d: expected 200 with the auth window spent, got %d (%s)",
				i+1, resp.Code, resp.Body.String())
		}
	}
}

func refreshCookieFrom(t *testing.T, resp *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range resp.Result().Cookies() {
		if cookie.Name == "refreshToken" {
			return cookie
		}
	}
	t.Fatalf("refresh cookie not set")
	return nil
}
