package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/nwillis/stockchat/internal/app"
	"github.com/nwillis/stockchat/internal/common"
	"github.com/nwillis/stockchat/internal/models"
	"github.com/nwillis/stockchat/internal/services/chat"
	"github.com/nwillis/stockchat/internal/storage"
)

// newTestServer creates a test server backed by real storage in a temp dir.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := common.NewSilentLogger()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "data")

	mgr, err := storage.NewManager(logger, cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	a := &app.App{
		Config:      cfg,
		Logger:      logger,
		Storage:     mgr,
		ChatService: chat.NewService(mgr.ChatStore(), logger),
	}
	return NewServer(a)
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return bytes.NewBuffer(data)
}

// registerTestUser registers a user through the API and returns the token.
func registerTestUser(t *testing.T, srv *Server, email, password string) string {
	t.Helper()
	body := jsonBody(t, map[string]string{
		"email":    email,
		"password": password,
		"name":     "Test User",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("registerTestUser: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Data.Token == "" {
		t.Fatal("registerTestUser: expected token in response")
	}
	return resp.Data.Token
}

// --- JWT helpers ---

func TestSignAndValidateJWT_RoundTrip(t *testing.T) {
	cfg := &common.AuthConfig{
		JWTSecret:   "test-secret-key",
		TokenExpiry: "1h",
	}
	user := &models.User{
		UserID: "u-1",
		Email:  "alice@example.com",
		Name:   "Alice",
	}

	token, err := signJWT(user, cfg)
	if err != nil {
		t.Fatalf("signJWT failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	parsed, claims, err := validateJWT(token, []byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("validateJWT failed: %v", err)
	}
	if !parsed.Valid {
		t.Error("expected token to be valid")
	}
	if claims["sub"] != "u-1" {
		t.Errorf("expected sub=u-1, got %v", claims["sub"])
	}
	if claims["email"] != "alice@example.com" {
		t.Errorf("expected email=alice@example.com, got %v", claims["email"])
	}
	if claims["iss"] != "stockchat-server" {
		t.Errorf("expected iss=stockchat-server, got %v", claims["iss"])
	}
}

func TestValidateJWT_ExpiredToken(t *testing.T) {
	cfg := &common.AuthConfig{
		JWTSecret:   "test-secret-key",
		TokenExpiry: "-1h", // negative duration = already expired
	}
	token, err := signJWT(&models.User{UserID: "u-1"}, cfg)
	if err != nil {
		t.Fatalf("signJWT failed: %v", err)
	}

	_, _, err = validateJWT(token, []byte(cfg.JWTSecret))
	if err == nil {
		t.Error("expected error for expired token")
	}
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	cfg := &common.AuthConfig{
		JWTSecret:   "correct-secret",
		TokenExpiry: "1h",
	}
	token, err := signJWT(&models.User{UserID: "u-1"}, cfg)
	if err != nil {
		t.Fatalf("signJWT failed: %v", err)
	}

	_, _, err = validateJWT(token, []byte("wrong-secret"))
	if err == nil {
		t.Error("expected error for wrong secret")
	}
}

// --- Register ---

func TestHandleAuthRegister_Success(t *testing.T) {
	srv := newTestServer(t)

	body := jsonBody(t, map[string]string{
		"email":    "Alice@Example.com",
		"password": "secretpass",
		"name":     "Alice",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Token string                 `json:"token"`
			User  map[string]interface{} `json:"user"`
		} `json:"data"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)

	if !resp.Success {
		t.Error("expected success=true")
	}
	if resp.Data.Token == "" {
		t.Error("expected token in response")
	}
	if resp.Data.User["email"] != "alice@example.com" {
		t.Errorf("expected lowercased email, got %v", resp.Data.User["email"])
	}

	cookieSet := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == srv.app.Config.Auth.CookieName && c.Value != "" {
			cookieSet = true
		}
	}
	if !cookieSet {
		t.Error("expected session cookie to be set")
	}
}

func TestHandleAuthRegister_DuplicateEmail(t *testing.T) {
	srv := newTestServer(t)
	registerTestUser(t, srv, "alice@example.com", "secretpass")

	body := jsonBody(t, map[string]string{
		"email":    "ALICE@example.com",
		"password": "otherpass1",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestHandleAuthRegister_Validation(t *testing.T) {
	srv := newTestServer(t)

	cases := []map[string]string{
		{"email": "", "password": "secretpass"},
		{"email": "not-an-email", "password": "secretpass"},
		{"email": "alice@example.com", "password": "short"},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, c))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("payload %v: expected 400, got %d", c, rec.Code)
		}
	}
}

// --- Login ---

func TestHandleAuthLogin_Success(t *testing.T) {
	srv := newTestServer(t)
	registerTestUser(t, srv, "alice@example.com", "secretpass")

	body := jsonBody(t, map[string]string{
		"email":    "alice@example.com",
		"password": "secretpass",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleAuthLogin_WrongPassword(t *testing.T) {
	srv := newTestServer(t)
	registerTestUser(t, srv, "alice@example.com", "secretpass")

	body := jsonBody(t, map[string]string{
		"email":    "alice@example.com",
		"password": "wrongpass",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestHandleAuthLogin_UnknownEmail(t *testing.T) {
	srv := newTestServer(t)

	body := jsonBody(t, map[string]string{
		"email":    "nobody@example.com",
		"password": "secretpass",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

// --- Me ---

func TestHandleAuthMe_BearerToken(t *testing.T) {
	srv := newTestServer(t)
	token := registerTestUser(t, srv, "alice@example.com", "secretpass")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			User map[string]interface{} `json:"user"`
		} `json:"data"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Data.User["email"] != "alice@example.com" {
		t.Errorf("expected email alice@example.com, got %v", resp.Data.User["email"])
	}
}

func TestHandleAuthMe_CookieToken(t *testing.T) {
	srv := newTestServer(t)
	token := registerTestUser(t, srv, "alice@example.com", "secretpass")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: srv.app.Config.Auth.CookieName, Value: token})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleAuthMe_Unauthenticated(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestHandleAuthMe_InvalidToken(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

// --- Logout ---

func TestHandleAuthLogout_ClearsCookie(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == srv.app.Config.Auth.CookieName {
			found = true
			if c.MaxAge >= 0 {
				t.Errorf("expected expired cookie, got MaxAge=%d", c.MaxAge)
			}
		}
	}
	if !found {
		t.Error("expected session cookie in response")
	}
}
