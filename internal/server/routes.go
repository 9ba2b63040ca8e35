package server

import (
	"net/http"
	"time"

	"github.com/nwillis/stockchat/internal/common"
	"github.com/nwillis/stockchat/internal/storage"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)

	// Auth
	mux.HandleFunc("/api/auth/register", s.handleAuthRegister)
	mux.HandleFunc("/api/auth/login", s.handleAuthLogin)
	mux.HandleFunc("/api/auth/logout", s.handleAuthLogout)
	mux.HandleFunc("/api/auth/me", s.handleAuthMe)

	// Analysis
	mux.HandleFunc("/api/analysis/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/analysis/chats/", s.routeChats)
	mux.HandleFunc("/api/analysis/chats", s.handleChatsList)
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	uptime := time.Since(s.app.StartupTime).Round(time.Second)

	schemaVersion := ""
	if v, err := s.app.Storage.GetSystemKV(r.Context(), storage.SchemaVersionKey); err == nil {
		schemaVersion = v
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"schema_version":    schemaVersion,
		"environment":       s.app.Config.Environment,
		"storage_path":      s.app.Config.Storage.Path,
		"logging_level":     s.app.Config.Logging.Level,
		"yahoo_base_url":    s.app.Config.Clients.Yahoo.BaseURL,
		"gemini_configured": s.app.LLMClient != nil,
		"gemini_model":      s.app.Config.Clients.Gemini.Model,
		"uptime":            uptime.String(),
		"started_at":        s.app.StartupTime,
	})
}
