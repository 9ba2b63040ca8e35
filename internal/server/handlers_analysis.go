package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nwillis/stockchat/internal/common"
	"github.com/nwillis/stockchat/internal/interfaces"
	"github.com/nwillis/stockchat/internal/services/analysis"
)

// requireUser resolves the authenticated user ID or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := common.ResolveUserID(r.Context())
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}

// handleAnalyze handles POST /api/analysis/analyze.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if s.app.AnalysisService == nil {
		WriteError(w, http.StatusServiceUnavailable, "analysis is not configured (missing Gemini API key)")
		return
	}

	var req struct {
		Query  string `json:"query"`
		ChatID string `json:"chatId"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := s.app.AnalysisService.Analyze(r.Context(), userID, strings.TrimSpace(req.ChatID), req.Query)
	if err != nil {
		switch {
		case errors.Is(err, analysis.ErrEmptyQuery):
			WriteError(w, http.StatusBadRequest, "query is required")
		case errors.Is(err, interfaces.ErrChatNotFound):
			WriteError(w, http.StatusNotFound, "chat not found")
		default:
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Analysis failed")
			WriteError(w, http.StatusBadGateway, "analysis failed: "+err.Error())
		}
		return
	}

	WriteData(w, http.StatusOK, result)
}

// handleChatsList handles GET /api/analysis/chats.
func (s *Server) handleChatsList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	chats, err := s.app.ChatService.ListChats(r.Context(), userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list chats")
		WriteError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	WriteData(w, http.StatusOK, chats)
}

// routeChats dispatches /api/analysis/chats/{id} to get or delete.
func (s *Server) routeChats(w http.ResponseWriter, r *http.Request) {
	chatID := PathParam(r, "/api/analysis/chats/", "")
	if chatID == "" {
		s.handleChatsList(w, r)
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		chat, err := s.app.ChatService.GetChat(r.Context(), userID, chatID)
		if err != nil {
			if errors.Is(err, interfaces.ErrChatNotFound) {
				WriteError(w, http.StatusNotFound, "chat not found")
				return
			}
			s.logger.Error().Err(err).Str("chat_id", chatID).Msg("Failed to load chat")
			WriteError(w, http.StatusInternalServerError, "failed to load chat")
			return
		}
		WriteData(w, http.StatusOK, chat)

	case http.MethodDelete:
		if err := s.app.ChatService.DeleteChat(r.Context(), userID, chatID); err != nil {
			if errors.Is(err, interfaces.ErrChatNotFound) {
				WriteError(w, http.StatusNotFound, "chat not found")
				return
			}
			s.logger.Error().Err(err).Str("chat_id", chatID).Msg("Failed to delete chat")
			WriteError(w, http.StatusInternalServerError, "failed to delete chat")
			return
		}
		WriteData(w, http.StatusOK, map[string]interface{}{"deleted": chatID})

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}
