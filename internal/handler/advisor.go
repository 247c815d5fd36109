package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pillkeep/pillkeep/internal/advisor"
)

type AdvisorHandler struct {
	client *advisor.Client
	logger *slog.Logger
}

func NewAdvisorHandler(client *advisor.Client, logger *slog.Logger) *AdvisorHandler {
	return &AdvisorHandler{client: client, logger: logger}
}

type chatRequest struct {
	Question string         `json:"question"`
	History  []advisor.Turn `json:"history"`
}

// Chat handles POST /api/advisor/chat
func (h *AdvisorHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := h.client.Ask(r.Context(), req.Question, req.History)
	if err != nil {
		if errors.Is(err, advisor.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, "advisor is not configured")
			return
		}
		h.logger.Error("advisor chat", "error", err)
		writeError(w, http.StatusBadGateway, "advisor is unavailable, try again later")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}
