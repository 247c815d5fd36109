package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pillkeep/pillkeep/internal/auth"
	"github.com/pillkeep/pillkeep/internal/household"
	"github.com/pillkeep/pillkeep/internal/websocket"
)

type HouseholdHandler struct {
	resolver *household.Resolver
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewHouseholdHandler(resolver *household.Resolver, hub *websocket.Hub, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{resolver: resolver, hub: hub, logger: logger}
}

// Create handles POST /api/households
func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	if auth.HouseholdID(r.Context()) != 0 {
		writeError(w, http.StatusConflict, "already in a household")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	hh, err := h.resolver.Create(req.Name, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("create household", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create household")
		return
	}
	writeJSON(w, http.StatusCreated, hh)
}

// Join handles POST /api/households/join
func (h *HouseholdHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InviteCode string `json:"invite_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	hh, err := h.resolver.Join(strings.TrimSpace(req.InviteCode), auth.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, household.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no household with that invite code")
			return
		}
		h.logger.Error("join household", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to join household")
		return
	}

	h.hub.Broadcast(hh.ID, websocket.NewMessage(websocket.EntityHousehold, "member_joined", hh.ID, nil))
	writeJSON(w, http.StatusOK, hh)
}

// Members handles GET /api/households/members
func (h *HouseholdHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.resolver.Members(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// ClaimAdmin handles POST /api/households/claim-admin. Losing the race
// returns 409 with the current household state so the client can refresh.
func (h *HouseholdHandler) ClaimAdmin(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())
	hh, err := h.resolver.ClaimAdmin(householdID, auth.UserID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, household.ErrAlreadyClaimed):
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":     "administrator seat already claimed",
				"household": hh,
			})
		case errors.Is(err, household.ErrNotMember):
			writeError(w, http.StatusForbidden, "not a household member")
		default:
			h.logger.Error("claim admin", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to claim admin")
		}
		return
	}

	h.hub.Broadcast(householdID, websocket.NewMessage(websocket.EntityHousehold, "admin_claimed", householdID, nil))
	writeJSON(w, http.StatusOK, hh)
}

// Leave handles POST /api/households/leave
func (h *HouseholdHandler) Leave(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())
	if err := h.resolver.Leave(householdID, auth.UserID(r.Context())); err != nil {
		h.logger.Error("leave household", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to leave household")
		return
	}

	h.hub.Broadcast(householdID, websocket.NewMessage(websocket.EntityHousehold, "member_left", householdID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Kick handles DELETE /api/households/members/{id}. Administrator-only.
func (h *HouseholdHandler) Kick(w http.ResponseWriter, r *http.Request) {
	targetID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	householdID := auth.HouseholdID(r.Context())
	if err := h.resolver.Kick(householdID, auth.UserID(r.Context()), targetID); err != nil {
		switch {
		case errors.Is(err, household.ErrNotAdmin):
			writeError(w, http.StatusForbidden, "administrator only")
		case errors.Is(err, household.ErrNotMember):
			writeError(w, http.StatusNotFound, "user is not a household member")
		default:
			h.logger.Error("kick member", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to remove member")
		}
		return
	}

	h.hub.Broadcast(householdID, websocket.NewMessage(websocket.EntityHousehold, "member_left", householdID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Destroy handles POST /api/households/destroy. The body must carry the
// confirmation literal typed by the administrator.
func (h *HouseholdHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm string `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	householdID := auth.HouseholdID(r.Context())
	err := h.resolver.Destroy(householdID, auth.UserID(r.Context()), req.Confirm)
	if err != nil {
		var cascade *household.CascadeError
		switch {
		case errors.Is(err, household.ErrConfirmation):
			writeError(w, http.StatusBadRequest, "confirmation text does not match")
		case errors.Is(err, household.ErrNotAdmin):
			writeError(w, http.StatusForbidden, "administrator only")
		case errors.As(err, &cascade):
			writeError(w, http.StatusInternalServerError, cascade.Error())
		default:
			h.logger.Error("destroy household", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to destroy household")
		}
		return
	}

	h.hub.Broadcast(householdID, websocket.NewMessage(websocket.EntityHousehold, "destroyed", householdID, nil))
	w.WriteHeader(http.StatusNoContent)
}
