package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pillkeep/pillkeep/internal/auth"
	"github.com/pillkeep/pillkeep/internal/stock"
	"github.com/pillkeep/pillkeep/internal/store"
	"github.com/pillkeep/pillkeep/internal/websocket"
)

var weekdays = map[string]bool{
	"Sunday": true, "Monday": true, "Tuesday": true, "Wednesday": true,
	"Thursday": true, "Friday": true, "Saturday": true,
}

type MedicineHandler struct {
	meds   *store.MedicineStore
	engine *stock.Engine
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewMedicineHandler(meds *store.MedicineStore, engine *stock.Engine, hub *websocket.Hub, logger *slog.Logger) *MedicineHandler {
	return &MedicineHandler{meds: meds, engine: engine, hub: hub, logger: logger}
}

type medicineRequest struct {
	Name      string `json:"name"`
	Strength  int    `json:"strength"`
	DayOfWeek string `json:"day_of_week"`
	TimeOfDay string `json:"time_of_day"`
}

func (req *medicineRequest) validate() string {
	req.Name = stock.NormalizeName(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if req.Strength <= 0 || req.Strength > stock.MaxStrength {
		return "strength must be between 1 and 1000"
	}
	if !weekdays[req.DayOfWeek] {
		return "day_of_week must be a weekday name"
	}
	if len(req.TimeOfDay) != 5 || req.TimeOfDay[2] != ':' {
		return "time_of_day must be HH:MM"
	}
	return ""
}

// Create handles POST /api/medicines
func (h *MedicineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req medicineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	householdID := auth.HouseholdID(r.Context())
	m, err := h.meds.Create(householdID, auth.UserID(r.Context()), req.Name, req.Strength, req.DayOfWeek, req.TimeOfDay)
	if err != nil {
		h.logger.Error("create medicine", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create medicine")
		return
	}

	h.hub.Broadcast(householdID, websocket.NewMessage(websocket.EntityMedicine, "created", m.ID, nil))
	writeJSON(w, http.StatusCreated, m)
}

// List handles GET /api/medicines
func (h *MedicineHandler) List(w http.ResponseWriter, r *http.Request) {
	meds, err := h.meds.ListByHousehold(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("list medicines", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list medicines")
		return
	}
	if meds == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, meds)
}

// Update handles PUT /api/medicines/{id}
func (h *MedicineHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req medicineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	householdID := auth.HouseholdID(r.Context())
	existing, err := h.meds.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get medicine")
		return
	}
	if existing == nil || existing.HouseholdID != householdID {
		writeError(w, http.StatusNotFound, "medicine not found")
		return
	}

	m, err := h.meds.Update(id, req.Name, req.Strength, req.DayOfWeek, req.TimeOfDay)
	if err != nil {
		h.logger.Error("update medicine", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update medicine")
		return
	}

	h.hub.Broadcast(householdID, websocket.NewMessage(websocket.EntityMedicine, "updated", m.ID, nil))
	writeJSON(w, http.StatusOK, m)
}

// Delete handles DELETE /api/medicines/{id}. Removing a schedule entry
// never restocks inventory; consumed units stay consumed.
func (h *MedicineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	householdID := auth.HouseholdID(r.Context())
	existing, err := h.meds.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get medicine")
		return
	}
	if existing == nil || existing.HouseholdID != householdID {
		writeError(w, http.StatusNotFound, "medicine not found")
		return
	}

	if err := h.meds.Delete(id); err != nil {
		h.logger.Error("delete medicine", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete medicine")
		return
	}

	h.hub.Broadcast(householdID, websocket.NewMessage(websocket.EntityMedicine, "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Take handles POST /api/medicines/{id}/take
func (h *MedicineHandler) Take(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	householdID := auth.HouseholdID(r.Context())
	result, err := h.engine.Consume(householdID, id)
	if err != nil {
		var oos *stock.OutOfStockError
		switch {
		case errors.Is(err, stock.ErrMedicineNotFound):
			writeError(w, http.StatusNotFound, "medicine not found")
		case errors.As(err, &oos):
			writeError(w, http.StatusConflict, oos.Error())
		default:
			h.logger.Error("take medicine", "medicine_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to take medicine")
		}
		return
	}

	if !result.AlreadyTaken {
		extra := map[string]any{}
		if result.Batch != nil {
			extra["batch_id"] = result.Batch.ID
			extra["batch_quantity"] = result.Batch.Quantity
		}
		h.hub.Broadcast(householdID, websocket.NewMessage(websocket.EntityMedicine, "taken", id, extra))
	}
	writeJSON(w, http.StatusOK, result)
}
