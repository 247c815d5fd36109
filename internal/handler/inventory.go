package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pillkeep/pillkeep/internal/auth"
	"github.com/pillkeep/pillkeep/internal/model"
	"github.com/pillkeep/pillkeep/internal/stock"
	"github.com/pillkeep/pillkeep/internal/websocket"
)

type InventoryHandler struct {
	ledger *stock.Ledger
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewInventoryHandler(ledger *stock.Ledger, hub *websocket.Hub, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, hub: hub, logger: logger}
}

type batchRequest struct {
	GTIN       string `json:"gtin"`
	Name       string `json:"name"`
	Strength   int    `json:"strength"`
	LotCode    string `json:"lot_code"`
	Quantity   int    `json:"quantity"`
	ExpiryDate string `json:"expiry_date"`
}

// Upsert handles POST /api/inventory. Re-submitting an existing
// (gtin, strength, lot) identity merges into the batch instead of
// creating a duplicate.
func (h *InventoryHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	householdID := auth.HouseholdID(r.Context())
	b, err := h.ledger.Upsert(householdID, stock.BatchInput{
		GTIN:       req.GTIN,
		Name:       req.Name,
		Strength:   req.Strength,
		LotCode:    req.LotCode,
		Quantity:   req.Quantity,
		ExpiryDate: req.ExpiryDate,
	}, time.Now())
	if err != nil {
		var verr *stock.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s %s", verr.Field, verr.Reason))
			return
		}
		h.logger.Error("upsert batch", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save batch")
		return
	}

	h.hub.Broadcast(householdID, websocket.NewMessage(websocket.EntityInventory, "updated", b.ID, nil))
	writeJSON(w, http.StatusCreated, b)
}

// List handles GET /api/inventory
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	batches, err := h.ledger.List(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("list inventory", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list inventory")
		return
	}
	if batches == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

type batchAnalysis struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	LotCode   string           `json:"lot_code"`
	Quantity  int              `json:"quantity"`
	State     stock.ShelfState `json:"state"`
	Remaining stock.Remaining  `json:"remaining"`
}

type analysisResponse struct {
	Expired      []batchAnalysis         `json:"expired"`
	ExpiringSoon []batchAnalysis         `json:"expiring_soon"`
	Healthy      []batchAnalysis         `json:"healthy"`
	LowStock     []stock.LowStockWarning `json:"low_stock"`
}

// Analysis handles GET /api/inventory/analysis: the shelf-life report
// with time remaining per batch plus low-stock warnings.
func (h *InventoryHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	batches, err := h.ledger.List(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("inventory analysis", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to analyze inventory")
		return
	}

	now := time.Now()
	report := stock.Partition(batches, now)

	resp := analysisResponse{
		Expired:      annotate(report.Expired, stock.StateExpired, now),
		ExpiringSoon: annotate(report.ExpiringSoon, stock.StateExpiringSoon, now),
		Healthy:      annotate(report.Healthy, stock.StateHealthy, now),
		LowStock:     stock.LowStock(batches, stock.LowStockThreshold),
	}
	if resp.LowStock == nil {
		resp.LowStock = []stock.LowStockWarning{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func annotate(batches []model.InventoryBatch, state stock.ShelfState, now time.Time) []batchAnalysis {
	out := make([]batchAnalysis, 0, len(batches))
	for _, b := range batches {
		out = append(out, batchAnalysis{
			ID:        b.ID,
			Name:      b.Name,
			LotCode:   b.LotCode,
			Quantity:  b.Quantity,
			State:     state,
			Remaining: stock.TimeRemaining(b.Expiry(), now),
		})
	}
	return out
}
