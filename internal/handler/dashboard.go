package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pillkeep/pillkeep/internal/auth"
	"github.com/pillkeep/pillkeep/internal/model"
	"github.com/pillkeep/pillkeep/internal/schedule"
	"github.com/pillkeep/pillkeep/internal/stock"
	"github.com/pillkeep/pillkeep/internal/store"
)

type DashboardHandler struct {
	rollover *schedule.Rollover
	meds     *store.MedicineStore
	ledger   *stock.Ledger
	logger   *slog.Logger
}

func NewDashboardHandler(rollover *schedule.Rollover, meds *store.MedicineStore, ledger *stock.Ledger, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{rollover: rollover, meds: meds, ledger: ledger, logger: logger}
}

type doseView struct {
	model.Medicine
	Available int `json:"available"`
}

type stockAlerts struct {
	Expired      int                     `json:"expired"`
	ExpiringSoon int                     `json:"expiring_soon"`
	LowStock     []stock.LowStockWarning `json:"low_stock"`
}

type dashboardResponse struct {
	Date       string      `json:"date"`
	RolledOver bool        `json:"rolled_over"`
	Doses      []doseView  `json:"doses"`
	Alerts     stockAlerts `json:"alerts"`
}

// Dashboard handles GET /api/dashboard: today's dose list with per-drug
// availability plus a shelf-life and low-stock summary. The first request
// of a new day triggers the rollover that resets yesterday's taken marks.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())
	now := time.Now()

	rolled, err := h.rollover.RunIfNeeded(householdID, now)
	if err != nil {
		h.logger.Error("rollover", "household_id", householdID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to roll schedule over")
		return
	}

	meds, err := h.meds.ListByDay(householdID, now.Weekday().String())
	if err != nil {
		h.logger.Error("list today's doses", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list doses")
		return
	}

	doses := make([]doseView, 0, len(meds))
	for _, m := range meds {
		avail, err := h.ledger.TotalAvailable(householdID, m.Name, m.Strength)
		if err != nil {
			h.logger.Error("total available", "medicine_id", m.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read inventory")
			return
		}
		doses = append(doses, doseView{Medicine: m, Available: avail})
	}

	batches, err := h.ledger.List(householdID)
	if err != nil {
		h.logger.Error("list batches for dashboard", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read inventory")
		return
	}
	report := stock.Partition(batches, now)
	alerts := stockAlerts{
		Expired:      len(report.Expired),
		ExpiringSoon: len(report.ExpiringSoon),
		LowStock:     stock.LowStock(batches, stock.LowStockThreshold),
	}
	if alerts.LowStock == nil {
		alerts.LowStock = []stock.LowStockWarning{}
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		Date:       schedule.DateString(now),
		RolledOver: rolled,
		Doses:      doses,
		Alerts:     alerts,
	})
}

// Calendar handles GET /api/calendar: the weekly schedule grouped by day.
func (h *DashboardHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	meds, err := h.meds.ListByHousehold(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("list medicines for calendar", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build calendar")
		return
	}

	week := make(map[string][]model.Medicine, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		week[d.String()] = []model.Medicine{}
	}
	for _, m := range meds {
		week[m.DayOfWeek] = append(week[m.DayOfWeek], m)
	}
	writeJSON(w, http.StatusOK, week)
}
