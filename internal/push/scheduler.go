package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pillkeep/pillkeep/internal/model"
	"github.com/pillkeep/pillkeep/internal/stock"
	"github.com/pillkeep/pillkeep/internal/store"
)

// Scheduler periodically checks each subscribed household for doses that
// are due now, drugs running low, and batches nearing expiry.
type Scheduler struct {
	mu       sync.RWMutex
	service  *Service
	push     *store.PushStore
	meds     *store.MedicineStore
	batches  *store.InventoryStore
	logger   *slog.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a notification scheduler.
func NewScheduler(svc *Service, pushStore *store.PushStore, medStore *store.MedicineStore, batchStore *store.InventoryStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:  svc,
		push:     pushStore,
		meds:     medStore,
		batches:  batchStore,
		logger:   logger,
		interval: 60 * time.Second,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(time.Now())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(now time.Time) {
	householdIDs, err := s.push.ListHouseholdIDs()
	if err != nil {
		s.logger.Error("list subscribed households", "error", err)
		return
	}

	for _, hid := range householdIDs {
		s.checkDosesDue(hid, now)
		s.checkStockHealth(hid, now)
	}
}

// checkDosesDue notifies when a pending dose's scheduled time arrives.
func (s *Scheduler) checkDosesDue(householdID int64, now time.Time) {
	meds, err := s.meds.ListByDay(householdID, now.Weekday().String())
	if err != nil {
		s.logger.Error("list doses due", "household_id", householdID, "error", err)
		return
	}

	hhmm := now.Format("15:04")
	today := now.Format("2006-01-02")
	for _, m := range meds {
		if m.Taken || m.TimeOfDay > hhmm {
			continue
		}
		refID := fmt.Sprintf("dose-%d-%s", m.ID, today)
		if s.alreadySent(householdID, model.NotifTypeDoseDue, refID) {
			continue
		}

		s.broadcast(householdID, Payload{
			Title: "Dose due",
			Body:  fmt.Sprintf("%s %dmg is due at %s", m.Name, m.Strength, m.TimeOfDay),
			URL:   "/",
			Tag:   fmt.Sprintf("dose-%d", m.ID),
		})
		s.markSent(householdID, model.NotifTypeDoseDue, refID)
	}
}

// checkStockHealth runs the daily low-stock and expiry sweep. The
// date-scoped refID keeps it to one notification per condition per day.
func (s *Scheduler) checkStockHealth(householdID int64, now time.Time) {
	today := now.Format("2006-01-02")

	batches, err := s.batches.ListByHousehold(householdID)
	if err != nil {
		s.logger.Error("list batches", "household_id", householdID, "error", err)
		return
	}

	for _, w := range stock.LowStock(batches, stock.LowStockThreshold) {
		refID := fmt.Sprintf("lowstock-%s-%s", w.Name, today)
		if s.alreadySent(householdID, model.NotifTypeLowStock, refID) {
			continue
		}
		s.broadcast(householdID, Payload{
			Title: "Low stock",
			Body:  fmt.Sprintf("Only %d units of %s left", w.Total, w.Name),
			URL:   "/inventory",
			Tag:   "low-stock",
		})
		s.markSent(householdID, model.NotifTypeLowStock, refID)
	}

	report := stock.Partition(batches, now)
	for _, b := range report.ExpiringSoon {
		refID := fmt.Sprintf("expiry-%d-%s", b.ID, today)
		if s.alreadySent(householdID, model.NotifTypeExpiringSoon, refID) {
			continue
		}
		s.broadcast(householdID, Payload{
			Title: "Expiring soon",
			Body:  fmt.Sprintf("%s (lot %s) expires on %s", b.Name, b.LotCode, b.ExpiryDate),
			URL:   "/inventory",
			Tag:   "expiring-soon",
		})
		s.markSent(householdID, model.NotifTypeExpiringSoon, refID)
	}
}

func (s *Scheduler) alreadySent(householdID int64, notifType, refID string) bool {
	sent, err := s.push.WasSent(householdID, notifType, refID)
	if err != nil {
		s.logger.Error("check sent", "error", err)
		return true
	}
	return sent
}

func (s *Scheduler) markSent(householdID int64, notifType, refID string) {
	if err := s.push.RecordSent(householdID, notifType, refID); err != nil {
		s.logger.Error("record sent", "error", err)
	}
}

// broadcast delivers a payload to every subscription in the household,
// dropping subscriptions the push service reports as gone.
func (s *Scheduler) broadcast(householdID int64, payload Payload) {
	subs, err := s.push.ListByHousehold(householdID)
	if err != nil {
		s.logger.Error("list subscriptions", "household_id", householdID, "error", err)
		return
	}

	for _, sub := range subs {
		if err := s.service.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				s.push.DeleteByEndpoint(sub.Endpoint)
			} else {
				s.logger.Error("send notification", "error", err)
			}
		}
	}
}
