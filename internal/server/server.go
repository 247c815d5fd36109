package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/pillkeep/pillkeep/internal/advisor"
	"github.com/pillkeep/pillkeep/internal/backup"
	"github.com/pillkeep/pillkeep/internal/handler"
	"github.com/pillkeep/pillkeep/internal/household"
	"github.com/pillkeep/pillkeep/internal/middleware"
	"github.com/pillkeep/pillkeep/internal/push"
	"github.com/pillkeep/pillkeep/internal/schedule"
	"github.com/pillkeep/pillkeep/internal/stock"
	"github.com/pillkeep/pillkeep/internal/store"
	ws "github.com/pillkeep/pillkeep/internal/websocket"
)

// Config holds server-level configuration.
type Config struct {
	SecureCookies bool
	Advisor       advisor.Config
	Push          push.Config
	Backup        backup.Config
}

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	authH          *handler.AuthHandler
	medicineH      *handler.MedicineHandler
	inventoryH     *handler.InventoryHandler
	householdH     *handler.HouseholdHandler
	dashboardH     *handler.DashboardHandler
	advisorH       *handler.AdvisorHandler
	pushH          *handler.PushHandler
	backupH        *handler.BackupHandler
	userStore      *store.UserStore
	sessionStore   *store.SessionStore
	householdStore *store.HouseholdStore
	rateLimiter    *middleware.RateLimiter
	backupManager  *backup.Manager
	pushService    *push.Service
	pushScheduler  *push.Scheduler
	logger         *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	householdStore := store.NewHouseholdStore(db)
	sessionStore := store.NewSessionStore(db)
	medicineStore := store.NewMedicineStore(db)
	inventoryStore := store.NewInventoryStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	ledger := stock.NewLedger(inventoryStore)
	engine := stock.NewEngine(medicineStore, inventoryStore, logger.With("component", "stock"))
	rollover := schedule.NewRollover(db, logger.With("component", "rollover"))
	resolver := household.NewResolver(db, householdStore, userStore, logger.With("component", "household"))

	advisorClient := advisor.NewClient(cfg.Advisor)
	backupMgr := backup.NewManager(cfg.Backup, db, backupStore, householdStore, logger.With("component", "backup"))

	var pushSvc *push.Service
	var pushSched *push.Scheduler
	var pushH *handler.PushHandler
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushLogger := logger.With("component", "push")
		pushSvc = push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey)
		pushSched = push.NewScheduler(pushSvc, pushStore, medicineStore, inventoryStore, pushLogger)
		pushH = handler.NewPushHandler(pushStore, pushSvc, pushLogger)
	}

	return &Server{
		db:             db,
		hub:            hub,
		authH:          handler.NewAuthHandler(userStore, sessionStore, cfg.SecureCookies, logger.With("component", "auth")),
		medicineH:      handler.NewMedicineHandler(medicineStore, engine, hub, logger.With("component", "medicine")),
		inventoryH:     handler.NewInventoryHandler(ledger, hub, logger.With("component", "inventory")),
		householdH:     handler.NewHouseholdHandler(resolver, hub, logger.With("component", "household")),
		dashboardH:     handler.NewDashboardHandler(rollover, medicineStore, ledger, logger.With("component", "dashboard")),
		advisorH:       handler.NewAdvisorHandler(advisorClient, logger.With("component", "advisor")),
		pushH:          pushH,
		backupH:        handler.NewBackupHandler(backupMgr, backupStore, logger.With("component", "backup")),
		userStore:      userStore,
		sessionStore:   sessionStore,
		householdStore: householdStore,
		rateLimiter:    middleware.NewRateLimiter(),
		backupManager:  backupMgr,
		pushService:    pushSvc,
		pushScheduler:  pushSched,
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushScheduler returns the push notification scheduler, nil when VAPID
// keys are not configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore, s.householdStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	limited := rl(h)
	return limited.ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Household membership; create and join work before the user has a
	// household, everything below requires one.
	mux.HandleFunc("POST /api/households", s.householdH.Create)
	mux.HandleFunc("POST /api/households/join", s.householdH.Join)

	withHousehold := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireHousehold(h)
	}
	mux.Handle("GET /api/households/members", withHousehold(s.householdH.Members))
	mux.Handle("POST /api/households/claim-admin", withHousehold(s.householdH.ClaimAdmin))
	mux.Handle("POST /api/households/leave", withHousehold(s.householdH.Leave))
	mux.Handle("DELETE /api/households/members/{id}", withHousehold(s.householdH.Kick))
	mux.Handle("POST /api/households/destroy", withHousehold(s.householdH.Destroy))

	// Schedule
	mux.Handle("GET /api/dashboard", withHousehold(s.dashboardH.Dashboard))
	mux.Handle("GET /api/calendar", withHousehold(s.dashboardH.Calendar))
	mux.Handle("POST /api/medicines", withHousehold(s.medicineH.Create))
	mux.Handle("GET /api/medicines", withHousehold(s.medicineH.List))
	mux.Handle("PUT /api/medicines/{id}", withHousehold(s.medicineH.Update))
	mux.Handle("DELETE /api/medicines/{id}", withHousehold(s.medicineH.Delete))
	mux.Handle("POST /api/medicines/{id}/take", withHousehold(s.medicineH.Take))

	// Inventory
	mux.Handle("POST /api/inventory", withHousehold(s.inventoryH.Upsert))
	mux.Handle("GET /api/inventory", withHousehold(s.inventoryH.List))
	mux.Handle("GET /api/inventory/analysis", withHousehold(s.inventoryH.Analysis))

	// Advisor
	mux.Handle("POST /api/advisor/chat", withHousehold(s.advisorH.Chat))

	// Push notifications
	if s.pushH != nil {
		mux.Handle("POST /api/push/subscribe", withHousehold(s.pushH.Subscribe))
		mux.Handle("POST /api/push/unsubscribe", withHousehold(s.pushH.Unsubscribe))
		mux.Handle("GET /api/push/vapid-key", withHousehold(s.pushH.VAPIDKey))
	}

	// Backups, administrator-only
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireHousehold(middleware.RequireAdmin(h))
	}
	mux.Handle("GET /api/backups/status", admin(s.backupH.Status))
	mux.Handle("GET /api/backups", admin(s.backupH.List))
	mux.Handle("POST /api/backups", admin(s.backupH.RunNow))
	mux.Handle("GET /api/backups/{id}/download", admin(s.backupH.Download))
	mux.Handle("POST /api/backups/{id}/restore", admin(s.backupH.Restore))

	// Real-time sync
	mux.Handle("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
