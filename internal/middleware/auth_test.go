package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pillkeep/pillkeep/internal/auth"
	"github.com/pillkeep/pillkeep/internal/database"
	"github.com/pillkeep/pillkeep/internal/store"
)

func TestRequireAuth(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	households := store.NewHouseholdStore(db)
	sessions := store.NewSessionStore(db)

	u, err := users.Create("mom@example.com", "Mom", "x")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	h, err := households.Create("The Smiths", "code-1", u.ID)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if err := users.SetHousehold(u.ID, &h.ID); err != nil {
		t.Fatalf("link user: %v", err)
	}
	sess, err := sessions.Create(u.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var got auth.AuthContext
	handler := RequireAuth(sessions, users, households)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// No cookie.
	req := httptest.NewRequest("GET", "/api/medicines", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no cookie: status = %d, want 401", rec.Code)
	}

	// Bad token.
	req = httptest.NewRequest("GET", "/api/medicines", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "bogus"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}

	// Valid session.
	req = httptest.NewRequest("GET", "/api/medicines", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid session: status = %d, want 200", rec.Code)
	}
	if got.UserID != u.ID {
		t.Errorf("UserID = %d, want %d", got.UserID, u.ID)
	}
	if got.HouseholdID != h.ID {
		t.Errorf("HouseholdID = %d, want %d", got.HouseholdID, h.ID)
	}
	if !got.IsAdmin {
		t.Error("creator should resolve as admin")
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/backups", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: 1, HouseholdID: 1}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("member: status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest("POST", "/api/backups", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: 1, HouseholdID: 1, IsAdmin: true}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin: status = %d, want 200", rec.Code)
	}
}
