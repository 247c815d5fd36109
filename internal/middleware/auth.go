package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/pillkeep/pillkeep/internal/auth"
	"github.com/pillkeep/pillkeep/internal/store"
)

const SessionCookieName = "pillkeep_session"

// RequireAuth validates the session cookie and populates AuthContext for
// downstream handlers. The admin flag is resolved from the household's
// admin seat on every request so a claim or abdication takes effect
// immediately.
func RequireAuth(sessions *store.SessionStore, users *store.UserStore, households *store.HouseholdStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}

			sess, err := sessions.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				unauthorized(w)
				return
			}

			u, err := users.GetByID(sess.UserID)
			if err != nil || u == nil {
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				UserID:       u.ID,
				SessionToken: sess.Token,
			}
			if u.HouseholdID != nil {
				ac.HouseholdID = *u.HouseholdID
				h, err := households.GetByID(*u.HouseholdID)
				if err == nil && h != nil {
					ac.IsAdmin = h.IsAdmin(u.ID)
				}
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireHousehold rejects requests from users who have not joined a
// household yet.
func RequireHousehold(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.HouseholdID(r.Context()) == 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "join a household first"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin checks that the authenticated user holds the admin seat.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "administrator only"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
