// internal/app/features/topics/routes.go
package topics

import (
	"net/http"

	"github.com/dalemusser/stratatopics/internal/app/system/auth"
	"github.com/dalemusser/stratatopics/internal/app/system/authz"
	"github.com/dalemusser/stratatopics/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /topics. limiter may be nil to disable rate limiting
// of signups and drops.
func Routes(h *Handler, sm *auth.SessionManager, limiter *ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		// READ
		pr.Get("/", h.ServeList)
		pr.Get("/{id}", h.ServeRoster)
		pr.Get("/{id}/slots", h.ServeSlots)
		pr.Get("/{id}/signups/confirmed", h.ServeConfirmed)
		pr.Get("/{id}/signups/waitlist", h.ServeWaitlist)

		// SIGNUP / DROP
		pr.Group(func(sr chi.Router) {
			if limiter != nil {
				sr.Use(limiter.Middleware(userKey))
			}
			sr.Post("/{id}/signups", h.HandleSignup)
			sr.Delete("/{id}/signups/{teamID}", h.HandleDrop)
		})

		// ADMIN
		pr.Group(func(ar chi.Router) {
			ar.Use(sm.RequireRole(authz.RoleAdmin, authz.RoleInstructor))
			ar.Post("/", h.HandleCreate)
			ar.Patch("/{id}", h.HandleUpdate)
			ar.Post("/{id}/capacity", h.HandleCapacity)
			ar.Delete("/{id}", h.HandleDelete)
			ar.Get("/{id}/history", h.ServeHistory)
		})
	})

	return r
}

func userKey(r *http.Request) string {
	if u, ok := auth.CurrentUser(r); ok {
		return "user:" + u.ID
	}
	return ""
}
