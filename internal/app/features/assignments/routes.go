// internal/app/features/assignments/routes.go
package assignments

import (
	"github.com/dalemusser/stratatopics/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/{id}/teams/{teamID}/signups", h.ServeTeamSignups)
	})

	return r
}
