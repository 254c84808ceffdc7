package middleware

import (
	"context"
	"net/http"

	"github.com/datalytics/console/internal/auth"
)

// RequireCapability guards a route with capability. The guard re-queries the
// identity itself; on Deny the session gets the access-denied flash and the
// browser is sent to /dashboard.
func RequireCapability(g *auth.Guard, capability auth.Capability, api func(*http.Request) auth.IdentitySource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, admin := g.Authorize(r.Context(), api(r), capability)
			if decision != auth.Grant {
				if s := SessionFrom(r.Context()); s != nil {
					s.Flash(auth.MsgAccessDenied)
				}
				http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
				return
			}
			st := auth.State{Status: auth.StatusAuthenticated, Identity: admin}
			ctx := context.WithValue(r.Context(), contextKeyState, st)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
