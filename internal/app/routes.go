package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/datalytics/console/internal/auth"
	"github.com/datalytics/console/internal/handler"
	"github.com/datalytics/console/internal/middleware"
	"github.com/datalytics/console/internal/web"
)

// loginBurst is how many login or MFA posts an address may send back to
// back before the per-minute rate applies.
const loginBurst = 5

func (app *App) routes() http.Handler {
	c := app.console

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(app.config.SecureCookies))

	// Static files
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.StaticFS)))

	r.Get("/api/health", handler.Health(app.store))
	r.Get("/api/batch", c.BatchInfo)

	sessions := middleware.NewSessions(app.store, app.config.SecureCookies, app.logger)
	limit := middleware.RateLimit(middleware.PerMinute(app.config.LoginRatePerMinute), loginBurst)

	r.Group(func(r chi.Router) {
		r.Use(sessions.Handler)

		r.Get("/", c.Root)
		r.Get("/login", c.LoginPage)
		r.With(limit).Post("/login", c.Login)
		r.Post("/logout", c.Logout)

		r.Get("/mfa/{mode}", c.MFAPage)
		r.Get("/mfa/{mode}/{id}", c.MFAPage)
		r.With(limit).Post("/mfa/{mode}", c.MFASubmit)
		r.With(limit).Post("/mfa/{mode}/{id}", c.MFASubmit)

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(middleware.RequireSession(app.verifier, c.Identity))

			currentBatch := middleware.RequireCapability(app.guard, auth.CurrentBatch(app.config.GuardCutover), c.Identity)

			// Members
			r.Get("/", c.Members)
			r.With(currentBatch).Get("/add-member", c.AddMemberPage)
			r.With(currentBatch).Post("/add-member", c.AddMember)
			r.Get("/edit/{id}", c.EditMemberPage)
			r.Post("/edit/{id}", c.EditMember)
			r.Post("/delete/{id}", c.DeleteMember)

			// Catalog
			r.Get("/courses", c.Courses)
			r.Post("/courses", c.AddCourse)
			r.Get("/roles", c.Roles)
			r.Post("/roles", c.AddRole)
			r.Get("/positions", c.Positions)

			// Admins
			r.Get("/admins", c.Admins)
			r.Get("/admins/add", c.AddAdminPage)
			r.Post("/admins/add", c.AddAdmin)
			r.With(currentBatch).Get("/admins/edit/{id}", c.EditAdminPage)
			r.With(currentBatch).Post("/admins/edit/{id}", c.EditAdmin)

			// Events
			r.Get("/events", c.Events)
			r.With(currentBatch).Get("/events/add", c.AddEventPage)
			r.With(currentBatch).Post("/events/add", c.AddEvent)
			r.With(currentBatch).Get("/events/edit/{id}", c.EditEventPage)
			r.With(currentBatch).Post("/events/edit/{id}", c.EditEvent)
		})
	})
	return r
}
