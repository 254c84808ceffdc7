package handler

import (
	"net/http"

	"github.com/datalytics/console/internal/auth"
	appmw "github.com/datalytics/console/internal/middleware"
)

type loginData struct {
	Email string
}

// Root sends the browser to the dashboard or the login page.
func (c *Console) Root(w http.ResponseWriter, r *http.Request) {
	if c.verifier.Check(r.Context(), c.API(r)).Authenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// LoginPage renders the login form. Signed-in admins go to the dashboard.
func (c *Console) LoginPage(w http.ResponseWriter, r *http.Request) {
	if c.verifier.Check(r.Context(), c.API(r)).Authenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	if s := appmw.SessionFrom(r.Context()); s != nil {
		s.Keep()
	}
	c.render(w, r, http.StatusOK, "login.html", page{Title: "Login", Data: loginData{}})
}

// Login submits credentials and follows the outcome.
func (c *Console) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	sess := appmw.SessionFrom(r.Context())
	key := ""
	if sess != nil {
		key = sess.Key()
	}

	outcome := c.login.Login(r.Context(), key, c.API(r), email, password)
	c.Logger.Debug("login: outcome", "kind", outcome.Kind.String())

	switch outcome.Kind {
	case auth.OutcomeFailed:
		c.render(w, r, http.StatusUnauthorized, "login.html", page{
			Title: "Login",
			Error: outcome.Message,
			Data:  loginData{Email: email},
		})
		return
	case auth.OutcomeAuthenticated:
		if sess != nil {
			sess.SetPendingEnrollment("")
			sess.Renew()
		}
	}
	http.Redirect(w, r, outcome.Redirect(), http.StatusSeeOther)
}

// Logout ends the backend session best effort and forgets the console
// session either way.
func (c *Console) Logout(w http.ResponseWriter, r *http.Request) {
	if err := c.API(r).Logout(r.Context()); err != nil {
		c.Logger.Warn("logout: backend logout failed", "err", err)
	}
	if sess := appmw.SessionFrom(r.Context()); sess != nil {
		sess.Jar().Clear()
		sess.Destroy()
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
