package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/datalytics/console/internal/auth"
	"github.com/datalytics/console/internal/model"
	"github.com/datalytics/console/internal/store"
)

const SessionCookieName = "console_session"

type contextKey string

const (
	contextKeySession contextKey = "session"
	contextKeyState   contextKey = "authState"
)

// Session is the console session bound to one request. Handlers mutate it
// before writing the response; the Sessions middleware persists it when the
// response starts.
type Session struct {
	rec     *store.Session
	fresh   bool
	changed bool
	renew   bool
	destroy bool
}

// Key identifies the session for per-session request gating.
func (s *Session) Key() string { return s.rec.ID }

// Jar is the session's upstream cookie jar.
func (s *Session) Jar() *store.Jar { return s.rec.Jar }

// Flash stores a message shown once on the next rendered page.
func (s *Session) Flash(msg string) {
	s.rec.Flash = msg
	s.changed = true
}

// PopFlash returns and clears the pending flash message.
func (s *Session) PopFlash() string {
	msg := s.rec.Flash
	if msg != "" {
		s.rec.Flash = ""
		s.changed = true
	}
	return msg
}

// PendingEnrollment is the id of an admin this session just created and
// whose MFA enrollment it may complete.
func (s *Session) PendingEnrollment() string { return s.rec.PendingEnrollment }

func (s *Session) SetPendingEnrollment(adminID string) {
	s.rec.PendingEnrollment = adminID
	s.changed = true
}

// Keep forces the session to be stored even if nothing else changed, so the
// browser gets a cookie before its first form post.
func (s *Session) Keep() { s.changed = true }

// Renew moves the session to a new ID, used once a login succeeds.
func (s *Session) Renew() { s.renew = true }

// Destroy deletes the session and clears the cookie.
func (s *Session) Destroy() { s.destroy = true }

// SessionFrom returns the request's console session, or nil outside the
// Sessions middleware.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKeySession).(*Session)
	return s
}

// Sessions loads or starts the console session for each request.
type Sessions struct {
	store  store.SessionStore
	secure bool
	logger *slog.Logger
	now    func() time.Time
}

func NewSessions(st store.SessionStore, secure bool, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sessions{store: st, secure: secure, logger: logger.With("component", "sessions"), now: time.Now}
}

// Handler is the middleware. A new session is only written once something
// is stored in it. Nothing is written when the request context has been
// cancelled by the time the response starts.
func (m *Sessions) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := m.load(r)
		cw := &commitWriter{ResponseWriter: w}
		cw.commit = func() { m.commit(cw.ResponseWriter, r, sess) }

		ctx := context.WithValue(r.Context(), contextKeySession, sess)
		next.ServeHTTP(cw, r.WithContext(ctx))
		cw.flush()
	})
}

func (m *Sessions) load(r *http.Request) *Session {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		rec, err := m.store.Get(r.Context(), c.Value)
		if err == nil {
			return &Session{rec: rec}
		}
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Error("sessions: load failed", "err", err)
		}
	}
	return &Session{rec: store.NewSession(m.now()), fresh: true}
}

func (m *Sessions) commit(w http.ResponseWriter, r *http.Request, s *Session) {
	ctx := r.Context()
	if ctx.Err() != nil {
		return
	}

	if s.destroy {
		if !s.fresh {
			if err := m.store.Delete(ctx, s.rec.ID); err != nil {
				m.logger.Error("sessions: delete failed", "err", err)
			}
		}
		m.clearCookie(w)
		return
	}

	if s.renew && !s.fresh {
		if err := m.store.Delete(ctx, s.rec.ID); err != nil {
			m.logger.Error("sessions: delete on renew failed", "err", err)
		}
		next := store.NewSession(m.now())
		next.Jar = s.rec.Jar
		next.Flash = s.rec.Flash
		next.PendingEnrollment = s.rec.PendingEnrollment
		s.rec = next
		s.fresh = true
		s.changed = true
	}

	if !s.changed && !s.rec.Jar.Dirty() {
		return
	}

	if s.fresh {
		if err := m.store.Create(ctx, s.rec); err != nil {
			m.logger.Error("sessions: create failed", "err", err)
			return
		}
		m.setCookie(w, s.rec)
		return
	}
	if err := m.store.Save(ctx, s.rec); err != nil {
		m.logger.Error("sessions: save failed", "err", err)
	}
}

func (m *Sessions) setCookie(w http.ResponseWriter, rec *store.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    rec.ID,
		Path:     "/",
		Expires:  rec.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (m *Sessions) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// commitWriter runs commit once, right before the response starts.
type commitWriter struct {
	http.ResponseWriter
	commit func()
	done   bool
}

func (cw *commitWriter) flush() {
	if cw.done {
		return
	}
	cw.done = true
	cw.commit()
}

func (cw *commitWriter) WriteHeader(code int) {
	cw.flush()
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *commitWriter) Write(b []byte) (int, error) {
	cw.flush()
	return cw.ResponseWriter.Write(b)
}

func (cw *commitWriter) Unwrap() http.ResponseWriter { return cw.ResponseWriter }

// RequireSession lets a request through only when the backend confirms an
// identity for it. Others are redirected to /login.
func RequireSession(v *auth.Verifier, api func(*http.Request) auth.IdentitySource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := v.Check(r.Context(), api(r))
			if !st.Authenticated() {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			ctx := context.WithValue(r.Context(), contextKeyState, st)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StateFromContext returns the authentication state RequireSession derived.
func StateFromContext(ctx context.Context) auth.State {
	v, _ := ctx.Value(contextKeyState).(auth.State)
	return v
}

// AdminFromContext returns the signed-in admin, or nil.
func AdminFromContext(ctx context.Context) *model.Admin {
	return StateFromContext(ctx).Identity
}

// IsSuperAdmin reports whether the signed-in admin has the superadmin role.
func IsSuperAdmin(ctx context.Context) bool {
	return AdminFromContext(ctx).IsSuperAdmin()
}
