package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/datalytics/console/internal/auth"
	appmw "github.com/datalytics/console/internal/middleware"
	"github.com/datalytics/console/internal/store"
	"github.com/datalytics/console/internal/web"
)

type mfaData struct {
	Flow       *auth.MFAFlow
	CodeLength int
}

const mfaTitle = "Two-Factor Authentication"

// mfaFlow builds the flow for the route. A route id equal to the admin this
// session just created marks the run as finishing that enrollment.
func (c *Console) mfaFlow(r *http.Request) (*auth.MFAFlow, bool) {
	mode, ok := auth.ParseMode(chi.URLParam(r, "mode"))
	if !ok {
		return nil, false
	}
	id := chi.URLParam(r, "id")

	fromCreate := false
	if sess := appmw.SessionFrom(r.Context()); sess != nil && id != "" {
		fromCreate = sess.PendingEnrollment() == id
	}

	flow := auth.NewMFAFlow(mode, id, fromCreate)
	flow.Resolve(r.Context(), c.verifier, c.API(r))
	return flow, true
}

func (c *Console) renderMFA(w http.ResponseWriter, r *http.Request, status int, flow *auth.MFAFlow) {
	p := page{Title: mfaTitle, Data: mfaData{Flow: flow, CodeLength: auth.CodeLength}}
	switch flow.State {
	case auth.MFASetupArtifactReady:
		p.Notice = flow.Message
	default:
		p.Error = flow.Message
	}
	c.render(w, r, status, "mfa.html", p)
}

// MFAPage renders the setup or verify screen.
func (c *Console) MFAPage(w http.ResponseWriter, r *http.Request) {
	flow, ok := c.mfaFlow(r)
	if !ok {
		c.renderError(w, r, http.StatusNotFound, "Not Found", "Unknown MFA mode")
		return
	}
	if s := appmw.SessionFrom(r.Context()); s != nil {
		s.Keep()
	}
	c.renderMFA(w, r, http.StatusOK, flow)
}

// MFASubmit handles both MFA form actions: "qr" requests an enrollment
// image, "verify" submits a code.
func (c *Console) MFASubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	flow, ok := c.mfaFlow(r)
	if !ok {
		c.renderError(w, r, http.StatusNotFound, "Not Found", "Unknown MFA mode")
		return
	}
	if flow.Expired() {
		c.renderMFA(w, r, http.StatusUnauthorized, flow)
		return
	}

	switch r.PostFormValue("action") {
	case "qr":
		c.mfaArtifact(w, r, flow)
	case "verify":
		c.mfaVerify(w, r, flow)
	default:
		http.Error(w, "Bad Request", http.StatusBadRequest)
	}
}

func (c *Console) mfaArtifact(w http.ResponseWriter, r *http.Request, flow *auth.MFAFlow) {
	if flow.Mode != auth.ModeSetup {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if err := flow.RequestArtifact(r.Context(), c.API(r)); err != nil {
		c.Logger.Warn("mfa: setup failed", "admin_id", flow.AdminID, "err", err)
		c.renderMFA(w, r, http.StatusBadGateway, flow)
		return
	}
	if web.ImageURL(flow.Artifact) == "" {
		c.Logger.Warn("mfa: backend returned an unusable QR image", "admin_id", flow.AdminID)
	}
	c.renderMFA(w, r, http.StatusOK, flow)
}

// mfaVerify runs the verification against a copy of the session jar. The
// copy is kept only when the backend signed this session in; verifying a
// newly created admin must leave the acting admin's session untouched.
// One verification per console session is in flight at a time.
func (c *Console) mfaVerify(w http.ResponseWriter, r *http.Request, flow *auth.MFAFlow) {
	sess := appmw.SessionFrom(r.Context())
	var scratch *store.Jar
	if sess != nil {
		release, err := c.login.Gate().Enter("mfa:" + sess.Key())
		if err != nil {
			c.Logger.Info("mfa: verification already in flight", "admin_id", flow.AdminID)
			flow.Message = auth.MsgInFlight
			c.renderMFA(w, r, http.StatusConflict, flow)
			return
		}
		defer release()
		scratch = sess.Jar().Clone()
	} else {
		scratch = store.NewJar()
	}

	if flow.Mode == auth.ModeSetup {
		flow.Artifact = r.PostFormValue("artifact")
	}

	err := flow.Submit(r.Context(), c.client.WithJar(scratch), r.PostFormValue("code"))
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrCodeLength) {
			status = http.StatusUnprocessableEntity
		}
		c.Logger.Info("mfa: verification failed", "admin_id", flow.AdminID, "err", err)
		c.renderMFA(w, r, status, flow)
		return
	}

	if sess != nil {
		if flow.SessionEstablished {
			sess.Jar().Absorb(scratch)
			sess.Renew()
		}
		if sess.PendingEnrollment() == flow.AdminID {
			sess.SetPendingEnrollment("")
		}
	}
	http.Redirect(w, r, flow.Redirect, http.StatusSeeOther)
}
