package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/datalytics/console/internal/backend"
)

// MFAService is the part of the backend the MFA flow needs.
type MFAService interface {
	SetupMFA(ctx context.Context, adminID string) (string, error)
	VerifyMFA(ctx context.Context, adminID, code string, fromCreate bool) (bool, error)
}

type Mode string

const (
	ModeSetup  Mode = "setup"
	ModeVerify Mode = "verify"
)

// ParseMode accepts the path segment of an MFA route.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeSetup:
		return ModeSetup, true
	case ModeVerify:
		return ModeVerify, true
	}
	return "", false
}

// MFAPath builds the MFA route for mode. An empty adminID yields the
// variant that derives the admin from the current session.
func MFAPath(mode Mode, adminID string) string {
	if adminID == "" {
		return "/mfa/" + string(mode)
	}
	return "/mfa/" + string(mode) + "/" + url.PathEscape(adminID)
}

type MFAState int

const (
	MFAIdle MFAState = iota
	MFASetupPending
	MFASetupArtifactReady
	MFAVerifyPending
	MFAVerifySubmitting
	MFACompleted
	MFAFailed
)

func (s MFAState) String() string {
	switch s {
	case MFASetupPending:
		return "setup_pending"
	case MFASetupArtifactReady:
		return "setup_artifact_ready"
	case MFAVerifyPending:
		return "verify_pending"
	case MFAVerifySubmitting:
		return "verify_submitting"
	case MFACompleted:
		return "completed"
	case MFAFailed:
		return "failed"
	default:
		return "idle"
	}
}

// CodeLength is the number of digits an authenticator code must have before
// it can be submitted.
const CodeLength = 8

var ErrCodeLength = errors.New("auth: code must be exactly 8 digits")

const (
	MsgSessionExpired = "Session expired, please login again"
	MsgInvalidOTP     = "Invalid OTP code"
	MsgSetupFailed    = "Failed to enable MFA"
	MsgQRGenerated    = "QR code generated successfully! Scan it with Google Authenticator."
)

// SanitizeCode keeps only digits and truncates to CodeLength.
func SanitizeCode(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r < '0' || r > '9' {
			continue
		}
		b.WriteRune(r)
		if b.Len() == CodeLength {
			break
		}
	}
	return b.String()
}

// CodeReady reports whether a sanitized code may be submitted.
func CodeReady(code string) bool {
	return len(code) == CodeLength
}

// MFAFlow is one run of the setup or verify flow for a single admin. Each
// request builds a fresh flow; the transient artifact only lives as long as
// the page showing it.
type MFAFlow struct {
	Mode       Mode
	AdminID    string
	FromCreate bool

	State    MFAState
	Artifact string
	Message  string
	Redirect string

	// SessionEstablished is true once verification succeeded for the admin
	// themself, not for a newly created account.
	SessionEstablished bool

	expired bool
}

// NewMFAFlow starts a flow. fromCreate marks the run as finishing the
// enrollment of an account the current admin just created.
func NewMFAFlow(mode Mode, adminID string, fromCreate bool) *MFAFlow {
	f := &MFAFlow{Mode: mode, AdminID: adminID, FromCreate: fromCreate}
	if mode == ModeVerify {
		f.State = MFAVerifyPending
	}
	return f
}

// Resolve fills AdminID from the current session when the route did not
// carry one. If no session exists the flow fails and stays locked.
func (f *MFAFlow) Resolve(ctx context.Context, v *Verifier, src IdentitySource) {
	if f.AdminID != "" {
		return
	}
	st := v.Check(ctx, src)
	if !st.Authenticated() {
		f.fail(MsgSessionExpired)
		f.expired = true
		return
	}
	f.AdminID = st.Identity.ID
}

// Expired reports whether the flow could not resolve any admin.
func (f *MFAFlow) Expired() bool { return f.expired }

// CanSubmit reports whether code may be sent for verification.
func (f *MFAFlow) CanSubmit(code string) bool {
	if f.expired || f.AdminID == "" {
		return false
	}
	if f.State == MFAVerifySubmitting || f.State == MFACompleted {
		return false
	}
	return CodeReady(code)
}

// RequestArtifact asks the backend for an enrollment QR image.
func (f *MFAFlow) RequestArtifact(ctx context.Context, svc MFAService) error {
	if f.Mode != ModeSetup || f.expired || f.AdminID == "" {
		return errors.New("auth: no enrollment can be requested in this flow")
	}
	f.State = MFASetupPending
	f.Message = ""

	img, err := svc.SetupMFA(ctx, f.AdminID)
	if err != nil {
		f.Artifact = ""
		f.fail(backend.MessageOr(err, MsgSetupFailed))
		return err
	}
	f.Artifact = img
	f.State = MFASetupArtifactReady
	f.Message = MsgQRGenerated
	return nil
}

// Submit verifies a code. rawCode is sanitized first; codes of the wrong
// length are rejected without contacting the backend.
func (f *MFAFlow) Submit(ctx context.Context, svc MFAService, rawCode string) error {
	code := SanitizeCode(rawCode)
	if !f.CanSubmit(code) {
		if f.expired {
			return errors.New("auth: session expired")
		}
		f.Message = "Enter the 8-digit code"
		return ErrCodeLength
	}

	prev := f.State
	f.State = MFAVerifySubmitting
	fromCreate, err := svc.VerifyMFA(ctx, f.AdminID, code, f.FromCreate)
	if err != nil {
		f.State = prev
		if prev == MFAIdle || prev == MFASetupPending {
			f.State = MFAVerifyPending
		}
		f.Message = backend.MessageOr(err, MsgInvalidOTP)
		return err
	}

	f.State = MFACompleted
	f.Message = ""
	if fromCreate {
		f.Redirect = "/dashboard/admins"
		return nil
	}
	f.SessionEstablished = true
	f.Redirect = "/dashboard"
	return nil
}

func (f *MFAFlow) fail(msg string) {
	f.State = MFAFailed
	f.Message = msg
}
