package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/datalytics/console/internal/backend"
)

// Authenticator submits credentials to the backend.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (backend.LoginResult, error)
}

type OutcomeKind int

const (
	OutcomeFailed OutcomeKind = iota
	OutcomeAuthenticated
	OutcomeMFASetupRequired
	OutcomeMFAVerifyRequired
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeMFASetupRequired:
		return "mfa_setup_required"
	case OutcomeMFAVerifyRequired:
		return "mfa_verify_required"
	default:
		return "failed"
	}
}

// Outcome is the result of one login attempt.
type Outcome struct {
	Kind    OutcomeKind
	AdminID string
	Message string
}

// Redirect returns where the browser goes next, or "" when the login form
// should be shown again.
func (o Outcome) Redirect() string {
	switch o.Kind {
	case OutcomeAuthenticated:
		return "/dashboard"
	case OutcomeMFASetupRequired:
		return MFAPath(ModeSetup, o.AdminID)
	case OutcomeMFAVerifyRequired:
		return MFAPath(ModeVerify, o.AdminID)
	default:
		return ""
	}
}

const msgLoginFailed = "Login failed"

// MsgInFlight is shown when a second submission arrives while one is still
// being processed for the same console session.
const MsgInFlight = "A request is already in progress"

// LoginController runs login attempts. It holds no state between attempts
// beyond the in-flight gate.
type LoginController struct {
	gate   *Gate
	logger *slog.Logger
}

func NewLoginController(gate *Gate, logger *slog.Logger) *LoginController {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LoginController{gate: gate, logger: logger.With("component", "login")}
}

// Gate returns the in-flight gate shared by login and MFA verification.
func (c *LoginController) Gate() *Gate { return c.gate }

// Login performs one attempt for the console session identified by key.
// A second attempt for the same key while one is in flight fails without
// reaching the backend.
func (c *LoginController) Login(ctx context.Context, key string, api Authenticator, email, password string) Outcome {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Outcome{Kind: OutcomeFailed, Message: "Email and password are required"}
	}

	release, err := c.gate.Enter(key)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Message: MsgInFlight}
	}
	defer release()

	res, err := api.Login(ctx, email, password)
	if err != nil {
		c.logger.Info("login rejected", "err", err)
		return Outcome{Kind: OutcomeFailed, Message: backend.MessageOr(err, msgLoginFailed)}
	}

	switch {
	case res.SetupMFA && res.AdminID != "":
		return Outcome{Kind: OutcomeMFASetupRequired, AdminID: res.AdminID}
	case res.MFARequired && res.AdminID != "":
		return Outcome{Kind: OutcomeMFAVerifyRequired, AdminID: res.AdminID}
	case res.SetupMFA || res.MFARequired:
		c.logger.Warn("login response asks for MFA without an admin id")
		return Outcome{Kind: OutcomeFailed, Message: msgLoginFailed}
	}
	return Outcome{Kind: OutcomeAuthenticated}
}

// ErrInFlight is returned by Gate.Enter while another request holds the key.
var ErrInFlight = errors.New("auth: a request is already in progress")

// Gate admits at most one request per key at a time.
type Gate struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewGate() *Gate {
	return &Gate{busy: make(map[string]struct{})}
}

// Enter claims key. The returned release func must be called when the
// request finishes.
func (g *Gate) Enter(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.busy[key]; ok {
		return nil, ErrInFlight
	}
	g.busy[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.busy, key)
			g.mu.Unlock()
		})
	}, nil
}
