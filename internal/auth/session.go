// Package auth holds the console's authentication and authorization logic:
// the session verifier, the login controller, the MFA flow and the route
// guard. It talks to the backend only through the small interfaces below,
// so each piece can be driven by a fake in tests.
package auth

import (
	"context"
	"io"
	"log/slog"

	"github.com/datalytics/console/internal/model"
)

// IdentitySource answers "who am I" for the current backend session.
type IdentitySource interface {
	Me(ctx context.Context) (*model.Admin, error)
}

type Status int

const (
	StatusUnauthenticated Status = iota
	StatusPendingMFA
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusPendingMFA:
		return "pending_mfa"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// State is the authentication state of one console session. It is derived
// from the backend on every request and never stored.
type State struct {
	Status   Status
	Identity *model.Admin
}

// Authenticated reports whether a full session exists.
func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Identity != nil
}

// Verifier resolves the current identity. Every failure, whether the
// backend is unreachable, rejects the session or answers garbage, yields an
// unauthenticated State; callers never need to tell these apart.
type Verifier struct {
	logger *slog.Logger
}

func NewVerifier(logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Verifier{logger: logger.With("component", "session-verifier")}
}

// Check performs a single identity query.
func (v *Verifier) Check(ctx context.Context, src IdentitySource) State {
	admin, err := src.Me(ctx)
	if err != nil || admin == nil || admin.ID == "" {
		if err != nil {
			v.logger.Debug("identity check failed", "err", err)
		}
		return State{Status: StatusUnauthenticated}
	}
	return State{Status: StatusAuthenticated, Identity: admin}
}
