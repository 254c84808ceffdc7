package auth

import (
	"context"
	"time"

	"github.com/datalytics/console/internal/batch"
	"github.com/datalytics/console/internal/model"
)

// Capability decides whether an identity may enter a route at time now.
type Capability func(admin *model.Admin, now time.Time) bool

// Authenticated grants any signed-in admin.
func Authenticated() Capability {
	return func(admin *model.Admin, _ time.Time) bool {
		return admin != nil && admin.ID != ""
	}
}

// CurrentBatch grants superadmins and admins whose batch is the one in
// office, where the office year turns over at cutover.
func CurrentBatch(cutover time.Month) Capability {
	return func(admin *model.Admin, now time.Time) bool {
		if admin == nil {
			return false
		}
		if admin.IsSuperAdmin() {
			return true
		}
		return admin.Batch == batch.Current(now, cutover).String()
	}
}

type Decision int

const (
	Deny Decision = iota
	Grant
)

func (d Decision) String() string {
	if d == Grant {
		return "grant"
	}
	return "deny"
}

const MsgAccessDenied = "Access denied. Only current batch admins can access this page."

// Guard authorizes route entry. It is FailClosed: when the identity cannot
// be resolved for any reason the decision is Deny.
type Guard struct {
	verifier *Verifier
	now      func() time.Time
}

// NewGuard returns a guard using clock for capability checks; nil means
// time.Now.
func NewGuard(v *Verifier, clock func() time.Time) *Guard {
	if clock == nil {
		clock = time.Now
	}
	return &Guard{verifier: v, now: clock}
}

// Authorize re-queries the identity and evaluates capability against it.
// The identity is returned on Grant so callers need not query again.
func (g *Guard) Authorize(ctx context.Context, src IdentitySource, capability Capability) (Decision, *model.Admin) {
	st := g.verifier.Check(ctx, src)
	if !st.Authenticated() {
		return Deny, nil
	}
	if !capability(st.Identity, g.now()) {
		return Deny, nil
	}
	return Grant, st.Identity
}

// Now returns the guard's clock reading.
func (g *Guard) Now() time.Time { return g.now() }
