package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/datalytics/console/internal/backend"
	"github.com/datalytics/console/internal/model"
)

// fakeBackend implements every interface the package consumes.
type fakeBackend struct {
	admin  *model.Admin
	meErr  error
	meHits atomic.Int32

	login      backend.LoginResult
	loginErr   error
	loginHits  atomic.Int32
	loginBlock chan struct{}

	qr       string
	setupErr error

	verifyErr        error
	verifyFromCreate bool
	verifyHits       atomic.Int32
	lastFromCreate   bool
	lastCode         string
}

func (f *fakeBackend) Me(context.Context) (*model.Admin, error) {
	f.meHits.Add(1)
	return f.admin, f.meErr
}

func (f *fakeBackend) Login(ctx context.Context, email, password string) (backend.LoginResult, error) {
	f.loginHits.Add(1)
	if f.loginBlock != nil {
		<-f.loginBlock
	}
	return f.login, f.loginErr
}

func (f *fakeBackend) SetupMFA(context.Context, string) (string, error) {
	return f.qr, f.setupErr
}

func (f *fakeBackend) VerifyMFA(_ context.Context, _ string, code string, fromCreate bool) (bool, error) {
	f.verifyHits.Add(1)
	f.lastCode = code
	f.lastFromCreate = fromCreate
	if f.verifyErr != nil {
		return false, f.verifyErr
	}
	return f.verifyFromCreate, nil
}

func TestVerifierFailsClosed(t *testing.T) {
	v := NewVerifier(nil)
	tests := []struct {
		name string
		fb   *fakeBackend
		want Status
	}{
		{"ok", &fakeBackend{admin: &model.Admin{ID: "a1"}}, StatusAuthenticated},
		{"rejected", &fakeBackend{meErr: &backend.APIError{Status: 401}}, StatusUnauthenticated},
		{"transport", &fakeBackend{meErr: errors.New("dial tcp: refused")}, StatusUnauthenticated},
		{"nil admin", &fakeBackend{}, StatusUnauthenticated},
		{"empty id", &fakeBackend{admin: &model.Admin{}}, StatusUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := v.Check(context.Background(), tt.fb)
			if st.Status != tt.want {
				t.Errorf("Check() status = %v, want %v", st.Status, tt.want)
			}
			if tt.fb.meHits.Load() != 1 {
				t.Errorf("expected exactly one identity query, got %d", tt.fb.meHits.Load())
			}
		})
	}
}

func TestLoginOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		fb       *fakeBackend
		want     OutcomeKind
		redirect string
		message  string
	}{
		{"bare success", &fakeBackend{}, OutcomeAuthenticated, "/dashboard", ""},
		{"setup", &fakeBackend{login: backend.LoginResult{SetupMFA: true, AdminID: "a1"}}, OutcomeMFASetupRequired, "/mfa/setup/a1", ""},
		{"verify", &fakeBackend{login: backend.LoginResult{MFARequired: true, AdminID: "a2"}}, OutcomeMFAVerifyRequired, "/mfa/verify/a2", ""},
		{"setup wins over verify", &fakeBackend{login: backend.LoginResult{SetupMFA: true, MFARequired: true, AdminID: "a3"}}, OutcomeMFASetupRequired, "/mfa/setup/a3", ""},
		{"mfa without id", &fakeBackend{login: backend.LoginResult{MFARequired: true}}, OutcomeFailed, "", "Login failed"},
		{"backend message", &fakeBackend{loginErr: &backend.APIError{Status: 401, Message: "Invalid credentials"}}, OutcomeFailed, "", "Invalid credentials"},
		{"generic failure", &fakeBackend{loginErr: errors.New("timeout")}, OutcomeFailed, "", "Login failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLoginController(NewGate(), nil)
			out := c.Login(context.Background(), "sess", tt.fb, "a@b.c", "pw")
			if out.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", out.Kind, tt.want)
			}
			if out.Redirect() != tt.redirect {
				t.Errorf("Redirect() = %q, want %q", out.Redirect(), tt.redirect)
			}
			if out.Message != tt.message {
				t.Errorf("Message = %q, want %q", out.Message, tt.message)
			}
		})
	}
}

func TestLoginEmptyFieldsSkipBackend(t *testing.T) {
	fb := &fakeBackend{}
	c := NewLoginController(NewGate(), nil)
	for _, creds := range [][2]string{{"", "pw"}, {"a@b.c", ""}, {"   ", "pw"}} {
		out := c.Login(context.Background(), "sess", fb, creds[0], creds[1])
		if out.Kind != OutcomeFailed {
			t.Errorf("Login(%q, %q) kind = %v, want failed", creds[0], creds[1], out.Kind)
		}
	}
	if fb.loginHits.Load() != 0 {
		t.Errorf("backend called %d times for empty credentials", fb.loginHits.Load())
	}
}

func TestLoginSingleFlight(t *testing.T) {
	fb := &fakeBackend{loginBlock: make(chan struct{})}
	c := NewLoginController(NewGate(), nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var first Outcome
	go func() {
		defer wg.Done()
		first = c.Login(context.Background(), "sess", fb, "a@b.c", "pw")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for fb.loginHits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	second := c.Login(context.Background(), "sess", fb, "a@b.c", "pw")
	if second.Kind != OutcomeFailed || second.Message != MsgInFlight {
		t.Errorf("concurrent login = %+v, want in-flight failure", second)
	}

	other := make(chan Outcome, 1)
	go func() { other <- c.Login(context.Background(), "other", &fakeBackend{}, "a@b.c", "pw") }()
	if out := <-other; out.Kind != OutcomeAuthenticated {
		t.Errorf("different session blocked: %+v", out)
	}

	close(fb.loginBlock)
	wg.Wait()
	if first.Kind != OutcomeAuthenticated {
		t.Errorf("first login = %+v", first)
	}
	if fb.loginHits.Load() != 1 {
		t.Errorf("backend hit %d times, want 1", fb.loginHits.Load())
	}
}

func TestGateRelease(t *testing.T) {
	g := NewGate()
	release, err := g.Enter("k")
	if err != nil {
		t.Fatalf("Enter() error: %v", err)
	}
	if _, err := g.Enter("k"); !errors.Is(err, ErrInFlight) {
		t.Errorf("second Enter() err = %v, want ErrInFlight", err)
	}
	release()
	release()
	if _, err := g.Enter("k"); err != nil {
		t.Errorf("Enter() after release: %v", err)
	}
}

func TestSanitizeCode(t *testing.T) {
	tests := []struct{ in, want string }{
		{"12345678", "12345678"},
		{"1234 5678", "12345678"},
		{"12-34-56-78-99", "12345678"},
		{"abc", ""},
		{"123456", "123456"},
		{"١٢٣", ""},
	}
	for _, tt := range tests {
		if got := SanitizeCode(tt.in); got != tt.want {
			t.Errorf("SanitizeCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMFASubmitRequiresFullCode(t *testing.T) {
	fb := &fakeBackend{}
	f := NewMFAFlow(ModeVerify, "a1", false)
	if err := f.Submit(context.Background(), fb, "1234567"); !errors.Is(err, ErrCodeLength) {
		t.Errorf("Submit(7 digits) err = %v, want ErrCodeLength", err)
	}
	if fb.verifyHits.Load() != 0 {
		t.Error("backend called for short code")
	}
	if f.State != MFAVerifyPending {
		t.Errorf("state = %v, want verify_pending", f.State)
	}
}

func TestMFAVerifySuccess(t *testing.T) {
	fb := &fakeBackend{}
	f := NewMFAFlow(ModeVerify, "a1", false)
	if err := f.Submit(context.Background(), fb, "1234-5678"); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if f.State != MFACompleted || f.Redirect != "/dashboard" || !f.SessionEstablished {
		t.Errorf("unexpected flow %+v", f)
	}
	if fb.lastCode != "12345678" || fb.lastFromCreate {
		t.Errorf("backend got code %q fromCreate %v", fb.lastCode, fb.lastFromCreate)
	}
}

func TestMFAVerifyFromCreate(t *testing.T) {
	fb := &fakeBackend{verifyFromCreate: true}
	f := NewMFAFlow(ModeSetup, "new1", true)
	if err := f.Submit(context.Background(), fb, "12345678"); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if !fb.lastFromCreate {
		t.Error("fromCreate not forwarded")
	}
	if f.Redirect != "/dashboard/admins" || f.SessionEstablished {
		t.Errorf("creation flow must not establish a session: %+v", f)
	}
}

func TestMFAVerifyFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"backend message", &backend.APIError{Status: 400, Message: "Code expired"}, "Code expired"},
		{"generic", errors.New("reset"), MsgInvalidOTP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewMFAFlow(ModeVerify, "a1", false)
			_ = f.Submit(context.Background(), &fakeBackend{verifyErr: tt.err}, "12345678")
			if f.Message != tt.want {
				t.Errorf("Message = %q, want %q", f.Message, tt.want)
			}
			if f.State != MFAVerifyPending || f.SessionEstablished {
				t.Errorf("unexpected flow after failure: %+v", f)
			}
		})
	}
}

func TestMFASetupArtifact(t *testing.T) {
	f := NewMFAFlow(ModeSetup, "a1", false)
	if f.State != MFAIdle {
		t.Fatalf("initial state = %v", f.State)
	}
	if err := f.RequestArtifact(context.Background(), &fakeBackend{qr: "data:image/png;base64,AAAA"}); err != nil {
		t.Fatalf("RequestArtifact() error: %v", err)
	}
	if f.State != MFASetupArtifactReady || f.Artifact == "" || f.Message != MsgQRGenerated {
		t.Errorf("unexpected flow %+v", f)
	}

	f = NewMFAFlow(ModeSetup, "a1", false)
	_ = f.RequestArtifact(context.Background(), &fakeBackend{setupErr: errors.New("boom")})
	if f.State != MFAFailed || f.Message != MsgSetupFailed || f.Artifact != "" {
		t.Errorf("unexpected flow after setup failure %+v", f)
	}
	if !f.CanSubmit("12345678") {
		t.Error("verification should remain available after a setup failure")
	}

	f = NewMFAFlow(ModeVerify, "a1", false)
	if err := f.RequestArtifact(context.Background(), &fakeBackend{qr: "x"}); err == nil {
		t.Error("verify mode must not request an artifact")
	}
}

func TestMFAResolveWithoutSession(t *testing.T) {
	fb := &fakeBackend{meErr: errors.New("401")}
	f := NewMFAFlow(ModeVerify, "", false)
	f.Resolve(context.Background(), NewVerifier(nil), fb)
	if !f.Expired() || f.Message != MsgSessionExpired || f.State != MFAFailed {
		t.Errorf("unexpected flow %+v", f)
	}
	if err := f.Submit(context.Background(), fb, "12345678"); err == nil {
		t.Error("expired flow accepted a submission")
	}
	if fb.verifyHits.Load() != 0 {
		t.Error("expired flow reached the backend")
	}
}

func TestMFAResolveFromSession(t *testing.T) {
	fb := &fakeBackend{admin: &model.Admin{ID: "me"}}
	f := NewMFAFlow(ModeSetup, "", false)
	f.Resolve(context.Background(), NewVerifier(nil), fb)
	if f.AdminID != "me" || f.Expired() {
		t.Errorf("unexpected flow %+v", f)
	}
}

func TestGuardCurrentBatch(t *testing.T) {
	may := time.Date(2025, time.May, 10, 0, 0, 0, 0, time.UTC)
	june := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		now   time.Time
		admin *model.Admin
		err   error
		want  Decision
	}{
		{"superadmin any batch", june, &model.Admin{ID: "s", Role: model.RoleSuperAdmin, Batch: "2019-2020"}, nil, Grant},
		{"current batch in june", june, &model.Admin{ID: "a", Role: model.RoleAdmin, Batch: "2025-2026"}, nil, Grant},
		{"previous batch in june", june, &model.Admin{ID: "a", Role: model.RoleAdmin, Batch: "2024-2025"}, nil, Deny},
		{"previous batch in may", may, &model.Admin{ID: "a", Role: model.RoleAdmin, Batch: "2024-2025"}, nil, Grant},
		{"empty batch", june, &model.Admin{ID: "a", Role: model.RoleAdmin}, nil, Deny},
		{"identity error", june, nil, errors.New("unreachable"), Deny},
		{"superadmin but unreachable", june, &model.Admin{ID: "s", Role: model.RoleSuperAdmin}, errors.New("unreachable"), Deny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := tt.now
			g := NewGuard(NewVerifier(nil), func() time.Time { return now })
			fb := &fakeBackend{admin: tt.admin, meErr: tt.err}
			got, who := g.Authorize(context.Background(), fb, CurrentBatch(time.June))
			if got != tt.want {
				t.Errorf("Authorize() = %v, want %v", got, tt.want)
			}
			if got == Grant && who == nil {
				t.Error("grant without identity")
			}
		})
	}
}

func TestGuardRequeriesEveryTime(t *testing.T) {
	fb := &fakeBackend{admin: &model.Admin{ID: "a"}}
	g := NewGuard(NewVerifier(nil), nil)
	for i := 0; i < 3; i++ {
		g.Authorize(context.Background(), fb, Authenticated())
	}
	if fb.meHits.Load() != 3 {
		t.Errorf("identity queried %d times, want 3", fb.meHits.Load())
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		pw   string
		want error
	}{
		{"Abcdef1!", nil},
		{"Ab1!", ErrPasswordShort},
		{"abcdefg1!", ErrPasswordUpper},
		{"ABCDEFG1!", ErrPasswordLower},
		{"Abcdefgh!", ErrPasswordDigit},
		{"Abcdefgh1", ErrPasswordSpecial},
		{"Abcdefg1_", ErrPasswordSpecial},
		{"", ErrPasswordRequired},
		{"ÀBCDEFG1!", ErrPasswordLower},
	}
	for _, tt := range tests {
		if got := ValidatePassword(tt.pw); !errors.Is(got, tt.want) {
			t.Errorf("ValidatePassword(%q) = %v, want %v", tt.pw, got, tt.want)
		}
	}
}
