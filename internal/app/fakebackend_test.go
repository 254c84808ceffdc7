package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/datalytics/console/internal/model"
)

const (
	testPassword = "Passw0rd!"
	testOTP      = "12345678"
	testQR       = "data:image/png;base64,iVBORw0KGgo="
	backendToken = "token"
)

type verifyCall struct {
	AdminID    string `json:"adminId"`
	Code       string `json:"code"`
	FromCreate bool   `json:"fromCreate"`
}

// fakeBackend is an in-memory stand-in for the membership API.
type fakeBackend struct {
	mu       sync.Mutex
	admins   map[string]model.Admin
	enrolled map[string]bool
	sessions map[string]string
	verifies []verifyCall
	created  map[string]string
	imageOK  bool
	deleted  []string

	// When set, verify-mfa signals verifyEntered and waits on verifyRelease.
	verifyEntered chan struct{}
	verifyRelease chan struct{}
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	f := &fakeBackend{
		admins: map[string]model.Admin{
			"a-super": {ID: "a-super", Name: "Super", Email: "super@example.org", Role: model.RoleSuperAdmin, Batch: "2019-2020"},
			"a-old":   {ID: "a-old", Name: "Old", Email: "old@example.org", Role: model.RoleAdmin, Batch: "2022-2023"},
			"a-cur":   {ID: "a-cur", Name: "Current", Email: "cur@example.org", Role: model.RoleAdmin, Batch: "2024-2025"},
			"a-fresh": {ID: "a-fresh", Name: "Fresh", Email: "fresh@example.org", Role: model.RoleAdmin, Batch: "2024-2025"},
		},
		enrolled: map[string]bool{"a-old": true, "a-cur": true},
		sessions: map[string]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/login", f.login)
	mux.HandleFunc("GET /admin/me", f.me)
	mux.HandleFunc("POST /admin/setup-mfa", f.setupMFA)
	mux.HandleFunc("POST /admin/verify-mfa", f.verifyMFA)
	mux.HandleFunc("POST /admin/logout", f.logout)
	mux.HandleFunc("GET /admin/all", f.authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		list := make([]model.Admin, 0, len(f.admins))
		for _, a := range f.admins {
			list = append(list, a)
		}
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"admins": list})
	}))
	mux.HandleFunc("POST /admin/add", f.authed(f.addAdmin))
	mux.HandleFunc("GET /admin/members", f.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"members": []map[string]any{{
			"_id": "m1", "name": "Asha Rao", "email": "asha@example.org",
			"course": map[string]string{"_id": "c1", "name": "BCA"},
			"year":   3, "batch": "2024-2025",
		}}})
	}))
	mux.HandleFunc("DELETE /admin/members/{id}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, r.PathValue("id"))
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	}))
	mux.HandleFunc("GET /courses", f.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{
			{"_id": "c0", "name": "Computing Department"},
			{"_id": "c1", "name": "BCA"},
		})
	}))
	mux.HandleFunc("GET /roles/{batch}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"roles": []map[string]string{
			{"_id": "p1", "title": "President", "batch": r.PathValue("batch")},
		}})
	}))
	mux.HandleFunc("GET /events", f.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"events": []any{}})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeBackend) startSession(w http.ResponseWriter, adminID string) {
	sid := "sid-" + adminID
	f.mu.Lock()
	f.sessions[sid] = adminID
	f.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: backendToken, Value: sid, Path: "/", HttpOnly: true})
}

func (f *fakeBackend) current(r *http.Request) (model.Admin, bool) {
	c, err := r.Cookie(backendToken)
	if err != nil {
		return model.Admin{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.sessions[c.Value]
	if !ok {
		return model.Admin{}, false
	}
	a, ok := f.admins[id]
	return a, ok
}

func (f *fakeBackend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := f.current(r); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authenticated"})
			return
		}
		next(w, r)
	}
}

func (f *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var in struct{ Email, Password string }
	_ = json.NewDecoder(r.Body).Decode(&in)

	f.mu.Lock()
	var found *model.Admin
	for _, a := range f.admins {
		if a.Email == in.Email {
			a := a
			found = &a
		}
	}
	enrolled := found != nil && f.enrolled[found.ID]
	f.mu.Unlock()

	if found == nil || in.Password != testPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	}
	switch {
	case found.Role == model.RoleSuperAdmin:
		f.startSession(w, found.ID)
		writeJSON(w, http.StatusOK, map[string]any{})
	case enrolled:
		writeJSON(w, http.StatusOK, map[string]any{"mfaRequired": true, "adminId": found.ID})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"setupMFA": true, "adminId": found.ID})
	}
}

func (f *fakeBackend) me(w http.ResponseWriter, r *http.Request) {
	a, ok := f.current(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"admin": a})
}

func (f *fakeBackend) setupMFA(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"qrImage": testQR})
}

func (f *fakeBackend) verifyMFA(w http.ResponseWriter, r *http.Request) {
	var in verifyCall
	_ = json.NewDecoder(r.Body).Decode(&in)

	f.mu.Lock()
	f.verifies = append(f.verifies, in)
	entered, release := f.verifyEntered, f.verifyRelease
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}

	if in.Code != testOTP {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid OTP code"})
		return
	}
	f.mu.Lock()
	f.enrolled[in.AdminID] = true
	f.mu.Unlock()
	if in.FromCreate {
		writeJSON(w, http.StatusOK, map[string]bool{"fromCreate": true})
		return
	}
	f.startSession(w, in.AdminID)
	writeJSON(w, http.StatusOK, map[string]bool{"fromCreate": false})
}

func (f *fakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(backendToken); err == nil {
		f.mu.Lock()
		delete(f.sessions, c.Value)
		f.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: backendToken, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (f *fakeBackend) addAdmin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	values := map[string]string{}
	for k, v := range r.MultipartForm.Value {
		values[k] = v[0]
	}
	_, _, imgErr := r.FormFile("image")

	f.mu.Lock()
	f.created = values
	f.imageOK = imgErr == nil
	f.admins["a-new"] = model.Admin{ID: "a-new", Name: values["name"], Email: values["email"], Role: model.Role(values["role"]), Batch: values["batch"]}
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"admin": map[string]string{"_id": "a-new"}})
}

// holdVerify makes the next verify-mfa calls block until the returned
// release func runs. entered receives once per call that reached the backend.
func (f *fakeBackend) holdVerify() (entered <-chan struct{}, release func()) {
	in := make(chan struct{}, 4)
	hold := make(chan struct{})
	f.mu.Lock()
	f.verifyEntered, f.verifyRelease = in, hold
	f.mu.Unlock()
	var once sync.Once
	return in, func() { once.Do(func() { close(hold) }) }
}

func (f *fakeBackend) verifyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.verifies)
}

func (f *fakeBackend) lastVerify() (verifyCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.verifies) == 0 {
		return verifyCall{}, false
	}
	return f.verifies[len(f.verifies)-1], true
}
