package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/"}, nil)
}

func TestMe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header")
		}
		_, _ = io.WriteString(w, `{"admin":{"_id":"a1","role":"superadmin","batch":"2023-2024","year":3,"course":{"_id":"c1","name":"MCA"}}}`)
	})

	admin, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me() error: %v", err)
	}
	if admin.ID != "a1" || !admin.IsSuperAdmin() || admin.Batch != "2023-2024" {
		t.Errorf("unexpected admin %+v", admin)
	}
	if admin.Year != "3" || admin.Course.ID != "c1" || admin.Course.Name != "MCA" {
		t.Errorf("flexible fields not decoded: %+v", admin)
	}
}

func TestMeFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"Not logged in"}`, "Not logged in"},
		{"malformed", http.StatusOK, `{"admin":`, ""},
		{"missing admin", http.StatusOK, `{}`, ""},
		{"server error without body", http.StatusInternalServerError, ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Me(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T", err)
			}
			if got := MessageOr(err, ""); got != tt.message {
				t.Errorf("MessageOr() = %q, want %q", got, tt.message)
			}
		})
	}
}

func TestMeTransportFailure(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := c.Me(context.Background())
	if err == nil {
		t.Fatal("expected error for unreachable backend")
	}
	if got := MessageOr(err, "fallback"); got != "fallback" {
		t.Errorf("MessageOr() = %q, want fallback", got)
	}
}

func TestLoginOutcomes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want LoginResult
	}{
		{"bare success", ``, LoginResult{}},
		{"empty object", `{}`, LoginResult{}},
		{"setup", `{"setupMFA":true,"adminId":"a1"}`, LoginResult{SetupMFA: true, AdminID: "a1"}},
		{"verify", `{"mfaRequired":true,"adminId":"a2"}`, LoginResult{MFARequired: true, AdminID: "a2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				var body map[string]string
				_ = json.NewDecoder(r.Body).Decode(&body)
				if body["email"] != "a@b.c" || body["password"] != "pw" {
					t.Errorf("unexpected body %v", body)
				}
				_, _ = io.WriteString(w, tt.body)
			})
			got, err := c.Login(context.Background(), "a@b.c", "pw")
			if err != nil {
				t.Fatalf("Login() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Login() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWithJarCarriesBackendCookie(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/login":
			http.SetCookie(w, &http.Cookie{Name: "token", Value: "abc", Path: "/"})
			w.WriteHeader(http.StatusOK)
		case "/admin/me":
			ck, err := r.Cookie("token")
			if err != nil || ck.Value != "abc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"admin":{"_id":"a1","role":"admin","batch":"2024-2025"}}`)
		}
	})

	jar, _ := cookiejar.New(nil)
	bound := c.WithJar(jar)
	if _, err := bound.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if _, err := bound.Me(context.Background()); err != nil {
		t.Fatalf("Me() with jar error: %v", err)
	}
	if _, err := c.Me(context.Background()); !IsUnauthorized(err) {
		t.Errorf("unbound client should not share cookies, got %v", err)
	}
}

func TestVerifyMFA(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AdminID    string `json:"adminId"`
			Code       string `json:"code"`
			FromCreate bool   `json:"fromCreate"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Code != "12345678" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"message":"Wrong code"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"fromCreate": body.FromCreate})
	})

	fromCreate, err := c.VerifyMFA(context.Background(), "a1", "12345678", true)
	if err != nil || !fromCreate {
		t.Errorf("VerifyMFA() = %v, %v; want true, nil", fromCreate, err)
	}

	_, err = c.VerifyMFA(context.Background(), "a1", "00000000", false)
	if got := MessageOr(err, "Invalid OTP code"); got != "Wrong code" {
		t.Errorf("MessageOr() = %q, want Wrong code", got)
	}
}

func TestListShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[{"_id":"c1","name":"MCA"},{"_id":"c2","name":"MSc"}]`},
		{"wrapped", `{"courses":[{"_id":"c1","name":"MCA"},{"_id":"c2","name":"MSc"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})
			courses, err := c.Courses(context.Background())
			if err != nil {
				t.Fatalf("Courses() error: %v", err)
			}
			if len(courses) != 2 || courses[1].Name != "MSc" {
				t.Errorf("unexpected courses %+v", courses)
			}
		})
	}
}

func TestCreateAdminSendsMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.FormValue("name") != "Asha" {
			t.Errorf("name = %q", r.FormValue("name"))
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			t.Errorf("image part missing: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		if hdr.Filename != "me.png" || hdr.Header.Get("Content-Type") != "image/png" {
			t.Errorf("unexpected image header %+v", hdr.Header)
		}
		_, _ = io.WriteString(w, `{"admin":{"_id":"new1"}}`)
	})

	form := &Multipart{}
	form.Set("name", "Asha")
	form.AttachImage("me.png", "image/png", []byte("png-bytes"))
	admin, err := c.CreateAdmin(context.Background(), form)
	if err != nil {
		t.Fatalf("CreateAdmin() error: %v", err)
	}
	if admin.ID != "new1" {
		t.Errorf("admin id = %q, want new1", admin.ID)
	}
}

func TestAPIErrorString(t *testing.T) {
	err := &APIError{Op: "login", Status: 401, Message: "Invalid credentials"}
	if !strings.Contains(err.Error(), "Invalid credentials") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !IsUnauthorized(err) || IsNotFound(err) {
		t.Error("status helpers disagree with status 401")
	}
}
