package store

import (
	"net/http"
	"net/url"
	"testing"
	"time"
)

var backendURL, _ = url.Parse("https://api.example.test/admin/me")

func TestJarMergeAndDelete(t *testing.T) {
	j := NewJar()
	if j.Dirty() {
		t.Fatal("new jar is dirty")
	}

	j.SetCookies(backendURL, []*http.Cookie{{Name: "token", Value: "a"}, {Name: "csrf", Value: "x"}})
	j.SetCookies(backendURL, []*http.Cookie{{Name: "token", Value: "b"}})
	if !j.Dirty() || j.Len() != 2 {
		t.Fatalf("after set: dirty=%v len=%d", j.Dirty(), j.Len())
	}

	got := map[string]string{}
	for _, c := range j.Cookies(backendURL) {
		got[c.Name] = c.Value
	}
	if got["token"] != "b" || got["csrf"] != "x" {
		t.Errorf("Cookies() = %v", got)
	}

	j.SetCookies(backendURL, []*http.Cookie{{Name: "token", MaxAge: -1}})
	if j.Len() != 1 {
		t.Errorf("MaxAge<0 did not delete, len=%d", j.Len())
	}
}

func TestJarExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	j := NewJar()
	j.now = func() time.Time { return now }

	j.SetCookies(backendURL, []*http.Cookie{
		{Name: "short", Value: "1", MaxAge: 60},
		{Name: "past", Value: "2", Expires: now.Add(-time.Minute)},
		{Name: "session", Value: "3"},
	})
	if j.Len() != 2 {
		t.Fatalf("len = %d, want 2", j.Len())
	}

	now = now.Add(2 * time.Minute)
	cookies := j.Cookies(backendURL)
	if len(cookies) != 1 || cookies[0].Name != "session" {
		t.Errorf("Cookies() after expiry = %v", cookies)
	}
}

func TestJarMarshalRoundTrip(t *testing.T) {
	j := NewJar()
	j.SetCookies(backendURL, []*http.Cookie{{Name: "token", Value: "abc", Path: "/"}})

	data, err := j.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	back, err := LoadJar(data)
	if err != nil {
		t.Fatalf("LoadJar() error: %v", err)
	}
	if back.Dirty() {
		t.Error("loaded jar is dirty")
	}
	if c := back.Cookies(backendURL); len(c) != 1 || c[0].Value != "abc" {
		t.Errorf("Cookies() = %v", c)
	}

	if _, err := LoadJar([]byte("not json")); err == nil {
		t.Error("LoadJar accepted garbage")
	}
	empty, err := LoadJar(nil)
	if err != nil || empty.Len() != 0 {
		t.Errorf("LoadJar(nil) = %v, %v", empty, err)
	}
}

func TestJarCloneAndAbsorb(t *testing.T) {
	j := NewJar()
	j.SetCookies(backendURL, []*http.Cookie{{Name: "token", Value: "mine"}})

	scratch := j.Clone()
	scratch.SetCookies(backendURL, []*http.Cookie{{Name: "token", Value: "theirs"}})
	if v := j.Cookies(backendURL)[0].Value; v != "mine" {
		t.Fatalf("clone shares state with original: %q", v)
	}

	j.Absorb(scratch)
	if v := j.Cookies(backendURL)[0].Value; v != "theirs" {
		t.Errorf("Absorb() left %q", v)
	}

	j.Clear()
	if j.Len() != 0 {
		t.Error("Clear() left cookies")
	}
}
