package store

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/datalytics/console/internal/crypto"
)

func newTestStore(t *testing.T) *SQLiteSessionStore {
	t.Helper()
	c, err := crypto.New([]byte("test-session-secret"))
	if err != nil {
		t.Fatalf("crypto.New: %v", err)
	}
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "console.db"), c)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess := NewSession(time.Now())
	if err := s.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if len(sess.ID) != 64 {
		t.Errorf("session id length = %d", len(sess.ID))
	}

	sess.Jar.SetCookies(backendURL, []*http.Cookie{{Name: "token", Value: "upstream"}})
	sess.Flash = "Access denied"
	sess.PendingEnrollment = "new-admin"
	if err := s.Save(ctx, sess); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Flash != "Access denied" || got.PendingEnrollment != "new-admin" {
		t.Errorf("unexpected session %+v", got)
	}
	if c := got.Jar.Cookies(backendURL); len(c) != 1 || c[0].Value != "upstream" {
		t.Errorf("jar not restored: %v", c)
	}

	if err := s.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := s.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete err = %v, want ErrNotFound", err)
	}
	if err := s.Save(ctx, sess); !errors.Is(err, ErrNotFound) {
		t.Errorf("Save() after delete err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStoresHashedIDAndSealedJar(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess := NewSession(time.Now())
	_ = s.Create(ctx, sess)
	sess.Jar.SetCookies(backendURL, []*http.Cookie{{Name: "token", Value: "plain-cookie-value"}})
	_ = s.Save(ctx, sess)

	var n int
	_ = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM console_sessions WHERE id = ?`, sess.ID).Scan(&n)
	if n != 0 {
		t.Error("raw session id stored in database")
	}
	var jar []byte
	_ = s.db.QueryRowContext(ctx, `SELECT jar FROM console_sessions`).Scan(&jar)
	if len(jar) == 0 || bytes.Contains(jar, []byte("plain-cookie-value")) {
		t.Error("jar not encrypted at rest")
	}
}

func TestSQLiteExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	old := NewSession(now)
	_ = s.Create(ctx, old)
	now = now.Add(SessionTTL - time.Hour)
	fresh := NewSession(now)
	_ = s.Create(ctx, fresh)

	now = now.Add(2 * time.Hour)
	if _, err := s.Get(ctx, old.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired session still readable: %v", err)
	}
	if _, err := s.Get(ctx, fresh.ID); err != nil {
		t.Errorf("fresh session unreadable: %v", err)
	}

	n, err := s.DeleteExpired(ctx)
	if err != nil || n != 1 {
		t.Errorf("DeleteExpired() = %d, %v; want 1, nil", n, err)
	}
}

func TestSQLiteMigrateTwice(t *testing.T) {
	s := newTestStore(t)
	if err := MigrateSQLite(s.db); err != nil {
		t.Errorf("second migration run: %v", err)
	}
}

func TestUnreadableJarComesBackEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sess := NewSession(time.Now())
	_ = s.Create(ctx, sess)
	_, _ = s.db.ExecContext(ctx, `UPDATE console_sessions SET jar = ?`, []byte("garbage"))

	got, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Jar.Len() != 0 {
		t.Error("garbage jar produced cookies")
	}
}

func TestIsPostgresURL(t *testing.T) {
	for u, want := range map[string]bool{
		"postgres://u@h/db":   true,
		"postgresql://u@h/db": true,
		"console.db":          false,
		"file:console.db":     false,
	} {
		if got := IsPostgresURL(u); got != want {
			t.Errorf("IsPostgresURL(%q) = %v", u, got)
		}
	}
}
