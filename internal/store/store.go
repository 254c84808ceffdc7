// Package store persists console sessions: the browser-facing session that
// carries an encrypted copy of the admin's backend cookies.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datalytics/console/internal/auth"
	"github.com/datalytics/console/internal/crypto"
)

// SessionTTL is how long a console session lives after creation.
const SessionTTL = 12 * time.Hour

var ErrNotFound = errors.New("store: session not found")

// Session is one console session. ID is the raw token sent to the browser;
// stores only ever see its hash.
type Session struct {
	ID                string
	Jar               *Jar
	Flash             string
	PendingEnrollment string
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// SessionStore is implemented by the SQLite and Postgres backends. Create
// inserts a session built with NewSession, including its jar, flash and
// pending enrollment.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open picks the backend from databaseURL: postgres:// and postgresql://
// URLs use Postgres, anything else is a SQLite path or DSN. Migrations are
// applied before returning.
func Open(ctx context.Context, databaseURL string, c *crypto.Crypter) (SessionStore, error) {
	if databaseURL == "" {
		return nil, errors.New("store: empty database url")
	}
	if IsPostgresURL(databaseURL) {
		return OpenPostgres(ctx, databaseURL, c)
	}
	return OpenSQLite(ctx, databaseURL, c)
}

func IsPostgresURL(u string) bool {
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// NewSession returns an unsaved session with a fresh random ID.
func NewSession(now time.Time) *Session {
	return &Session{
		ID:        auth.GenerateToken(),
		Jar:       NewJar(),
		CreatedAt: now.UTC(),
		ExpiresAt: now.Add(SessionTTL).UTC(),
	}
}

func hashID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

func sealJar(c *crypto.Crypter, j *Jar) ([]byte, error) {
	if j == nil {
		j = NewJar()
	}
	plain, err := j.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal jar: %w", err)
	}
	return c.Encrypt(plain)
}

// openJar never fails the request: a jar that cannot be decrypted, for
// instance after SESSION_SECRET rotated, comes back empty.
func openJar(c *crypto.Crypter, sealed []byte) *Jar {
	if len(sealed) == 0 {
		return NewJar()
	}
	plain, err := c.Decrypt(sealed)
	if err != nil {
		return NewJar()
	}
	j, err := LoadJar(plain)
	if err != nil {
		return NewJar()
	}
	return j
}

// Migrate applies the schema for databaseURL without opening a store. It
// returns the Postgres versions applied; SQLite reports nothing.
func Migrate(ctx context.Context, databaseURL string) ([]string, error) {
	if IsPostgresURL(databaseURL) {
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		return MigratePostgres(ctx, pool)
	}

	db, err := sql.Open("sqlite", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	return nil, MigrateSQLite(db)
}
