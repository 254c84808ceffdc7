package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/datalytics/console/internal/crypto"
	"github.com/datalytics/console/internal/db/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

// SQLiteSessionStore keeps sessions in an embedded SQLite file.
type SQLiteSessionStore struct {
	db      *sql.DB
	crypter *crypto.Crypter
	now     func() time.Time
}

// OpenSQLite opens dsn, applies migrations and returns the store.
func OpenSQLite(ctx context.Context, dsn string, c *crypto.Crypter) (*SQLiteSessionStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := MigrateSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// One writer at a time prevents SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLiteSessionStore{db: db, crypter: c, now: time.Now}, nil
}

// MigrateSQLite applies the embedded SQLite migrations. Running it on an
// up-to-date database is not an error.
func MigrateSQLite(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrations.SQLite, "sqlite")
	if err != nil {
		return err
	}
	dbDriver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Create inserts sess.
func (s *SQLiteSessionStore) Create(ctx context.Context, sess *Session) error {
	sealed, err := sealJar(s.crypter, sess.Jar)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO console_sessions (id, jar, flash, pending_enrollment, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		hashID(sess.ID), sealed, sess.Flash, sess.PendingEnrollment, sess.CreatedAt.Unix(), sess.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get returns the live session for id or ErrNotFound.
func (s *SQLiteSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	var (
		sealed             []byte
		flash, pending     string
		created, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT jar, flash, pending_enrollment, created_at, expires_at
		   FROM console_sessions WHERE id = ? AND expires_at > ?`,
		hashID(id), s.now().Unix(),
	).Scan(&sealed, &flash, &pending, &created, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	return &Session{
		ID:                id,
		Jar:               openJar(s.crypter, sealed),
		Flash:             flash,
		PendingEnrollment: pending,
		CreatedAt:         time.Unix(created, 0).UTC(),
		ExpiresAt:         time.Unix(expiresAt, 0).UTC(),
	}, nil
}

// Save writes the jar, flash and pending enrollment of sess.
func (s *SQLiteSessionStore) Save(ctx context.Context, sess *Session) error {
	sealed, err := sealJar(s.crypter, sess.Jar)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE console_sessions SET jar = ?, flash = ?, pending_enrollment = ? WHERE id = ?`,
		sealed, sess.Flash, sess.PendingEnrollment, hashID(sess.ID),
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *SQLiteSessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM console_sessions WHERE id = ?`, hashID(id))
	return err
}

// DeleteExpired removes expired sessions and reports how many went.
func (s *SQLiteSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM console_sessions WHERE expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteSessionStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteSessionStore) Close() error {
	return s.db.Close()
}
