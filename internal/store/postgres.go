package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/datalytics/console/internal/crypto"
	"github.com/datalytics/console/internal/db/migrations"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSessionStore keeps sessions in a shared Postgres database so
// several console instances can serve the same browsers.
type PostgresSessionStore struct {
	pool    *pgxpool.Pool
	crypter *crypto.Crypter
	now     func() time.Time
}

// OpenPostgres connects, applies migrations and returns the store.
func OpenPostgres(ctx context.Context, url string, c *crypto.Crypter) (*PostgresSessionStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := MigratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresSessionStore{pool: pool, crypter: c, now: time.Now}, nil
}

// MigratePostgres applies every embedded Postgres migration not yet recorded
// in schema_migrations and returns the versions it applied.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := fs.Glob(migrations.Postgres, "postgres/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	sort.Strings(files)

	var applied []string
	for _, f := range files {
		version := strings.TrimSuffix(path.Base(f), ".sql")

		var exists bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`,
			version,
		).Scan(&exists); err != nil {
			return applied, fmt.Errorf("check migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		body, err := fs.ReadFile(migrations.Postgres, f)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration %s: %w", f, err)
		}
		if _, err := pool.Exec(ctx, string(body)); err != nil {
			return applied, fmt.Errorf("migration %s failed: %w", version, err)
		}
		if _, err := pool.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, version,
		); err != nil {
			return applied, fmt.Errorf("failed to record migration %s: %w", version, err)
		}
		slog.Info("applied migration", "version", version)
		applied = append(applied, version)
	}
	return applied, nil
}

func (s *PostgresSessionStore) Create(ctx context.Context, sess *Session) error {
	sealed, err := sealJar(s.crypter, sess.Jar)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO console_sessions (id, jar, flash, pending_enrollment, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		hashID(sess.ID), sealed, sess.Flash, sess.PendingEnrollment, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	var (
		sealed         []byte
		flash, pending string
		created, exp   time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT jar, flash, pending_enrollment, created_at, expires_at
		   FROM console_sessions WHERE id = $1 AND expires_at > $2`,
		hashID(id), s.now().UTC(),
	).Scan(&sealed, &flash, &pending, &created, &exp)
	if errors.Is(err, pgx.ErrNoRows) {
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
		CreatedAt:         created.UTC(),
		ExpiresAt:         exp.UTC(),
	}, nil
}

func (s *PostgresSessionStore) Save(ctx context.Context, sess *Session) error {
	sealed, err := sealJar(s.crypter, sess.Jar)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE console_sessions SET jar = $1, flash = $2, pending_enrollment = $3 WHERE id = $4`,
		sealed, sess.Flash, sess.PendingEnrollment, hashID(sess.ID),
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresSessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM console_sessions WHERE id = $1`, hashID(id))
	return err
}

func (s *PostgresSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM console_sessions WHERE expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresSessionStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresSessionStore) Close() error {
	s.pool.Close()
	return nil
}
