package tokenstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"recruitgate.org/internal/migrate"
)

// Dialect selects SQL flavour and driver.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// ParseDialect validates a configured driver name.
func ParseDialect(raw string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(raw))) {
	case Postgres, "pgx", "postgresql":
		return Postgres, nil
	case SQLite, "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("tokenstore: unsupported dialect %q", raw)
	}
}

// DriverName returns the database/sql driver registered for d.
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// Migrations returns the schema files for d.
func Migrations(d Dialect) (fs.FS, error) {
	return fs.Sub(migrationsFS, "migrations/"+string(d))
}

type queries struct {
	load, save, remove string
}

func queriesFor(d Dialect) queries {
	q := queries{
		load: `select token from session_tokens where origin = $1 and profile = $2`,
		save: `insert into session_tokens(origin, profile, token, updated_at) values ($1, $2, $3, $4)
			on conflict (origin, profile) do update set token = excluded.token, updated_at = excluded.updated_at`,
		remove: `delete from session_tokens where origin = $1 and profile = $2`,
	}
	if d == SQLite {
		q.load = strings.NewReplacer("$1", "?", "$2", "?").Replace(q.load)
		q.save = strings.NewReplacer("$1", "?", "$2", "?", "$3", "?", "$4", "?").Replace(q.save)
		q.remove = strings.NewReplacer("$1", "?", "$2", "?").Replace(q.remove)
	}
	return q
}

// SQL is a Backend on database/sql.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	q       queries
	now     func() time.Time
}

// Open connects to dsn using dialect d.
func Open(d Dialect, dsn string) (*SQL, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("tokenstore: dsn is required")
	}
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: open %s: %w", d, err)
	}
	switch d {
	case Postgres:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	case SQLite:
		// single writer avoids SQLITE_BUSY under concurrent logins
		db.SetMaxOpenConns(1)
	}
	return NewSQL(db, d), nil
}

// NewSQL wraps an existing handle.
func NewSQL(db *sql.DB, d Dialect) *SQL {
	return &SQL{db: db, dialect: d, q: queriesFor(d), now: time.Now}
}

// DB exposes the handle for migrations.
func (s *SQL) DB() *sql.DB { return s.db }

// Dialect reports the SQL flavour in use.
func (s *SQL) Dialect() Dialect { return s.dialect }

// Migrator returns a migration manager over the schema for this dialect.
func (s *SQL) Migrator(opts ...migrate.Option) (*migrate.Manager, error) {
	files, err := Migrations(s.dialect)
	if err != nil {
		return nil, err
	}
	if s.dialect == SQLite {
		opts = append(opts, migrate.WithQuestionPlaceholders())
	}
	return migrate.NewManager(s.db, files, opts...), nil
}

func (s *SQL) Load(ctx context.Context, key Key) (string, bool, error) {
	key, err := key.normalized()
	if err != nil {
		return "", false, err
	}
	var token string
	err = s.db.QueryRowContext(ctx, s.q.load, key.Origin, key.Profile).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("tokenstore: load: %w", err)
	}
	return token, true, nil
}

func (s *SQL) Save(ctx context.Context, key Key, token string) error {
	key, err := key.normalized()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.q.save, key.Origin, key.Profile, token, s.now().UTC()); err != nil {
		return fmt.Errorf("tokenstore: save: %w", err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key Key) error {
	key, err := key.normalized()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.q.remove, key.Origin, key.Profile); err != nil {
		return fmt.Errorf("tokenstore: delete: %w", err)
	}
	return nil
}

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQL) Close() error { return s.db.Close() }
