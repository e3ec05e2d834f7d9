package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

const defaultTable = "schema_migrations"

var ErrNothingApplied = errors.New("migrate: no migrations applied")

// Manager executes SQL migrations read from an fs.FS. Files are named
// NNNN_name.up.sql with an optional matching .down.sql.
type Manager struct {
	db       *sql.DB
	files    fs.FS
	table    string
	question bool
}

// Option configures Manager.
type Option func(*Manager)

// WithTable overrides the default bookkeeping table.
func WithTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.table = name
		}
	}
}

// WithQuestionPlaceholders switches bind parameters from $N to ?, as
// required by sqlite.
func WithQuestionPlaceholders() Option {
	return func(m *Manager) {
		m.question = true
	}
}

// NewManager constructs a Manager.
func NewManager(db *sql.DB, files fs.FS, opts ...Option) *Manager {
	m := &Manager{
		db:    db,
		files: files,
		table: defaultTable,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies all pending migrations and returns the names applied.
func (m *Manager) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	executed, err := m.history(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(executed))
	for _, name := range executed {
		done[name] = true
	}
	files, err := m.collect(".up.sql")
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, name := range files {
		if done[name] {
			continue
		}
		if err := m.exec(ctx, name); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := m.db.ExecContext(ctx, m.bind(`insert into %s(name, applied_at) values ($1, $2)`), name, time.Now().UTC()); err != nil {
			return applied, err
		}
		applied = append(applied, name)
	}
	return applied, nil
}

// Down rolls back the most recent applied migration and returns its name.
func (m *Manager) Down(ctx context.Context) (string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return "", err
	}
	executed, err := m.history(ctx)
	if err != nil {
		return "", err
	}
	if len(executed) == 0 {
		return "", ErrNothingApplied
	}
	last := executed[len(executed)-1]
	down := strings.TrimSuffix(last, ".up.sql") + ".down.sql"
	if _, err := fs.Stat(m.files, down); err != nil {
		return "", fmt.Errorf("missing down migration for %s", last)
	}
	if err := m.exec(ctx, down); err != nil {
		return "", fmt.Errorf("rollback migration %s: %w", last, err)
	}
	if _, err := m.db.ExecContext(ctx, m.bind(`delete from %s where name = $1`), last); err != nil {
		return "", err
	}
	return last, nil
}

// Status returns applied migrations in order.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	return m.history(ctx)
}

func (m *Manager) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(`
		create table if not exists %s (
			name text primary key,
			applied_at timestamp not null
		)`, m.table))
	return err
}

func (m *Manager) exec(ctx context.Context, name string) error {
	body, err := fs.ReadFile(m.files, name)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(body)) {
		if strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(stmt), ";")) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (m *Manager) history(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`select name from %s order by name asc`, m.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res = append(res, name)
	}
	return res, rows.Err()
}

func (m *Manager) collect(suffix string) ([]string, error) {
	if m.files == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// bind fills the table name and rewrites placeholders for the dialect.
func (m *Manager) bind(query string) string {
	query = fmt.Sprintf(query, m.table)
	if m.question {
		query = strings.NewReplacer("$1", "?", "$2", "?").Replace(query)
	}
	return query
}

// splitStatements splits SQL on semicolons outside single-quoted strings.
func splitStatements(sql string) []string {
	var stmts []string
	var current strings.Builder
	var inString bool
	for _, r := range sql {
		current.WriteRune(r)
		switch r {
		case '\'':
			inString = !inString
		case ';':
			if !inString {
				stmts = append(stmts, current.String())
				current.Reset()
			}
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		stmts = append(stmts, current.String())
	}
	return stmts
}
