package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// Dialect maps the configured database driver onto a goose dialect.
func Dialect(driver string) goose.Dialect {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return goose.DialectSQLite3
	default:
		return goose.DialectPostgres
	}
}

// Applied describes one migration a Migrator ran.
type Applied struct {
	Version   int64
	File      string
	Direction string
	Took      time.Duration
}

// Pending is one row of Status.
type Pending struct {
	Version   int64
	File      string
	AppliedAt *time.Time
}

// Migrator runs the SQL files in one directory against one database.
type Migrator struct {
	provider *goose.Provider
}

func New(db *sql.DB, driver, dir string) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("dir is required")
	}
	provider, err := goose.NewProvider(Dialect(driver), db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("load migrations from %s: %w", dir, err)
	}
	return &Migrator{provider: provider}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) ([]Applied, error) {
	results, err := m.provider.Up(ctx)
	return applied(results), wrap("up", err)
}

// Down rolls back the newest applied migration.
func (m *Migrator) Down(ctx context.Context) ([]Applied, error) {
	result, err := m.provider.Down(ctx)
	if result == nil {
		return nil, wrap("down", err)
	}
	return applied([]*goose.MigrationResult{result}), wrap("down", err)
}

// To moves the schema up or down until raw, a YYYYMMDDHHMMSS version, is the newest applied.
func (m *Migrator) To(ctx context.Context, raw string) ([]Applied, error) {
	target, err := ParseVersion(raw)
	if err != nil {
		return nil, err
	}
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("read db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil, nil
	case current < target:
		results, err = m.provider.UpTo(ctx, target)
	default:
		results, err = m.provider.DownTo(ctx, target)
	}
	return applied(results), wrap("to "+raw, err)
}

// Status lists every migration file; AppliedAt is nil for pending ones.
func (m *Migrator) Status(ctx context.Context) ([]Pending, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, wrap("status", err)
	}
	out := make([]Pending, 0, len(statuses))
	for _, s := range statuses {
		row := Pending{Version: s.Source.Version, File: s.Source.Path}
		if s.State == goose.StateApplied {
			at := s.AppliedAt
			row.AppliedAt = &at
		}
		out = append(out, row)
	}
	return out, nil
}

func applied(results []*goose.MigrationResult) []Applied {
	out := make([]Applied, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil || r.Error != nil {
			continue
		}
		out = append(out, Applied{Version: r.Source.Version, File: r.Source.Path, Direction: r.Direction, Took: r.Duration})
	}
	return out
}

func wrap(op string, err error) error {
	if err == nil || errors.Is(err, goose.ErrNoNextVersion) {
		return nil
	}
	return fmt.Errorf("migrate %s: %w", op, err)
}

// ParseVersion accepts the YYYYMMDDHHMMSS prefix used by migration filenames.
func ParseVersion(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != len(versionLayout) {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	if _, err := time.Parse(versionLayout, raw); err != nil {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", raw, err)
	}
	return strconv.ParseInt(raw, 10, 64)
}
