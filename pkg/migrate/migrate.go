package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

// Command is one of the schema operations the migrate binary exposes.
type Command string

const (
	// Up applies every pending migration.
	Up Command = "up"
	// Down rolls back the most recent migration.
	Down Command = "down"
	// Status prints the applied/pending state of each migration.
	Status Command = "status"
)

const DefaultDir = "pkg/migrate/migrations"

// Apply executes one schema command against the webshop database.
func Apply(ctx context.Context, db *sql.DB, dir string, cmd Command) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	switch cmd {
	case Up:
		if err := goose.UpContext(ctx, db, dir); err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
	case Down:
		if err := goose.DownContext(ctx, db, dir); err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
	case Status:
		if err := goose.StatusContext(ctx, db, dir); err != nil {
			return fmt.Errorf("goose status: %w", err)
		}
	default:
		return fmt.Errorf("unsupported migration command %q", cmd)
	}
	return nil
}

// To walks the schema up or down until it sits at the requested version.
// Already being there is a no-op.
func To(ctx context.Context, db *sql.DB, dir string, version int64) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	current, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == version:
		return nil
	case current < version:
		if err := goose.UpToContext(ctx, db, dir, version); err != nil {
			return fmt.Errorf("goose up-to %d: %w", version, err)
		}
	default:
		if err := goose.DownToContext(ctx, db, dir, version); err != nil {
			return fmt.Errorf("goose down-to %d: %w", version, err)
		}
	}
	return nil
}

// ParseVersion parses a goose version argument (YYYYMMDDHHMMSS).
func ParseVersion(raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("version is required")
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", raw, err)
	}
	return version, nil
}
