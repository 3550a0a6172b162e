package database

import (
	"cmp"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

// Migration is one versioned SQL step applied after AutoMigrate. Scripts
// are written to run on both Postgres and SQLite.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrations is read once from the binary; a malformed set is a build bug.
var migrations = mustLoadMigrations(migrationFS, "migrations")

func mustLoadMigrations(fsys fs.FS, dir string) []Migration {
	all, err := loadMigrations(fsys, dir)
	if err != nil {
		panic(err)
	}
	return all
}

// loadMigrations pairs dir/NNNNNN_name.up.sql with its .down.sql and sorts
// them by version. Missing down scripts and reused versions are errors.
func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	ups, err := fs.Glob(fsys, path.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, err
	}

	out := make([]Migration, 0, len(ups))
	seen := map[int]string{}
	for _, upPath := range ups {
		base := strings.TrimSuffix(path.Base(upPath), ".up.sql")
		digits, name, ok := strings.Cut(base, "_")
		version, convErr := strconv.Atoi(digits)
		if !ok || convErr != nil || version <= 0 || name == "" {
			return nil, fmt.Errorf("migration %s: want NNNNNN_name.up.sql", upPath)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %d used by %s and %s", version, prev, base)
		}
		seen[version] = base

		up, err := fs.ReadFile(fsys, upPath)
		if err != nil {
			return nil, err
		}
		down, err := fs.ReadFile(fsys, path.Join(dir, base+".down.sql"))
		if err != nil {
			return nil, fmt.Errorf("migration %s has no down script: %w", base, err)
		}
		out = append(out, Migration{Version: version, Name: name, UpScript: string(up), DownScript: string(down)})
	}

	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

// GetMigrations returns the registered migrations in version order.
func GetMigrations() []Migration {
	return slices.Clone(migrations)
}

// statements splits a script on semicolons. Scripts must not contain
// semicolons inside literals.
func statements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
