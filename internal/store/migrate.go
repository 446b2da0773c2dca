// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"cmp"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// The embedded FS is immutable, so the catalog is parsed once.
var (
	catalogOnce sync.Once
	catalog     []embeddedMigration
	catalogErr  error
)

// migrateIface is the part of *migrate.Migrate the Migrator drives.
type migrateIface interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies the embedded users schema.
type Migrator struct {
	m migrateIface
}

// MigrationURL rewrites postgres:// and postgresql:// URLs to the pgx5://
// scheme the golang-migrate pgx/v5 driver registers. Other URLs pass through.
func MigrationURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, found := strings.CutPrefix(databaseURL, scheme); found {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

// NewMigrator opens a migrator against databaseURL.
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "create migration source").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, MigrationURL(databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "initialize migrator").Wrap(err)
	}

	return &Migrator{m: m}, nil
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls every migration back, dropping the users table and its data.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Steps applies n migrations; negative n rolls back.
func (m *Migrator) Steps(n int) error {
	if err := m.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_STEPS_FAILED").With("steps", n).Wrap(err)
	}
	return nil
}

// Version returns the applied version and dirty flag, or 0 on a fresh database.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force records version as applied without running anything. It is the
// recovery path for a dirty schema after a manual fix.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases the source and the database connection.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	switch {
	case srcErr != nil && dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").
			With("component", "both").
			Errorf("source: %v; database: %v", srcErr, dbErr)
	case srcErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "source").Wrap(srcErr)
	case dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "database").Wrap(dbErr)
	}
	return nil
}

// embeddedMigration is one NNNNNN_name.up.sql file in migrationsFS.
type embeddedMigration struct {
	version uint
	name    string // file name without .up.sql
}

// embeddedMigrations returns a copy of the catalog ordered by version.
func embeddedMigrations() ([]embeddedMigration, error) {
	catalogOnce.Do(func() {
		catalog, catalogErr = readCatalog()
	})
	if catalogErr != nil {
		return nil, catalogErr
	}
	return slices.Clone(catalog), nil
}

// readCatalog parses the embedded up files. Names that do not start with a
// six digit version are skipped with a warning.
func readCatalog() ([]embeddedMigration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("operation", "read migrations dir").Wrap(err)
	}

	var out []embeddedMigration
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".up.sql")
		if !ok {
			continue
		}
		var version uint
		if _, err := fmt.Sscanf(name, "%06d", &version); err != nil {
			slog.Warn("skipping migration with unexpected file name",
				"filename", entry.Name(),
				"expected_format", "NNNNNN_name.up.sql",
				"error", err)
			continue
		}
		out = append(out, embeddedMigration{version: version, name: name})
	}
	slices.SortFunc(out, func(a, b embeddedMigration) int { return cmp.Compare(a.version, b.version) })
	return slices.CompactFunc(out, func(a, b embeddedMigration) bool { return a.version == b.version }), nil
}

// allMigrationVersions returns the embedded versions, ascending.
func allMigrationVersions() ([]uint, error) {
	all, err := embeddedMigrations()
	if err != nil {
		return nil, err
	}
	versions := make([]uint, len(all))
	for i, mg := range all {
		versions[i] = mg.version
	}
	return versions, nil
}

// MigrationName returns the NNNNNN_name of version, or "" when no such
// migration is embedded.
func MigrationName(version uint) (string, error) {
	all, err := embeddedMigrations()
	if err != nil {
		return "", err
	}
	i := slices.IndexFunc(all, func(mg embeddedMigration) bool { return mg.version == version })
	if i < 0 {
		return "", nil
	}
	return all[i].name, nil
}

// splitAt divides the catalog into migrations at or below current and the
// rest.
func splitAt(all []embeddedMigration, current uint) (applied, pending []embeddedMigration) {
	i := slices.IndexFunc(all, func(mg embeddedMigration) bool { return mg.version > current })
	if i < 0 {
		return all, nil
	}
	return all[:i], all[i:]
}

// split reads the current version and divides the catalog around it.
func (m *Migrator) split(operation string) (current uint, dirty bool, applied, pending []embeddedMigration, err error) {
	current, dirty, err = m.Version()
	if err != nil {
		return 0, false, nil, nil, oops.With("operation", operation).Wrap(err)
	}
	all, err := embeddedMigrations()
	if err != nil {
		return 0, false, nil, nil, oops.With("operation", operation).Wrap(err)
	}
	applied, pending = splitAt(all, current)
	return current, dirty, applied, pending, nil
}

func versionsOf(ms []embeddedMigration) []uint {
	if len(ms) == 0 {
		return nil
	}
	out := make([]uint, len(ms))
	for i, mg := range ms {
		out[i] = mg.version
	}
	return out
}

func namesOf(ms []embeddedMigration) []string {
	if len(ms) == 0 {
		return nil
	}
	out := make([]string, len(ms))
	for i, mg := range ms {
		out[i] = mg.name
	}
	return out
}

// PendingMigrations returns the versions Up would apply, ascending.
func (m *Migrator) PendingMigrations() ([]uint, error) {
	_, _, _, pending, err := m.split("get pending migrations")
	if err != nil {
		return nil, err
	}
	return versionsOf(pending), nil
}

// AppliedMigrations returns the versions already applied, ascending.
func (m *Migrator) AppliedMigrations() ([]uint, error) {
	_, _, applied, _, err := m.split("get applied migrations")
	if err != nil {
		return nil, err
	}
	return versionsOf(applied), nil
}

// Status summarizes the schema for `accounts migrate status`.
type Status struct {
	Version uint     `json:"version" yaml:"version"`
	Name    string   `json:"name,omitempty" yaml:"name,omitempty"`
	Dirty   bool     `json:"dirty" yaml:"dirty"`
	Applied []string `json:"applied,omitempty" yaml:"applied,omitempty"`
	Pending []string `json:"pending,omitempty" yaml:"pending,omitempty"`
}

// Status reports the current version and the names of applied and pending
// migrations, all from a single version read.
func (m *Migrator) Status() (*Status, error) {
	version, dirty, applied, pending, err := m.split("migration status")
	if err != nil {
		return nil, err
	}
	st := &Status{
		Version: version,
		Dirty:   dirty,
		Applied: namesOf(applied),
		Pending: namesOf(pending),
	}
	if n := len(applied); n > 0 && applied[n-1].version == version {
		st.Name = applied[n-1].name
	}
	return st, nil
}
