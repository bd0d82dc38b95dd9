package store

import (
	"embed"

	"github.com/edaniels/golog"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrateUp applies every pending migration.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: closing it closes the database.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migration up failed")
	}
	return nil
}

// MigrateTo migrates up or down to the given version.
func (s *Store) MigrateTo(version uint) error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrapf(err, "migration to version %d failed", version)
	}
	return nil
}

// Version returns the current schema version, zero when nothing was applied.
func (s *Store) Version() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "could not read migrations")
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "could not create sqlite driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, errors.Wrap(err, "could not create migrate instance")
	}
	m.Log = migrateLogger{s.logger}
	return m, nil
}

// migrateLogger forwards migrate output to the store logger.
type migrateLogger struct {
	logger golog.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Debugf("[migrate] "+format, v...)
}

func (l migrateLogger) Verbose() bool {
	return false
}
