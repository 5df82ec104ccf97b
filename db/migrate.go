// Package db runs schema migrations for the bix database. Migration files
// live under db/migrations/bix and are applied with golang-migrate.
package db

import (
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

const DefaultMigrationsSource = "file://db/migrations/bix"

// RunMigrations applies every pending migration and reports the resulting
// schema version. An already up-to-date database is not an error.
func RunMigrations(databaseURL, sourceURL string) (version uint, err error) {
	if sourceURL == "" {
		sourceURL = DefaultMigrationsSource
	}

	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return 0, errors.Wrap(err, "failed to initialize migrations")
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil && (srcErr != nil || dbErr != nil) {
			err = errors.Errorf("failed to close migration handles: %v %v", srcErr, dbErr)
		}
	}()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return 0, errors.Wrap(err, "failed to apply migrations")
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read schema version")
	}
	if dirty {
		return version, errors.Errorf("schema version %d is dirty; manual repair required", version)
	}
	return version, nil
}
