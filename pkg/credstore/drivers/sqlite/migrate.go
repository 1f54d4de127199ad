package sqlite

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/opsconsole/pkg/credstore/drivers/sqlite/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ApplyMigrations brings the credentials table up to date using the
// migrations embedded in the binary.
func (s *Backend) ApplyMigrations() error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	instance, err := migrate.NewWithInstance("iofs", source, "", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	err = instance.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
