package db

import (
	"errors"
	"fmt"

	"github.com/botio91514/gym-backend/pkg/logger"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Migrate applies the embedded migrations in the given direction. Being
// already at the target version is not an error.
func Migrate(databaseURL, direction string, log logger.Logger) error {
	if databaseURL == "" {
		return errors.New("migrate: database url is empty")
	}
	if direction != DirectionUp && direction != DirectionDown {
		return fmt.Errorf("migrate: direction must be up or down, got %q", direction)
	}

	src, err := iofs.New(MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case DirectionUp:
		err = m.Up()
	case DirectionDown:
		err = m.Down()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("db: migrations already current", "direction", direction)
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("migrate version: %w", verr)
	}
	log.Info("db: migrations applied", "direction", direction, "version", version, "dirty", dirty)
	return nil
}
