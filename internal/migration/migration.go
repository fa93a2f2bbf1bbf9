package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	billingperioddomain "github.com/smallbiznis/vaultline/internal/billingperiod/domain"
	containerdomain "github.com/smallbiznis/vaultline/internal/container/domain"
	customerdomain "github.com/smallbiznis/vaultline/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/vaultline/internal/invoice/domain"
	workorderdomain "github.com/smallbiznis/vaultline/internal/workorder/domain"
	"gorm.io/gorm"
)

// Models lists every table the billing service owns, in dependency order.
func Models() []any {
	return []any{
		&customerdomain.Customer{},
		&containerdomain.ContainerType{},
		&containerdomain.Container{},
		&workorderdomain.WorkOrder{},
		&billingperioddomain.BillingPeriod{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
	}
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Migrate picks the migration strategy for the connected dialect. Postgres uses
// the versioned SQL files; other dialects fall back to gorm AutoMigrate.
func Migrate(conn *gorm.DB) error {
	if conn.Dialector.Name() == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
