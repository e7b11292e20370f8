package cli

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver for golang-migrate
	"github.com/spf13/cobra"

	"github.com/dentaldesk/legacymigrate/pkg/database"
)

func migrateCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-db",
		Short: "Apply pending destination schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd, version)
			if err != nil {
				return err
			}
			defer app.close()

			db, err := sql.Open("pgx", app.cfg.Destination.ConnectionString())
			if err != nil {
				return fmt.Errorf("failed to open destination: %w", err)
			}
			defer db.Close()

			return database.RunMigrations(db, app.cfg.MigrationsPath, app.logger)
		},
	}
}
