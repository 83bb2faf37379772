package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/havenloop/haven/internal/infrastructure/database/postgres"
)

// NewMigrateCmd returns the havenctl migrate subcommand tree.
func NewMigrateCmd() *cobra.Command {
	var (
		databaseURL    string
		migrationsPath string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long: `Apply, roll back, or inspect PostgreSQL schema migrations.

The database URL comes from --database-url, or from the config file's
database section when one is loaded.`,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default: derived from config file)")
	pf.StringVar(&migrationsPath, "path", "file://migrations", "migrations source URL")

	resolveURL := func(cmd *cobra.Command) (string, error) {
		if databaseURL != "" {
			return databaseURL, nil
		}
		cliCtx, err := GetCLIContext(cmd)
		if err != nil {
			return "", err
		}
		if cliCtx.Config == nil {
			return "", fmt.Errorf("no database URL; pass --database-url or provide a config file")
		}
		return postgres.BuildDSN(cliCtx.Config.Database), nil
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, err := resolveURL(cmd)
			if err != nil {
				return err
			}
			if err := postgres.RunMigrations(dbURL, migrationsPath); err != nil {
				return err
			}
			PrintSuccess(cmd, "migrations applied")
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, err := resolveURL(cmd)
			if err != nil {
				return err
			}
			if err := postgres.RollbackMigration(dbURL, migrationsPath, steps); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("rolled back %d step(s)", steps))
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, err := resolveURL(cmd)
			if err != nil {
				return err
			}
			version, dirty, err := postgres.MigrationStatus(dbURL, migrationsPath)
			if err != nil {
				return err
			}
			if dirty {
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d (DIRTY: a migration failed midway)\n", version)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version: %d\n", version)
			return nil
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}
