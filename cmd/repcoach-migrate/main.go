// Command repcoach-migrate applies, rolls back and inspects the RepCoach
// database schema.
package main

import (
	"fmt"
	"os"

	"github.com/claude/repcoach/internal/config"
	"github.com/claude/repcoach/internal/storage"
	"github.com/spf13/cobra"
)

var (
	configPath     string
	migrationsPath string
	downSteps      int
)

var rootCmd = &cobra.Command{
	Use:          "repcoach-migrate",
	Short:        "Manage the RepCoach database schema",
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := loadDSN()
		if err != nil {
			return err
		}
		if err := storage.RunMigrations(dsn, migrationsPath); err != nil {
			return err
		}
		return printVersion(cmd, dsn)
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if downSteps < 1 {
			return fmt.Errorf("--steps must be at least 1")
		}
		dsn, err := loadDSN()
		if err != nil {
			return err
		}
		if err := storage.RollbackMigrations(dsn, migrationsPath, downSteps); err != nil {
			return err
		}
		return printVersion(cmd, dsn)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := loadDSN()
		if err != nil {
			return err
		}
		return printVersion(cmd, dsn)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&migrationsPath, "migrations", "migrations", "path to migration files")
	downCmd.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back")

	rootCmd.AddCommand(upCmd, downCmd, versionCmd)
}

func loadDSN() (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	return cfg.Database.DSN(), nil
}

func printVersion(cmd *cobra.Command, dsn string) error {
	version, dirty, err := storage.MigrationVersion(dsn, migrationsPath)
	if err != nil {
		return err
	}
	if dirty {
		cmd.Printf("schema version %d (dirty)\n", version)
		return nil
	}
	cmd.Printf("schema version %d\n", version)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
