package main

import (
	"fmt"
	"os"

	"github.com/lotline/lotline/internal/db"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var (
		configPath string
		seed       bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Lotline database",
		Long:  "Connects to the configured engine, migrates all tables and optionally loads demo inventory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath, seed)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Lotline config file")
	cmd.Flags().BoolVar(&seed, "seed", false, "load demo inventory after migrating")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string, seed bool) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	h, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)

	if err := h.Migrate(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if seed {
		n, err := h.Seed(cfg.Inventory.TTLDays)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Seeded %d demo vehicles\n", n)
	}

	fmt.Fprintln(out, "Lotline database initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete and re-initialize the Lotline database",
		Long:  "Removes the SQLite database file and re-runs migration. MySQL databases must be dropped externally.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Lotline config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, yes bool) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("db reset only supports sqlite; drop the %s database externally", cfg.Database.Driver)
	}
	if cfg.Database.Path == ":memory:" || cfg.Database.Path == "" {
		return fmt.Errorf("nothing to reset for an in-memory database")
	}

	if !yes {
		fmt.Fprintf(out, "This deletes %s and all its data. Continue? [y/N] ", cfg.Database.Path)
		var answer string
		fmt.Fscanln(cmd.InOrStdin(), &answer)
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := os.Remove(cfg.Database.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", cfg.Database.Path, err)
	}
	// WAL sidecar files go with the database.
	for _, suffix := range []string{"-wal", "-shm"} {
		os.Remove(cfg.Database.Path + suffix)
	}
	fmt.Fprintf(out, "Removed %s\n", cfg.Database.Path)

	return runDBInit(cmd, configPath, false)
}
