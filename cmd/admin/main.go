package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chorechart/internal/config"
	"chorechart/internal/database"
	"chorechart/internal/logger"
	"chorechart/internal/repository"
	"chorechart/internal/service"
	"chorechart/migrations"
)

var (
	cfg  *config.Config
	zlog *zap.Logger

	rootCmd = &cobra.Command{
		Use:   "chorechart-admin",
		Short: "Maintenance commands for a ChoreChart deployment",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			var err error
			zlog, err = logger.New(cfg.LogLevel, "console", "chorechart-admin")
			return err
		},
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  runMigrate,
	}
	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export all families, tasks and the points ledger as JSON",
		RunE:  runExport,
	}
	exportOutput string

	recurringCmd = &cobra.Command{
		Use:   "recurring",
		Short: "Recurring task maintenance",
	}
	recurringGenerateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Backfill missing recurring task instances up to today",
		RunE:  runRecurringGenerate,
	}
	generateFamilyID int64
	generateAll      bool
)

func init() {
	rootCmd.AddCommand(migrateCmd)

	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	rootCmd.AddCommand(recurringCmd)
	recurringCmd.AddCommand(recurringGenerateCmd)
	recurringGenerateCmd.Flags().Int64Var(&generateFamilyID, "family-id", 0, "Only sweep this family")
	recurringGenerateCmd.Flags().BoolVar(&generateAll, "all", false, "Sweep every family with recurring tasks")
	recurringGenerateCmd.MarkFlagsMutuallyExclusive("family-id", "all")
	recurringGenerateCmd.MarkFlagsOneRequired("family-id", "all")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

// openDatabase connects and brings the schema up to date
func openDatabase() (*database.DB, error) {
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(migrations.Source(cfg.MigrationsPath), zlog); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()
	zlog.Info("Migrations completed successfully", zap.String("type", cfg.DatabaseType))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	outputPath := exportOutput
	if outputPath == "" {
		outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	}
	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer f.Close()

	backup, err := service.NewBackupService(db, zlog).Export(f)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to flush backup file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return err
	}
	zlog.Info("Export complete",
		zap.String("path", outputPath),
		zap.Int("families", len(backup.Families)),
		zap.Int("tasks", len(backup.Tasks)),
		zap.Int("ledger_entries", len(backup.Ledger)),
		zap.Float64("size_mb", float64(info.Size())/1024/1024),
	)
	return nil
}

func runRecurringGenerate(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	recurrence := service.NewRecurrenceService(db, repository.NewTaskRepository(db), zlog)

	var created int
	if generateAll {
		created, err = recurrence.SweepAll()
	} else {
		created, err = recurrence.SweepFamily(generateFamilyID)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %d recurring task(s)\n", created)
	return nil
}
