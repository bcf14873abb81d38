package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"readquest/internal/config"
	"readquest/internal/database"
	"readquest/internal/repository"
	"readquest/internal/service"
)

func main() {
	// Define subcommands
	scanCmd := flag.NewFlagSet("scan", flag.ExitOnError)
	repairCmd := flag.NewFlagSet("repair", flag.ExitOnError)
	scriptCmd := flag.NewFlagSet("script", flag.ExitOnError)
	migrateCmd := flag.NewFlagSet("migrate-streaks", flag.ExitOnError)
	rolloverCmd := flag.NewFlagSet("rollover", flag.ExitOnError)
	phaseCmd := flag.NewFlagSet("phase", flag.ExitOnError)

	repairIDs := repairCmd.String("ids", "", "Comma-separated family IDs to repair (required)")
	scriptIDs := scriptCmd.String("ids", "", "Comma-separated family IDs to render (required)")
	scriptOut := scriptCmd.String("output", "", "Output file path (default: stdout)")
	phaseTarget := phaseCmd.String("target", "", "Target phase; omit to print the current phase")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal("invalid timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	studentRepo := repository.NewStudentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	programRepo := repository.NewProgramRepository(db)

	maintenanceService := service.NewBattleMaintenanceService(familyRepo, studentRepo, cfg.RepairConcurrency, logger)
	streakService := service.NewStreakService(studentRepo, sessionRepo, location, cfg.CompletionThreshold, cfg.RepairConcurrency, logger)
	programService := service.NewProgramService(programRepo, studentRepo, cfg.ActiveStartDate, location, cfg.RepairConcurrency, logger)

	ctx := context.Background()

	switch os.Args[1] {
	case "scan":
		scanCmd.Parse(os.Args[2:])
		handleScan(ctx, maintenanceService)

	case "repair":
		repairCmd.Parse(os.Args[2:])
		ids := parseIDs(*repairIDs, repairCmd)
		handleRepair(ctx, maintenanceService, ids)

	case "script":
		scriptCmd.Parse(os.Args[2:])
		ids := parseIDs(*scriptIDs, scriptCmd)
		handleScript(ctx, maintenanceService, ids, *scriptOut)

	case "migrate-streaks":
		migrateCmd.Parse(os.Args[2:])
		handleMigrate(ctx, streakService)

	case "rollover":
		rolloverCmd.Parse(os.Args[2:])
		handleRollover(ctx, programService)

	case "phase":
		phaseCmd.Parse(os.Args[2:])
		handlePhase(programService, *phaseTarget)

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleScan(ctx context.Context, maintenance *service.BattleMaintenanceService) {
	report, err := maintenance.ScanFamilies(ctx)
	if err != nil {
		fatalf("Scan failed: %v", err)
	}
	printJSON(report)
	if !report.Healthy {
		os.Exit(2)
	}
}

func handleRepair(ctx context.Context, maintenance *service.BattleMaintenanceService, ids []int64) {
	report, err := maintenance.RepairFamilies(ctx, ids, "ops-cli")
	if err != nil {
		fatalf("Repair failed: %v", err)
	}
	printJSON(report)
	if report.Failed > 0 {
		os.Exit(2)
	}
}

func handleScript(ctx context.Context, maintenance *service.BattleMaintenanceService, ids []int64, outputPath string) {
	script, err := maintenance.GenerateRepairScript(ctx, ids)
	if err != nil {
		fatalf("Script generation failed: %v", err)
	}

	if outputPath == "" {
		fmt.Print(script)
		return
	}
	if err := os.WriteFile(outputPath, []byte(script), 0644); err != nil {
		fatalf("Failed to write script: %v", err)
	}
	fmt.Printf("Repair script written to %s\n", outputPath)
}

func handleMigrate(ctx context.Context, streaks *service.StreakService) {
	report, err := streaks.MigrateAll(ctx)
	if err != nil {
		fatalf("Migration failed: %v", err)
	}
	printJSON(report)
	if len(report.Errors) > 0 {
		os.Exit(2)
	}
}

func handleRollover(ctx context.Context, program *service.ProgramService) {
	cfg, err := program.GetProgram()
	if err != nil {
		fatalf("Failed to load program config: %v", err)
	}

	fmt.Printf("Current phase: %s, academic year: %s\n", cfg.Phase, cfg.AcademicYear)
	fmt.Print("WARNING: This clears every student's per-year data. Type 'yes' to confirm: ")
	var confirmation string
	fmt.Scanln(&confirmation)
	if confirmation != "yes" {
		fmt.Println("Rollover cancelled")
		return
	}

	report, err := program.RolloverAcademicYear(ctx)
	if err != nil {
		fatalf("Rollover failed: %v", err)
	}
	printJSON(report)
	if report.Failed > 0 {
		os.Exit(2)
	}
}

func handlePhase(program *service.ProgramService, target string) {
	if target == "" {
		cfg, err := program.GetProgram()
		if err != nil {
			fatalf("Failed to load program config: %v", err)
		}
		fmt.Printf("Phase: %s\nAcademic year: %s\n", cfg.Phase, cfg.AcademicYear)
		return
	}

	report, err := program.TransitionPhase(target)
	if err != nil {
		fatalf("Transition failed: %v", err)
	}
	fmt.Printf("Phase: %s -> %s\n", report.OldPhase, report.NewPhase)
}

func parseIDs(raw string, cmd *flag.FlagSet) []int64 {
	if raw == "" {
		fmt.Println("Error: -ids flag is required")
		cmd.PrintDefaults()
		os.Exit(1)
	}

	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			fatalf("Invalid family id %q", part)
		}
		ids = append(ids, id)
	}
	return ids
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatalf("Failed to encode report: %v", err)
	}
	fmt.Println(string(out))
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("Usage: ops <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  scan              Run a read-only family battle health scan")
	fmt.Println("  repair            Repair selected families (-ids 1,2,3)")
	fmt.Println("  script            Render a repair script without applying it (-ids 1,2,3)")
	fmt.Println("  migrate-streaks   Recompute every student's streak aggregates")
	fmt.Println("  rollover          Roll the program into the next academic year")
	fmt.Println("  phase             Show the current phase, or transition (-target ACTIVE)")
}
