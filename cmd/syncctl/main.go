// syncctl runs sync operations from the command line, against the same
// config the server uses. Useful for cron-driven imports and one-off
// snapshots without going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rostersync/internal/config"
	"rostersync/internal/database"
	"rostersync/internal/export"
	"rostersync/internal/logging"
	"rostersync/internal/models"
	"rostersync/internal/queue"
	"rostersync/internal/repository"
	"rostersync/internal/sheets"
	syncer "rostersync/internal/sync"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func usage() error {
	fmt.Fprintln(os.Stderr, `usage: syncctl <command> [flags]

commands:
  import    pull a sheet into the store
  export    push the store onto a sheet
  xlsx      write the roster as an .xlsx workbook
  snapshot  dump shifts for a date range to a JSON file
  restore   replace shifts from a snapshot file
  push      write one shift code into its sheet cell
  runs      list recent sync runs`)
	return fmt.Errorf("command is required")
}

func run(args []string) error {
	if len(args) == 0 {
		return usage()
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger := baseLogger.With().Str("component", "syncctl").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "import", "export", "xlsx", "snapshot", "restore", "push":
		return runEngineCommand(ctx, args, cfg, &logger)
	case "runs":
		return runList(ctx, cfg)
	default:
		return usage()
	}
}

func runEngineCommand(ctx context.Context, args []string, cfg *config.Config, logger *zerolog.Logger) error {
	fs := flag.NewFlagSet(args[0], flag.ExitOnError)
	targetName := fs.String("target", "", "configured target name")
	departmentID := fs.Int64("department", 0, "department id (0 = all)")
	dateStart := fs.String("from", "", "start date (YYYY-MM-DD)")
	dateEnd := fs.String("to", "", "end date (YYYY-MM-DD)")
	replaceAll := fs.Bool("replace-all", false, "delete stored shifts the sheet no longer shows (import only)")
	assumedYear := fs.Int("assumed-year", 0, "year for month-only headers (import only)")
	file := fs.String("file", "", "snapshot file path (snapshot/restore)")
	employeeID := fs.Int64("employee", 0, "employee id (push only)")
	date := fs.String("date", "", "shift date (push only)")
	code := fs.String("code", "", "shift code (push only)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	codes := models.NewShiftCodeTable(cfg.ShiftCodes)

	if args[0] == "xlsx" {
		start, end, err := parseRange(*dateStart, *dateEnd)
		if err != nil {
			return err
		}
		writer := export.NewWriter(db, codes, cfg.Exports.Path, logger)
		path, err := writer.WriteRoster(ctx, *departmentID, start, end)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	}

	sheetClient, err := sheets.New(ctx, cfg.Google.CredentialsFile, sheets.DefaultRetryPolicy(), logger)
	if err != nil {
		return fmt.Errorf("init sheets service: %w", err)
	}

	engine := syncer.NewOrchestrator(db, sheetClient, codes, nil, queue.Options{
		Concurrency:      cfg.Sync.QueueConcurrency,
		PerItemDelay:     time.Duration(cfg.Sync.PerItemDelayMs) * time.Millisecond,
		RateLimitBackoff: time.Duration(cfg.Sync.RateLimitDelayMs) * time.Millisecond,
		MaxItemRetries:   cfg.Sync.MaxItemRetries,
	}, logger)

	switch args[0] {
	case "import":
		target, start, end, err := resolveScope(cfg, *targetName, *dateStart, *dateEnd)
		if err != nil {
			return err
		}
		result, err := engine.Import(ctx, syncer.ImportRequest{
			Target:       target,
			DepartmentID: *departmentID,
			DateStart:    start,
			DateEnd:      end,
			ReplaceAll:   *replaceAll,
			AssumedYear:  *assumedYear,
		})
		if err != nil {
			return err
		}
		return printJSON(result)

	case "export":
		target, start, end, err := resolveScope(cfg, *targetName, *dateStart, *dateEnd)
		if err != nil {
			return err
		}
		result, err := engine.Export(ctx, syncer.ExportRequest{
			Target:       target,
			DepartmentID: *departmentID,
			DateStart:    start,
			DateEnd:      end,
		})
		if err != nil {
			return err
		}
		return printJSON(result)

	case "snapshot":
		if *file == "" {
			return fmt.Errorf("-file is required")
		}
		start, end, err := parseRange(*dateStart, *dateEnd)
		if err != nil {
			return err
		}
		snap, err := engine.Snapshot(ctx, *departmentID, start, end)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(*file, data, 0o644); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		fmt.Printf("snapshot of %d shifts written to %s\n", len(snap.Shifts), *file)
		return nil

	case "restore":
		if *file == "" {
			return fmt.Errorf("-file is required")
		}
		data, err := os.ReadFile(*file)
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		var snap models.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("parse snapshot: %w", err)
		}
		result, err := engine.Restore(ctx, &snap)
		if err != nil {
			return err
		}
		return printJSON(result)

	case "push":
		target, ok := cfg.Target(*targetName)
		if !ok {
			return fmt.Errorf("unknown target %q", *targetName)
		}
		if *employeeID == 0 || *date == "" || *code == "" {
			return fmt.Errorf("-employee, -date and -code are required")
		}
		day, err := time.Parse(models.DateFormat, *date)
		if err != nil {
			return fmt.Errorf("invalid -date; expected YYYY-MM-DD")
		}
		return engine.PushShift(ctx, target, *employeeID, day, *code)
	}
	return usage()
}

func runList(ctx context.Context, cfg *config.Config) error {
	if cfg.Redis.Address == "" {
		return fmt.Errorf("runs command needs redis configured")
	}
	client := repository.NewRedisClient(cfg.Redis)
	defer client.Close()

	repo := repository.NewRedisRunRepository(client, time.Duration(cfg.Sync.RunTTLSeconds)*time.Second)
	runs, err := repo.ListRuns(ctx, 20)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"runs": runs})
}

func resolveScope(cfg *config.Config, targetName, dateStart, dateEnd string) (syncer.Target, time.Time, time.Time, error) {
	target, ok := cfg.Target(targetName)
	if !ok {
		return target, time.Time{}, time.Time{}, fmt.Errorf("unknown target %q", targetName)
	}
	start, end, err := parseRange(dateStart, dateEnd)
	return target, start, end, err
}

func parseRange(dateStart, dateEnd string) (time.Time, time.Time, error) {
	start, err := time.Parse(models.DateFormat, dateStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -from; expected YYYY-MM-DD")
	}
	end, err := time.Parse(models.DateFormat, dateEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -to; expected YYYY-MM-DD")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("-to before -from")
	}
	return start, end, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
