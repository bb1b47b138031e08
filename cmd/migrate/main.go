// Command migrate applies, inspects and reverts the agora schema.
//
//	migrate up              apply pending SQL migrations
//	migrate auto            run GORM AutoMigrate under the auto-mode rules
//	migrate status          list every migration and whether it is applied
//	migrate down <version>  revert one applied migration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/middleware"

	"gorm.io/gorm"
)

var errUsage = errors.New("usage: migrate <up|auto|status|down <version>>")

func main() {
	flag.Parse()
	if err := run(flag.Args()); err != nil {
		middleware.Logger.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	return (&migrator{db: db, cfg: cfg, out: os.Stdout}).exec(context.Background(), args)
}

type migrator struct {
	db  *gorm.DB
	cfg *config.Config
	out io.Writer
}

func (m *migrator) exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "up":
		if err := database.RunMigrations(ctx, m.db); err != nil {
			return err
		}
		fmt.Fprintln(m.out, "schema is up to date")
	case "auto":
		cfg := *m.cfg
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, m.db, &cfg); err != nil {
			return err
		}
		fmt.Fprintln(m.out, "models auto-migrated")
	case "status":
		return m.status(ctx)
	case "down":
		if len(args) != 2 {
			return errUsage
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("migration version %q is not a number", args[1])
		}
		if err := database.RollbackMigration(ctx, m.db, version); err != nil {
			return err
		}
		fmt.Fprintf(m.out, "reverted migration %06d\n", version)
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
	return nil
}

// status prints the schema plan and one row per embedded migration.
func (m *migrator) status(ctx context.Context) error {
	plan, err := database.PlanSchema(m.cfg)
	if err != nil {
		return err
	}
	states, err := database.MigrationStates(ctx, m.db)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "schema mode %s (%s): sql=%t auto=%t\n", plan.Mode, m.cfg.Env, plan.SQL, plan.Auto)
	tw := tabwriter.NewWriter(m.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATE")
	for _, st := range states {
		state := "pending"
		if st.Applied {
			state = "applied"
		}
		fmt.Fprintf(tw, "%06d\t%s\t%s\n", st.Version, st.Name, state)
	}
	return tw.Flush()
}
