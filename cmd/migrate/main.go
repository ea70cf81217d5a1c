// Command migrate inspects and moves accounts out of the legacy container.
//
//	migrate -restore FILE      put a -backup snapshot back as the legacy list
//	migrate -status            report both shapes and pending entries
//	migrate -backup            archive the legacy list
//	migrate -migrate           copy legacy entries into the structured store
//	migrate -cleanup -force    drop the legacy list once something is migrated
//
// Actions run in the order above; storage flags are shared with the server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/flagx"
	"github.com/dmitrijs2005/gophaccounts/internal/server"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
)

type migrator interface {
	MigrationStatus(ctx context.Context) (*models.MigrationStatus, error)
	Backup(ctx context.Context) (*models.BackupResult, error)
	Migrate(ctx context.Context) (*models.MigrationReport, error)
	CleanupLegacy(ctx context.Context, force bool) (int, error)
	RestoreLegacy(ctx context.Context, snapshot []byte) (int, error)
}

type actions struct {
	restore                                 string
	status, backup, migrate, cleanup, force bool
}

var actionFlags = []string{"-status", "-backup", "-migrate", "-cleanup", "-force"}

func parseActions(args []string) (actions, error) {
	var a actions
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&a.status, "status", false, "print migration status")
	fs.BoolVar(&a.backup, "backup", false, "archive the legacy list")
	fs.BoolVar(&a.migrate, "migrate", false, "run a migration pass")
	fs.BoolVar(&a.cleanup, "cleanup", false, "remove the legacy list")
	fs.BoolVar(&a.force, "force", false, "confirm -cleanup")
	fs.StringVar(&a.restore, "restore", "", "restore the legacy list from a snapshot file")

	if err := fs.Parse(flagx.Filter(args, []string{"-restore"}, actionFlags)); err != nil {
		return a, err
	}
	if a.restore == "" && !a.status && !a.backup && !a.migrate && !a.cleanup {
		a.status = true
	}
	return a, nil
}

func run(ctx context.Context, a actions, m migrator, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if a.restore != "" {
		body, err := readSnapshot(a.restore)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		n, err := m.RestoreLegacy(ctx, body)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		fmt.Fprintf(out, "restored legacy list with %d entries\n", n)
	}

	if a.status {
		st, err := m.MigrationStatus(ctx)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		if err := enc.Encode(st); err != nil {
			return err
		}
	}

	if a.backup {
		res, err := m.Backup(ctx)
		if err != nil {
			return fmt.Errorf("backup: %w", err)
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}

	if a.migrate {
		report, err := m.Migrate(ctx)
		if report != nil {
			if encErr := enc.Encode(report); encErr != nil {
				return encErr
			}
		}
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if a.cleanup {
		n, err := m.CleanupLegacy(ctx, a.force)
		if errors.Is(err, common.ErrCleanupNotForced) {
			return fmt.Errorf("cleanup: %w (pass -force)", err)
		}
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		fmt.Fprintf(out, "removed legacy list with %d entries\n", n)
	}

	return nil
}

// readSnapshot is a seam for tests.
var readSnapshot = os.ReadFile

func main() {
	ctx := context.Background()

	a, err := parseActions(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg, os.Stderr)
	if err != nil {
		log.Fatalf("%v", err)
	}

	err = run(ctx, a, app.Service(), os.Stdout)
	if cerr := app.Close(); cerr != nil {
		log.Printf("close: %v", cerr)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}
