// Package cli is the command-line surface. Every command opens the same
// application context: app data dir, logger, config and database.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	conf "github.com/kweber84/erpimport/internal/config"
	"github.com/kweber84/erpimport/internal/db"
	"github.com/kweber84/erpimport/internal/imports"
	"github.com/kweber84/erpimport/internal/logs"
)

var ver = "1.0.0"

// app carries the shared state commands operate on.
type app struct {
	log     zerolog.Logger
	appDir  string
	cfgPath string
	cfg     *conf.Config
	handle  *db.Handle
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	a := &app{}
	root := newRootCmd(a)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	var console bool
	var cfgPath string

	root := &cobra.Command{
		Use:           "erpimport",
		Short:         "Supplier import and normalization pipeline",
		Long:          "Captures supplier data (files, store APIs) verbatim and normalizes it into the ERP import shape via versioned mappings and defaults.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init(cfgPath, console)
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default <app data dir>/config.json)")
	root.PersistentFlags().BoolVar(&console, "console", true, "log to the console as well as the log file")

	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newSeedCmd(a))
	root.AddCommand(newImportCmd(a))
	root.AddCommand(newNormalizeCmd(a))
	root.AddCommand(newDefaultsCmd(a))
	root.AddCommand(newClearCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newVersionCmd())

	return root
}

func (a *app) init(cfgPath string, console bool) error {
	appDir, err := appDataDir("erpimport")
	if err != nil {
		return err
	}
	a.appDir = appDir
	a.log = logs.New(filepath.Join(appDir, "app.log"), console)

	a.cfgPath = cfgPath
	if a.cfgPath == "" {
		a.cfgPath = filepath.Join(appDir, "config.json")
	}
	cfg, firstRun, err := conf.LoadOrCreate(a.cfgPath)
	if err != nil {
		return err
	}
	if firstRun {
		a.log.Info().Str("path", a.cfgPath).Msg("default config created")
	}
	a.cfg = cfg

	handle, err := db.Open(cfg.DB.Driver, cfg.DB.DSN, appDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := handle.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	a.handle = handle
	return nil
}

func (a *app) close() {
	if a.handle != nil {
		_ = a.handle.Close()
	}
}

func (a *app) store() *imports.Store {
	return imports.NewStore(a.log, a.handle.DB)
}

func appDataDir(name string) (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	p := filepath.Join(base, name)
	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", err
	}
	return p, nil
}

// parseDate accepts YYYY-MM-DD, empty means now.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}
