package main

import (
	"fmt"
	"os"

	stdlog "log"

	"impactstats/internal/config"
	"impactstats/internal/log"
	"impactstats/internal/store"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "report":
			runReport(os.Args[2:])
			return
		case "export":
			runExport(os.Args[2:])
			return
		case "import":
			runImport(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("impactstats %s (commit %s, built %s)\n",
				version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	printUsage()
	os.Exit(2)
}

func printUsage() {
	fmt.Printf(`impactstats %s - activity analytics for attendance data

Computes volume, frequency, cross-sector, demographic, occupancy and
matrix statistics over workshop attendance records stored in SQLite.

Usage:
  impactstats report [flags]   Compute a report and print it as JSON
  impactstats export [flags]   Write the attendance CSV
  impactstats import [flags]   Load a JSON dataset dump
  impactstats version          Show version information
  impactstats help             Show this help

Common filter flags (report and export):
  -db string          Database path (overrides environment)
  -sector string      Restrict to one sector
  -workshop int       Restrict to one workshop id
  -from string        Start date, inclusive (YYYY-MM-DD)
  -to string          End date, inclusive (YYYY-MM-DD)
  -preset string      Named range (TODAY, THIS_MONTH, PREV_QUARTER, ...)
  -period int         Saved reporting period id (used when no dates given)

Report flags:
  -kind string        volume | frequency | transversality | demography |
                      occupancy | participants | matrix | all (default "all")
  -group-by string    Time-series grouping: DAY, MONTH, QUARTER, YEAR
  -view string        Matrix view: macro, participants, matrix
  -name string        Matrix participant name filter
  -max-sessions int   Matrix session columns cap
  -max-participants int  Matrix participant rows cap

Export flags:
  -fields string      Comma-separated field keys (default participant
                      name, workshop, sector, session date and type)
  -o string           Output file (default stdout)

Import flags:
  -file string        Dataset file to import
  -watch              Watch the import directory for new datasets
  -dir string         Import directory (overrides environment)

Environment variables:
  IMPACTSTATS_DB_PATH      Database path (default ./data/impactstats.db)
  IMPACTSTATS_IMPORT_DIR   Import drop directory (default ./import)
  IMPACTSTATS_HOME_CITY    Home city for the residence split
  IMPACTSTATS_LOG_LEVEL    debug, info, warn or error
`, version)
}

func mustLoadConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		stdlog.Fatalf("loading config: %v", err)
	}
	return cfg
}

func newLogger(cfg *config.Config) *log.Logger {
	return log.New(log.ParseLevel(cfg.LogLevel), log.ComponentCLI)
}

func mustOpenStore(path string) *store.Store {
	st, err := store.Open(path)
	if err != nil {
		stdlog.Fatalf("opening store: %v", err)
	}
	return st
}
