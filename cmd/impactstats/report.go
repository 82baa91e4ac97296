package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	stdlog "log"

	"impactstats/internal/config"
	"impactstats/internal/stats"
	"impactstats/internal/store"
)

// filterFlags registers the filter flags shared by report and
// export, writing into f.
func filterFlags(fs *flag.FlagSet, f *stats.Filters, dbPath *string) {
	fs.StringVar(dbPath, "db", "", "database path (overrides environment)")
	fs.StringVar(&f.Sector, "sector", "", "restrict to one sector")
	fs.Int64Var(&f.WorkshopID, "workshop", 0, "restrict to one workshop id")
	fs.StringVar(&f.DateFrom, "from", "", "start date, inclusive (YYYY-MM-DD)")
	fs.StringVar(&f.DateTo, "to", "", "end date, inclusive (YYYY-MM-DD)")
	fs.StringVar(&f.Preset, "preset", "", "named date range")
	fs.Int64Var(&f.PeriodID, "period", 0, "saved reporting period id")
}

func resolveDBPath(cfg *config.Config, override string) string {
	if override != "" {
		return override
	}
	return cfg.DBPath
}

// checkFilterTargets rejects a -sector or -workshop value that does
// not exist, instead of letting every analyzer return an empty
// report for a typo.
func checkFilterTargets(
	ctx context.Context, st *store.Store, f stats.Filters,
) error {
	if f.Sector != "" {
		known, err := st.Sectors(ctx)
		if err != nil {
			return err
		}
		if !slices.Contains(known, f.Sector) {
			return fmt.Errorf("unknown sector %q (known: %s)",
				f.Sector, strings.Join(known, ", "))
		}
	}
	if f.WorkshopID != 0 {
		w, err := st.WorkshopByID(ctx, f.WorkshopID)
		if err != nil {
			return err
		}
		if w == nil {
			return fmt.Errorf("unknown workshop id %d", f.WorkshopID)
		}
	}
	return nil
}

func runReport(args []string) {
	var (
		f               stats.Filters
		dbPath          string
		kind            string
		view            string
		nameQuery       string
		maxSessions     int
		maxParticipants int
	)
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	filterFlags(fs, &f, &dbPath)
	fs.StringVar(&f.GroupBy, "group-by", "", "time-series grouping")
	fs.StringVar(&kind, "kind", "all", "report kind")
	fs.StringVar(&view, "view", "macro", "matrix view")
	fs.StringVar(&nameQuery, "name", "", "matrix participant name filter")
	fs.IntVar(&maxSessions, "max-sessions", 0, "matrix session columns cap")
	fs.IntVar(&maxParticipants, "max-participants", 0, "matrix participant rows cap")
	if err := fs.Parse(args); err != nil {
		stdlog.Fatalf("parsing flags: %v", err)
	}

	cfg := mustLoadConfig()
	logger := newLogger(cfg).WithComponent("report")
	st := mustOpenStore(resolveDBPath(cfg, dbPath))
	defer st.Close()

	engine := stats.NewEngine(st, stats.WithHomeCity(cfg.HomeCity))
	actor := stats.SystemActor{}
	ctx := context.Background()

	if err := checkFilterTargets(ctx, st, f); err != nil {
		stdlog.Fatalf("invalid filters: %v", err)
	}

	matrixOpts := stats.MatrixOptions{
		View:             view,
		ParticipantQuery: nameQuery,
		MaxSessions:      maxSessions,
		MaxParticipants:  maxParticipants,
	}

	report := make(map[string]any)
	var err error
	add := func(name string, v any, e error) {
		// One failing analyzer should not hide the others, but
		// the exit status must still reflect it.
		if e != nil {
			logger.Error("report failed", "kind", name, "error", e)
			err = e
			return
		}
		report[name] = v
	}

	wantAll := kind == "all"
	want := func(name string) bool { return wantAll || kind == name }

	if want("volume") {
		v, e := engine.ComputeVolume(ctx, actor, f)
		add("volume", v, e)
	}
	if want("frequency") {
		v, e := engine.ComputeFrequency(ctx, actor, f)
		add("frequency", v, e)
	}
	if want("transversality") {
		v, e := engine.ComputeTransversality(ctx, actor, f)
		add("transversality", v, e)
	}
	if want("demography") {
		v, e := engine.ComputeDemography(ctx, actor, f)
		add("demography", v, e)
	}
	if want("occupancy") {
		v, e := engine.ComputeOccupancy(ctx, actor, f)
		add("occupancy", v, e)
	}
	if want("participants") {
		v, e := engine.ComputeParticipants(ctx, actor, f)
		add("participants", v, e)
	}
	if want("matrix") {
		v, e := engine.ComputeMatrix(ctx, actor, f, matrixOpts)
		add("matrix", v, e)
	}
	if len(report) == 0 && err == nil {
		stdlog.Fatalf("unknown report kind %q", kind)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	var out any = report
	if !wantAll && len(report) == 1 {
		out = report[kind]
	}
	if encErr := enc.Encode(out); encErr != nil {
		stdlog.Fatalf("encoding report: %v", encErr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "some reports failed")
		os.Exit(1)
	}
}
