package main

import (
	"context"
	"flag"
	"os"
	"strings"

	stdlog "log"

	"impactstats/internal/export"
	"impactstats/internal/stats"
)

func runExport(args []string) {
	var (
		f      stats.Filters
		dbPath string
		fields string
		out    string
	)
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	filterFlags(fs, &f, &dbPath)
	fs.StringVar(&fields, "fields", "", "comma-separated field keys")
	fs.StringVar(&out, "o", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		stdlog.Fatalf("parsing flags: %v", err)
	}

	cfg := mustLoadConfig()
	logger := newLogger(cfg).WithComponent("export")
	st := mustOpenStore(resolveDBPath(cfg, dbPath))
	defer st.Close()

	engine := stats.NewEngine(st, stats.WithHomeCity(cfg.HomeCity))
	ctx := context.Background()

	if err := checkFilterTargets(ctx, st, f); err != nil {
		stdlog.Fatalf("invalid filters: %v", err)
	}

	rows, err := export.BuildRows(ctx, st, engine, stats.SystemActor{}, f)
	if err != nil {
		stdlog.Fatalf("building export rows: %v", err)
	}

	var keys []string
	if fields != "" {
		for _, k := range strings.Split(fields, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}

	w := os.Stdout
	if out != "" {
		file, err := os.Create(out)
		if err != nil {
			stdlog.Fatalf("creating output file: %v", err)
		}
		defer file.Close()
		w = file
	}
	if err := export.WriteCSV(w, keys, rows); err != nil {
		stdlog.Fatalf("writing csv: %v", err)
	}
	logger.Info("export written", "rows", len(rows), "output", outLabel(out))
}

func outLabel(path string) string {
	if path == "" {
		return "stdout"
	}
	return path
}
