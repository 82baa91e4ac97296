package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	stdlog "log"

	"impactstats/internal/importer"
)

const watchDebounce = 500 * time.Millisecond

func runImport(args []string) {
	var (
		dbPath string
		file   string
		watch  bool
		dir    string
	)
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	fs.StringVar(&dbPath, "db", "", "database path (overrides environment)")
	fs.StringVar(&file, "file", "", "dataset file to import")
	fs.BoolVar(&watch, "watch", false, "watch the import directory")
	fs.StringVar(&dir, "dir", "", "import directory (overrides environment)")
	if err := fs.Parse(args); err != nil {
		stdlog.Fatalf("parsing flags: %v", err)
	}
	if file == "" && !watch {
		stdlog.Fatal("import: either -file or -watch is required")
	}

	cfg := mustLoadConfig()
	logger := newLogger(cfg)
	st := mustOpenStore(resolveDBPath(cfg, dbPath))
	defer st.Close()

	im := importer.New(st, logger)

	if file != "" {
		if _, err := im.ImportFile(file); err != nil {
			stdlog.Fatalf("import: %v", err)
		}
	}
	if !watch {
		return
	}

	if dir == "" {
		dir = cfg.ImportDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		stdlog.Fatalf("creating import directory: %v", err)
	}
	w, err := importer.NewWatcher(im, dir, watchDebounce)
	if err != nil {
		stdlog.Fatalf("starting watcher: %v", err)
	}
	w.Start()
	defer w.Stop()
	logger.Info("watching for datasets", "dir", dir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
