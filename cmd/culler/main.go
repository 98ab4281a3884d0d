package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/culler/internal/adapter"
	"github.com/mmcdole/culler/internal/cache"
	"github.com/mmcdole/culler/internal/catalog"
	"github.com/mmcdole/culler/internal/decode"
	"github.com/mmcdole/culler/internal/domain"
	"github.com/mmcdole/culler/internal/pool"
	"github.com/mmcdole/culler/internal/prefetch"
	"github.com/mmcdole/culler/internal/service"
	"github.com/mmcdole/culler/internal/store"
	"github.com/mmcdole/culler/internal/tui"
	"golang.org/x/term"
)

// Version is set at build time via -ldflags
var Version = "dev"

// shutdownTimeout bounds how long we wait for in-flight decodes on exit
const shutdownTimeout = 5 * time.Second

type options struct {
	root      string
	list      bool
	minRating int
	marked    bool
	reset     bool
}

func main() {
	var showVersion bool
	var opts options
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&opts.list, "list", false, "print matching files instead of starting the viewer")
	flag.IntVar(&opts.minRating, "min-rating", 0, "with -list, only files rated at least this")
	flag.BoolVar(&opts.marked, "marked", false, "with -list, only marked files")
	flag.BoolVar(&opts.reset, "reset", false, "forget all ratings and marks for the directory")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: culler [flags] [directory]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("culler %s\n", Version)
		return
	}
	opts.root = flag.Arg(0)

	// Without a terminal there is nothing to draw on; print the list instead
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		opts.list = true
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.root != "" {
		cfg.Library.Root = opts.root
	}

	logger, logFile, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	} else {
		defer logFile.Close()
	}
	slog.SetDefault(logger)

	logger.Info("starting culler", "version", Version, "root", cfg.Library.Root)

	ratings, err := store.NewRatingStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open rating store: %w", err)
	}

	catOpts := catalog.Options{Extensions: cfg.Library.Extensions, Recursive: cfg.Library.Recursive}
	cat, err := catalog.Open(cfg.Library.Root, catOpts, ratings, logger)
	if err != nil {
		ratings.Close()
		return err
	}

	if opts.reset {
		if err := ratings.ClearRoot(cat.Root()); err != nil {
			ratings.Close()
			return fmt.Errorf("failed to reset ratings: %w", err)
		}
		if _, err := cat.Rescan(); err != nil {
			ratings.Close()
			return err
		}
		logger.Info("cleared ratings and marks", "root", cat.Root())
	}

	if opts.list {
		defer ratings.Close()
		return printList(os.Stdout, cat, opts)
	}

	var watcher *catalog.Watcher
	if cfg.Library.Watch {
		watcher, err = catalog.NewWatcher(cat.Root(), catOpts, logger)
		if err != nil {
			// Reviewing still works without live reload
			logger.Warn("file watching disabled", "error", err)
			watcher = nil
		}
	}

	decoder := decode.New(decode.Options{
		PreviewWidth:  cfg.Decode.PreviewWidth,
		PreviewHeight: cfg.Decode.PreviewHeight,
		ThumbSize:     cfg.Decode.ThumbSize,
		Filter:        cfg.Decode.Filter,
	}, logger)

	review, err := service.New(service.Deps{
		Catalog: cat,
		Pool:    pool.New(cfg.WorkerCount(), logger),
		Cache:   cache.New(cfg.Cache.MaxBytes, logger),
		Decoder: decoder,
		Watcher: watcher,
		Store:   ratings,
		Logger:  logger,
	}, prefetch.Config{
		Ahead:     cfg.Prefetch.Ahead,
		Behind:    cfg.Prefetch.Behind,
		MaxQueued: cfg.Prefetch.MaxQueued,
		Variant:   cfg.DisplayVariant(),
	})
	if err != nil {
		ratings.Close()
		return fmt.Errorf("failed to start review: %w", err)
	}

	launcher := adapter.NewLauncher(cfg.Viewer.Command, cfg.Viewer.Args, logger)
	model := tui.NewModel(review, launcher, cfg.UI.ShowHelp)

	p := tea.NewProgram(model, tea.WithAltScreen())

	logger.Info("starting TUI", "items", cat.Len())

	_, runErr := p.Run()

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := review.Close(ctx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}

	if runErr != nil {
		logger.Error("TUI error", "error", runErr)
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}

// printList writes one line per matching file: rating, mark, relative path
func printList(w io.Writer, cat *catalog.Catalog, opts options) error {
	marks, err := cat.Marks()
	if err != nil {
		return err
	}
	marked := make(map[domain.ItemID]bool, len(marks))
	for _, id := range marks {
		marked[id] = true
	}

	for i := 0; i < cat.Len(); i++ {
		item := cat.At(i)
		if opts.minRating > 0 && (!item.Rating.IsRated() || int(item.Rating) < opts.minRating) {
			continue
		}
		if opts.marked && !marked[item.ID] {
			continue
		}
		mark := " "
		if marked[item.ID] {
			mark = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %s %s\n", item.Rating.Stars(), mark, item.ID); err != nil {
			return err
		}
	}
	return nil
}
