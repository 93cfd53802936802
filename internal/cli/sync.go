// Package cli implements the command surface: one-shot sync, the cron
// watcher and legacy backup import.
package cli

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mrlokans/moonsync/internal/config"
	"github.com/mrlokans/moonsync/internal/covers"
	"github.com/mrlokans/moonsync/internal/entities"
	"github.com/mrlokans/moonsync/internal/metadata"
	"github.com/mrlokans/moonsync/internal/moonreader"
	"github.com/mrlokans/moonsync/internal/render"
	"github.com/mrlokans/moonsync/internal/sync"
	"github.com/mrlokans/moonsync/internal/vault"
)

// SyncCommand runs one reconciliation pass from the reader cache directory
// into the vault.
type SyncCommand struct {
	CacheDir               string
	VaultDir               string
	TrackWithoutHighlights bool
	NoMetadata             bool
	NoCovers               bool
	Verbose                bool

	cfg config.Config
}

// NewSyncCommand creates a new SyncCommand.
func NewSyncCommand() *SyncCommand {
	return &SyncCommand{cfg: config.NewConfig()}
}

// ParseFlags parses command line flags.
func (cmd *SyncCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	fs.StringVar(&cmd.CacheDir, "cache-dir", cmd.cfg.Sync.CacheDir, "MoonReader cache directory (.an/.po files)")
	fs.StringVar(&cmd.VaultDir, "vault", cmd.cfg.Sync.VaultDir, "Obsidian vault directory")
	fs.BoolVar(&cmd.TrackWithoutHighlights, "track-all", cmd.cfg.Sync.TrackWithoutHighlights, "Track books that have reading progress but no highlights")
	fs.BoolVar(&cmd.NoMetadata, "no-metadata", false, "Skip online metadata lookups")
	fs.BoolVar(&cmd.NoCovers, "no-covers", false, "Skip cover downloads")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sync [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Sync MoonReader highlights into an Obsidian vault.\n\n")
		fmt.Fprintf(os.Stderr, "This command:\n")
		fmt.Fprintf(os.Stderr, "  1. Decodes annotation (.an) and position (.po) files from the cache directory\n")
		fmt.Fprintf(os.Stderr, "  2. Fetches book metadata and covers (cached locally)\n")
		fmt.Fprintf(os.Stderr, "  3. Creates or updates one markdown document per book, preserving your notes\n")
		fmt.Fprintf(os.Stderr, "  4. Regenerates the reading index and the Bases view\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s sync -cache-dir ~/syncthing/one-plus/Books/.Moon+/Cache -vault ~/Obsidian\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s sync -no-metadata\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd.cfg.Sync.CacheDir = cmd.CacheDir
	cmd.cfg.Sync.VaultDir = cmd.VaultDir
	cmd.cfg.Sync.TrackWithoutHighlights = cmd.TrackWithoutHighlights
	if cmd.NoCovers {
		cmd.cfg.Metadata.FetchCovers = false
	}
	return nil
}

// Run executes one sync pass and prints the summary.
func (cmd *SyncCommand) Run() error {
	fmt.Println("🌙 MoonSync")
	fmt.Println("===========")

	logger := newLogger(cmd.Verbose)

	if cmd.cfg.Sync.CacheDir == "" {
		return fmt.Errorf("cache directory not set (use -cache-dir or MOONSYNC_CACHE_DIR)")
	}
	if _, err := os.Stat(cmd.cfg.Sync.CacheDir); err != nil {
		return fmt.Errorf("cache directory: %w", err)
	}

	reader := moonreader.NewCacheReader(cmd.cfg.Sync.CacheDir, cmd.cfg.Sync.TrackWithoutHighlights, logger)
	result, err := runPass(context.Background(), cmd.cfg, reader.ReadBooks, !cmd.NoMetadata, logger)
	if err != nil {
		fmt.Printf("❌ sync failed: %v\n", err)
		return err
	}

	printResult(result)
	return nil
}

// runPass assembles the pipeline and runs one reconciliation over the
// books produced by the source function.
func runPass(ctx context.Context, cfg config.Config, source func() map[string]*entities.Book, withMetadata bool, logger *log.Logger) (*sync.Result, error) {
	books := source()

	store := vault.NewFSStore(cfg.Sync.VaultDir)
	renderer := render.NewRenderer(cfg.Display)

	var metadataSource sync.MetadataSource
	if withMetadata {
		cachePath := cfg.Metadata.CachePath
		if !filepath.IsAbs(cachePath) {
			cachePath = filepath.Join(cfg.Sync.VaultDir, cachePath)
		}
		cache, err := metadata.OpenCache(cachePath)
		if err != nil {
			return nil, err
		}
		resolver := metadata.NewResolver(metadata.NewOpenLibraryClient(), metadata.NewGoogleBooksClient(), logger)
		metadataSource = metadata.NewCachedResolver(resolver, cache)
	}

	var coverFetcher sync.CoverFetcher
	if withMetadata && cfg.Metadata.FetchCovers {
		coverStore, err := covers.NewStore(filepath.Join(cfg.Sync.VaultDir, cfg.Metadata.CoversDir))
		if err != nil {
			return nil, err
		}
		coverFetcher = coverStore
	}

	syncer := sync.NewSyncer(store, renderer, metadataSource, coverFetcher, cfg, logger)
	return syncer.Run(ctx, books)
}

func printResult(result *sync.Result) {
	fmt.Printf("✅ %s\n", result.Summary())
	if len(result.Failures) > 0 {
		fmt.Println("\nFailures:")
		for _, f := range result.Failures {
			fmt.Printf("  - %s: %v\n", f.Title, f.Err)
		}
	}
}

func newLogger(verbose bool) *log.Logger {
	if verbose {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(os.Stderr, "", 0)
}
