package cli

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mrlokans/moonsync/internal/config"
	"github.com/mrlokans/moonsync/internal/moonreader"
	"github.com/mrlokans/moonsync/internal/scheduler"
)

// WatchCommand keeps the vault in sync on a cron schedule until
// interrupted.
type WatchCommand struct {
	CacheDir string
	VaultDir string
	Schedule string
	LogPath  string
	Verbose  bool

	cfg config.Config
}

// NewWatchCommand creates a new WatchCommand.
func NewWatchCommand() *WatchCommand {
	return &WatchCommand{cfg: config.NewConfig()}
}

// ParseFlags parses command line flags.
func (cmd *WatchCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)

	fs.StringVar(&cmd.CacheDir, "cache-dir", cmd.cfg.Sync.CacheDir, "MoonReader cache directory (.an/.po files)")
	fs.StringVar(&cmd.VaultDir, "vault", cmd.cfg.Sync.VaultDir, "Obsidian vault directory")
	fs.StringVar(&cmd.Schedule, "schedule", cmd.cfg.Watch.Schedule, "Cron schedule for sync passes")
	fs.StringVar(&cmd.LogPath, "log", cmd.cfg.Watch.LogPath, "Log file path (rotated; empty = stderr)")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s watch [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Run sync continuously on a schedule. The first pass fires after a short\n")
		fmt.Fprintf(os.Stderr, "startup delay; later passes follow the cron schedule. Stop with Ctrl-C.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s watch -schedule \"*/15 * * * *\"\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s watch -log ~/.local/state/moonsync/watch.log\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd.cfg.Sync.CacheDir = cmd.CacheDir
	cmd.cfg.Sync.VaultDir = cmd.VaultDir
	cmd.cfg.Watch.Schedule = cmd.Schedule
	cmd.cfg.Watch.LogPath = cmd.LogPath
	return nil
}

// Run blocks, syncing on schedule, until SIGINT or SIGTERM.
func (cmd *WatchCommand) Run() error {
	if cmd.cfg.Sync.CacheDir == "" {
		return fmt.Errorf("cache directory not set (use -cache-dir or MOONSYNC_CACHE_DIR)")
	}

	logger := cmd.newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := moonreader.NewCacheReader(cmd.cfg.Sync.CacheDir, cmd.cfg.Sync.TrackWithoutHighlights, logger)
	pass := func(ctx context.Context) error {
		result, err := runPass(ctx, cmd.cfg, reader.ReadBooks, true, logger)
		if err != nil {
			return err
		}
		logger.Printf("%s", result.Summary())
		for _, f := range result.Failures {
			logger.Printf("failed %q: %v", f.Title, f.Err)
		}
		return nil
	}

	watcher := scheduler.New(cmd.cfg.Watch.Schedule, cmd.cfg.Watch.StartupDelay, pass, logger)

	logger.Printf("watching %s on schedule %q", cmd.cfg.Sync.CacheDir, cmd.cfg.Watch.Schedule)
	if err := watcher.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	logger.Printf("stopped")
	return nil
}

// newLogger routes watch output to a rotated log file when configured.
func (cmd *WatchCommand) newLogger() *log.Logger {
	if cmd.cfg.Watch.LogPath == "" {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(&lumberjack.Logger{
		Filename:   cmd.cfg.Watch.LogPath,
		MaxSize:    cmd.cfg.Watch.LogMaxSizeMB,
		MaxBackups: 3,
	}, "", log.LstdFlags)
}
