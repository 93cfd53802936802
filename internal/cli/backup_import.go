package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/moonsync/internal/config"
	"github.com/mrlokans/moonsync/internal/entities"
	"github.com/mrlokans/moonsync/internal/moonreader"
)

// BackupImportCommand imports highlights from a full MoonReader backup
// archive (.mrpro/.mrstd) instead of the live cache directory. This is the
// only path that carries underline and strikethrough flags.
type BackupImportCommand struct {
	BackupDir  string
	BackupFile string
	VaultDir   string
	NoMetadata bool
	Verbose    bool

	cfg config.Config
}

// NewBackupImportCommand creates a new BackupImportCommand.
func NewBackupImportCommand() *BackupImportCommand {
	return &BackupImportCommand{cfg: config.NewConfig()}
}

// ParseFlags parses command line flags.
func (cmd *BackupImportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("backup-import", flag.ExitOnError)

	fs.StringVar(&cmd.BackupDir, "backup-dir", cmd.cfg.Backup.LookupDir, "Directory containing MoonReader backup files")
	fs.StringVar(&cmd.BackupFile, "backup", "", "Specific backup file to import (default: latest in -backup-dir)")
	fs.StringVar(&cmd.VaultDir, "vault", cmd.cfg.Sync.VaultDir, "Obsidian vault directory")
	fs.BoolVar(&cmd.NoMetadata, "no-metadata", false, "Skip online metadata lookups")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s backup-import [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import highlights from a MoonReader backup archive (.mrpro/.mrstd).\n\n")
		fmt.Fprintf(os.Stderr, "This command:\n")
		fmt.Fprintf(os.Stderr, "  1. Finds the newest backup archive (or uses -backup)\n")
		fmt.Fprintf(os.Stderr, "  2. Extracts the notes database from it\n")
		fmt.Fprintf(os.Stderr, "  3. Reconciles every book into the vault like a regular sync pass\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s backup-import -backup-dir ~/syncthing/moonreader/Backup\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s backup-import -backup ~/Downloads/com.flyersoft.moonreaderp.mrpro\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd.cfg.Backup.LookupDir = cmd.BackupDir
	cmd.cfg.Sync.VaultDir = cmd.VaultDir
	return nil
}

// Run extracts the backup database and reconciles its books into the vault.
func (cmd *BackupImportCommand) Run() error {
	fmt.Println("🌙 MoonSync Backup Import")
	fmt.Println("=========================")

	logger := newLogger(cmd.Verbose)

	backupPath := cmd.BackupFile
	if backupPath == "" {
		if cmd.cfg.Backup.LookupDir == "" {
			return fmt.Errorf("backup directory not set (use -backup-dir or MOONSYNC_BACKUP_DIR)")
		}
		importer := moonreader.NewBackupImporter(cmd.cfg.Backup.LookupDir)
		info, err := importer.FindLatestBackup()
		if err != nil {
			return fmt.Errorf("find backup: %w", err)
		}
		backupPath = info.Path
		fmt.Printf("📦 Backup: %s\n", info.Path)
	}

	importer := moonreader.NewBackupImporter(cmd.cfg.Backup.LookupDir)
	dbPath, tempDir, err := importer.ExtractDatabase(backupPath)
	if err != nil {
		return fmt.Errorf("extract backup: %w", err)
	}
	defer os.RemoveAll(tempDir)

	books, err := moonreader.ReadBooks(dbPath)
	if err != nil {
		return fmt.Errorf("read backup database: %w", err)
	}
	fmt.Printf("📚 Found %d books\n", len(books))

	source := func() map[string]*entities.Book { return books }
	result, err := runPass(context.Background(), cmd.cfg, source, !cmd.NoMetadata, logger)
	if err != nil {
		fmt.Printf("❌ import failed: %v\n", err)
		return err
	}

	printResult(result)
	return nil
}
