package moonreader

import (
	"archive/zip"
	"bufio"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/mrlokans/moonsync/internal/entities"
	"github.com/mrlokans/moonsync/internal/utils"
)

const (
	// dbManifestLocator is the filename we look for in the backup manifest
	dbManifestLocator = "mrbooks.db"
	// extractedDatabaseFile is the name of the extracted database file
	extractedDatabaseFile = "exported.db"
)

// BackupInfo describes one MoonReader backup container on disk.
type BackupInfo struct {
	Path      string
	ModTime   time.Time
	Timestamp string // timestamp from the filename
}

// BackupImporter handles the legacy one-shot import path: a ZIP backup
// containing a `_names.list` manifest and a SQLite notes database. It is
// superseded by the real-time cache reader but remains the only source of
// underline/strikethrough style flags.
type BackupImporter struct {
	lookupDir string
}

// NewBackupImporter creates an importer over the given backup directory.
func NewBackupImporter(lookupDir string) *BackupImporter {
	return &BackupImporter{lookupDir: lookupDir}
}

// FindLatestBackup finds the most recent backup file by filename timestamp.
func (b *BackupImporter) FindLatestBackup() (*BackupInfo, error) {
	if _, err := os.Stat(b.lookupDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("lookup directory does not exist: %s", b.lookupDir)
	}

	entries, err := os.ReadDir(b.lookupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".mrstd") || strings.HasSuffix(name, ".mrpro") {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			// Filename format: YYYYMMDD_HHMMSS.extension
			timestamp := strings.Split(name, ".")[0]
			backups = append(backups, BackupInfo{
				Path:      filepath.Join(b.lookupDir, name),
				ModTime:   info.ModTime(),
				Timestamp: timestamp,
			})
		}
	}

	if len(backups) == 0 {
		return nil, fmt.Errorf("no backup files found in %s", b.lookupDir)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp > backups[j].Timestamp
	})

	return &backups[0], nil
}

// ExtractDatabase extracts the notes database from a backup file into a
// temporary directory. The caller is responsible for removing tempDir.
func (b *BackupImporter) ExtractDatabase(backupPath string) (dbPath string, tempDir string, err error) {
	tempDir, err = os.MkdirTemp("", "moonsync-backup-*")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	fail := func(err error) (string, string, error) {
		os.RemoveAll(tempDir)
		return "", "", err
	}

	zipReader, err := zip.OpenReader(backupPath)
	if err != nil {
		return fail(fmt.Errorf("failed to open backup file: %w", err))
	}
	defer zipReader.Close()

	extractDir := filepath.Join(tempDir, "unzipped")
	if err := os.MkdirAll(extractDir, 0755); err != nil {
		return fail(fmt.Errorf("failed to create extract directory: %w", err))
	}

	for _, file := range zipReader.File {
		destPath := filepath.Join(extractDir, file.Name)

		if file.FileInfo().IsDir() {
			os.MkdirAll(destPath, file.Mode())
			continue
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return fail(fmt.Errorf("failed to create directory: %w", err))
		}
		if err := extractZipFile(file, destPath); err != nil {
			return fail(fmt.Errorf("failed to extract file %s: %w", file.Name, err))
		}
	}

	readerDir, err := findReaderDir(extractDir)
	if err != nil {
		return fail(err)
	}

	manifestPath := filepath.Join(readerDir, "_names.list")
	if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
		return fail(fmt.Errorf("manifest file '_names.list' does not exist"))
	}

	dbLineNumber, err := findDBInManifest(manifestPath)
	if err != nil {
		return fail(err)
	}

	// The database file is stored as {lineNumber}.tag
	presumedDBFile := filepath.Join(readerDir, fmt.Sprintf("%d.tag", dbLineNumber))
	if _, err := os.Stat(presumedDBFile); os.IsNotExist(err) {
		return fail(fmt.Errorf("presumed database file '%s' does not exist", presumedDBFile))
	}

	outputPath := filepath.Join(readerDir, extractedDatabaseFile)
	if err := copyFile(presumedDBFile, outputPath); err != nil {
		return fail(fmt.Errorf("failed to copy database file: %w", err))
	}

	return outputPath, tempDir, nil
}

// ReadBooks opens the extracted notes database read-only and folds its rows
// into the same title-keyed book map the cache reader produces.
func ReadBooks(dbPath string) (map[string]*entities.Book, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	query := `
		SELECT
			_id,
			book,
			filename,
			highlightColor,
			time,
			bookmark,
			note,
			original,
			underline,
			strikethrough
		FROM notes;
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	books := make(map[string]*entities.Book)
	for rows.Next() {
		var (
			id                        int64
			title, filename, colorStr string
			timeMs                    int64
			bookmark, note, original  sql.NullString
			underline, strikethrough  sql.NullInt64
		)

		if err := rows.Scan(&id, &title, &filename, &colorStr, &timeMs,
			&bookmark, &note, &original, &underline, &strikethrough); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		h := entities.Highlight{
			ID:            id,
			BookTitle:     title,
			FilePath:      filename,
			Position:      parseBookmarkPosition(bookmark.String),
			Color:         parseBackupColor(colorStr),
			TimeMs:        timeMs,
			Note:          note.String,
			Text:          original.String,
			Underline:     underline.Valid && underline.Int64 != 0,
			Strikethrough: strikethrough.Valid && strikethrough.Int64 != 0,
		}
		if strings.TrimSpace(h.Text) == "" {
			continue
		}

		canonical := utils.NormalizeTitle(title)
		if canonical == "" {
			continue
		}
		key := strings.ToLower(canonical)
		book, ok := books[key]
		if !ok {
			book = &entities.Book{
				Title:  canonical,
				Author: authorFromPath(filename),
			}
			books[key] = book
		}
		book.Highlights = append(book.Highlights, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	for _, book := range books {
		book.SortHighlights()
	}

	return books, nil
}

// authorFromPath derives the author from a full e-book path following the
// "Title - Author.extension" convention.
func authorFromPath(path string) string {
	base := filepath.Base(strings.ReplaceAll(path, "\\", "/"))
	_, author := utils.TitleAuthorFromFilename(base)
	return author
}

// parseBookmarkPosition extracts a numeric in-book position from the
// bookmark column, which stores either a bare offset or text like "3@1510".
func parseBookmarkPosition(bookmark string) int {
	bookmark = strings.TrimSpace(bookmark)
	if idx := strings.LastIndexByte(bookmark, '@'); idx >= 0 {
		bookmark = bookmark[idx+1:]
	}
	digits := strings.Builder{}
	for _, r := range bookmark {
		if r < '0' || r > '9' {
			break
		}
		digits.WriteRune(r)
	}
	v, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return v
}

// parseBackupColor converts the signed ARGB integer string stored by the
// reader into the packed 24-bit RGB form used everywhere else.
func parseBackupColor(colorStr string) int {
	v, err := strconv.ParseInt(strings.TrimSpace(colorStr), 10, 64)
	if err != nil {
		return 0
	}
	return int(uint32(v) & 0xFFFFFF)
}

// findReaderDir finds the reader's package directory within the backup.
func findReaderDir(extractDir string) (string, error) {
	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extract directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "com.flyersoft") {
			return filepath.Join(extractDir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("reader directory not found in backup")
}

// findDBInManifest finds the line number of the database file in the manifest.
func findDBInManifest(manifestPath string) (int, error) {
	file, err := os.Open(manifestPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		parts := strings.Split(line, "/")
		filename := parts[len(parts)-1]
		if strings.Contains(filename, dbManifestLocator) {
			return lineNumber, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error reading manifest: %w", err)
	}

	return 0, fmt.Errorf("database manifest locator '%s' not found in manifest", dbManifestLocator)
}

func extractZipFile(file *zip.File, destPath string) error {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, file.Mode())
	if err != nil {
		return err
	}
	defer outFile.Close()

	_, err = io.Copy(outFile, rc)
	return err
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	return err
}
