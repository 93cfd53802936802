package moonreader

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createNotesDB(t *testing.T, path string) {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE notes (
		_id INTEGER PRIMARY KEY,
		book TEXT,
		filename TEXT,
		highlightColor TEXT,
		time INTEGER,
		bookmark TEXT,
		note TEXT,
		original TEXT,
		underline INTEGER,
		strikethrough INTEGER
	)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO notes VALUES
		(1, 'Dune', '/books/Dune - Frank Herbert.epub', '-256', 1700000000000, '3@1510', 'my note', 'the spice', 1, 0),
		(2, 'Dune', '/books/Dune - Frank Herbert.epub', '-16776961', 1700000001000, '100', '', 'earlier text', 0, 1),
		(3, 'Dune', '/books/Dune - Frank Herbert.epub', '0', 0, '', '', '   ', 0, 0),
		(4, '', '/books/unknown.epub', '0', 0, '', '', 'orphan', 0, 0)`)
	require.NoError(t, err)
}

func TestBackupReadBooks(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "exported.db")
	createNotesDB(t, dbPath)

	books, err := ReadBooks(dbPath)
	require.NoError(t, err)
	require.Len(t, books, 1)

	book := books["dune"]
	require.NotNil(t, book)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "Frank Herbert", book.Author)
	// blank-text row dropped
	require.Len(t, book.Highlights, 2)

	// position ascending: bare offset 100 before 3@1510
	first, second := book.Highlights[0], book.Highlights[1]
	assert.Equal(t, "earlier text", first.Text)
	assert.Equal(t, 100, first.Position)
	assert.True(t, first.Strikethrough)

	assert.Equal(t, "the spice", second.Text)
	assert.Equal(t, 1510, second.Position)
	assert.Equal(t, "my note", second.Note)
	assert.True(t, second.Underline)
	// -256 is ARGB yellow; only the RGB bits survive
	assert.Equal(t, 0xFFFF00, second.Color)
}

func TestParseBookmarkPosition(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"3@1510", 1510},
		{"1510", 1510},
		{"3@1510:0.5", 1510},
		{"", 0},
		{"abc", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseBookmarkPosition(tt.input), "input %q", tt.input)
	}
}

func TestParseBackupColor(t *testing.T) {
	assert.Equal(t, 0xFFFF00, parseBackupColor("-256"))
	assert.Equal(t, 0x0000FF, parseBackupColor("-16776961"))
	assert.Equal(t, 0, parseBackupColor("garbage"))
}

func TestAuthorFromPath(t *testing.T) {
	assert.Equal(t, "Frank Herbert", authorFromPath("/books/Dune - Frank Herbert.epub"))
	assert.Equal(t, "", authorFromPath("/books/Dune.epub"))
}

func TestFindLatestBackup(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"20260101_080000.mrstd", "20260301_080000.mrpro", "20260201_080000.mrstd", "notabackup.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	info, err := NewBackupImporter(dir).FindLatestBackup()
	require.NoError(t, err)
	assert.Equal(t, "20260301_080000", info.Timestamp)
}

func TestFindLatestBackupEmptyDir(t *testing.T) {
	_, err := NewBackupImporter(t.TempDir()).FindLatestBackup()
	assert.Error(t, err)
}

func TestExtractDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "source.db")
	createNotesDB(t, dbPath)
	dbBytes, err := os.ReadFile(dbPath)
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	manifest, err := zw.Create("com.flyersoft.moonreaderp/_names.list")
	require.NoError(t, err)
	_, err = manifest.Write([]byte("something.xml\nmrbooks.db\nother.txt\n"))
	require.NoError(t, err)
	// the database is stored under its manifest line number
	tag, err := zw.Create("com.flyersoft.moonreaderp/2.tag")
	require.NoError(t, err)
	_, err = tag.Write(dbBytes)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	backupPath := filepath.Join(t.TempDir(), "20260301_080000.mrpro")
	require.NoError(t, os.WriteFile(backupPath, buf.Bytes(), 0644))

	extracted, tempDir, err := NewBackupImporter("").ExtractDatabase(backupPath)
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	books, err := ReadBooks(extracted)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}
