package moonreader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCacheFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
}

func TestCacheReaderGroupsByTitle(t *testing.T) {
	dir := t.TempDir()
	writeCacheFile(t, dir, "Dune - Frank Herbert.epub.an",
		compress(t, block("1", "Dune", "2", "300", "0", "0", "second by position")...))
	writeCacheFile(t, dir, "dune.epub.an",
		compress(t, block("2", "Dune", "1", "100", "0", "0", "first by position")...))

	books := NewCacheReader(dir, false, nil).ReadBooks()
	require.Len(t, books, 1)

	book, ok := books["dune"]
	require.True(t, ok)
	assert.Equal(t, "Dune", book.Title)
	require.Len(t, book.Highlights, 2)
	// position-ascending regardless of file order
	assert.Equal(t, "first by position", book.Highlights[0].Text)
	assert.Equal(t, "second by position", book.Highlights[1].Text)
}

func TestCacheReaderPrefersEmbeddedTitle(t *testing.T) {
	dir := t.TempDir()
	writeCacheFile(t, dir, "dune_messiah.an",
		compress(t, block("1", "Dune Messiah", "1", "100", "0", "0", "text")...))

	books := NewCacheReader(dir, false, nil).ReadBooks()
	book, ok := books["dune messiah"]
	require.True(t, ok)
	assert.Equal(t, "Dune Messiah", book.Title)
}

func TestCacheReaderTitleFromLaterHighlight(t *testing.T) {
	dir := t.TempDir()
	lines := block("1", "", "1", "100", "0", "0", "untitled block")
	lines = append(lines, block("2", "Dune Messiah", "2", "200", "0", "0", "titled block")...)
	writeCacheFile(t, dir, "dune_messiah.an", compress(t, lines...))

	books := NewCacheReader(dir, false, nil).ReadBooks()
	book, ok := books["dune messiah"]
	require.True(t, ok)
	// the second highlight's embedded title beats the filename fallback
	assert.Equal(t, "Dune Messiah", book.Title)
	assert.Len(t, book.Highlights, 2)
}

func TestCacheReaderAttachesProgress(t *testing.T) {
	dir := t.TempDir()
	writeCacheFile(t, dir, "Dune.epub.an",
		compress(t, block("1", "Dune", "1", "100", "0", "0", "text")...))
	writeCacheFile(t, dir, "Dune.epub.po", []byte("1700000000000*12@0#500:33.3%"))

	books := NewCacheReader(dir, false, nil).ReadBooks()
	book := books["dune"]
	require.NotNil(t, book)

	assert.True(t, book.HasProgress)
	assert.InDelta(t, 33.3, book.Progress, 0.0001)
	assert.Equal(t, 12, book.Chapter)
	assert.Equal(t, int64(1700000000000), book.LastReadMs)
}

func TestCacheReaderPositionOnlyBook(t *testing.T) {
	dir := t.TempDir()
	writeCacheFile(t, dir, "Dune.epub.po", []byte("1000*1@0#2:10%"))

	t.Run("ignored by default", func(t *testing.T) {
		books := NewCacheReader(dir, false, nil).ReadBooks()
		assert.Empty(t, books)
	})

	t.Run("synthesized when tracking enabled", func(t *testing.T) {
		books := NewCacheReader(dir, true, nil).ReadBooks()
		book, ok := books["dune"]
		require.True(t, ok)
		assert.Empty(t, book.Highlights)
		assert.True(t, book.HasProgress)
	})
}

func TestCacheReaderSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	writeCacheFile(t, dir, "Broken.an", []byte("definitely not compressed"))
	writeCacheFile(t, dir, "Dune.an",
		compress(t, block("1", "Dune", "1", "100", "0", "0", "text")...))
	writeCacheFile(t, dir, "Dune.po", []byte("garbage position"))

	books := NewCacheReader(dir, false, nil).ReadBooks()
	require.Len(t, books, 1)
	assert.False(t, books["dune"].HasProgress)
}

func TestCacheReaderMissingDirectory(t *testing.T) {
	books := NewCacheReader(filepath.Join(t.TempDir(), "nope"), false, nil).ReadBooks()
	assert.Empty(t, books)
}
