package moonreader

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrlokans/moonsync/internal/entities"
	"github.com/mrlokans/moonsync/internal/utils"
)

const (
	// AnnotationSuffix marks MoonReader's real-time annotation cache files.
	AnnotationSuffix = ".an"
	// PositionSuffix marks MoonReader's reading-position files.
	PositionSuffix = ".po"
)

// CacheReader enumerates a MoonReader cache directory and folds its
// annotation and position files into a title-keyed map of books.
type CacheReader struct {
	dir                    string
	trackWithoutHighlights bool
	logger                 *log.Logger
}

// NewCacheReader creates a reader over the given cache directory. When
// trackWithoutHighlights is set, position files without a matching
// annotation file synthesize zero-highlight books. A nil logger falls back
// to a default stderr logger.
func NewCacheReader(dir string, trackWithoutHighlights bool, logger *log.Logger) *CacheReader {
	if logger == nil {
		logger = log.New(os.Stderr, "[moonreader] ", log.LstdFlags)
	}
	return &CacheReader{
		dir:                    dir,
		trackWithoutHighlights: trackWithoutHighlights,
		logger:                 logger,
	}
}

// ReadBooks decodes every annotation and position file in the directory and
// returns the resulting books keyed by lowercased canonical title. A
// missing or unreadable directory degrades to an empty result.
func (r *CacheReader) ReadBooks() map[string]*entities.Book {
	books := make(map[string]*entities.Book)

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.logger.Printf("cache directory unreadable: %v", err)
		return books
	}

	// Annotation files first: they establish book identity.
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), AnnotationSuffix) {
			continue
		}
		r.readAnnotationFile(entry.Name(), books)
	}

	// Position files second: they only attach progress (or, optionally,
	// synthesize books that have no highlights yet).
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), PositionSuffix) {
			continue
		}
		r.readPositionFile(entry.Name(), books)
	}

	for _, book := range books {
		book.SortHighlights()
	}

	return books
}

func (r *CacheReader) readAnnotationFile(name string, books map[string]*entities.Book) {
	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if err != nil {
		r.logger.Printf("skipping %s: %v", name, err)
		return
	}

	base := strings.TrimSuffix(name, AnnotationSuffix)
	file, err := DecodeAnnotation(base, data)
	if err != nil {
		r.logger.Printf("skipping %s: %v", name, err)
		return
	}
	if len(file.Highlights) == 0 {
		return
	}

	// A title embedded in any decoded highlight is more reliable than the
	// filename; the filename is only a fallback when no highlight carries
	// one.
	var canonical string
	for _, h := range file.Highlights {
		if canonical = utils.NormalizeTitle(h.BookTitle); canonical != "" {
			break
		}
	}
	if canonical == "" {
		canonical = file.FallbackTitle
	}
	if canonical == "" {
		r.logger.Printf("skipping %s: no usable title", name)
		return
	}

	key := strings.ToLower(canonical)
	book, ok := books[key]
	if !ok {
		book = &entities.Book{
			Title:  canonical,
			Author: file.FallbackAuthor,
		}
		books[key] = book
	}
	book.Highlights = append(book.Highlights, file.Highlights...)
}

func (r *CacheReader) readPositionFile(name string, books map[string]*entities.Book) {
	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if err != nil {
		r.logger.Printf("skipping %s: %v", name, err)
		return
	}

	pos, ok := DecodePosition(data)
	if !ok {
		r.logger.Printf("no progress data in %s", name)
		return
	}

	title, author := utils.TitleAuthorFromFilename(strings.TrimSuffix(name, PositionSuffix))
	if title == "" {
		return
	}

	key := strings.ToLower(utils.NormalizeTitle(title))
	book, exists := books[key]
	if !exists {
		if !r.trackWithoutHighlights {
			return
		}
		book = &entities.Book{
			Title:  utils.NormalizeTitle(title),
			Author: author,
		}
		books[key] = book
	}

	// Overwrite, not merge: the position file is a last-write-wins snapshot.
	book.HasProgress = true
	book.Progress = pos.Progress
	book.Chapter = pos.Chapter
	book.LastReadMs = pos.TimeMs
}
