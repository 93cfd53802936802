package entities

import (
	"sort"
	"strings"
	"time"
)

// Highlight represents a single user annotation decoded from a MoonReader
// annotation file or the legacy backup database.
type Highlight struct {
	ID        int64
	BookTitle string // title embedded in the annotation block
	FilePath  string // source e-book path as recorded by the reader
	Chapter   int    // 0 = unknown
	Position  int    // byte/char position; the only in-book ordering key
	Length    int
	Color     int   // packed 24-bit RGB
	TimeMs    int64 // capture timestamp, epoch milliseconds, 0 = unknown
	Note      string
	Text      string

	// Decorative style flags. The real-time cache grammar carries no style
	// fields; these are populated only by the legacy backup import.
	Underline     bool
	Strikethrough bool
}

// HasNote reports whether the highlight carries a non-blank user note.
func (h Highlight) HasNote() bool {
	return strings.TrimSpace(h.Note) != ""
}

// Time converts the millisecond capture timestamp to a time.Time.
// The zero timestamp maps to the zero time.
func (h Highlight) Time() time.Time {
	if h.TimeMs == 0 {
		return time.Time{}
	}
	return time.UnixMilli(h.TimeMs)
}

// BookMetadata is the bag of externally-fetched bibliographic fields
// attached to a book by the metadata resolver.
type BookMetadata struct {
	Title         string
	Author        string
	CoverURL      string
	Description   string
	PublishedDate string
	Publisher     string
	PageCount     int
	Genres        []string
	Series        string
	Language      string
}

// IsZero reports whether no field of the metadata bag is populated.
func (m BookMetadata) IsZero() bool {
	return m.Title == "" && m.Author == "" && m.CoverURL == "" &&
		m.Description == "" && m.PublishedDate == "" && m.Publisher == "" &&
		m.PageCount == 0 && len(m.Genres) == 0 && m.Series == "" && m.Language == ""
}

// Book is the aggregate unit of one sync pass: a title, its highlights in
// reading order and at most one reading-position snapshot. Identity is the
// title string compared case-insensitively after normalization.
type Book struct {
	Title  string
	Author string

	Highlights []Highlight

	// Inlined progress fields, last-write-wins across position files.
	HasProgress bool
	Progress    float64 // 0-100, one decimal as given by the reader
	Chapter     int
	LastReadMs  int64

	Metadata BookMetadata
}

// SortHighlights orders the highlights ascending by position. This is the
// authoritative in-book reading order used everywhere downstream.
func (b *Book) SortHighlights() {
	sort.SliceStable(b.Highlights, func(i, j int) bool {
		return b.Highlights[i].Position < b.Highlights[j].Position
	})
}

// NoteCount returns the number of highlights carrying a non-blank note.
func (b *Book) NoteCount() int {
	count := 0
	for _, h := range b.Highlights {
		if h.HasNote() {
			count++
		}
	}
	return count
}

// LastRead converts the last-read timestamp to a time.Time.
func (b *Book) LastRead() time.Time {
	if b.LastReadMs == 0 {
		return time.Time{}
	}
	return time.UnixMilli(b.LastReadMs)
}
