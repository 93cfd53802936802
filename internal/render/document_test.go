package render

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/moonsync/internal/config"
	"github.com/mrlokans/moonsync/internal/entities"
)

func fullDisplay() config.Display {
	return config.Display{
		ShowProgress:    true,
		ShowDescription: true,
		ShowMetadata:    true,
		ShowCover:       true,
	}
}

func sampleBook() *entities.Book {
	return &entities.Book{
		Title:  "Dune",
		Author: "Frank Herbert",
		Highlights: []entities.Highlight{
			{Position: 100, Text: "Fear is the mind-killer", Chapter: 1, Color: 0xFFFF00, TimeMs: 1700000000000},
			{Position: 200, Text: "line one\nline two", Note: "important", Color: 0x2196F3},
		},
		HasProgress: true,
		Progress:    33.3,
		Chapter:     12,
		LastReadMs:  1700000000000,
		Metadata: entities.BookMetadata{
			Description: "A desert planet epic.",
			Publisher:   "Chilton",
			PageCount:   412,
			Genres:      []string{"Science Fiction", "Classic"},
			Series:      "Dune Chronicles",
			Language:    "en",
		},
	}
}

func sampleState() DocumentState {
	return DocumentState{
		Hash:       "abc123",
		LastSynced: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
		CoverPath:  "covers/Dune.jpg",
	}
}

func TestDocumentHeader(t *testing.T) {
	doc := NewRenderer(fullDisplay()).Document(sampleBook(), sampleState())

	assert.True(t, strings.HasPrefix(doc, "---\n"))
	assert.Contains(t, doc, `title: "Dune"`)
	assert.Contains(t, doc, `author: "Frank Herbert"`)
	assert.Contains(t, doc, "last-synced: 2026-08-31 12:00:00")
	assert.Contains(t, doc, "highlights: 2")
	assert.Contains(t, doc, "notes: 1")
	assert.Contains(t, doc, "highlights-hash: abc123")
	assert.Contains(t, doc, "progress: 33.3%")
	assert.Contains(t, doc, "chapter: 12")
	assert.Contains(t, doc, `publisher: "Chilton"`)
	assert.Contains(t, doc, "pages: 412")
	assert.Contains(t, doc, "genres: [Science Fiction, Classic]")
	assert.Contains(t, doc, `series: "Dune Chronicles"`)
	assert.Contains(t, doc, "language: en")
	assert.Contains(t, doc, `cover: "covers/Dune.jpg"`)
	assert.Contains(t, doc, "tags: [moonsync/book]")
	assert.NotContains(t, doc, "manual:")
}

func TestDocumentDisplayToggles(t *testing.T) {
	doc := NewRenderer(config.Display{}).Document(sampleBook(), sampleState())

	assert.NotContains(t, doc, "progress:")
	assert.NotContains(t, doc, "## Progress")
	assert.NotContains(t, doc, "## Description")
	assert.NotContains(t, doc, "publisher:")
	assert.NotContains(t, doc, "cover:")
	// core fields survive every toggle
	assert.Contains(t, doc, "highlights: 2")
	assert.Contains(t, doc, "## Highlights")
	assert.Contains(t, doc, UserNotesHeading)
}

func TestDocumentBodySections(t *testing.T) {
	doc := NewRenderer(fullDisplay()).Document(sampleBook(), sampleState())

	assert.Contains(t, doc, "# Dune")
	assert.Contains(t, doc, "*by Frank Herbert*")
	assert.Contains(t, doc, "## Progress")
	assert.Contains(t, doc, "**33.3%** — chapter 12")
	assert.Contains(t, doc, "A desert planet epic.")
	assert.Contains(t, doc, UserNotesPlaceholder)
}

func TestDocumentUserNotesReinserted(t *testing.T) {
	state := sampleState()
	state.UserNotes = "my own prose"
	doc := NewRenderer(fullDisplay()).Document(sampleBook(), state)

	assert.Contains(t, doc, "my own prose")
	assert.NotContains(t, doc, UserNotesPlaceholder)
}

func TestHighlightRendering(t *testing.T) {
	r := NewRenderer(fullDisplay())

	t.Run("callout with chapter and date", func(t *testing.T) {
		h := entities.Highlight{Text: "quoted", Chapter: 3, Color: 0xFFFF00, TimeMs: 1700000000000}
		out := r.Highlight(h)
		require.True(t, strings.HasPrefix(out, "> [!quote] Chapter 3 • "))
		assert.Contains(t, out, "> quoted\n")
	})

	t.Run("chapter only", func(t *testing.T) {
		h := entities.Highlight{Text: "quoted", Chapter: 3, Color: 0x2196F3}
		assert.True(t, strings.HasPrefix(r.Highlight(h), "> [!info] Chapter 3\n"))
	})

	t.Run("no header halves", func(t *testing.T) {
		h := entities.Highlight{Text: "quoted", Color: 0x4CAF50}
		assert.True(t, strings.HasPrefix(r.Highlight(h), "> [!tip]\n"))
	})

	t.Run("multiline text block-quoted per line", func(t *testing.T) {
		h := entities.Highlight{Text: "line one\nline two"}
		out := r.Highlight(h)
		assert.Contains(t, out, "> line one\n")
		assert.Contains(t, out, "> line two\n")
	})

	t.Run("note rendered after text", func(t *testing.T) {
		h := entities.Highlight{Text: "quoted", Note: "my note"}
		out := r.Highlight(h)
		assert.Contains(t, out, "> **my note**\n")
		assert.Less(t, strings.Index(out, "quoted"), strings.Index(out, "my note"))
	})
}

func TestDocumentDeterministic(t *testing.T) {
	r := NewRenderer(fullDisplay())
	first := r.Document(sampleBook(), sampleState())
	second := r.Document(sampleBook(), sampleState())
	assert.Equal(t, first, second)
}

func TestFormatProgress(t *testing.T) {
	assert.Equal(t, "33.3%", FormatProgress(33.3))
	assert.Equal(t, "50%", FormatProgress(50))
	assert.Equal(t, "0%", FormatProgress(0))
}

func TestSummarizeTruncatesLongDescriptions(t *testing.T) {
	long := strings.Repeat("word ", 100)
	short := summarize(long)
	assert.LessOrEqual(t, len(short), 205)
	assert.True(t, strings.HasSuffix(short, "…"))
	assert.Equal(t, "one two", summarize("one\n two "))
}

func TestSummarizeKeepsMultibyteTextValid(t *testing.T) {
	// 300 runes with no space to cut on
	long := strings.Repeat("書", 300)
	short := summarize(long)

	assert.True(t, utf8.ValidString(short))
	assert.Equal(t, strings.Repeat("書", 200)+"…", short)
}
