package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrlokans/moonsync/internal/entities"
)

func highlightSet() []entities.Highlight {
	return []entities.Highlight{
		{Position: 100, Text: "first", Note: "a note"},
		{Position: 200, Text: "second"},
		{Position: 300, Text: "third"},
	}
}

func TestHighlightsHashStable(t *testing.T) {
	a := &entities.Book{Highlights: highlightSet()}
	b := &entities.Book{Highlights: highlightSet()}
	assert.Equal(t, HighlightsHash(a), HighlightsHash(b))
}

func TestHighlightsHashOrderIndependent(t *testing.T) {
	ordered := &entities.Book{Highlights: highlightSet()}

	reversed := &entities.Book{Highlights: highlightSet()}
	reversed.Highlights[0], reversed.Highlights[2] = reversed.Highlights[2], reversed.Highlights[0]

	// the hash sorts by position itself, so file order does not matter
	assert.Equal(t, HighlightsHash(ordered), HighlightsHash(reversed))
}

func TestHighlightsHashSensitivity(t *testing.T) {
	base := HighlightsHash(&entities.Book{Highlights: highlightSet()})

	t.Run("added highlight", func(t *testing.T) {
		book := &entities.Book{Highlights: append(highlightSet(), entities.Highlight{Position: 400, Text: "fourth"})}
		assert.NotEqual(t, base, HighlightsHash(book))
	})

	t.Run("changed text", func(t *testing.T) {
		book := &entities.Book{Highlights: highlightSet()}
		book.Highlights[1].Text = "changed"
		assert.NotEqual(t, base, HighlightsHash(book))
	})

	t.Run("changed note", func(t *testing.T) {
		book := &entities.Book{Highlights: highlightSet()}
		book.Highlights[0].Note = "another note"
		assert.NotEqual(t, base, HighlightsHash(book))
	})

	t.Run("color change is cosmetic", func(t *testing.T) {
		book := &entities.Book{Highlights: highlightSet()}
		book.Highlights[0].Color = 0xFF0000
		assert.Equal(t, base, HighlightsHash(book))
	})
}

func TestHighlightsHashEmpty(t *testing.T) {
	assert.NotEmpty(t, HighlightsHash(&entities.Book{}))
}
