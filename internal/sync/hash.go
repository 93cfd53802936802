// Package sync reconciles reader annotation state against the vault: it
// matches books to existing documents, detects content changes and decides
// per book whether to create, update or skip.
package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mrlokans/moonsync/internal/entities"
)

// HighlightsHash produces a stable digest of a book's annotation content.
// Only position, text and note participate; metadata, progress and colors
// do not, so purely cosmetic changes never force a rewrite. Highlights are
// digested in position order, so callers do not need to pre-sort.
func HighlightsHash(book *entities.Book) string {
	book.SortHighlights()

	h := sha256.New()
	for _, hl := range book.Highlights {
		fmt.Fprintf(h, "%d\x00%s\x00%s\x00", hl.Position, hl.Text, hl.Note)
	}
	return hex.EncodeToString(h.Sum(nil))
}
