// Package render serializes book records into the structured vault
// document format. Rendering is deterministic for identical input; the only
// volatile field is the explicit last-synced timestamp, which is excluded
// from change detection.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mrlokans/moonsync/internal/config"
	"github.com/mrlokans/moonsync/internal/entities"
	"github.com/mrlokans/moonsync/internal/utils"
)

const (
	// UserNotesHeading opens the free-form section owned by the user.
	UserNotesHeading = "## My Notes"
	// HighlightsHeading opens the generated highlights block.
	HighlightsHeading = "## Highlights"
	// UserNotesPlaceholder is the default content of the user section. A
	// section still containing only this text is not user content.
	UserNotesPlaceholder = "%% Add your personal notes here %%"

	lastSyncedLayout = "2006-01-02 15:04:05"
	dateLayout       = "January 02, 2006"
	shortDateLayout  = "2006-01-02"
)

// Renderer turns book records into document text. Display settings gate
// which sections and header fields are emitted; the values themselves are
// always computed the same way.
type Renderer struct {
	display config.Display
}

// NewRenderer creates a renderer with the given display settings.
func NewRenderer(display config.Display) *Renderer {
	return &Renderer{display: display}
}

// DocumentState carries the sync-owned header values the renderer does not
// compute itself.
type DocumentState struct {
	Hash           string
	LastSynced     time.Time
	Manual         bool
	CustomMetadata bool
	// UserNotes is previously authored free-form content to reinsert;
	// empty means the placeholder is emitted instead.
	UserNotes string
	// CoverPath is the vault-relative cover reference, empty for none.
	CoverPath string
}

// Document renders a complete book document: frontmatter header plus the
// sectioned body.
func (r *Renderer) Document(book *entities.Book, state DocumentState) string {
	var sb strings.Builder

	sb.WriteString(r.Header(book, state))

	sb.WriteString(fmt.Sprintf("\n# %s\n", book.Title))
	if book.Author != "" {
		sb.WriteString(fmt.Sprintf("\n*by %s*\n", book.Author))
	}

	if r.display.ShowProgress && book.HasProgress {
		sb.WriteString("\n## Progress\n\n")
		sb.WriteString(r.progressLine(book))
		sb.WriteString("\n")
	}

	if r.display.ShowDescription && book.Metadata.Description != "" {
		sb.WriteString("\n## Description\n\n")
		sb.WriteString(strings.TrimSpace(book.Metadata.Description))
		sb.WriteString("\n")
	}

	sb.WriteString("\n" + UserNotesHeading + "\n\n")
	if strings.TrimSpace(state.UserNotes) != "" {
		sb.WriteString(strings.TrimSpace(state.UserNotes))
	} else {
		sb.WriteString(UserNotesPlaceholder)
	}
	sb.WriteString("\n")

	sb.WriteString(r.HighlightsSection(book))

	return sb.String()
}

// Header renders the frontmatter block. Field order is fixed; presence of
// the progress, bibliographic and cover fields follows the display toggles.
func (r *Renderer) Header(book *entities.Book, state DocumentState) string {
	var sb strings.Builder
	md := book.Metadata

	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "title: %s\n", quote(book.Title))
	if book.Author != "" {
		fmt.Fprintf(&sb, "author: %s\n", quote(book.Author))
	}
	if !state.LastSynced.IsZero() {
		fmt.Fprintf(&sb, "last-synced: %s\n", state.LastSynced.Format(lastSyncedLayout))
	}
	fmt.Fprintf(&sb, "highlights: %d\n", len(book.Highlights))
	fmt.Fprintf(&sb, "notes: %d\n", book.NoteCount())
	if state.Hash != "" {
		fmt.Fprintf(&sb, "highlights-hash: %s\n", state.Hash)
	}

	if r.display.ShowProgress && book.HasProgress {
		fmt.Fprintf(&sb, "progress: %s\n", FormatProgress(book.Progress))
		fmt.Fprintf(&sb, "chapter: %d\n", book.Chapter)
		if book.LastReadMs != 0 {
			fmt.Fprintf(&sb, "last-read: %s\n", book.LastRead().Format(shortDateLayout))
		}
	}

	for _, f := range r.MetadataFields(md) {
		fmt.Fprintf(&sb, "%s: %s\n", f[0], f[1])
	}

	if r.display.ShowCover && state.CoverPath != "" {
		fmt.Fprintf(&sb, "cover: %s\n", quote(state.CoverPath))
	}

	if state.Manual {
		sb.WriteString("manual: true\n")
	}
	if state.CustomMetadata {
		sb.WriteString("custom-metadata: true\n")
	}
	sb.WriteString("tags: [moonsync/book]\n")
	sb.WriteString("---\n")

	return sb.String()
}

// MetadataFields returns the bibliographic frontmatter fields the display
// settings admit, as ordered key/value pairs with the values already
// quoted where the header quotes them.
func (r *Renderer) MetadataFields(md entities.BookMetadata) [][2]string {
	var fields [][2]string
	if r.display.ShowDescription && md.Description != "" {
		fields = append(fields, [2]string{"description", quote(summarize(md.Description))})
	}
	if r.display.ShowMetadata {
		if md.PublishedDate != "" {
			fields = append(fields, [2]string{"published", quote(md.PublishedDate)})
		}
		if md.Publisher != "" {
			fields = append(fields, [2]string{"publisher", quote(md.Publisher)})
		}
		if md.PageCount > 0 {
			fields = append(fields, [2]string{"pages", strconv.Itoa(md.PageCount)})
		}
		if len(md.Genres) > 0 {
			fields = append(fields, [2]string{"genres", "[" + strings.Join(md.Genres, ", ") + "]"})
		}
		if md.Series != "" {
			fields = append(fields, [2]string{"series", quote(md.Series)})
		}
		if md.Language != "" {
			fields = append(fields, [2]string{"language", md.Language})
		}
	}
	return fields
}

// HighlightsSection renders the generated highlights block, heading
// included.
func (r *Renderer) HighlightsSection(book *entities.Book) string {
	var sb strings.Builder

	sb.WriteString("\n" + HighlightsHeading + "\n\n")
	for _, h := range book.Highlights {
		sb.WriteString(r.Highlight(h))
	}

	return sb.String()
}

// Highlight renders one highlight as a callout. The callout type follows
// the color classification; the header line is "Chapter N • date" with
// either half omitted when unknown.
func (r *Renderer) Highlight(h entities.Highlight) string {
	var sb strings.Builder

	header := highlightHeader(h)
	if header != "" {
		sb.WriteString(fmt.Sprintf("> [!%s] %s\n", utils.CalloutForColor(h.Color), header))
	} else {
		sb.WriteString(fmt.Sprintf("> [!%s]\n", utils.CalloutForColor(h.Color)))
	}

	for _, line := range strings.Split(strings.TrimSpace(h.Text), "\n") {
		sb.WriteString(fmt.Sprintf("> %s\n", line))
	}

	if h.HasNote() {
		sb.WriteString("> \n")
		for _, line := range strings.Split(strings.TrimSpace(h.Note), "\n") {
			sb.WriteString(fmt.Sprintf("> **%s**\n", line))
		}
	}

	sb.WriteString("\n")
	return sb.String()
}

func highlightHeader(h entities.Highlight) string {
	var parts []string
	if h.Chapter > 0 {
		parts = append(parts, fmt.Sprintf("Chapter %d", h.Chapter))
	}
	if h.TimeMs != 0 {
		parts = append(parts, h.Time().Format(dateLayout))
	}
	return strings.Join(parts, " • ")
}

func (r *Renderer) progressLine(book *entities.Book) string {
	line := fmt.Sprintf("**%s**", FormatProgress(book.Progress))
	if book.Chapter > 0 {
		line += fmt.Sprintf(" — chapter %d", book.Chapter)
	}
	if book.LastReadMs != 0 {
		line += fmt.Sprintf(" — last read %s", book.LastRead().Format(dateLayout))
	}
	return line
}

// FormatProgress renders a progress percentage with the precision it was
// given, never rounding further.
func FormatProgress(progress float64) string {
	return strconv.FormatFloat(progress, 'f', -1, 64) + "%"
}

// quote wraps a frontmatter value in double quotes, escaping embedded ones.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// summarize truncates long description text for the frontmatter field; the
// full text lives in the body section. Truncation counts runes, so text
// without spaces cannot be cut mid-character.
func summarize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= 200 {
		return s
	}
	cut := string(runes[:200])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
