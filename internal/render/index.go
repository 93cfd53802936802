package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mrlokans/moonsync/internal/entities"
)

// IndexEntry is one library book as it appears in the summary index.
type IndexEntry struct {
	Book *entities.Book
	// FileName is the document filename within the books directory,
	// without the .md extension.
	FileName string
	// CoverPath is the vault-relative cover reference, empty for none.
	CoverPath string
}

// Index renders the library summary document: optional cover collage,
// aggregate statistics and a per-book line list.
func (r *Renderer) Index(entries []IndexEntry, lastSynced time.Time) string {
	sorted := make([]IndexEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Book.Title) < strings.ToLower(sorted[j].Book.Title)
	})

	var sb strings.Builder

	sb.WriteString("---\n")
	if !lastSynced.IsZero() {
		fmt.Fprintf(&sb, "last-synced: %s\n", lastSynced.Format(lastSyncedLayout))
	}
	fmt.Fprintf(&sb, "books: %d\n", len(sorted))
	sb.WriteString("tags: [moonsync/index]\n")
	sb.WriteString("---\n")

	sb.WriteString("\n# Reading Index\n")

	if r.display.Collage.Enabled {
		if collage := r.collage(sorted); collage != "" {
			sb.WriteString(collage)
		}
	}

	sb.WriteString(r.stats(sorted))

	sb.WriteString("\n## Books\n\n")
	for _, e := range sorted {
		sb.WriteString(bookLine(e))
	}

	return sb.String()
}

func (r *Renderer) collage(entries []IndexEntry) string {
	withCovers := make([]IndexEntry, 0, len(entries))
	for _, e := range entries {
		if e.CoverPath != "" {
			withCovers = append(withCovers, e)
		}
	}
	if len(withCovers) == 0 {
		return ""
	}

	if r.display.Collage.SortByRecent {
		sort.SliceStable(withCovers, func(i, j int) bool {
			return withCovers[i].Book.LastReadMs > withCovers[j].Book.LastReadMs
		})
	}
	if max := r.display.Collage.MaxItems; max > 0 && len(withCovers) > max {
		withCovers = withCovers[:max]
	}

	var sb strings.Builder
	sb.WriteString("\n")
	for _, e := range withCovers {
		fmt.Fprintf(&sb, "[[%s|![[%s|100]]]] ", e.FileName, e.CoverPath)
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *Renderer) stats(entries []IndexEntry) string {
	var (
		highlights    int
		notes         int
		progressSum   float64
		progressCount int
	)
	for _, e := range entries {
		highlights += len(e.Book.Highlights)
		notes += e.Book.NoteCount()
		if e.Book.HasProgress {
			progressSum += e.Book.Progress
			progressCount++
		}
	}

	var sb strings.Builder
	sb.WriteString("\n## Statistics\n\n")
	fmt.Fprintf(&sb, "- **Books**: %d\n", len(entries))
	fmt.Fprintf(&sb, "- **Highlights**: %d\n", highlights)
	fmt.Fprintf(&sb, "- **Notes**: %d\n", notes)
	if progressCount > 0 {
		fmt.Fprintf(&sb, "- **Average progress**: %.1f%%\n", progressSum/float64(progressCount))
	}
	return sb.String()
}

func bookLine(e IndexEntry) string {
	line := fmt.Sprintf("- [[%s]]", e.FileName)
	if e.Book.Author != "" {
		line += fmt.Sprintf(" by %s", e.Book.Author)
	}
	details := make([]string, 0, 3)
	if n := len(e.Book.Highlights); n > 0 {
		details = append(details, fmt.Sprintf("%d highlights", n))
	}
	if n := e.Book.NoteCount(); n > 0 {
		details = append(details, fmt.Sprintf("%d notes", n))
	}
	if e.Book.HasProgress {
		details = append(details, FormatProgress(e.Book.Progress))
	}
	if len(details) > 0 {
		line += fmt.Sprintf(" (%s)", strings.Join(details, ", "))
	}
	return line + "\n"
}
