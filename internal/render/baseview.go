package render

import (
	"fmt"
	"strings"
)

// BaseView renders the database-view configuration file scoped to the
// books directory. The output is fully determined by the directory name
// and display settings, so regeneration is idempotent.
func (r *Renderer) BaseView(booksDir string) string {
	var sb strings.Builder

	sb.WriteString("filters:\n")
	sb.WriteString("  and:\n")
	fmt.Fprintf(&sb, "    - file.inFolder(%s)\n", quote(booksDir))
	sb.WriteString("    - tags.contains(\"moonsync/book\")\n")

	sb.WriteString("views:\n")
	sb.WriteString("  - type: table\n")
	sb.WriteString("    name: Library\n")
	sb.WriteString("    order:\n")
	sb.WriteString("      - file.name\n")
	sb.WriteString("      - author\n")
	if r.display.ShowProgress {
		sb.WriteString("      - progress\n")
		sb.WriteString("      - last-read\n")
	}
	sb.WriteString("      - highlights\n")
	sb.WriteString("      - notes\n")
	if r.display.ShowMetadata {
		sb.WriteString("      - series\n")
		sb.WriteString("      - pages\n")
	}
	sb.WriteString("    sort:\n")
	sb.WriteString("      - property: file.name\n")
	sb.WriteString("        direction: ASC\n")

	if r.display.ShowCover {
		sb.WriteString("  - type: cards\n")
		sb.WriteString("    name: Gallery\n")
		sb.WriteString("    image: note.cover\n")
	}

	return sb.String()
}
