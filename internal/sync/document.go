package sync

import (
	"strconv"
	"strings"

	"github.com/mrlokans/moonsync/internal/render"
)

const frontmatterDelimiter = "---"

// PersistedDocument is the machine-readable view of a vault document that
// reconciliation needs: header fields that drive change detection plus the
// user-owned sections that must survive a rewrite.
type PersistedDocument struct {
	Title          string
	Author         string
	Hash           string
	Highlights     int
	Progress       float64
	HasProgress    bool
	LastRead       string
	Manual         bool
	CustomMetadata bool

	// UserNotes is the raw content of the user section, placeholder
	// included when nothing was authored.
	UserNotes string

	body string
}

// ParseDocument extracts the header and user sections from document text.
// A document without a frontmatter block is treated as fully manual.
func ParseDocument(content string) *PersistedDocument {
	doc := &PersistedDocument{}

	fields, body := splitFrontmatter(content)
	doc.body = body
	if fields == nil {
		doc.Manual = true
		return doc
	}

	doc.Title = fields["title"]
	doc.Author = fields["author"]
	doc.Hash = fields["highlights-hash"]
	if v, ok := fields["highlights"]; ok {
		doc.Highlights, _ = strconv.Atoi(v)
	}
	if v, ok := fields["progress"]; ok {
		p, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		if err == nil {
			doc.Progress = p
			doc.HasProgress = true
		}
	}
	doc.LastRead = fields["last-read"]
	doc.Manual = fields["manual"] == "true"
	doc.CustomMetadata = fields["custom-metadata"] == "true"
	doc.UserNotes = sectionContent(body, render.UserNotesHeading)

	return doc
}

// HasUserContent reports whether the user section holds anything beyond
// the placeholder.
func (d *PersistedDocument) HasUserContent() bool {
	notes := strings.TrimSpace(d.UserNotes)
	return notes != "" && notes != render.UserNotesPlaceholder
}

// BodyWithoutHighlights returns the document body with the generated
// highlights block removed, for manual documents whose authored content
// must be carried over verbatim.
func (d *PersistedDocument) BodyWithoutHighlights() string {
	if idx := headingIndex(d.body, render.HighlightsHeading); idx >= 0 {
		return strings.TrimRight(d.body[:idx], "\n") + "\n"
	}
	return d.body
}

// splitFrontmatter separates the frontmatter key/value block from the
// body. It returns a nil map when no well-formed block opens the document.
func splitFrontmatter(content string) (map[string]string, string) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontmatterDelimiter {
		return nil, content
	}

	fields := make(map[string]string)
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == frontmatterDelimiter {
			return fields, strings.Join(lines[i+1:], "\n")
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}

	// unterminated block: not frontmatter at all
	return nil, content
}

// sectionContent returns the text between a level-two heading and the next
// one, or empty when the heading is absent.
func sectionContent(body, heading string) string {
	start := headingIndex(body, heading)
	if start < 0 {
		return ""
	}
	rest := body[start+len(heading):]
	if idx := strings.Index(rest, "\n## "); idx >= 0 {
		rest = rest[:idx]
	}
	return strings.TrimSpace(rest)
}

// headingIndex locates a level-two heading at the start of a line.
func headingIndex(body, heading string) int {
	if strings.HasPrefix(body, heading) {
		return 0
	}
	if idx := strings.Index(body, "\n"+heading); idx >= 0 {
		return idx + 1
	}
	return -1
}

// HeaderField is one frontmatter key/value pair for surgical header
// updates.
type HeaderField struct {
	Key   string
	Value string
}

// headerBlock returns the frontmatter block of a document, delimiters
// included, or false when the document has none.
func headerBlock(content string) (string, bool) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontmatterDelimiter {
		return "", false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontmatterDelimiter {
			return strings.Join(lines[:i+1], "\n") + "\n", true
		}
	}
	return "", false
}

// UpdateHeaderFields rewrites selected fields of a frontmatter block in
// place, appending any that are missing before the closing delimiter. All
// other lines are kept byte-for-byte, which is what lets custom-metadata
// documents keep their own header values.
func UpdateHeaderFields(header string, fields []HeaderField) string {
	values := make(map[string]string, len(fields))
	order := make([]string, 0, len(fields))
	for _, f := range fields {
		values[f.Key] = f.Value
		order = append(order, f.Key)
	}
	seen := make(map[string]bool, len(fields))

	lines := strings.Split(strings.TrimRight(header, "\n"), "\n")
	var out []string
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if i > 0 && trimmed == frontmatterDelimiter {
			for _, key := range order {
				if !seen[key] {
					out = append(out, key+": "+values[key])
				}
			}
			out = append(out, line)
			continue
		}

		if key, _, found := strings.Cut(trimmed, ":"); found {
			key = strings.TrimSpace(key)
			if value, owned := values[key]; owned {
				out = append(out, key+": "+value)
				seen[key] = true
				continue
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n") + "\n"
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
	}
	return s
}
