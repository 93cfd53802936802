package utils

import (
	"regexp"
	"strings"
)

var (
	// Characters invalid in filenames on most filesystems
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	// Whitespace characters to normalize
	whitespaceChars = regexp.MustCompile(`[\r\n\t]`)
	// Multiple spaces to collapse
	multipleSpaces = regexp.MustCompile(`\s+`)
	// Trailing parenthetical, e.g. the subtitle in "We Are Legion (We Are Bob)"
	trailingParenthetical = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
)

// SanitizeFilename sanitizes a book title for use as a vault filename.
// It removes or replaces characters that are invalid in filenames or
// problematic in Obsidian (slashes, colons, quotes, hashtags, brackets, etc.)
func SanitizeFilename(filename string) string {
	filename = invalidFilenameChars.ReplaceAllString(filename, "")
	filename = whitespaceChars.ReplaceAllString(filename, " ")
	filename = multipleSpaces.ReplaceAllString(filename, " ")
	filename = strings.TrimSpace(filename)

	// Obsidian-specific sanitization
	filename = strings.ReplaceAll(filename, "#", "")
	filename = strings.ReplaceAll(filename, "[", "(")
	filename = strings.ReplaceAll(filename, "]", ")")

	// Limit length (most filesystems support 255, but leave room for extension)
	if len(filename) > 200 {
		filename = strings.TrimSpace(filename[:200])
	}

	if filename == "" {
		filename = "Untitled"
	}

	return filename
}

// KnownBookExtensions contains file extensions commonly used for e-books
var KnownBookExtensions = []string{
	".fb2.zip",
	".fb2",
	".epub",
	".pdf",
	".txt",
	".tar.gz",
	".docx",
	".doc",
	".mobi",
	".azw3",
	".azw",
	".djvu",
	".html",
	".zip",
}

// StripBookExtensions removes known e-book extensions from the end of a
// filename, repeatedly, so "book.fb2.zip" reduces to "book".
func StripBookExtensions(name string) string {
	for {
		stripped := name
		for _, ext := range KnownBookExtensions {
			if strings.HasSuffix(strings.ToLower(stripped), ext) {
				stripped = stripped[:len(stripped)-len(ext)]
			}
		}
		if stripped == name {
			return name
		}
		name = stripped
	}
}

// TitleAuthorFromFilename splits a cache filename following MoonReader's
// "Title - Author.extension" convention. The author part is empty when the
// filename carries no " - " separator. Underscores are treated as word
// separators only when the derived title contains no spaces at all; this is
// a legacy-filename heuristic and must not be generalized.
func TitleAuthorFromFilename(name string) (title, author string) {
	name = StripBookExtensions(strings.TrimSpace(name))

	if idx := strings.LastIndex(name, " - "); idx > 0 {
		title = strings.TrimSpace(name[:idx])
		author = strings.TrimSpace(name[idx+3:])
	} else {
		title = strings.TrimSpace(name)
	}

	if !strings.Contains(title, " ") {
		title = strings.ReplaceAll(title, "_", " ")
	}

	return title, author
}

// NormalizeTitle produces the identity form of a book title: known e-book
// extensions removed and whitespace collapsed. Callers compare the result
// case-insensitively.
func NormalizeTitle(title string) string {
	title = StripBookExtensions(strings.TrimSpace(title))
	title = multipleSpaces.ReplaceAllString(title, " ")
	return strings.TrimSpace(title)
}

// MatchKey produces the looser form used to re-identify a document across
// title drift: the lowercased identity form with any trailing parenthetical
// subtitle removed, so "We Are Legion (We Are Bob)" keys the same as
// "We Are Legion".
func MatchKey(title string) string {
	key := strings.ToLower(NormalizeTitle(title))
	if stripped := strings.TrimSpace(trailingParenthetical.ReplaceAllString(key, "")); stripped != "" {
		key = stripped
	}
	return key
}
