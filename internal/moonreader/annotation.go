package moonreader

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mrlokans/moonsync/internal/entities"
	"github.com/mrlokans/moonsync/internal/utils"
)

const (
	blockSentinel = "#"
	zeroSentinel  = "0"
	lineBreakTag  = "<BR>"
)

// AnnotationFile is the decoded form of one annotation cache file: the
// highlights it contained plus the title/author pair derived from the
// filename, used as an identity fallback when no highlight carries an
// embedded title.
type AnnotationFile struct {
	FallbackTitle  string
	FallbackAuthor string
	Highlights     []entities.Highlight
}

// DecodeAnnotation decompresses and parses one annotation file. The name is
// used only for the fallback title/author. Any decompression or structural
// parse failure aborts the whole file; malformed numeric fields inside a
// block do not; they default to zero.
func DecodeAnnotation(name string, data []byte) (*AnnotationFile, error) {
	title, author := utils.TitleAuthorFromFilename(name)
	file := &AnnotationFile{
		FallbackTitle:  title,
		FallbackAuthor: author,
	}

	raw, err := inflate(data)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", name, err)
	}

	cur := newLineCursor(raw)

	// Everything before the first block sentinel is header/preamble.
	for {
		line, ok := cur.peek()
		if !ok {
			return file, nil
		}
		if strings.TrimSpace(line) == blockSentinel {
			break
		}
		cur.advance()
	}

	for !cur.done() {
		h, err := decodeBlock(cur)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if strings.TrimSpace(h.Text) != "" {
			file.Highlights = append(file.Highlights, h)
		}
		skipSentinelRun(cur)
	}

	return file, nil
}

// decodeBlock consumes one block starting at its "#" line: ten fixed scalar
// fields followed by the text payload.
func decodeBlock(cur *lineCursor) (entities.Highlight, error) {
	var h entities.Highlight

	sentinel, ok := cur.advance()
	if !ok || strings.TrimSpace(sentinel) != blockSentinel {
		return h, fmt.Errorf("expected block sentinel, got %q", sentinel)
	}

	fields, err := cur.take(10)
	if err != nil {
		return h, fmt.Errorf("truncated block: %w", err)
	}

	h.ID = parseInt64(fields[0])
	h.BookTitle = strings.TrimSpace(fields[1])
	h.FilePath = strings.TrimSpace(fields[2])
	// fields[3] is the lowercased path, unused
	h.Chapter = parseInt(fields[4])
	// fields[5] is an always-zero placeholder
	h.Position = parseInt(fields[6])
	h.Length = parseInt(fields[7])
	h.Color = parseInt(fields[8])
	h.TimeMs = parseInt64(fields[9])

	cur.skipBlank()

	h.Note, h.Text = decodePayload(cur)
	return h, nil
}

// decodePayload resolves the ambiguous text payload with a two-line
// lookahead: one non-sentinel line is the highlight text; two in a row mean
// note first, then text. A genuine two-line highlight without a note is
// indistinguishable from a note-plus-text pair; the format has no escape
// mechanism, so the heuristic is preserved as-is.
func decodePayload(cur *lineCursor) (note, text string) {
	line, ok := cur.peek()
	if !ok || strings.TrimSpace(line) == zeroSentinel {
		return "", ""
	}
	first, _ := cur.advance()

	if second, ok := cur.peek(); ok {
		trimmed := strings.TrimSpace(second)
		if trimmed != "" && trimmed != zeroSentinel {
			cur.advance()
			return cleanText(first), cleanText(second)
		}
	}

	return "", cleanText(first)
}

// skipSentinelRun consumes the run of trailing "0" and blank lines that
// separates one block's payload from the next block sentinel.
func skipSentinelRun(cur *lineCursor) {
	for {
		line, ok := cur.peek()
		if !ok {
			return
		}
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && trimmed != zeroSentinel {
			return
		}
		cur.advance()
	}
}

func cleanText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, lineBreakTag, "\n"))
}

func parseInt(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

func parseInt64(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// inflate decompresses an annotation payload. Files are zlib streams; raw
// deflate is accepted as a fallback for streams written without the zlib
// header.
func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err == nil {
		defer zr.Close()
		return io.ReadAll(zr)
	}

	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()
	out, ferr := io.ReadAll(fr)
	if ferr != nil {
		return nil, err
	}
	return out, nil
}

// lineCursor is a mutable cursor over the decompressed line array. The
// explicit peek/advance surface keeps the lookahead in decodePayload
// testable without index arithmetic.
type lineCursor struct {
	lines []string
	pos   int
}

func newLineCursor(data []byte) *lineCursor {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return &lineCursor{lines: strings.Split(text, "\n")}
}

func (c *lineCursor) done() bool {
	return c.pos >= len(c.lines)
}

func (c *lineCursor) peek() (string, bool) {
	if c.done() {
		return "", false
	}
	return c.lines[c.pos], true
}

func (c *lineCursor) advance() (string, bool) {
	if c.done() {
		return "", false
	}
	line := c.lines[c.pos]
	c.pos++
	return line, true
}

// take consumes exactly n lines, failing when the stream runs out early.
func (c *lineCursor) take(n int) ([]string, error) {
	if c.pos+n > len(c.lines) {
		return nil, fmt.Errorf("need %d lines, have %d", n, len(c.lines)-c.pos)
	}
	lines := c.lines[c.pos : c.pos+n]
	c.pos += n
	return lines, nil
}

func (c *lineCursor) skipBlank() {
	for {
		line, ok := c.peek()
		if !ok || strings.TrimSpace(line) != "" {
			return
		}
		c.advance()
	}
}
