package moonreader

import (
	"regexp"
	"strconv"
	"strings"
)

// positionPattern matches the whole of a trimmed position file:
// timestamp*chapter@marker#position:percentage%
var positionPattern = regexp.MustCompile(`^(\d+)\*(\d+)@(\d+)#(\d+):(\d+(?:\.\d+)?)%$`)

// Position is the reading-position snapshot stored in one position file.
type Position struct {
	TimeMs   int64
	Chapter  int
	Progress float64 // 0-100, precision as given
}

// DecodePosition parses one position file. Content not matching the exact
// five-field grammar yields no result; the caller treats that as "no
// progress data" rather than an error.
func DecodePosition(data []byte) (Position, bool) {
	matches := positionPattern.FindStringSubmatch(strings.TrimSpace(string(data)))
	if matches == nil {
		return Position{}, false
	}

	timestamp, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return Position{}, false
	}
	chapter, err := strconv.Atoi(matches[2])
	if err != nil {
		return Position{}, false
	}
	progress, err := strconv.ParseFloat(matches[5], 64)
	if err != nil {
		return Position{}, false
	}

	return Position{
		TimeMs:   timestamp,
		Chapter:  chapter,
		Progress: progress,
	}, true
}
