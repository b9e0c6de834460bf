package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// DateLayout is the layout of per-day session directory names.
const DateLayout = "2006-01-02"

// FilePrefix is prepended to the sequence number of every output file.
const FilePrefix = "output_"

// ErrNoSequence is returned when a filename in a session directory does not
// end in a numeric sequence before its extension.
var ErrNoSequence = errors.New("filename has no numeric sequence suffix")

// OutputName is a parsed output filename.
type OutputName struct {
	Date  string // session directory the file lives in
	Stem  string // text preceding the sequence digits, e.g. "output_"
	Count int
	Ext   string // without the leading dot
}

// FileName renders the canonical output filename for a sequence number.
func FileName(count int, ext string) string {
	if ext == "" {
		return fmt.Sprintf("%s%d", FilePrefix, count)
	}
	return fmt.Sprintf("%s%d.%s", FilePrefix, count, ext)
}

// ParseOutputName extracts the sequence number from a filename found in the
// directory for date. The digits immediately preceding the extension are the
// sequence; a name without them fails with ErrNoSequence.
func ParseOutputName(date, filename string) (OutputName, error) {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	i := len(base)
	for i > 0 && base[i-1] >= '0' && base[i-1] <= '9' {
		i--
	}
	if i == len(base) {
		return OutputName{}, fmt.Errorf("%w: %s/%s", ErrNoSequence, date, filename)
	}

	count, err := strconv.Atoi(base[i:])
	if err != nil {
		return OutputName{}, fmt.Errorf("failed to parse sequence of %s/%s: %w", date, filename, err)
	}

	return OutputName{
		Date:  date,
		Stem:  base[:i],
		Count: count,
		Ext:   strings.TrimPrefix(ext, "."),
	}, nil
}
