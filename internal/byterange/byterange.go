// Package byterange parses single-range HTTP Range headers.
//
// Only the "bytes" unit and a single range are accepted. Multipart
// byteranges responses are not produced, so any list of ranges is rejected
// and the caller answers 416.
package byterange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalid matches every parse failure.
	ErrInvalid = errors.New("invalid range")

	ErrMalformed      = fmt.Errorf("%w: malformed", ErrInvalid)
	ErrMultipleRanges = fmt.Errorf("%w: multiple ranges", ErrInvalid)
	ErrUnsatisfiable  = fmt.Errorf("%w: unsatisfiable", ErrInvalid)
)

const unitPrefix = "bytes="

// Range is an inclusive byte interval [Start, End].
type Range struct {
	Start int64
	End   int64
}

// Full returns the range covering a whole resource of the given size. For an
// empty resource Length is 0.
func Full(size int64) Range {
	return Range{Start: 0, End: size - 1}
}

// Length is the number of bytes in the range.
func (r Range) Length() int64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range value for a 206 response.
func (r Range) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// Unsatisfied formats the Content-Range value for a 416 response.
func Unsatisfied(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// Parse interprets header against a resource of size bytes. Accepted forms
// are "bytes=A-B", "bytes=A-" and "bytes=-N". An end past the resource is
// clamped to size-1. The caller handles an absent header.
func Parse(header string, size int64) (Range, error) {
	if !strings.HasPrefix(header, unitPrefix) {
		return Range{}, ErrMalformed
	}
	set := strings.TrimSpace(header[len(unitPrefix):])
	if strings.Contains(set, ",") {
		return Range{}, ErrMultipleRanges
	}
	dash := strings.IndexByte(set, '-')
	if dash < 0 {
		return Range{}, ErrMalformed
	}
	first := strings.TrimSpace(set[:dash])
	last := strings.TrimSpace(set[dash+1:])

	if first == "" {
		// Suffix form: the final N bytes.
		n, err := parseNumber(last)
		if err != nil {
			return Range{}, err
		}
		if n <= 0 || size <= 0 {
			return Range{}, ErrUnsatisfiable
		}
		if n > size {
			n = size
		}
		return Range{Start: size - n, End: size - 1}, nil
	}

	start, err := parseNumber(first)
	if err != nil {
		return Range{}, err
	}
	end := size - 1
	if last != "" {
		end, err = parseNumber(last)
		if err != nil {
			return Range{}, err
		}
		if end < start {
			return Range{}, ErrUnsatisfiable
		}
	}
	if start >= size {
		return Range{}, ErrUnsatisfiable
	}
	if end > size-1 {
		end = size - 1
	}
	return Range{Start: start, End: end}, nil
}

// parseNumber accepts only ASCII digits, so signs and blanks are malformed.
func parseNumber(s string) (int64, error) {
	if s == "" {
		return 0, ErrMalformed
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrMalformed
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrMalformed
	}
	return n, nil
}
