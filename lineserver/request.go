package lineserver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var (
	// ErrNoRequestLine: the header block ended (or the peer closed) before
	// a request line arrived.
	ErrNoRequestLine = errors.New("lineserver: no request line")
	ErrInvalidUTF8   = errors.New("lineserver: request line is not valid UTF-8")
	ErrTooManyLines  = errors.New("lineserver: too many header lines")
	ErrLineTooLong   = errors.New("lineserver: line too long")
)

// Limits bound how much a single request may make the server read.
type Limits struct {
	MaxLines     int // lines before the blank line, including the request line
	MaxLineBytes int // bytes per line, excluding the terminator
}

// DefaultLimits allow 100 lines of 8 KiB each.
func DefaultLimits() Limits {
	return Limits{MaxLines: 100, MaxLineBytes: 8 << 10}
}

// ReadRequestLines collects lines up to, and excluding, the first empty
// line. Lines end in "\n" or "\r\n"; the terminator is stripped. EOF after
// at least one line ends the block; EOF before any line is ErrNoRequestLine.
// Zero limits mean no bound.
func ReadRequestLines(r *bufio.Reader, limits Limits) ([]string, error) {
	var lines []string
	for {
		line, err := readLine(r, limits.MaxLineBytes)
		if err != nil && !errors.Is(err, io.EOF) {
			return lines, err
		}
		atEOF := err != nil

		if line == "" {
			if atEOF && len(lines) == 0 {
				return nil, ErrNoRequestLine
			}
			return lines, nil
		}
		if !utf8.ValidString(line) {
			return lines, ErrInvalidUTF8
		}
		if limits.MaxLines > 0 && len(lines) == limits.MaxLines {
			return lines, fmt.Errorf("%w: more than %d", ErrTooManyLines, limits.MaxLines)
		}
		lines = append(lines, line)
		if atEOF {
			return lines, nil
		}
	}
}

// readLine returns one line without its terminator. A final line without
// "\n" is returned together with io.EOF. maxBytes bounds the line content;
// the terminator does not count.
func readLine(r *bufio.Reader, maxBytes int) (string, error) {
	var sb strings.Builder
	for {
		chunk, err := r.ReadSlice('\n')
		sb.Write(chunk)
		// stop buffering early; room is left for "\r\n"
		if maxBytes > 0 && sb.Len() > maxBytes+2 {
			return "", fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, maxBytes)
		}
		var eof bool
		switch {
		case err == nil:
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			eof = true
		default:
			return "", fmt.Errorf("lineserver: read: %w", err)
		}

		line := trimEOL(sb.String())
		if maxBytes > 0 && len(line) > maxBytes {
			return "", fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, maxBytes)
		}
		if eof {
			return line, io.EOF
		}
		return line, nil
	}
}

// trimEOL strips "\n" or "\r\n". A "\r" not followed by "\n" is content.
func trimEOL(s string) string {
	if t, ok := strings.CutSuffix(s, "\n"); ok {
		return strings.TrimSuffix(t, "\r")
	}
	return s
}
