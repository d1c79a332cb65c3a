// Package xcid parses xeno-canto catalogue identifiers.
//
// Accepted forms, tried in order after trimming surrounding whitespace:
//
//	928094
//	XC928094 (prefix is case-insensitive)
//	https://www.xeno-canto.org/928094/
//
// URLs may omit the scheme or the "www." host prefix.
package xcid

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Domain is the provider's web host without the "www." prefix
const Domain = "xeno-canto.org"

var (
	// ErrUnrecognized means the input matched none of the accepted forms
	ErrUnrecognized = errors.New("unrecognized catalogue identifier")

	// ErrOverflow means the number does not fit in 64 bits
	ErrOverflow = errors.New("catalogue number overflows 64 bits")
)

// ID is a canonical catalogue number
type ID uint64

// String renders the ID the way the provider cites it, e.g. "XC928094"
func (id ID) String() string {
	return "XC" + strconv.FormatUint(uint64(id), 10)
}

// ParseError reports an identifier that could not be parsed
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse normalizes free-form input into a catalogue ID
func Parse(input string) (ID, error) {
	s := strings.TrimSpace(input)

	if isDigits(s) {
		return parseNumber(input, s)
	}

	if len(s) > 2 && strings.EqualFold(s[:2], "xc") && isDigits(s[2:]) {
		return parseNumber(input, s[2:])
	}

	if segment, ok := urlSegment(s); ok {
		return parseNumber(input, segment)
	}

	return 0, &ParseError{Input: input, Err: ErrUnrecognized}
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(input string) ID {
	id, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return id
}

func parseNumber(input, digits string) (ID, error) {
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, &ParseError{Input: input, Err: ErrOverflow}
		}
		return 0, &ParseError{Input: input, Err: ErrUnrecognized}
	}
	if n == 0 {
		return 0, &ParseError{Input: input, Err: ErrUnrecognized}
	}
	return ID(n), nil
}

// urlSegment returns the trailing path segment of a provider URL
func urlSegment(s string) (string, bool) {
	raw := s
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if strings.Contains(s, "://") {
			return "", false
		}
		raw = "https://" + s
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host != Domain {
		return "", false
	}

	path := strings.TrimSuffix(u.Path, "/")
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", false
	}

	segment := path[idx+1:]
	if !isDigits(segment) {
		return "", false
	}
	return segment, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
