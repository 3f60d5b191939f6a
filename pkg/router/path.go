package router

import (
	"errors"
	"net/url"
	"strings"
)

// Path errors.
var (
	ErrInvalidPath          = errors.New("router: invalid path")
	ErrBackslashInPath      = errors.New("router: path contains backslash")
	ErrNullByteInPath       = errors.New("router: path contains null byte")
	ErrInvalidPercentEscape = errors.New("router: invalid percent escape sequence")
	ErrPathEscapesRoot      = errors.New("router: path escapes root via ..")
)

// CleanResult is the outcome of CleanPath.
type CleanResult struct {
	// Path is the canonical path without query.
	Path string

	// Query is the query string without the leading '?'.
	Query string

	// Changed reports whether Path differs from the input path.
	Changed bool
}

// String joins path and query back together.
func (r CleanResult) String() string {
	if r.Query == "" {
		return r.Path
	}
	return r.Path + "?" + r.Query
}

// CleanPath normalises a request path: it collapses repeated slashes,
// resolves "." and ".." segments and strips a trailing slash. Paths with a
// backslash, a NUL byte, a malformed percent escape or a ".." above the root
// are rejected. The query, if any, is kept verbatim.
func CleanPath(input string) (CleanResult, error) {
	if input == "" {
		return CleanResult{Path: "/", Changed: true}, nil
	}

	path, query, _ := strings.Cut(input, "?")

	if strings.Contains(path, "\\") {
		return CleanResult{}, ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return CleanResult{}, ErrNullByteInPath
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return CleanResult{}, err
		}
	}

	original := path
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segments) == 0 {
				return CleanResult{}, ErrPathEscapesRoot
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}
	path = "/" + strings.Join(segments, "/")

	return CleanResult{Path: path, Query: query, Changed: path != original}, nil
}

// ValidateNavPath cleans a path an application wants to navigate to.
// Absolute URLs are rejected so navigation never leaves the site.
func ValidateNavPath(path string) (string, error) {
	if strings.HasPrefix(path, "http://") ||
		strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "//") ||
		!strings.HasPrefix(path, "/") {
		return "", ErrInvalidPath
	}
	res, err := CleanPath(path)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Params holds the named segments captured by Match.
type Params map[string]string

// Match matches a cleaned path against pattern. Pattern segments starting
// with ':' capture one decoded segment, a final segment starting with '*'
// captures the rest of the path. An encoded slash is only accepted inside a
// catch-all.
func Match(pattern, path string) (Params, bool) {
	path, _, _ = strings.Cut(path, "?")
	pat := splitPath(pattern)
	segs := splitPath(path)
	params := Params{}

	for i, p := range pat {
		if strings.HasPrefix(p, "*") {
			rest, err := url.PathUnescape(strings.Join(segs[min(i, len(segs)):], "/"))
			if err != nil {
				return nil, false
			}
			params[p[1:]] = rest
			return params, true
		}
		if i >= len(segs) {
			return nil, false
		}
		seg, err := url.PathUnescape(segs[i])
		if err != nil {
			return nil, false
		}
		if strings.HasPrefix(p, ":") {
			if strings.Contains(seg, "/") {
				return nil, false
			}
			params[p[1:]] = seg
			continue
		}
		if p != seg {
			return nil, false
		}
	}
	if len(segs) != len(pat) {
		return nil, false
	}
	return params, true
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
