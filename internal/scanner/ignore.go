package scanner

import (
	"path"
	"strings"
)

// IgnorePattern is a single gitignore-style pattern. Paths are matched
// relative to the directory holding the ignore file.
type IgnorePattern struct {
	pattern     string
	isNegation  bool // starts with !
	isDirectory bool // ends with /, matches directories only
	isAnchored  bool // contains a slash other than a trailing one
	segments    []string
}

// ParseIgnorePattern parses a gitignore-style pattern string.
func ParseIgnorePattern(pattern string) IgnorePattern {
	p := IgnorePattern{pattern: pattern}

	if strings.HasPrefix(pattern, "!") {
		p.isNegation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		p.isDirectory = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.Contains(pattern, "/") {
		p.isAnchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}

	p.segments = strings.Split(pattern, "/")
	return p
}

// Match reports whether rel, a slash-separated path, matches the pattern.
func (p IgnorePattern) Match(rel string, isDir bool) bool {
	if p.isDirectory && !isDir {
		return false
	}
	parts := strings.Split(rel, "/")
	if p.isAnchored {
		return matchSegments(p.segments, parts)
	}
	// An unanchored pattern matches the last path element only.
	return matchSegments(p.segments, parts[len(parts)-1:])
}

// IsNegation returns true if this pattern re-includes what it matches.
func (p IgnorePattern) IsNegation() bool {
	return p.isNegation
}

// String returns the pattern as written.
func (p IgnorePattern) String() string {
	return p.pattern
}

func matchSegments(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchSegments(pattern[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], parts[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], parts[1:])
}
