// Package scanner walks a directory tree for Go source files. It honours
// .gdomignore files with gitignore-style patterns.
package scanner

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultIgnoreFileName is read from every directory visited.
const DefaultIgnoreFileName = ".gdomignore"

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path     string // Relative slash-separated path from root
	FullPath string
	Size     int64
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip dot files, dot directories and directories starting with "_"
	SkipTests       bool     // Skip _test.go files
	DefaultExcludes []string // Directory names never entered
	IgnoreFileName  string
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:      true,
		SkipTests:       false,
		IgnoreFileName:  DefaultIgnoreFileName,
		DefaultExcludes: []string{"vendor", "testdata", "node_modules"},
	}
}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = DefaultIgnoreFileName
	}
	return &Scanner{opts: opts}
}

// Scan returns the Go files under root sorted by path. Ignore files apply
// to their own directory and everything below it.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	patterns := map[string][]IgnorePattern{}
	var files []FileInfo

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && (s.opts.SkipHidden && (isHidden(d.Name()) || strings.HasPrefix(d.Name(), "_")) || s.isDefaultExcluded(d.Name()) || s.ignored(rel, true, patterns)) {
				return filepath.SkipDir
			}
			own, err := s.loadIgnorePatterns(path)
			if err != nil {
				return fmt.Errorf("loading ignore patterns: %w", err)
			}
			patterns[rel] = own
			return nil
		}

		if !d.Type().IsRegular() || filepath.Ext(rel) != ".go" {
			return nil
		}
		if s.opts.SkipHidden && isHidden(d.Name()) {
			return nil
		}
		if s.opts.SkipTests && strings.HasSuffix(rel, "_test.go") {
			return nil
		}
		if s.ignored(rel, false, patterns) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{Path: rel, FullPath: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if name == exclude {
			return true
		}
	}
	return false
}

// ignored applies the patterns of every ancestor directory of rel, outermost
// first, so a nested negation can re-include a path.
func (s *Scanner) ignored(rel string, isDir bool, patterns map[string][]IgnorePattern) bool {
	ignored := false
	dir := "."
	rest := rel
	for {
		for _, p := range patterns[dir] {
			if p.Match(rest, isDir) {
				ignored = !p.IsNegation()
			}
		}
		i := strings.IndexByte(rest, '/')
		if i < 0 {
			return ignored
		}
		if dir == "." {
			dir = rest[:i]
		} else {
			dir += "/" + rest[:i]
		}
		rest = rest[i+1:]
	}
}

func (s *Scanner) loadIgnorePatterns(dir string) ([]IgnorePattern, error) {
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var patterns []IgnorePattern
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}
	return patterns, sc.Err()
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
