// Package loader reads configuration sources into generic maps.
//
// File loaders are chosen by extension: TOML, YAML and JSON (with comments
// and trailing commas allowed). The environment loader maps prefixed
// variables onto dotted setting paths. Maps from several loaders are
// combined with Merge, later sources winning.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file extensions without a loader.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Loader reads configuration into a map.
type Loader interface {
	// Load returns the configuration map. A missing source yields nil, nil.
	Load() (map[string]any, error)
}

// parseFunc decodes raw file contents.
type parseFunc func(data []byte) (map[string]any, error)

// FileLoader loads one configuration file.
type FileLoader struct {
	path  string
	parse parseFunc
}

// ForFile returns the loader matching the extension of path.
func ForFile(path string) (*FileLoader, error) {
	var parse parseFunc
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		parse = parseTOML
	case ".yaml", ".yml":
		parse = parseYAML
	case ".json", ".jsonc", ".hujson":
		parse = parseJSON
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	return &FileLoader{path: path, parse: parse}, nil
}

// Path returns the file path.
func (l *FileLoader) Path() string {
	return l.path
}

// Load reads and parses the file.
func (l *FileLoader) Load() (map[string]any, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", l.path, err)
	}
	return l.Parse(data)
}

// Parse decodes data in the loader's format.
func (l *FileLoader) Parse(data []byte) (map[string]any, error) {
	m, err := l.parse(data)
	if err != nil {
		return nil, &ParseError{Path: l.path, Message: err.Error(), Err: err}
	}
	if m == nil {
		m = make(map[string]any)
	}
	return m, nil
}

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	// Path is the file path that failed to parse.
	Path string
	// Message describes the parse error.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Merge deep-merges src into dst. Nested maps are merged; any other value
// in src replaces the one in dst.
func Merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = Merge(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
	return dst
}
