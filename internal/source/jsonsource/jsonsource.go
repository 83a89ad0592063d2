// Package jsonsource serves records from an array inside a JSON document.
//
// Only the requested window is materialized: FetchWindow walks the raw
// array with gjson and converts the elements in range. Object elements
// contribute their text field as the record text and every other scalar
// member as a field; scalar elements become the record text.
package jsonsource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/dshills/vlist/internal/source"
)

// DefaultTextField is the object member used as record text.
const DefaultTextField = "text"

// Errors returned by Source.
var (
	// ErrInvalidJSON is returned for documents that do not parse.
	ErrInvalidJSON = errors.New("invalid JSON document")

	// ErrNotArray is returned when the array path does not name an array.
	ErrNotArray = errors.New("path does not name a JSON array")
)

// Option configures a Source.
type Option func(*Source)

// WithArrayPath sets the gjson path of the record array. The default is
// the document root.
func WithArrayPath(path string) Option {
	return func(s *Source) {
		s.arrayPath = path
	}
}

// WithTextField sets the object member used as record text.
func WithTextField(field string) Option {
	return func(s *Source) {
		if field != "" {
			s.textField = field
		}
	}
}

// Source is a source.Fetcher and source.Counter over a JSON array.
type Source struct {
	mu    sync.RWMutex
	file  string
	array gjson.Result
	count int

	arrayPath string
	textField string
}

// New parses doc.
func New(doc []byte, opts ...Option) (*Source, error) {
	s := &Source{textField: DefaultTextField}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.parse(doc); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads and parses the document at path. Reload re-reads it.
func Load(path string, opts ...Option) (*Source, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read JSON source: %w", err)
	}
	s, err := New(doc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.file = path
	return s, nil
}

// Reload re-reads the file the source was loaded from. On error the
// previous document stays in place.
func (s *Source) Reload() error {
	if s.file == "" {
		return nil
	}
	doc, err := os.ReadFile(s.file)
	if err != nil {
		return fmt.Errorf("reload JSON source: %w", err)
	}
	return s.parse(doc)
}

// parse validates doc and swaps it in.
func (s *Source) parse(doc []byte) error {
	if !gjson.ValidBytes(doc) {
		return ErrInvalidJSON
	}

	var array gjson.Result
	if s.arrayPath == "" {
		array = gjson.ParseBytes(doc)
	} else {
		array = gjson.GetBytes(doc, s.arrayPath)
	}
	if !array.IsArray() {
		return fmt.Errorf("%w: %q", ErrNotArray, s.arrayPath)
	}
	count := int(array.Get("#").Int())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.array = array
	s.count = count
	return nil
}

// FetchWindow implements source.Fetcher.
func (s *Source) FetchWindow(ctx context.Context, window, size int) ([]source.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	array, count := s.array, s.count
	s.mu.RUnlock()

	start := window * size
	if window < 0 || size <= 0 || start >= count {
		return nil, fmt.Errorf("window %d: %w", window, source.ErrWindowOutOfRange)
	}

	out := make([]source.Record, 0, min(size, count-start))
	index := 0
	array.ForEach(func(_, value gjson.Result) bool {
		if index >= start {
			out = append(out, s.toRecord(index, value))
		}
		index++
		return len(out) < size
	})
	return out, nil
}

// Count implements source.Counter.
func (s *Source) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count, nil
}

func (s *Source) toRecord(index int, value gjson.Result) source.Record {
	rec := source.Record{Index: index}
	if !value.IsObject() {
		rec.Text = value.String()
		return rec
	}

	value.ForEach(func(key, member gjson.Result) bool {
		if member.IsObject() || member.IsArray() {
			return true
		}
		name := key.String()
		if name == s.textField {
			rec.Text = member.String()
			return true
		}
		if rec.Fields == nil {
			rec.Fields = make(map[string]string)
		}
		rec.Fields[name] = member.String()
		return true
	})
	return rec
}
