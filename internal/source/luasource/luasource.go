// Package luasource implements a record source defined by a Lua script.
//
// The script must define a global function fetch(window, size) returning an
// array of rows. A row is either a string (the record text) or a table whose
// "text" key is the record text and whose other scalar keys become fields.
// To report a failure the script returns nil followed by a message.
//
// The script may also define count() returning the total number of records;
// the source then implements source.Counter.
//
//	function count() return 1000 end
//	function fetch(window, size)
//	  local rows = {}
//	  for i = 0, size - 1 do
//	    local n = window * size + i
//	    if n >= 1000 then break end
//	    rows[#rows + 1] = { text = "row " .. n, parity = n % 2 }
//	  end
//	  return rows
//	end
//
// Scripts run with only the base, table, string and math libraries; file,
// OS and module loading functions are removed.
package luasource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/vlist/internal/source"
)

// Errors returned by Source.
var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("lua source is closed")

	// ErrNoFetch is returned when the script does not define fetch.
	ErrNoFetch = errors.New("lua script does not define fetch(window, size)")

	// ErrBadResult is returned when a script function returns a value of
	// the wrong type.
	ErrBadResult = errors.New("lua script returned an invalid result")
)

// Source is a source.Fetcher of records backed by a Lua script.
// gopher-lua states are single-threaded; calls are serialized by mu.
type Source struct {
	mu       sync.Mutex
	L        *lua.LState
	name     string
	hasCount bool
	closed   bool
}

// Load reads and compiles the script at path.
func Load(path string) (*Source, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lua script: %w", err)
	}
	return New(path, string(code))
}

// New compiles a script. name is used in error messages.
func New(name, code string) (*Source, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	if err := L.DoString(code); err != nil {
		L.Close()
		return nil, fmt.Errorf("load lua script %s: %w", name, err)
	}

	if L.GetGlobal("fetch").Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("%s: %w", name, ErrNoFetch)
	}

	return &Source{
		L:        L,
		name:     name,
		hasCount: L.GetGlobal("count").Type() == lua.LTFunction,
	}, nil
}

// openSafeLibraries opens the side-effect free standard libraries and
// removes the loaders that could reach the filesystem.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// FetchWindow implements source.Fetcher.
func (s *Source) FetchWindow(ctx context.Context, window, size int) ([]source.Record, error) {
	ret, err := s.call(ctx, "fetch", 2, lua.LNumber(window), lua.LNumber(size))
	if err != nil {
		return nil, fmt.Errorf("fetch window %d: %w", window, err)
	}
	if msg := ret[1]; msg != lua.LNil {
		return nil, fmt.Errorf("fetch window %d: %s", window, msg.String())
	}

	switch rows := ret[0].(type) {
	case *lua.LNilType:
		return []source.Record{}, nil
	case *lua.LTable:
		return toRecords(rows, window*size, size)
	default:
		return nil, fmt.Errorf("fetch window %d: %w: got %s, want table", window, ErrBadResult, rows.Type())
	}
}

// Count implements source.Counter when the script defines count().
func (s *Source) Count(ctx context.Context) (int, error) {
	if !s.hasCount {
		return 0, source.ErrNoCounter
	}
	ret, err := s.call(ctx, "count", 1)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	n, ok := ret[0].(lua.LNumber)
	if !ok || n < 0 {
		return 0, fmt.Errorf("count: %w: got %s", ErrBadResult, ret[0].String())
	}
	return int(n), nil
}

// HasCount reports whether the script defines count().
func (s *Source) HasCount() bool {
	return s.hasCount
}

// Close releases the Lua state. Close is idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.L.Close()
	return nil
}

// call invokes a global function and returns exactly nret values.
func (s *Source) call(ctx context.Context, fn string, nret int, args ...lua.LValue) (ret []lua.LValue, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	if err := s.L.CallByParam(lua.P{
		Fn:      s.L.GetGlobal(fn),
		NRet:    nret,
		Protect: true,
	}, args...); err != nil {
		return nil, err
	}

	ret = make([]lua.LValue, nret)
	for i := range nret {
		ret[i] = s.L.Get(-nret + i)
	}
	s.L.Pop(nret)
	return ret, nil
}

// toRecords converts a Lua array into records starting at index base.
// Rows beyond size are ignored.
func toRecords(rows *lua.LTable, base, size int) ([]source.Record, error) {
	n := min(rows.Len(), size)
	out := make([]source.Record, 0, n)

	for i := 1; i <= n; i++ {
		rec := source.Record{Index: base + i - 1}

		switch row := rows.RawGetInt(i).(type) {
		case lua.LString:
			rec.Text = string(row)
		case lua.LNumber, lua.LBool:
			rec.Text = row.String()
		case *lua.LTable:
			row.ForEach(func(k, v lua.LValue) {
				key, ok := k.(lua.LString)
				if !ok || v.Type() == lua.LTTable || v.Type() == lua.LTFunction {
					return
				}
				if key == "text" {
					rec.Text = v.String()
					return
				}
				if rec.Fields == nil {
					rec.Fields = make(map[string]string)
				}
				rec.Fields[string(key)] = v.String()
			})
		default:
			return nil, fmt.Errorf("%w: row %d is %s", ErrBadResult, i, row.Type())
		}

		out = append(out, rec)
	}
	return out, nil
}
