// Package config provides vlist configuration: defaults, file loading with
// environment overrides, validation, and live reload.
//
// Settings are read in order of increasing precedence:
//
//  1. Built-in defaults (Default)
//  2. The config file (TOML, YAML or JSON with comments)
//  3. VLIST_* environment variables
//
// Only the window debounce delay, view prefetch and log level take effect
// on live reload; other settings are read once at startup.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/vlist/internal/rangecache"
	"github.com/dshills/vlist/internal/window"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "VLIST_"

// Config is the complete vlist configuration.
type Config struct {
	Window WindowConfig `json:"window"`
	Source SourceConfig `json:"source"`
	View   ViewConfig   `json:"view"`
	Log    LogConfig    `json:"log"`

	// Categories maps category ids found in records to display names.
	Categories map[string]string `json:"categories"`
}

// WindowConfig configures window fetching.
type WindowConfig struct {
	// Size is the number of items per window.
	Size int `json:"size"`

	// DebounceDelay is the quiet period before a re-pass.
	DebounceDelay Duration `json:"debounce_delay"`
}

// SourceConfig configures the record source.
type SourceConfig struct {
	// Path is a .json document or a .lua script.
	Path string `json:"path"`

	// ArrayPath is the gjson path of the record array in a JSON document.
	ArrayPath string `json:"array_path"`

	// TextField is the object member used as record text.
	TextField string `json:"text_field"`

	// CategoryField is the record field resolved through Categories.
	CategoryField string `json:"category_field"`

	// RateLimit caps window fetches per second; zero disables it.
	RateLimit float64 `json:"rate_limit"`

	// Burst is the rate limiter burst size.
	Burst int `json:"burst"`
}

// ViewConfig configures the terminal list.
type ViewConfig struct {
	// Prefetch is the number of rows tracked beyond each edge of the screen.
	Prefetch int `json:"prefetch"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level"`

	// Format is text or json.
	Format string `json:"format"`

	// File receives log output. Empty discards logs in the terminal UI.
	File string `json:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Window: WindowConfig{
			Size:          rangecache.DefaultWindowSize,
			DebounceDelay: Duration(window.DefaultDebounceDelay),
		},
		Source: SourceConfig{
			TextField: "text",
			Burst:     1,
		},
		View: ViewConfig{
			Prefetch: 50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Categories: map[string]string{},
	}
}

// Validate checks every setting and returns the first problem found.
func (c Config) Validate() error {
	switch {
	case c.Window.Size <= 0:
		return &ValidationError{Path: "window.size", Value: c.Window.Size, Message: "must be positive"}
	case c.Window.DebounceDelay <= 0:
		return &ValidationError{Path: "window.debounce_delay", Value: c.Window.DebounceDelay.String(), Message: "must be positive"}
	case c.Source.RateLimit < 0:
		return &ValidationError{Path: "source.rate_limit", Value: c.Source.RateLimit, Message: "must not be negative"}
	case c.Source.Burst < 1:
		return &ValidationError{Path: "source.burst", Value: c.Source.Burst, Message: "must be at least 1"}
	case c.View.Prefetch < 0:
		return &ValidationError{Path: "view.prefetch", Value: c.View.Prefetch, Message: "must not be negative"}
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return &ValidationError{Path: "log.level", Value: c.Log.Level, Message: err.Error()}
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return &ValidationError{Path: "log.format", Value: c.Log.Format, Message: "must be text or json"}
	}
	return nil
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Duration is a time.Duration read from strings such as "50ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// String returns the duration in time.Duration notation.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
