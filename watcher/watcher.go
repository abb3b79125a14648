// Package watcher provides single-file change watching for live
// configuration reload.
//
// Two interchangeable backends are available: an fsnotify-based
// watcher and a modification-time polling watcher. The fsnotify
// backend is preferred; the polling backend serves as a fallback on
// platforms or filesystems where inotify-style watching is
// unavailable.
package watcher

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("path is already being watched")
	ErrNotWatching     = errors.New("path is not being watched")
	ErrPathNotExist    = errors.New("path does not exist")
)

// Op represents the type of file operation.
type Op int

const (
	// OpWrite indicates the file was modified.
	OpWrite Op = iota

	// OpCreate indicates the file was created.
	OpCreate

	// OpRemove indicates the file was deleted.
	OpRemove

	// OpRename indicates the file was moved away.
	OpRename
)

// String returns the operation name.
func (op Op) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event represents a change to a watched file.
type Event struct {
	// Path is the absolute path of the watched file.
	Path string

	// Op is the operation that occurred.
	Op Op

	// Time is when the event was observed.
	Time time.Time
}

// Handler is called when a watched file changes.
type Handler func(event Event)

// ErrorHandler is called when the watcher encounters an error.
type ErrorHandler func(err error)

// Watcher monitors individual files for external changes.
//
// Watch requires the file to exist; callers watching a file that may
// appear later should retry after creating it. Handlers run on the
// watcher's own goroutine.
type Watcher interface {
	// Watch starts watching a file. Returns ErrPathNotExist if the
	// file does not exist and ErrAlreadyWatching if it is already
	// being watched.
	Watch(path string) error

	// Unwatch stops watching a file.
	Unwatch(path string) error

	// OnChange registers a handler for change events.
	OnChange(handler Handler)

	// OnError registers a handler for watcher errors.
	OnError(handler ErrorHandler)

	// Start begins event delivery.
	Start()

	// Close stops the watcher and releases resources.
	Close() error
}

// Backend selects a watcher implementation.
type Backend int

const (
	// BackendAuto tries fsnotify first and falls back to polling.
	BackendAuto Backend = iota

	// BackendFSNotify uses the fsnotify inotify/kqueue watcher.
	BackendFSNotify

	// BackendPoll uses modification-time polling.
	BackendPoll
)

// String returns the backend name.
func (b Backend) String() string {
	switch b {
	case BackendFSNotify:
		return "fsnotify"
	case BackendPoll:
		return "poll"
	default:
		return "auto"
	}
}

// Config holds watcher configuration.
type Config struct {
	// Interval is the polling interval for the poll backend.
	// Default: 500ms.
	Interval time.Duration

	// Debounce coalesces rapid events on the same file into one.
	// Zero disables debouncing.
	Debounce time.Duration

	// Logger receives diagnostic output. Defaults to a nop logger.
	Logger *zap.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 500 * time.Millisecond,
		Logger:   zap.NewNop(),
	}
}

// Option configures a watcher.
type Option func(*Config)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Interval = d
		}
	}
}

// WithDebounce enables event debouncing with the given window.
func WithDebounce(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.Debounce = d
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Config) {
		if log != nil {
			c.Logger = log
		}
	}
}

// New creates a watcher for the given backend. With BackendAuto, an
// fsnotify construction failure silently degrades to the polling
// backend. The configured debounce window, if any, is applied as a
// wrapper around the selected backend.
func New(backend Backend, opts ...Option) (Watcher, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		w   Watcher
		err error
	)
	switch backend {
	case BackendFSNotify:
		w, err = NewFSNotify(opts...)
	case BackendPoll:
		w = NewPoll(opts...)
	default:
		w, err = NewFSNotify(opts...)
		if err != nil {
			cfg.Logger.Warn("fsnotify backend unavailable, falling back to polling",
				zap.Error(err))
			w, err = NewPoll(opts...), nil
		}
	}
	if err != nil {
		return nil, err
	}

	if cfg.Debounce > 0 {
		w = NewDebounced(w, cfg.Debounce)
	}
	return w, nil
}
