package settings

import (
	"time"

	"go.uber.org/zap"

	"github.com/deepforge/settings/watcher"
)

// Option configures a Settings store.
type Option func(*Settings)

// DocumentFactory constructs a backing document for a path. Used to
// plug in alternative document types; the default builds a JSON
// document.
type DocumentFactory func(path string, autowrite bool) (Document, error)

// WithPath sets the backing file path. Required unless a custom
// document is supplied with WithDocument.
func WithPath(path string) Option {
	return func(s *Settings) {
		s.path = path
	}
}

// WithAutowrite controls whether every mutation is persisted
// immediately. Default: true.
func WithAutowrite(on bool) Option {
	return func(s *Settings) {
		s.autowrite = on
	}
}

// WithReadonly rejects sets that would overwrite existing keys.
// Default: false.
func WithReadonly(on bool) Option {
	return func(s *Settings) {
		s.readonly = on
	}
}

// WithOnChange sets a callback invoked after each successful reload
// triggered by an external file change.
func WithOnChange(fn func()) Option {
	return func(s *Settings) {
		s.onChange = fn
	}
}

// WithDocument supplies a custom backing document. File handling is
// delegated entirely to the document; WithPath is then only needed if
// external changes should still be watched.
func WithDocument(doc Document) Option {
	return func(s *Settings) {
		s.doc = doc
	}
}

// WithDocumentFactory sets the constructor used to build the backing
// document from the configured path.
func WithDocumentFactory(factory DocumentFactory) Option {
	return func(s *Settings) {
		s.docFactory = factory
	}
}

// WithBackend selects the change-watcher backend. Default:
// watcher.BackendAuto (fsnotify, falling back to polling).
func WithBackend(backend watcher.Backend) Option {
	return func(s *Settings) {
		s.backend = backend
	}
}

// WithWatcher enables or disables external-change watching entirely.
// Default: enabled when a path is configured.
func WithWatcher(enable bool) Option {
	return func(s *Settings) {
		s.enableWatcher = enable
	}
}

// WithRearmDelay sets the cool-down before the watch re-arms after a
// reload, coalescing bursts of filesystem events. Default: 1s.
func WithRearmDelay(d time.Duration) Option {
	return func(s *Settings) {
		if d > 0 {
			s.rearmDelay = d
		}
	}
}

// WithPollInterval sets the polling interval used by the poll
// backend.
func WithPollInterval(d time.Duration) Option {
	return func(s *Settings) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithDebounce coalesces rapid filesystem events within the given
// window before they reach the store.
func WithDebounce(d time.Duration) Option {
	return func(s *Settings) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// WithLogger sets the diagnostic logger. Default: zap.NewNop().
func WithLogger(log *zap.Logger) Option {
	return func(s *Settings) {
		if log != nil {
			s.log = log
		}
	}
}
