// Package settings is a hierarchical, file-backed configuration store
// with dotted-path access, live external-change detection, and
// optional read-only enforcement.
//
// A single ordered key/value document backs the store. Values are
// addressed with dotted paths, and nested levels materialize lazily:
// reading an unset path yields an empty nested container rather than
// an error, so existence must be checked with Has.
//
// # Basic Usage
//
//	store, err := settings.New(settings.WithPath("app.json"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	_ = store.Set("db.host", "localhost")
//	_ = store.Set("db.port", 5432)
//
//	host, _ := store.GetString("db.host")
//	db, _ := store.Get("db") // node containing host and port
//
// # Live Reload
//
// When a path is configured, the store watches the backing file and
// reloads on external modification, invoking the WithOnChange
// callback and notifying subscribers. The watch is suppressed around
// every internal operation so an in-flight Set is never interrupted
// by a concurrent reload, and re-arms after a short cool-down to
// coalesce editor save bursts. Moving or deleting the watched file is
// terminal for the watch and is reported on Errors().
//
// # Sub-packages
//
//   - document: ordered JSON and YAML documents bound to a file
//   - watcher: fsnotify and polling change-watcher backends
//   - notify: change notification and observer pattern
package settings
