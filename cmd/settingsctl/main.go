// Settingsctl is a command-line utility for inspecting and editing
// hierarchical settings files.
//
// It operates on ordered JSON or YAML documents through dotted-path
// keys and can follow a file live, printing every change as it
// happens.
//
// Usage:
//
//	settingsctl [command] --file settings.json [flags]
//
// See 'settingsctl --help' for available commands.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deepforge/settings"
	"github.com/deepforge/settings/document"
	"github.com/deepforge/settings/internal/logging"
	"github.com/deepforge/settings/notify"
	"github.com/deepforge/settings/watcher"
)

var (
	flagFile     string
	flagFormat   string
	flagReadonly bool
	flagBackend  string
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "settingsctl",
	Short: "Hierarchical settings file utility",
	Long: `A command-line utility for hierarchical settings files.

Reads and writes ordered JSON or YAML documents through dotted-path
keys, e.g. 'settingsctl set db.host localhost --file app.json'.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagFile, "file", "f", "", "settings file path (required)")
	pf.StringVar(&flagFormat, "format", "json", "document format: json or yaml")
	pf.BoolVar(&flagReadonly, "readonly", false, "reject overwrites of existing keys")
	pf.StringVar(&flagBackend, "backend", "auto", "watch backend: auto, fsnotify or poll")
	_ = rootCmd.MarkPersistentFlagRequired("file")

	rootCmd.AddCommand(getCmd, setCmd, delCmd, keysCmd, watchCmd)
}

// openStore builds a store from the persistent flags. Watching is off
// for one-shot commands; the watch command turns it back on.
func openStore(withWatcher bool) (*settings.Settings, error) {
	opts := []settings.Option{
		settings.WithPath(flagFile),
		settings.WithReadonly(flagReadonly),
		settings.WithWatcher(withWatcher),
		settings.WithLogger(logging.L()),
	}

	switch flagFormat {
	case "json":
	case "yaml", "yml":
		opts = append(opts, settings.WithDocumentFactory(
			func(path string, autowrite bool) (settings.Document, error) {
				return document.NewYAML(path, autowrite)
			}))
	default:
		return nil, fmt.Errorf("unknown format %q", flagFormat)
	}

	switch flagBackend {
	case "auto":
	case "fsnotify":
		opts = append(opts, settings.WithBackend(watcher.BackendFSNotify))
	case "poll":
		opts = append(opts, settings.WithBackend(watcher.BackendPoll))
	default:
		return nil, fmt.Errorf("unknown backend %q", flagBackend)
	}

	return settings.New(opts...)
}

var getCmd = &cobra.Command{
	Use:   "get PATH",
	Short: "Print the value at a dotted path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(false)
		if err != nil {
			return err
		}
		defer store.Close()

		if !store.Has(args[0]) {
			return fmt.Errorf("path %q is not set", args[0])
		}
		v, err := store.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(renderValue(v))
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set PATH VALUE",
	Short: "Set the value at a dotted path",
	Long: `Set the value at a dotted path, creating intermediate levels
as needed. VALUE is parsed as JSON when possible (numbers, booleans,
null, objects, arrays) and stored as a string otherwise.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(false)
		if err != nil {
			return err
		}
		defer store.Close()

		return store.Set(args[0], parseValue(args[1]))
	},
}

var delCmd = &cobra.Command{
	Use:   "del KEY",
	Short: "Delete a top-level key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(false)
		if err != nil {
			return err
		}
		defer store.Close()

		return store.Delete(args[0])
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List top-level keys in document order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(false)
		if err != nil {
			return err
		}
		defer store.Close()

		for _, k := range store.Keys() {
			fmt.Println(k)
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the file and print every change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(true)
		if err != nil {
			return err
		}
		defer store.Close()

		sub := store.Subscribe(func(change notify.Change) {
			switch change.Type {
			case notify.ChangeReload:
				fmt.Printf("reloaded from %s\n", change.Source)
			default:
				fmt.Printf("%s %s = %s\n", change.Type, change.Path,
					renderValue(change.NewValue))
			}
		})
		defer sub.Unsubscribe()

		go func() {
			for err := range store.Errors() {
				fmt.Fprintf(os.Stderr, "watch: %v\n", err)
			}
		}()

		fmt.Printf("watching %s (Ctrl-C to stop)\n", store.Path())
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		return nil
	},
}

// parseValue interprets a command-line value: JSON when valid,
// literal string otherwise.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// renderValue prints scalars bare and structures as JSON.
func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case *settings.Storage:
		return val.String()
	case *document.Map:
		return val.String()
	default:
		if raw, err := json.Marshal(v); err == nil && strings.HasPrefix(string(raw), "[") {
			return string(raw)
		}
		return fmt.Sprintf("%v", v)
	}
}
