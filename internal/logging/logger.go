package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const historySize = 1000

// Config controls the global and per-module log levels and the stdout
// output format.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mu          sync.RWMutex
	cfg         Config
	initialized bool
	globalLevel = &slog.LevelVar{}
	loggers     = make(map[string]*slog.Logger)
	levelVars   = make(map[string]*slog.LevelVar)
	history     *RingBuffer
	onEntry     EntryCallback
)

// Initialize configures the logging system: global level, per-module
// overrides, output format and the log history buffer. Loggers handed
// out before Initialize are rebuilt so they pick up the full handler
// chain.
func Initialize(config Config) {
	mu.Lock()
	defer mu.Unlock()

	cfg = config
	initialized = true
	history = NewRingBuffer(historySize)

	level := parseLevel(config.Level, slog.LevelInfo)
	globalLevel.Set(level)

	for module, lv := range levelVars {
		moduleLevel := level
		if override, ok := config.Modules[module]; ok {
			moduleLevel = parseLevel(override, level)
		}
		lv.Set(moduleLevel)
		loggers[module] = slog.New(buildHandler(config.Format, lv)).With("module", module)
	}

	slog.SetDefault(slog.New(buildHandler(config.Format, globalLevel)))
}

// GetLogger returns the shared logger for a module, creating it on first
// use. Module-specific level overrides from Config.Modules apply.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	if l, ok := loggers[module]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[module]; ok {
		return l
	}

	lv := &slog.LevelVar{}
	level := slog.LevelInfo
	format := "text"
	if initialized {
		level = parseLevel(cfg.Level, slog.LevelInfo)
		if override, ok := cfg.Modules[module]; ok {
			level = parseLevel(override, level)
		}
		format = cfg.Format
	}
	lv.Set(level)

	l := slog.New(buildHandler(format, lv)).With("module", module)
	loggers[module] = l
	levelVars[module] = lv
	return l
}

// History returns the ring buffer holding recent log entries, or nil
// before Initialize.
func History() *RingBuffer {
	mu.RLock()
	defer mu.RUnlock()
	return history
}

// SetEntryCallback registers a callback invoked for every new entry.
// Used to feed the live log feed without an import cycle.
func SetEntryCallback(cb EntryCallback) {
	mu.Lock()
	defer mu.Unlock()
	onEntry = cb
}

// buildHandler assembles the output chain for one level var: stdout
// (text or json), the systemd journal when running under it, and the
// history buffer.
func buildHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if stdoutUsable() {
		handlers = append(handlers, stdout)
	}
	if journalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	// The buffer handler resolves the buffer lazily, so it is safe to
	// attach before Initialize has run.
	handlers = append(handlers, NewBufferHandler(level))

	switch len(handlers) {
	case 0:
		return stdout
	case 1:
		return handlers[0]
	default:
		return fanoutHandler(handlers)
	}
}

// fanoutHandler delivers each record to every sink that accepts its
// level. Records are cloned per sink since handlers may retain them.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			_ = h.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// stdoutUsable reports whether stdout goes anywhere useful. Under
// systemd with StandardOutput=null it does not, and double logging to
// the journal is avoided.
func stdoutUsable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 ||
		mode&os.ModeSocket != 0 || mode.IsRegular()
}

func parseLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
