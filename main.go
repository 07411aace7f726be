package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/streamrelay/cmd"
	"github.com/smazurov/streamrelay/internal/api"
	"github.com/smazurov/streamrelay/internal/config"
	"github.com/smazurov/streamrelay/internal/events"
	"github.com/smazurov/streamrelay/internal/logging"
	"github.com/smazurov/streamrelay/internal/media"
	"github.com/smazurov/streamrelay/internal/metrics/exporters"
	"github.com/smazurov/streamrelay/internal/relay"
	"github.com/smazurov/streamrelay/internal/relay/store"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Relay settings
	StreamsFile    string `help:"Stream definitions file" default:"streams.toml" toml:"relay.streams_file" env:"STREAMS_FILE"`
	PoolSize       int    `help:"Worker pool size (0 = auto)" default:"0" toml:"relay.pool_size" env:"POOL_SIZE"`
	MonitorEnabled bool   `help:"Enable stream health monitoring" default:"true" toml:"relay.monitor_enabled" env:"MONITOR_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingRelay    string `help:"Relay logging level" default:"info" toml:"logging.relay" env:"LOGGING_RELAY"`
	LoggingTaskpool string `help:"Task pool logging level" default:"info" toml:"logging.taskpool" env:"LOGGING_TASKPOOL"`
	LoggingMedia    string `help:"Media logging level" default:"info" toml:"logging.media" env:"LOGGING_MEDIA"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP     string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// The callback runs from cli.Run, so the root command and its
		// flag state exist by now.
		if loadErr := config.Load(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"relay":    opts.LoggingRelay,
				"taskpool": opts.LoggingTaskpool,
				"media":    opts.LoggingMedia,
				"api":      opts.LoggingAPI,
				"http":     opts.LoggingHTTP,
			},
		})
		logger := logging.GetLogger("main")

		eventBus := events.New()

		// Feed log entries into the bus so the SSE log endpoint sees
		// them live.
		logging.SetEntryCallback(func(entry logging.Entry) {
			eventBus.Publish(events.LogEntryEvent{
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		streamStore := store.NewTOML(opts.StreamsFile)
		if loadErr := streamStore.Load(); loadErr != nil {
			logger.Warn("Failed to load stream definitions", "error", loadErr, "file", opts.StreamsFile)
		}

		poolSize := opts.PoolSize
		if poolSize <= 0 {
			poolSize = runtime.NumCPU()
			if n := len(streamStore.AllStreams()) + 2; n > poolSize {
				poolSize = n
			}
		}

		sup := relay.NewSupervisor(poolSize,
			relay.WithSupervisorLogger(logging.GetLogger("relay")),
			relay.WithSupervisorBus(eventBus),
			relay.WithMedia(media.Loopback(logging.GetLogger("media"))),
		)

		loadStreams(sup, streamStore, logger)

		// Watch the stream definitions file: new definitions are
		// registered at runtime, removed ones are torn down. Runtime
		// edits to live streams go through the CRUD API instead.
		watcher := config.NewWatcher(
			opts.StreamsFile,
			store.LoadFile,
			logger,
		)
		watcher.OnReload(func(file store.File) {
			reconcile(sup, file, logger)
			eventBus.Publish(events.ConfigReloadedEvent{
				Streams:   len(file.Streams),
				Forwards:  len(file.Forwards),
				Timestamp: time.Now().Format(time.RFC3339Nano),
			})
		})

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Supervisor:        sup,
			Store:             streamStore,
			EventBus:          eventBus,
			PrometheusHandler: exporters.HTTPHandler(),
		})

		hooks.OnStart(func() {
			if opts.MonitorEnabled {
				sup.StartMonitoring()
			}
			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", watchErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			_ = watcher.Stop()
			sup.Shutdown()
		})
	})

	cli.Root().Use = "streamrelay"
	cli.Root().AddCommand(cmd.CreateRelayCmd())
	cli.Root().AddCommand(cmd.CreateValidateCmd())

	cli.Run()
}

// loadStreams registers every definition from the store and starts the
// ones flagged auto_start. Streams register before forwards so forward
// references resolve.
func loadStreams(sup *relay.Supervisor, streamStore store.Store, logger *slog.Logger) {
	for id, spec := range streamStore.AllStreams() {
		spec.ID = id
		if err := addByRole(sup, spec); err != nil {
			logger.Warn("Failed to register stream", "stream_id", id, "error", err)
			continue
		}
		if spec.AutoStart {
			if err := sup.StartStream(id); err != nil {
				logger.Warn("Failed to auto-start stream", "stream_id", id, "error", err)
			}
		}
	}

	for id, fwd := range streamStore.AllForwards() {
		fwd.ID = id
		if _, err := sup.AddForwardTask(fwd); err != nil {
			logger.Warn("Failed to register forward task", "task_id", id, "error", err)
			continue
		}
		if fwd.AutoStart {
			if err := sup.StartTask(id); err != nil {
				logger.Warn("Failed to auto-start forward task", "task_id", id, "error", err)
			}
		}
	}
}

func addByRole(sup *relay.Supervisor, spec relay.StreamSpec) error {
	if spec.Role == relay.RolePush {
		_, err := sup.AddPushStream(spec)
		return err
	}
	_, err := sup.AddPullStream(spec)
	return err
}

// reconcile applies a fresh config snapshot to the supervisor: new
// definitions are added (and auto-started), definitions that vanished
// are removed. Specs of already-registered streams are left alone.
func reconcile(sup *relay.Supervisor, file store.File, logger *slog.Logger) {
	known := make(map[string]bool)
	for _, st := range sup.Streams() {
		known[st.ID] = true
	}
	knownTasks := make(map[string]bool)
	for _, ft := range sup.Tasks() {
		knownTasks[ft.ID] = true
	}

	for id, spec := range file.Streams {
		if known[id] {
			continue
		}
		spec.ID = id
		if err := addByRole(sup, spec); err != nil {
			logger.Warn("Failed to add stream from config", "stream_id", id, "error", err)
			continue
		}
		logger.Info("Stream added from config", "stream_id", id)
		if spec.AutoStart {
			if err := sup.StartStream(id); err != nil {
				logger.Warn("Failed to auto-start stream", "stream_id", id, "error", err)
			}
		}
	}
	for id, fwd := range file.Forwards {
		if knownTasks[id] {
			continue
		}
		fwd.ID = id
		if _, err := sup.AddForwardTask(fwd); err != nil {
			logger.Warn("Failed to add forward task from config", "task_id", id, "error", err)
			continue
		}
		logger.Info("Forward task added from config", "task_id", id)
		if fwd.AutoStart {
			if err := sup.StartTask(id); err != nil {
				logger.Warn("Failed to auto-start forward task", "task_id", id, "error", err)
			}
		}
	}

	// Removals: forwards first so streams they reference can go too.
	for id := range knownTasks {
		if _, ok := file.Forwards[id]; ok {
			continue
		}
		if err := sup.RemoveTask(id); err != nil {
			logger.Warn("Failed to remove forward task dropped from config", "task_id", id, "error", err)
			continue
		}
		logger.Info("Forward task removed from config", "task_id", id)
	}
	for id := range known {
		if _, ok := file.Streams[id]; ok {
			continue
		}
		if err := sup.RemoveStream(id); err != nil {
			logger.Warn("Failed to remove stream dropped from config", "stream_id", id, "error", err)
			continue
		}
		logger.Info("Stream removed from config", "stream_id", id)
	}
}
