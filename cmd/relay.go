package cmd

import (
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/streamrelay/internal/config"
	"github.com/smazurov/streamrelay/internal/logging"
	"github.com/smazurov/streamrelay/internal/media"
	"github.com/smazurov/streamrelay/internal/relay"
	"github.com/smazurov/streamrelay/internal/relay/store"
)

// CreateRelayCmd creates the relay command: a headless single-stream
// runner that supervises one stream from the config file until the
// process is signalled or the stream is removed from the config.
func CreateRelayCmd() *cobra.Command {
	var configFile string
	var poolSize int
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "relay [stream-id]",
		Short: "Run a single stream headless",
		Long: `Supervises one stream from the configuration file without the HTTP API. ` +
			`The stream is restarted on config changes and the process shuts down when ` +
			`the stream is removed from the config.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			streamID := args[0]

			loggingConfig := logging.Config{
				Level:  "info",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("relay").With("stream_id", streamID)

			streamStore := store.NewTOML(configFile)
			if err := streamStore.Load(); err != nil {
				logger.Error("Failed to load streams configuration", "error", err, "config", configFile)
				os.Exit(1)
			}

			spec, ok := streamStore.GetStream(streamID)
			if !ok {
				logger.Error("Stream not found", "config", configFile)
				os.Exit(1)
			}
			spec.ID = streamID
			spec.ApplyDefaults()

			sup := relay.NewSupervisor(poolSize,
				relay.WithSupervisorLogger(logger),
				relay.WithMedia(media.Loopback(logging.GetLogger("media"))),
			)

			add := sup.AddPullStream
			if spec.Role == relay.RolePush {
				add = sup.AddPushStream
			}
			if _, err := add(spec); err != nil {
				logger.Error("Failed to register stream", "error", err)
				os.Exit(1)
			}
			if err := sup.StartStream(streamID); err != nil {
				logger.Error("Failed to start stream", "error", err)
				os.Exit(1)
			}
			sup.StartMonitoring()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Restart the stream with a fresh spec when the config
			// changes; shut down when the stream disappears from it.
			current := spec
			watcher := config.NewWatcher(
				configFile,
				store.LoadFile,
				logger,
				config.WithDebounce[store.File](1500*time.Millisecond),
			)
			watcher.OnReload(func(file store.File) {
				fresh, exists := file.Streams[streamID]
				if !exists {
					logger.Warn("Stream removed from config, shutting down")
					stop()
					return
				}
				fresh.ID = streamID
				fresh.ApplyDefaults()
				if reflect.DeepEqual(fresh, current) {
					logger.Debug("Config reloaded, spec unchanged")
					return
				}
				logger.Info("Spec changed, restarting stream")
				if err := sup.StopStream(streamID); err != nil {
					logger.Warn("Failed to stop stream for update", "error", err)
					return
				}
				if err := sup.UpdateSpec(streamID, fresh); err != nil {
					logger.Warn("Failed to apply updated spec", "error", err)
				} else {
					current = fresh
				}
				if err := sup.StartStream(streamID); err != nil {
					logger.Warn("Failed to restart stream", "error", err)
				}
			})
			if err := watcher.Start(); err != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", err)
			} else {
				defer func() { _ = watcher.Stop() }()
			}

			<-ctx.Done()
			logger.Info("Shutting down")
			sup.Shutdown()
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "streams.toml", "Path to streams configuration file")
	cmd.Flags().IntVar(&poolSize, "pool-size", 2, "Worker pool size")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}
