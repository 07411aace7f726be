// Package logging provides structured logging with per-module levels,
// journald integration and an in-memory history buffer.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"relay":    "debug",
//			"taskpool": "warn",
//		},
//	})
//
// Then take a module logger anywhere:
//
//	logger := logging.GetLogger("relay").With("stream_id", id)
//	logger.Info("Stream started")
//
// Records go to stdout (text or json), to the systemd journal when
// running under it, and to a ring buffer served by the logs endpoint.
//
// Under systemd the structured fields survive, so logs can be filtered:
//
//	journalctl -t streamrelay -f
//	journalctl -t streamrelay MODULE=relay
//	journalctl -t streamrelay STREAM_ID=cam-1
package logging
