// Package metrics provides Prometheus metrics for streams, forward tasks
// and the worker pool.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	streamFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "streamrelay",
		Subsystem: "stream",
		Name:      "fps",
		Help:      "Measured frames per second over a one second window",
	}, []string{"stream_id"})

	streamQueueLen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "streamrelay",
		Subsystem: "stream",
		Name:      "queue_len",
		Help:      "Frames currently held in the stream's frame channel",
	}, []string{"stream_id"})

	streamDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "streamrelay",
		Subsystem: "stream",
		Name:      "dropped_frames_total",
		Help:      "Frames discarded by the full-queue policy",
	}, []string{"stream_id"})

	streamReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamrelay",
		Subsystem: "stream",
		Name:      "reconnects_total",
		Help:      "Reconnect attempts per stream",
	}, []string{"stream_id"})

	forwardedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamrelay",
		Subsystem: "forward",
		Name:      "frames_total",
		Help:      "Frames handed from a pull stream to a push stream",
	}, []string{"task_id"})

	poolQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamrelay",
		Subsystem: "pool",
		Name:      "queue_depth",
		Help:      "Tasks waiting in the worker pool queue",
	})

	poolActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamrelay",
		Subsystem: "pool",
		Name:      "active_workers",
		Help:      "Workers currently executing a task",
	})
)

// SetStreamFPS records the current FPS estimate for a stream.
func SetStreamFPS(streamID string, fps float64) {
	streamFPS.WithLabelValues(streamID).Set(fps)
}

// SetStreamQueueLen records the current frame channel depth for a stream.
func SetStreamQueueLen(streamID string, n int) {
	streamQueueLen.WithLabelValues(streamID).Set(float64(n))
}

// SetStreamDropped records the cumulative dropped frame count for a stream.
func SetStreamDropped(streamID string, n uint64) {
	streamDroppedFrames.WithLabelValues(streamID).Set(float64(n))
}

// IncStreamReconnects counts one reconnect attempt for a stream.
func IncStreamReconnects(streamID string) {
	streamReconnects.WithLabelValues(streamID).Inc()
}

// IncForwardedFrames counts one forwarded frame for a task.
func IncForwardedFrames(taskID string) {
	forwardedFrames.WithLabelValues(taskID).Inc()
}

// SetPoolStats records the worker pool queue depth and active worker count.
func SetPoolStats(queueDepth, active int) {
	poolQueueDepth.Set(float64(queueDepth))
	poolActiveWorkers.Set(float64(active))
}

// RemoveStream drops all per-stream series when a stream is removed.
func RemoveStream(streamID string) {
	labels := prometheus.Labels{"stream_id": streamID}
	streamFPS.Delete(labels)
	streamQueueLen.Delete(labels)
	streamDroppedFrames.Delete(labels)
	streamReconnects.Delete(labels)
}

// RemoveForwardTask drops the per-task series when a task is removed.
func RemoveForwardTask(taskID string) {
	forwardedFrames.Delete(prometheus.Labels{"task_id": taskID})
}
