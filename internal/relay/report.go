package relay

import (
	"sort"
	"time"
)

// PoolStats describes the worker pool at report time.
type PoolStats struct {
	Size       int `json:"size" doc:"Number of workers"`
	QueueDepth int `json:"queue_depth" doc:"Queued tasks waiting for a worker"`
	Active     int `json:"active" doc:"Tasks currently executing"`
}

// Report is a full snapshot of the supervisor: pool, streams and
// forward tasks, sorted by id for stable output.
type Report struct {
	UptimeSec int64           `json:"uptime_sec" doc:"Seconds since the supervisor started"`
	Pool      PoolStats       `json:"pool"`
	Streams   []StreamStatus  `json:"streams"`
	Tasks     []ForwardStatus `json:"tasks"`
}

// Report builds a point-in-time snapshot of everything the supervisor owns.
func (s *Supervisor) Report() Report {
	streams := s.Streams()
	sort.Slice(streams, func(i, j int) bool { return streams[i].ID < streams[j].ID })

	tasks := s.Tasks()
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	return Report{
		UptimeSec: int64(time.Since(s.started).Seconds()),
		Pool: PoolStats{
			Size:       s.pool.Size(),
			QueueDepth: s.pool.QueueDepth(),
			Active:     s.pool.ActiveCount(),
		},
		Streams: streams,
		Tasks:   tasks,
	}
}
