// Package models defines the request and response shapes of the HTTP API.
package models

import "github.com/smazurov/streamrelay/internal/relay"

// HealthData is the health endpoint payload.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status detail"`
}

// HealthResponse wraps HealthData.
type HealthResponse struct {
	Body HealthData
}

// VersionData is the version endpoint payload.
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" doc:"Git commit hash"`
	BuildDate string `json:"build_date" doc:"Build timestamp"`
	GoVersion string `json:"go_version" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Build platform"`
}

// VersionResponse wraps VersionData.
type VersionResponse struct {
	Body VersionData
}

// StreamRequest creates or replaces a stream definition.
type StreamRequest struct {
	Body relay.StreamSpec
}

// StreamData pairs a stream definition with its runtime status.
type StreamData struct {
	Spec   relay.StreamSpec   `json:"spec" doc:"Stream definition"`
	Status relay.StreamStatus `json:"status" doc:"Runtime status"`
}

// StreamResponse wraps one stream.
type StreamResponse struct {
	Body StreamData
}

// StreamListData lists all streams.
type StreamListData struct {
	Streams []relay.StreamStatus `json:"streams" doc:"Runtime status per stream"`
	Count   int                  `json:"count" example:"2" doc:"Number of streams"`
}

// StreamListResponse wraps StreamListData.
type StreamListResponse struct {
	Body StreamListData
}

// TaskRequest creates a forward task.
type TaskRequest struct {
	Body relay.ForwardSpec
}

// TaskResponse wraps one forward task status.
type TaskResponse struct {
	Body relay.ForwardStatus
}

// TaskListData lists all forward tasks.
type TaskListData struct {
	Tasks []relay.ForwardStatus `json:"tasks" doc:"Runtime status per task"`
	Count int                   `json:"count" doc:"Number of tasks"`
}

// TaskListResponse wraps TaskListData.
type TaskListResponse struct {
	Body TaskListData
}

// ReportResponse wraps the full supervisor report.
type ReportResponse struct {
	Body relay.Report
}

// PoolResizeRequest changes the worker pool size.
type PoolResizeRequest struct {
	Body struct {
		Size int `json:"size" minimum:"1" maximum:"256" example:"8" doc:"New worker count"`
	}
}

// PoolResizeData reports the pool size after a resize.
type PoolResizeData struct {
	Size int `json:"size" doc:"Current worker count"`
}

// PoolResizeResponse wraps PoolResizeData.
type PoolResizeResponse struct {
	Body PoolResizeData
}
