package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/streamrelay/internal/api/models"
	"github.com/smazurov/streamrelay/internal/relay"
)

type streamIDParam struct {
	StreamID string `path:"stream_id" example:"stream-1" doc:"Stream identifier"`
}

func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-streams",
		Method:      http.MethodGet,
		Path:        "/api/streams",
		Summary:     "List Streams",
		Description: "Get runtime status for all registered streams",
		Tags:        []string{"streams"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.StreamListResponse, error) {
		statuses := s.sup.Streams()
		return &models.StreamListResponse{
			Body: models.StreamListData{
				Streams: statuses,
				Count:   len(statuses),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "create-stream",
		Method:      http.MethodPost,
		Path:        "/api/streams",
		Summary:     "Create Stream",
		Description: "Register a pull or push stream; its role decides which",
		Tags:        []string{"streams"},
		Errors:      []int{400, 401, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.StreamRequest) (*models.StreamResponse, error) {
		spec := input.Body

		var (
			id  string
			err error
		)
		switch spec.Role {
		case relay.RolePush:
			id, err = s.sup.AddPushStream(spec)
		default:
			id, err = s.sup.AddPullStream(spec)
		}
		if err != nil {
			return nil, mapRelayError(err)
		}
		spec.ID = id

		if s.store != nil {
			if err := s.store.AddStream(spec); err != nil {
				s.logger.Warn("Failed to persist stream", "stream_id", id, "error", err)
			}
		}

		status, err := s.sup.StreamStatus(id)
		if err != nil {
			return nil, mapRelayError(err)
		}
		return &models.StreamResponse{
			Body: models.StreamData{Spec: spec, Status: status},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream",
		Method:      http.MethodGet,
		Path:        "/api/streams/{stream_id}",
		Summary:     "Get Stream",
		Description: "Get the definition and runtime status of one stream",
		Tags:        []string{"streams"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *streamIDParam) (*models.StreamResponse, error) {
		status, err := s.sup.StreamStatus(input.StreamID)
		if err != nil {
			return nil, mapRelayError(err)
		}

		var spec relay.StreamSpec
		if s.store != nil {
			spec, _ = s.store.GetStream(input.StreamID)
		}
		return &models.StreamResponse{
			Body: models.StreamData{Spec: spec, Status: status},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-stream",
		Method:      http.MethodPut,
		Path:        "/api/streams/{stream_id}",
		Summary:     "Update Stream",
		Description: "Replace a stream definition. The stream must not be running.",
		Tags:        []string{"streams"},
		Errors:      []int{400, 401, 404, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		streamIDParam
		Body relay.StreamSpec
	}) (*models.StreamResponse, error) {
		if err := s.sup.UpdateSpec(input.StreamID, input.Body); err != nil {
			return nil, mapRelayError(err)
		}
		if s.store != nil {
			if err := s.store.UpdateStream(input.StreamID, input.Body); err != nil {
				s.logger.Warn("Failed to persist stream", "stream_id", input.StreamID, "error", err)
			}
		}

		status, err := s.sup.StreamStatus(input.StreamID)
		if err != nil {
			return nil, mapRelayError(err)
		}
		spec := input.Body
		spec.ID = input.StreamID
		return &models.StreamResponse{
			Body: models.StreamData{Spec: spec, Status: status},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-stream",
		Method:      http.MethodDelete,
		Path:        "/api/streams/{stream_id}",
		Summary:     "Delete Stream",
		Description: "Stop and remove a stream",
		Tags:        []string{"streams"},
		Errors:      []int{400, 401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *streamIDParam) (*struct{}, error) {
		if err := s.sup.RemoveStream(input.StreamID); err != nil {
			return nil, mapRelayError(err)
		}
		if s.store != nil {
			if err := s.store.RemoveStream(input.StreamID); err != nil {
				s.logger.Warn("Failed to remove persisted stream", "stream_id", input.StreamID, "error", err)
			}
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-stream",
		Method:      http.MethodPost,
		Path:        "/api/streams/{stream_id}/start",
		Summary:     "Start Stream",
		Description: "Connect the stream and schedule its processing loop",
		Tags:        []string{"streams"},
		Errors:      []int{400, 401, 404, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *streamIDParam) (*models.StreamResponse, error) {
		if err := s.sup.StartStream(input.StreamID); err != nil {
			return nil, mapRelayError(err)
		}
		return s.streamResponse(input.StreamID)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-stream",
		Method:      http.MethodPost,
		Path:        "/api/streams/{stream_id}/stop",
		Summary:     "Stop Stream",
		Description: "Stop the stream and release its resources",
		Tags:        []string{"streams"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *streamIDParam) (*models.StreamResponse, error) {
		if err := s.sup.StopStream(input.StreamID); err != nil {
			return nil, mapRelayError(err)
		}
		return s.streamResponse(input.StreamID)
	})
}

func (s *Server) streamResponse(id string) (*models.StreamResponse, error) {
	status, err := s.sup.StreamStatus(id)
	if err != nil {
		return nil, mapRelayError(err)
	}
	var spec relay.StreamSpec
	if s.store != nil {
		spec, _ = s.store.GetStream(id)
	}
	return &models.StreamResponse{
		Body: models.StreamData{Spec: spec, Status: status},
	}, nil
}
