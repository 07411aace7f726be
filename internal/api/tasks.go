package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/streamrelay/internal/api/models"
)

type taskIDParam struct {
	TaskID string `path:"task_id" example:"task-1" doc:"Forward task identifier"`
}

func (s *Server) registerTaskRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/api/tasks",
		Summary:     "List Forward Tasks",
		Description: "Get runtime status for all forward tasks",
		Tags:        []string{"tasks"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.TaskListResponse, error) {
		tasks := s.sup.Tasks()
		return &models.TaskListResponse{
			Body: models.TaskListData{Tasks: tasks, Count: len(tasks)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "create-task",
		Method:      http.MethodPost,
		Path:        "/api/tasks",
		Summary:     "Create Forward Task",
		Description: "Register a forward task between a pull and a push stream",
		Tags:        []string{"tasks"},
		Errors:      []int{400, 401, 404, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.TaskRequest) (*models.TaskResponse, error) {
		spec := input.Body
		id, err := s.sup.AddForwardTask(spec)
		if err != nil {
			return nil, mapRelayError(err)
		}
		spec.ID = id

		if s.store != nil {
			if err := s.store.AddForward(spec); err != nil {
				s.logger.Warn("Failed to persist forward task", "task_id", id, "error", err)
			}
		}

		status, err := s.sup.TaskStatus(id)
		if err != nil {
			return nil, mapRelayError(err)
		}
		return &models.TaskResponse{Body: status}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/api/tasks/{task_id}",
		Summary:     "Get Forward Task",
		Description: "Get the runtime status of one forward task",
		Tags:        []string{"tasks"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *taskIDParam) (*models.TaskResponse, error) {
		status, err := s.sup.TaskStatus(input.TaskID)
		if err != nil {
			return nil, mapRelayError(err)
		}
		return &models.TaskResponse{Body: status}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/api/tasks/{task_id}",
		Summary:     "Delete Forward Task",
		Description: "Stop and remove a forward task",
		Tags:        []string{"tasks"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *taskIDParam) (*struct{}, error) {
		if err := s.sup.RemoveTask(input.TaskID); err != nil {
			return nil, mapRelayError(err)
		}
		if s.store != nil {
			if err := s.store.RemoveForward(input.TaskID); err != nil {
				s.logger.Warn("Failed to remove persisted task", "task_id", input.TaskID, "error", err)
			}
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-task",
		Method:      http.MethodPost,
		Path:        "/api/tasks/{task_id}/start",
		Summary:     "Start Forward Task",
		Description: "Begin moving frames from the pull stream to the push stream",
		Tags:        []string{"tasks"},
		Errors:      []int{401, 404, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *taskIDParam) (*models.TaskResponse, error) {
		if err := s.sup.StartTask(input.TaskID); err != nil {
			return nil, mapRelayError(err)
		}
		status, err := s.sup.TaskStatus(input.TaskID)
		if err != nil {
			return nil, mapRelayError(err)
		}
		return &models.TaskResponse{Body: status}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-task",
		Method:      http.MethodPost,
		Path:        "/api/tasks/{task_id}/stop",
		Summary:     "Stop Forward Task",
		Description: "Stop moving frames; the underlying streams keep running",
		Tags:        []string{"tasks"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *taskIDParam) (*models.TaskResponse, error) {
		if err := s.sup.StopTask(input.TaskID); err != nil {
			return nil, mapRelayError(err)
		}
		status, err := s.sup.TaskStatus(input.TaskID)
		if err != nil {
			return nil, mapRelayError(err)
		}
		return &models.TaskResponse{Body: status}, nil
	})
}
