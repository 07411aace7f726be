package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/streamrelay/internal/api/models"
)

func (s *Server) registerReportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-report",
		Method:      http.MethodGet,
		Path:        "/api/report",
		Summary:     "Status Report",
		Description: "Full snapshot: worker pool, all streams and all forward tasks",
		Tags:        []string{"system"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.ReportResponse, error) {
		return &models.ReportResponse{Body: s.sup.Report()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "resize-pool",
		Method:      http.MethodPost,
		Path:        "/api/pool/resize",
		Summary:     "Resize Worker Pool",
		Description: "Change the number of pool workers at runtime",
		Tags:        []string{"system"},
		Errors:      []int{400, 401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.PoolResizeRequest) (*models.PoolResizeResponse, error) {
		s.sup.ResizePool(input.Body.Size)
		return &models.PoolResizeResponse{
			Body: models.PoolResizeData{Size: s.sup.Pool().Size()},
		}, nil
	})
}
