package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/streamrelay/internal/api/models"
	"github.com/smazurov/streamrelay/internal/events"
	"github.com/smazurov/streamrelay/internal/logging"
	"github.com/smazurov/streamrelay/internal/relay"
	"github.com/smazurov/streamrelay/internal/relay/store"
	"github.com/smazurov/streamrelay/internal/version"
)

// Options wires the API server to the rest of the application.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Supervisor        *relay.Supervisor
	Store             store.Store
	EventBus          *events.Bus
	PrometheusHandler http.Handler
}

// Server is the Huma v2 HTTP API.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	sup        *relay.Supervisor
	store      store.Store
	bus        *events.Bus
	options    *Options
	logger     *slog.Logger
}

// NewServer builds the API server with CORS, request logging and basic
// auth applied in that order.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()
	addCORSHandler(mux)

	config := huma.DefaultConfig("StreamRelay API", version.String())
	config.Info.Description = "Multi-stream media relay: pull, forward and push video streams"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:     api,
		mux:     mux,
		sup:     opts.Supervisor,
		store:   opts.Store,
		bus:     opts.EventBus,
		options: opts,
		logger:  logging.GetLogger("api"),
	}

	api.UseMiddleware(corsMiddleware)
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// Prometheus scrapes without credentials.
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// API returns the underlying Huma API, used by tests.
func (s *Server) API() huma.API {
	return s.api
}

// Start serves HTTP on addr until the server is stopped.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down without waiting for open connections; SSE
// clients would otherwise hold shutdown forever.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// withAuth marks an operation as requiring basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{{"basicAuth": {}}}
}

// basicAuthMiddleware enforces basic auth on operations that declare a
// security requirement. SSE clients that cannot set headers may pass the
// same base64 credentials via the auth query parameter.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	const realm = `Basic realm="StreamRelay API"`
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		var credentials string
		if header := ctx.Header("Authorization"); header != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(header, prefix) {
				ctx.SetHeader("WWW-Authenticate", realm)
				huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid authentication type")
				return
			}
			decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
			if err != nil {
				ctx.SetHeader("WWW-Authenticate", realm)
				huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials format", err)
				return
			}
			credentials = string(decoded)
		} else if query := ctx.Query("auth"); query != "" {
			decoded, err := base64.StdEncoding.DecodeString(query)
			if err != nil {
				ctx.SetHeader("WWW-Authenticate", realm)
				huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials format", err)
				return
			}
			credentials = string(decoded)
		}

		if credentials == "" {
			ctx.SetHeader("WWW-Authenticate", realm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Authentication required")
			return
		}

		parts := strings.SplitN(credentials, ":", 2)
		if len(parts) != 2 || parts[0] != username || parts[1] != password {
			ctx.SetHeader("WWW-Authenticate", realm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerStreamRoutes()
	s.registerTaskRoutes()
	s.registerReportRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
}
