// Package api is the HTTP controller of a rig: REST endpoints for modes, states and
// drawing, SSE streams for events, logs and frame rates, and websocket endpoints for
// fragment drawing and frame preview.
package api

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/paws/internal/api/models"
	"github.com/smazurov/paws/internal/component"
	"github.com/smazurov/paws/internal/driver"
	"github.com/smazurov/paws/internal/events"
	"github.com/smazurov/paws/internal/led"
	"github.com/smazurov/paws/internal/logging"
	"github.com/smazurov/paws/internal/telemetry"
	"github.com/smazurov/paws/internal/updater"
	"github.com/smazurov/paws/internal/version"
	"github.com/smazurov/paws/ui"
)

const authRealm = `Basic realm="paws"`

// Options configures the API server.
type Options struct {
	Addr          string
	AuthUsername  string
	AuthPassword  string
	Device        string
	Driver        *driver.Driver
	EventBus      *events.Bus
	Telemetry     *telemetry.Reader
	LEDController led.Controller
	// Updater enables the /api/update routes when set.
	Updater *updater.Updater
	// PrometheusHandler is served at GET /metrics without auth when set.
	PrometheusHandler http.Handler
	// MetricsInterval is the default sample period of the FPS stream.
	MetricsInterval time.Duration
}

// Server is the HTTP controller. It is registered with the driver like any other
// controller and starts listening in Init.
type Server struct {
	component.Identity
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	driver     *driver.Driver
	eventBus   *events.Bus
	preview    *previewHub
	logger     *slog.Logger

	mu sync.Mutex
}

// basicAuthMiddleware creates middleware for HTTP basic authentication.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		// Skip auth for operations without security requirements
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		credentials, msg := credentialsFrom(ctx.Header("Authorization"), ctx.Query("auth"))
		if msg == "" && !validCredentials(credentials, username, password) {
			msg = "Invalid credentials"
		}
		if msg != "" {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg)
			return
		}
		next(ctx)
	}
}

// credentialsFrom decodes "user:pass" from an Authorization header or, for SSE and
// websocket clients that cannot set headers, from the base64 auth query parameter.
// A non-empty message describes why decoding failed.
func credentialsFrom(header, query string) (string, string) {
	encoded := query
	if header != "" {
		const prefix = "Basic "
		if !strings.HasPrefix(header, prefix) {
			return "", "Invalid authentication type"
		}
		encoded = header[len(prefix):]
	}
	if encoded == "" {
		return "", "Authentication required"
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "Invalid credentials format"
	}
	return string(decoded), ""
}

func validCredentials(credentials, username, password string) bool {
	user, pass, ok := strings.Cut(credentials, ":")
	return ok && user == username && pass == password
}

// authorized checks credentials on plain net/http handlers outside huma.
func (s *Server) authorized(r *http.Request) bool {
	if s.options.AuthUsername == "" || s.options.AuthPassword == "" {
		return true
	}
	credentials, msg := credentialsFrom(r.Header.Get("Authorization"), r.URL.Query().Get("auth"))
	return msg == "" && validCredentials(credentials, s.options.AuthUsername, s.options.AuthPassword)
}

// NewServer creates the API server using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("paws API", version.String())
	config.Info.Description = "Mode, state and pixel control for an LED rig"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	bus := opts.EventBus
	if bus == nil {
		bus = events.New()
	}

	server := &Server{
		Identity: component.NewIdentity("api"),
		api:      api,
		mux:      mux,
		options:  opts,
		driver:   opts.Driver,
		eventBus: bus,
		logger:   logging.GetLogger("api"),
	}
	server.preview = newPreviewHub(server.logger)

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	mux.Handle("GET /", ui.Handler())
	return server
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Init implements driver.Controller. It starts serving on Options.Addr and stops when ctx
// is cancelled. An empty address registers the routes without listening.
func (s *Server) Init(ctx context.Context, _ *driver.Driver) error {
	unsubscribe := s.preview.attach(s.eventBus)
	go func() {
		<-ctx.Done()
		unsubscribe()
		s.preview.close()
		if err := s.Stop(); err != nil {
			s.logger.Warn("API server stop failed", "error", err)
		}
	}()

	if s.options.Addr == "" {
		return nil
	}

	go func() {
		if err := s.Start(s.options.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", "error", err)
		}
	}()
	return nil
}

// Start starts the HTTP server on addr and blocks until it stops.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting paws API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	return srv.ListenAndServe()
}

// Stop closes the listener and every open connection, including SSE streams.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("Stopping API server")
	return srv.Close()
}

// registerRoutes sets up all API endpoints.
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
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
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				BuildID:   info.BuildID,
				GoVersion: info.GoVersion,
				Compiler:  info.Compiler,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerModeRoutes()
	s.registerStateRoutes()
	s.registerDrawRoutes()
	s.registerTelemetryRoutes()
	s.registerLEDRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
	s.registerMetricsRoutes()
	s.registerWebsocketRoutes()
	s.registerUpdateRoutes()
}

// withAuth returns security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
