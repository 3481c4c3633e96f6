// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"meal-diary/internal/models"
	"meal-diary/internal/storage"
)

const Version = "1.0.0"

type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// Store is the record store the tools operate on.
type Store interface {
	SaveEntry(ctx context.Context, in models.NewEntry) (models.DiaryEntry, error)
	ListEntries(ctx context.Context, day string) ([]models.DiaryEntry, error)
	UpdateEntryQuantity(ctx context.Context, id string, quantity float64) (*models.EntryUpdate, error)
	DeleteEntry(ctx context.Context, id string) error
	DailyAggregate(ctx context.Context, day string) (models.MacroSnapshot, error)
	SlotTotals(ctx context.Context, day string) (models.SlotTargets, error)
	SetDailyTarget(ctx context.Context, day string, t models.DailyTarget) error
	DailyTarget(ctx context.Context, day string) (models.DailyTarget, error)
	SetSlotTarget(ctx context.Context, day string, slot models.MealSlot, t models.MacroSnapshot) error
	SlotTargets(ctx context.Context, day string) (models.SlotTargets, error)
	ClearSlotTargets(ctx context.Context, day string) error
}

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

type DiaryServer struct {
	router     *chi.Mux
	httpServer *http.Server
	store      Store
	tools      map[string]toolHandler
	info       protocol.Implementation
	log        zerolog.Logger
}

func NewDiaryServer(cfg *Config, store Store, log zerolog.Logger) *DiaryServer {
	s := &DiaryServer{
		router: chi.NewRouter(),
		store:  store,
		info:   protocol.Implementation{Name: "meal-diary", Version: Version},
		log:    log.With().Str("component", "server").Logger(),
	}
	s.registerTools()
	s.setupMiddleware(cfg.AllowedOrigins)
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *DiaryServer) Handler() http.Handler {
	return s.router
}

func (s *DiaryServer) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *DiaryServer) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/", s.handleHTTP)
	s.router.Post("/tools", s.handleHTTP)
}

func (s *DiaryServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"server": s.info,
	})
}

func (s *DiaryServer) handleHTTP(w http.ResponseWriter, r *http.Request) {
	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	handler, ok := s.tools[request.Name]
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown tool: %s", request.Name), http.StatusNotFound)
		return
	}

	result, err := handler(r.Context(), &request)
	if err != nil {
		status := statusFor(err)
		ev := s.log.Warn()
		if status == http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Err(err).Str("tool", request.Name).Int("status", status).Msg("Tool call failed")
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.log.Error().Err(err).Str("tool", request.Name).Msg("Failed to encode response")
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalid), errors.Is(err, errInvalidParams):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *DiaryServer) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("Starting meal diary server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *DiaryServer) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down meal diary server")
	return s.httpServer.Shutdown(ctx)
}

func (s *DiaryServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
