package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wardrobe-labs/outfitter/internal/models"
	"github.com/wardrobe-labs/outfitter/internal/pipeline"
	"github.com/wardrobe-labs/outfitter/internal/session"
)

// Pipeline is the set of operations the API exposes
type Pipeline interface {
	StartSession(ctx context.Context) pipeline.Status
	SessionStatus(ctx context.Context) session.State
	CloseSession() pipeline.Status
	HarvestAndNormalize(ctx context.Context, lookbackDays int) ([]string, pipeline.Status)
	Collection() *models.ClothingCollection
	Stage() pipeline.Stage
	Models() []string
	Model() string
	SelectModel(model string) pipeline.Status
	Recommend(ctx context.Context, req models.RecommendationRequest) (models.RecommendationResult, pipeline.Status)
}

type Handler struct {
	pipeline Pipeline
}

func New(p Pipeline) *Handler {
	return &Handler{pipeline: p}
}

// Router mounts the API routes
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/session", h.HandleStartSession)
		r.Get("/session", h.HandleSessionStatus)
		r.Delete("/session", h.HandleCloseSession)
		r.Post("/harvest", h.HandleHarvest)
		r.Get("/wardrobe", h.HandleWardrobe)
		r.Get("/models", h.HandleModels)
		r.Put("/model", h.HandleSelectModel)
		r.Post("/recommendations", h.HandleRecommend)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// httpStatus maps a pipeline status to a response code. Partial harvests
// still carry data and are reported as success.
func httpStatus(s pipeline.Status) int {
	switch s.Kind {
	case pipeline.KindOK, pipeline.KindPartialHarvest:
		return http.StatusOK
	case pipeline.KindLoginFailure, pipeline.KindSessionExpired:
		return http.StatusUnauthorized
	case pipeline.KindNoDataAvailable:
		return http.StatusConflict
	case pipeline.KindInvalidModel:
		return http.StatusBadRequest
	case pipeline.KindModelCallFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
