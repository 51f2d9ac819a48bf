package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/leafsii/feed-backend/internal/apperr"
	"github.com/leafsii/feed-backend/internal/comments"
	"github.com/leafsii/feed-backend/internal/config"
	"github.com/leafsii/feed-backend/internal/db/entities"
	"github.com/leafsii/feed-backend/internal/db/interfaces"
	"github.com/leafsii/feed-backend/internal/karma"
	"github.com/leafsii/feed-backend/internal/likes"
	"github.com/leafsii/feed-backend/internal/posts"
	"github.com/leafsii/feed-backend/internal/ws"
)

const maxBodyBytes = 1 << 20

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	db         interfaces.Database
	bus        Pinger
	postSvc    *posts.Service
	commentSvc *comments.Service
	ledger     *likes.Ledger
	aggregator *karma.Aggregator
	wsHub      *ws.Hub
	sseHandler *ws.SSEHandler
	config     *config.Config
	logger     *zap.SugaredLogger
}

func NewHandler(
	db interfaces.Database,
	bus Pinger,
	postSvc *posts.Service,
	commentSvc *comments.Service,
	ledger *likes.Ledger,
	aggregator *karma.Aggregator,
	wsHub *ws.Hub,
	sseHandler *ws.SSEHandler,
	config *config.Config,
	logger *zap.SugaredLogger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		db:         db,
		bus:        bus,
		postSvc:    postSvc,
		commentSvc: commentSvc,
		ledger:     ledger,
		aggregator: aggregator,
		wsHub:      wsHub,
		sseHandler: sseHandler,
		config:     config,
		logger:     logger,
	}
}

// Health and ops endpoints
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dto := ReadinessDTO{Status: "ready", Checks: map[string]string{"database": "ok", "bus": "ok"}}
	status := http.StatusOK

	if !h.db.IsHealthy(ctx) {
		dto.Checks["database"] = "unavailable"
		dto.Status, status = "not_ready", http.StatusServiceUnavailable
	}
	if h.bus != nil {
		if err := h.bus.Ping(ctx); err != nil {
			dto.Checks["bus"] = err.Error()
			dto.Status, status = "not_ready", http.StatusServiceUnavailable
		}
	}

	h.writeJSON(w, status, dto)
}

// WebSocket endpoint
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHub.HandleWebSocket(w, r)
}

// SSE endpoint
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.sseHandler.HandleSSE(w, r)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id, _ := CallerID(r.Context())
	user, err := h.db.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			err = apperr.ErrUserNotFound
		}
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entities.Author{ID: user.ID, Username: user.Username})
}

// Utility methods
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.logger.Debugw("API error", "code", code, "message", message, "status", status)
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// writeAppError maps a service error onto its HTTP status. Unclassified
// errors are logged and reported as 500 without internal detail.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	if !ok {
		h.logger.Errorw("Request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL", Message: "internal error"})
		return
	}
	h.writeError(w, StatusFor(e.Kind), e.Code, e.Message)
}

// StatusFor returns the HTTP status for an error kind
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindSelfLike:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindNotLiked:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return false
	}
	return true
}

// pathID parses a positive {id} route parameter
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", fmt.Sprintf("invalid id %q", raw))
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
