// Package handler exposes the karma engine over HTTP.
package handler

//go:generate mockgen -source=handler.go -destination=../mocks/handler_mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kudos/internal/karma"
	"kudos/internal/rank"
	id "kudos/pkg/domain"
	dErrors "kudos/pkg/domain-errors"
	"kudos/pkg/platform/httputil"
	"kudos/pkg/requestcontext"
)

// Service is the engine surface the handler consumes.
type Service interface {
	Observe(ctx context.Context, userID id.UserID) error
	StopObserving(userID id.UserID)
	CurrentState(userID id.UserID) (*karma.UserState, error)
	Standing(userID id.UserID) (rank.Standing, error)
}

// Appender records new activities in the durable ledger.
type Appender interface {
	Append(ctx context.Context, act karma.Activity) error
}

// Publisher pushes newly appended activities onto the live stream.
type Publisher interface {
	Publish(ctx context.Context, act karma.Activity) error
}

// Handler handles karma endpoints.
type Handler struct {
	logger    *slog.Logger
	service   Service
	ledger    Appender
	publisher Publisher
}

// New creates a karma Handler.
func New(service Service, ledger Appender, publisher Publisher, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		ledger:    ledger,
		publisher: publisher,
	}
}

// Register registers the karma routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/karma/{userID}", func(r chi.Router) {
		r.Post("/observe", h.handleObserve)
		r.Delete("/observe", h.handleStopObserving)
		r.Get("/", h.handleCurrentState)
		r.Get("/standing", h.handleStanding)
		r.Post("/activities", h.handleCreateActivity)
	})
}

func (h *Handler) userID(r *http.Request) (id.UserID, error) {
	return id.ParseUserID(chi.URLParam(r, "userID"))
}

// handleObserve starts (or retries) observation of a user.
func (h *Handler) handleObserve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := h.userID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Observe(ctx, userID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnavailable) {
			h.logger.WarnContext(ctx, "observe failed, snapshot source unavailable",
				"request_id", requestcontext.RequestID(ctx),
				"user_id", userID,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "observe failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleStopObserving tears an observation down. Idempotent: stopping a user
// that isn't observed succeeds.
func (h *Handler) handleStopObserving(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.service.StopObserving(userID)
	w.WriteHeader(http.StatusNoContent)
}

// handleCurrentState returns the user's live aggregate.
func (h *Handler) handleCurrentState(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	state, err := h.service.CurrentState(userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, state)
}

// handleStanding returns the user's rank progress.
func (h *Handler) handleStanding(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	standing, err := h.service.Standing(userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, standing)
}

// CreateActivityRequest is the payload for appending a new activity.
type CreateActivityRequest struct {
	Type        string `json:"activity_type"`
	Points      int    `json:"points"`
	Description string `json:"description,omitempty"`
}

// handleCreateActivity appends an activity to the ledger and publishes it on
// the live stream. The ledger write is authoritative; a publish failure is
// logged but does not fail the request, since observers recover the activity
// from their next snapshot.
func (h *Handler) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := h.userID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := httputil.Decode[CreateActivityRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	act := karma.Activity{
		ID:          id.NewActivityID(),
		UserID:      userID,
		Type:        req.Type,
		Points:      req.Points,
		Description: req.Description,
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := act.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.ledger.Append(ctx, act); err != nil {
		h.logger.ErrorContext(ctx, "activity append failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to record activity"))
		return
	}

	if h.publisher != nil {
		publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := h.publisher.Publish(publishCtx, act); err != nil {
			h.logger.ErrorContext(ctx, "activity publish failed",
				"request_id", requestcontext.RequestID(ctx),
				"user_id", userID,
				"activity_id", act.ID,
				"error", err,
			)
		}
	}

	httputil.WriteJSON(w, http.StatusCreated, act)
}
