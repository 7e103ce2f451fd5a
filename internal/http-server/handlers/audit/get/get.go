package get

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Zlazh-dev/presensiapp3-sub002/api"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/response"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type AuditLister interface {
	ListAudit(ctx context.Context, sessionID *string, from, to *time.Time) ([]*api.CheckoutAttemptResponse, error)
}

type Response struct {
	response.Response
	Attempts []api.CheckoutAttemptResponse `json:"attempts,omitempty"`
}

func New(log *slog.Logger, lister AuditLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.audit.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		sessionID := r.URL.Query().Get("session_id")
		fromStr := r.URL.Query().Get("from")
		toStr := r.URL.Query().Get("to")

		var sessionIDPtr *string
		if sessionID != "" {
			sessionIDPtr = &sessionID
		}

		var from, to *time.Time
		if fromStr != "" {
			if t, err := time.Parse(time.RFC3339, fromStr); err == nil {
				from = &t
			} else if t, err := time.Parse("2006-01-02", fromStr); err == nil {
				from = &t
			}
		}
		if toStr != "" {
			if t, err := time.Parse(time.RFC3339, toStr); err == nil {
				to = &t
			} else if t, err := time.Parse("2006-01-02", toStr); err == nil {
				to = &t
			}
		}

		attempts, err := lister.ListAudit(r.Context(), sessionIDPtr, from, to)

		if err != nil {
			log.Error("Failed to list checkout attempts", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list checkout attempts"))
			return
		}

		log.Info("Checkout attempts retrieved", slog.Int("count", len(attempts)))

		attemptsResponse := make([]api.CheckoutAttemptResponse, len(attempts))
		for i, a := range attempts {
			attemptsResponse[i] = *a
		}
		render.JSON(w, r, Response{
			Attempts: attemptsResponse,
		})
	}
}
