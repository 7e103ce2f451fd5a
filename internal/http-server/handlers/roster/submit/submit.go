package submit

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Zlazh-dev/presensiapp3-sub002/api"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/response"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type RosterSubmitter interface {
	SubmitRoster(ctx context.Context, req *api.RosterSubmitRequest) error
}

type Request struct {
	api.RosterSubmitRequest
}

type Response struct {
	response.Response
	Submitted bool `json:"submitted,omitempty"`
}

func New(log *slog.Logger, svc RosterSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.roster.submit.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		if req.SessionID == "" {
			log.Error("session_id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "session_id is required"))
			return
		}

		if len(req.Entries) == 0 {
			log.Error("entries is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "entries are required"))
			return
		}

		if err := svc.SubmitRoster(r.Context(), &req.RosterSubmitRequest); err != nil {
			log.Error("Failed to submit roster", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to submit roster"))
			return
		}

		log.Info("Roster submitted", slog.String("session_id", req.SessionID), slog.Int("entries", len(req.Entries)))

		render.JSON(w, r, Response{Submitted: true})
	}
}
