package create

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Zlazh-dev/presensiapp3-sub002/api"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/models"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/response"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type CheckInner interface {
	CheckIn(ctx context.Context, req *api.CheckInRequest) (*api.CheckInResponse, error)
}

type Request struct {
	api.CheckInRequest
}

type Response struct {
	response.Response
	Session  *api.SessionDTO  `json:"session,omitempty"`
	Roster   []api.StudentDTO `json:"roster,omitempty"`
	Conflict *api.ConflictDTO `json:"conflict,omitempty"`
}

func New(log *slog.Logger, svc CheckInner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.checkin.create.New"

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

		if req.Token == "" {
			log.Error("token is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "token is required"))
			return
		}

		result, err := svc.CheckIn(r.Context(), &req.CheckInRequest)

		var conflict *models.ConflictError
		if errors.As(err, &conflict) {
			log.Error("session conflict", slog.String("conflicting_session", conflict.SessionID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, Response{
				Response: response.Error(string(response.SESSION_CONFLICT), conflict.Error()),
				Conflict: &api.ConflictDTO{
					SessionID: conflict.SessionID,
					ClassName: conflict.ClassName,
					Subject:   conflict.Subject,
				},
			})
			return
		}

		if err != nil {
			log.Error("Failed to check in", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to check in"))
			return
		}

		log.Info("Checked in", slog.String("session_id", result.Session.ID))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{
			Session: &result.Session,
			Roster:  result.Roster,
		})
	}
}
