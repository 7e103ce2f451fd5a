package dismiss

import (
	"log/slog"
	"net/http"

	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/response"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type NoticeDismisser interface {
	DismissNotice()
}

type Response struct {
	response.Response
	Dismissed bool `json:"dismissed"`
}

// New clears the transient error message shown after a failed refetch or
// mutation. The timer and push subscription were never affected by it.
func New(log *slog.Logger, svc NoticeDismisser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.notice.dismiss.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		svc.DismissNotice()

		log.Info("Notice dismissed")

		render.JSON(w, r, Response{Dismissed: true})
	}
}
