package get

import (
	"log/slog"
	"net/http"

	"github.com/Zlazh-dev/presensiapp3-sub002/api"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/response"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type ViewProvider interface {
	SessionView() *api.SessionViewResponse
}

type Response struct {
	response.Response
	api.SessionViewResponse
}

func New(log *slog.Logger, provider ViewProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.session.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		view := provider.SessionView()

		log.Info("Session view rendered", slog.Bool("active", view.Active))

		render.JSON(w, r, Response{
			SessionViewResponse: *view,
		})
	}
}
