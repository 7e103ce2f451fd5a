package watch

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Zlazh-dev/presensiapp3-sub002/api"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/gorilla/websocket"
)

type ViewProvider interface {
	SessionView() *api.SessionViewResponse
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// New streams the session view over a websocket once per tick interval, so a
// display can follow the countdown without polling.
func New(log *slog.Logger, provider ViewProvider, interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.session.watch.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("Failed to upgrade to websocket", sl.Err(err))
			return
		}
		defer conn.Close()

		log.Info("Watch stream opened", slog.String("remote", r.RemoteAddr))

		if err := conn.WriteJSON(provider.SessionView()); err != nil {
			log.Error("Failed to write initial view", sl.Err(err))
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				log.Info("Watch stream closed by server shutdown")
				return
			case <-ticker.C:
				if err := conn.WriteJSON(provider.SessionView()); err != nil {
					log.Info("Watch client disconnected", sl.Err(err))
					return
				}
			}
		}
	}
}
