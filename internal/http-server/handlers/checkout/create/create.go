package create

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Zlazh-dev/presensiapp3-sub002/api"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/checkout"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/models"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/response"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type CheckOuter interface {
	Checkout(ctx context.Context, req *api.CheckoutRequest) (*api.CheckoutResponse, error)
}

type Request struct {
	api.CheckoutRequest
}

type Response struct {
	response.Response
	Completed     bool                  `json:"completed,omitempty"`
	EarlyCheckout *api.EarlyCheckoutDTO `json:"early_checkout,omitempty"`
}

func New(log *slog.Logger, svc CheckOuter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.checkout.create.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		// an empty body means a normal (no-reason) checkout attempt
		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		result, err := svc.Checkout(r.Context(), &req.CheckoutRequest)

		var earlyErr *models.EarlyCheckoutError
		switch {
		case err == nil:
			log.Info("Checkout completed")
			render.JSON(w, r, Response{Completed: result.Completed})

		case errors.As(err, &earlyErr):
			log.Info("Early checkout requires a reason",
				slog.Int("elapsed_percent", earlyErr.Context.ElapsedPercent))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, Response{
				Response:      response.Error(string(response.EARLY_CHECKOUT_REQUIRED), earlyErr.Error()),
				EarlyCheckout: toEarlyDTO(earlyErr.Context),
			})

		case errors.Is(err, checkout.ErrReasonRequired), errors.Is(err, checkout.ErrUnknownReason):
			log.Error("Checkout reason validation failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.REASON_REQUIRED), err.Error()))

		case errors.Is(err, checkout.ErrRejectionLoop):
			log.Error("Checkout rejection loop", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.CHECKOUT_LOOP), err.Error()))

		case errors.Is(err, response.ErrNoActiveSession):
			log.Error("No active session to check out")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NO_ACTIVE_SESSION), "no active session"))

		case errors.Is(err, response.ErrLocked):
			log.Error("Checkout already in flight")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "a checkout is already in flight"))

		default:
			log.Error("Failed to check out", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to check out"))
		}
	}
}

func toEarlyDTO(ctx models.EarlyCheckoutContext) *api.EarlyCheckoutDTO {
	reasons := make([]api.ReasonOptionDTO, 0, len(ctx.AvailableReasons))
	for _, reason := range ctx.AvailableReasons {
		reasons = append(reasons, api.ReasonOptionDTO{Value: reason.Value, Label: reason.Label})
	}

	return &api.EarlyCheckoutDTO{
		ElapsedPercent:             ctx.ElapsedPercent,
		ElapsedMinutes:             ctx.ElapsedMinutes,
		TotalMinutes:               ctx.TotalMinutes,
		MinutesUntilNormalCheckout: ctx.MinutesUntilNormalCheckout,
		AvailableReasons:           reasons,
	}
}
