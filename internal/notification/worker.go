package notification

import (
	"context"

	domorder "github.com/Zhima-Mochi/storefront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"
)

const componentNotificationWorker = "notification_worker"

// Worker consumes order-placed events and triggers the confirmation email.
// Failures are logged and counted, never propagated back to checkout.
type Worker struct {
	subscriber domoutbox.Subscriber
	mailer     Mailer

	log        observability.Logger
	dispatches observability.Counter
}

func New(subscriber domoutbox.Subscriber, mailer Mailer, tel observability.Telemetry) *Worker {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Worker{
		subscriber: subscriber,
		mailer:     mailer,
		log:        tel.Logger().With(observability.F("component", componentNotificationWorker)),
		dispatches: tel.Counter(observability.MNotificationDispatches),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.mailer == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderPlacedEvent{}.EventName(), w.handleOrderPlaced)
}

func (w *Worker) handleOrderPlaced(ctx context.Context, e domoutbox.Event) error {
	logger := logctx.FromOr(ctx, w.log)

	evt, ok := e.(domorder.OrderPlacedEvent)
	if !ok {
		return nil
	}

	if err := w.mailer.SendOrderConfirmation(ctx, evt.Order, evt.UserEmail); err != nil {
		w.dispatches.Add(1, observability.L("outcome", "error"))
		logger.Warn("order_confirmation_failed",
			observability.F("order_id", evt.Order.ID),
			observability.F("error", err.Error()),
		)
		return err
	}

	w.dispatches.Add(1, observability.L("outcome", "success"))
	logger.Info("order_confirmation_sent",
		observability.F("order_id", evt.Order.ID),
	)
	return nil
}
