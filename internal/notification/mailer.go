package notification

import (
	"context"

	domorder "github.com/Zhima-Mochi/storefront/internal/domain/order"
	"github.com/Zhima-Mochi/storefront/internal/observability"
)

// Mailer is the external email sink. Delivery is owned by another system;
// this service only hands the order over.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, ord *domorder.Order, email string) error
}

// LogMailer stands in for the real delivery service in local runs and tests.
type LogMailer struct {
	log observability.Logger
}

func NewLogMailer(logger observability.Logger) *LogMailer {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LogMailer{log: logger.With(observability.F("component", "log_mailer"))}
}

func (m *LogMailer) SendOrderConfirmation(_ context.Context, ord *domorder.Order, email string) error {
	m.log.Info("order_confirmation_email",
		observability.F("order_id", ord.ID),
		observability.F("status", string(ord.Status)),
		observability.F("email", email),
	)
	return nil
}
