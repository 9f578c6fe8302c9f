package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/agrimarket/agrimarket-backend/api/responses"
	paystackwebhook "github.com/agrimarket/agrimarket-backend/internal/webhooks/paystack"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
	"github.com/agrimarket/agrimarket-backend/pkg/metrics"
	"github.com/agrimarket/agrimarket-backend/pkg/paystack"
)

const maxWebhookBody = 1 << 20

type PaystackWebhookService interface {
	HandleEvent(ctx context.Context, event *paystackwebhook.Event, raw []byte) (string, error)
}

type PaystackWebhookGuard interface {
	CheckAndMark(ctx context.Context, deliveryID string) (bool, error)
	Delete(ctx context.Context, deliveryID string) error
}

// PaystackWebhook verifies and applies Paystack events. Replies carry no body:
// 200 when accepted or ignored, 400 on a bad signature or payload, 5xx when the
// event could not be stored and Paystack should retry.
func PaystackWebhook(svc PaystackWebhookService, secret string, guard PaystackWebhookGuard, m *metrics.CheckoutMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || secret == "" {
			logError(ctx, logg, "paystack webhook not configured", nil)
			responses.WriteStatus(w, http.StatusInternalServerError)
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			reject(ctx, logg, w, m, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if !paystack.VerifySignature(secret, payload, r.Header.Get(paystack.SignatureHeader)) {
			reject(ctx, logg, w, m, pkgerrors.New(pkgerrors.CodeSignature, "invalid paystack signature"))
			return
		}

		var event paystackwebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			reject(ctx, logg, w, m, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"event": event.Event, "payment_reference": event.Data.Reference})
		}

		deliveryID := event.DeliveryID()
		guarded := false
		if guard != nil && deliveryID != "" {
			seen, err := guard.CheckAndMark(ctx, deliveryID)
			switch {
			case err != nil:
				// the database decides; a Redis outage must not block payments
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "webhook guard unavailable")
				}
			case seen:
				m.IncWebhook(event.Event, metrics.WebhookDuplicate)
				responses.WriteStatus(w, http.StatusOK)
				return
			default:
				guarded = true
			}
		}

		applied := false
		if guarded {
			defer func() {
				if applied {
					return
				}
				// failures and panics free the delivery for Paystack's retry.
				if err := guard.Delete(context.WithoutCancel(ctx), deliveryID); err != nil {
					logError(ctx, logg, "release webhook guard", err)
				}
			}()
		}

		outcome, err := svc.HandleEvent(ctx, &event, payload)
		if err != nil {
			m.IncWebhook(event.Event, metrics.WebhookFailed)
			logError(ctx, logg, "paystack webhook failed", err)
			responses.WriteStatus(w, pkgerrors.MetadataFor(codeOf(err)).HTTPStatus)
			return
		}

		applied = true
		m.IncWebhook(event.Event, outcome)
		if logg != nil {
			logg.Info(logg.WithField(ctx, "outcome", outcome), "paystack webhook processed")
		}
		responses.WriteStatus(w, http.StatusOK)
	}
}

func reject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, m *metrics.CheckoutMetrics, err *pkgerrors.Error) {
	m.IncWebhook("", metrics.WebhookRejected)
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{"error": err.Error()}), "paystack webhook rejected")
	}
	responses.WriteStatus(w, http.StatusBadRequest)
}

func codeOf(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return pkgerrors.CodeInternal
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg != nil {
		logg.Error(ctx, msg, err)
	}
}
