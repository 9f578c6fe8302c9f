package controllers

import (
	"context"
	"net/http"

	"github.com/agrimarket/agrimarket-backend/api/middleware"
	"github.com/agrimarket/agrimarket-backend/api/responses"
	"github.com/agrimarket/agrimarket-backend/api/validators"
	"github.com/agrimarket/agrimarket-backend/internal/orders"
	"github.com/agrimarket/agrimarket-backend/internal/payments"
	"github.com/agrimarket/agrimarket-backend/pkg/checkout"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
)

type createOrderRequest struct {
	DeliveryAddress string `json:"delivery_address"`
	Phone           string `json:"phone_number"`
	Notes           string `json:"notes"`
}

// PaymentReinitiator reopens payment for a pending order.
type PaymentReinitiator interface {
	Reinitiate(ctx context.Context, userID, orderID int64) (*payments.Checkout, error)
}

// OrderCreate turns the buyer's cart into an order and starts payment.
func OrderCreate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		payload, err := validators.DecodeJSON[createOrderRequest](r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateOrder(r.Context(), middleware.UserIDFromContext(r.Context()), checkout.DeliveryInput{
			DeliveryAddress: validators.SanitizeString(payload.DeliveryAddress, 500),
			Phone:           validators.SanitizeString(payload.Phone, 32),
			Notes:           validators.SanitizeString(payload.Notes, 1000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusCreated, result)
	}
}

func OrderCheckout(svc PaymentReinitiator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		orderID, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Reinitiate(r.Context(), middleware.UserIDFromContext(r.Context()), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func OrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		list, err := svc.List(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Get(r.Context(), middleware.UserIDFromContext(r.Context()), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}
