package controllers

import (
	"net/http"

	"github.com/agrimarket/agrimarket-backend/api/middleware"
	"github.com/agrimarket/agrimarket-backend/api/responses"
	"github.com/agrimarket/agrimarket-backend/api/validators"
	cartsvc "github.com/agrimarket/agrimarket-backend/internal/cart"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
)

type addCartLineRequest struct {
	ProductID int64 `json:"product_id" validate:"required,min=1"`
	Quantity  int   `json:"quantity"`
}

type updateCartLineRequest struct {
	Quantity int `json:"quantity"`
}

// CartAdd puts a product in the buyer's cart, replacing the quantity if present.
func CartAdd(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		payload, err := validators.DecodeJSON[addCartLineRequest](r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		line, err := svc.AddOrUpdate(r.Context(), middleware.UserIDFromContext(r.Context()), payload.ProductID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusCreated, newCartLineResponse(line))
	}
}

func CartUpdate(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		lineID, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload, err := validators.DecodeJSON[updateCartLineRequest](r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		line, err := svc.UpdateLine(r.Context(), middleware.UserIDFromContext(r.Context()), lineID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartLineResponse(line))
	}
}

func CartRemove(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		lineID, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Remove(r.Context(), middleware.UserIDFromContext(r.Context()), lineID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteStatus(w, http.StatusNoContent)
	}
}

// CartList returns the cart with a total computed from current prices.
func CartList(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		view, err := svc.List(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]cartLineResponse, 0, len(view.Items))
		for i := range view.Items {
			items = append(items, newCartLineResponse(&view.Items[i]))
		}
		responses.WriteSuccess(w, cartResponse{Items: items, Total: view.Total})
	}
}
