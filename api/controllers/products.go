package controllers

import (
	"context"
	"net/http"

	"github.com/agrimarket/agrimarket-backend/api/middleware"
	"github.com/agrimarket/agrimarket-backend/api/responses"
	"github.com/agrimarket/agrimarket-backend/api/validators"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
)

// FarmerProductService is the farmer-facing product surface.
type FarmerProductService interface {
	ListForFarmer(ctx context.Context, farmerID int64) ([]models.Product, error)
	DeleteForFarmer(ctx context.Context, farmerID, productID int64) error
}

func FarmerProductList(svc FarmerProductService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		rows, err := svc.ListForFarmer(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]*productResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newProductResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// FarmerProductDelete removes a listing. Listings already sold answer 409.
func FarmerProductDelete(svc FarmerProductService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteForFarmer(r.Context(), middleware.UserIDFromContext(r.Context()), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteStatus(w, http.StatusNoContent)
	}
}
