package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrimarket/agrimarket-backend/api/middleware"
	"github.com/agrimarket/agrimarket-backend/api/responses"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
)

// FarmerSalesService lists the ledger credits owed to a farmer.
type FarmerSalesService interface {
	ListForFarmer(ctx context.Context, farmerID int64) ([]models.LedgerEvent, error)
}

type saleCreditResponse struct {
	ID        int64                 `json:"id"`
	OrderID   int64                 `json:"order_id"`
	Type      enums.LedgerEventType `json:"type"`
	Amount    decimal.Decimal       `json:"amount"`
	CreatedAt time.Time             `json:"created_at"`
}

type farmerSalesResponse struct {
	Credits []saleCreditResponse `json:"credits"`
	Total   decimal.Decimal      `json:"total"`
}

// FarmerSales answers the caller's sale credits, newest first, with their sum.
func FarmerSales(svc FarmerSalesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		events, err := svc.ListForFarmer(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := farmerSalesResponse{Credits: make([]saleCreditResponse, 0, len(events)), Total: decimal.Zero}
		for _, ev := range events {
			out.Credits = append(out.Credits, saleCreditResponse{
				ID:        ev.ID,
				OrderID:   ev.OrderID,
				Type:      ev.Type,
				Amount:    ev.Amount,
				CreatedAt: ev.CreatedAt,
			})
			out.Total = out.Total.Add(ev.Amount)
		}
		responses.WriteSuccess(w, out)
	}
}
