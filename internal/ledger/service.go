package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
)

// Service records farmer sale credits.
type Service struct {
	repo Repository
}

// NewService builds a ledger service.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &Service{repo: repo}, nil
}

// FarmerCredit is the amount owed to one farmer for one order.
type FarmerCredit struct {
	FarmerID int64
	Amount   decimal.Decimal
}

// SplitByFarmer sums line totals per farmer, ordered by farmer id.
func SplitByFarmer(items []models.OrderItem) []FarmerCredit {
	totals := map[int64]decimal.Decimal{}
	for _, item := range items {
		totals[item.FarmerID] = totals[item.FarmerID].Add(item.LineTotal)
	}
	credits := make([]FarmerCredit, 0, len(totals))
	for farmerID, amount := range totals {
		credits = append(credits, FarmerCredit{FarmerID: farmerID, Amount: amount})
	}
	sort.Slice(credits, func(i, j int) bool { return credits[i].FarmerID < credits[j].FarmerID })
	return credits
}

// CreditSale writes one sale_credit per farmer on the order inside tx. Replays
// are absorbed by the (order, farmer, type) unique key; the return value counts
// newly written rows.
func (s *Service) CreditSale(ctx context.Context, tx *gorm.DB, orderID int64, items []models.OrderItem) (int, error) {
	repo := s.repo.WithTx(tx)
	written := 0
	for _, credit := range SplitByFarmer(items) {
		created, err := repo.CreateIfAbsent(ctx, &models.LedgerEvent{
			OrderID:  orderID,
			FarmerID: credit.FarmerID,
			Type:     enums.LedgerEventTypeSaleCredit,
			Amount:   credit.Amount,
		})
		if err != nil {
			return written, fmt.Errorf("credit farmer %d: %w", credit.FarmerID, err)
		}
		if created {
			written++
		}
	}
	return written, nil
}

// ListForFarmer returns a farmer's ledger events, newest first.
func (s *Service) ListForFarmer(ctx context.Context, farmerID int64) ([]models.LedgerEvent, error) {
	events, err := s.repo.ListByFarmerID(ctx, farmerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "list ledger events")
	}
	return events, nil
}
