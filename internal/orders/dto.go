package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
)

// OrderSummary is one row of the buyer's order list.
type OrderSummary struct {
	ID               int64             `json:"id"`
	Status           enums.OrderStatus `json:"status"`
	TotalAmount      decimal.Decimal   `json:"total_amount"`
	ItemCount        int               `json:"item_count"`
	PaymentReference *string           `json:"payment_reference,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// OrderItemView is the frozen line as the buyer sees it.
type OrderItemView struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	FarmerID    int64           `json:"farmer_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// PaymentView exposes the payment without the raw gateway payload.
type PaymentView struct {
	Reference        string              `json:"reference"`
	Status           enums.PaymentStatus `json:"status"`
	Amount           decimal.Decimal     `json:"amount"`
	AuthorizationURL string              `json:"authorization_url"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
}

// OrderDetail is returned by GET /orders/{id}.
type OrderDetail struct {
	ID               int64             `json:"id"`
	BuyerID          int64             `json:"buyer_id"`
	Status           enums.OrderStatus `json:"status"`
	TotalAmount      decimal.Decimal   `json:"total_amount"`
	DeliveryAddress  string            `json:"delivery_address"`
	Phone            string            `json:"phone_number"`
	Notes            *string           `json:"notes,omitempty"`
	PaymentReference *string           `json:"payment_reference,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	Items            []OrderItemView   `json:"items"`
	Payment          *PaymentView      `json:"payment,omitempty"`
}

func summaryFromModel(o models.Order) OrderSummary {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return OrderSummary{
		ID:               o.ID,
		Status:           o.Status,
		TotalAmount:      o.TotalAmount,
		ItemCount:        count,
		PaymentReference: o.PaymentReference,
		CreatedAt:        o.CreatedAt,
	}
}

func detailFromModel(o *models.Order) *OrderDetail {
	items := make([]OrderItemView, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemView{
			ID:          item.ID,
			ProductID:   item.ProductID,
			FarmerID:    item.FarmerID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	detail := &OrderDetail{
		ID:               o.ID,
		BuyerID:          o.BuyerID,
		Status:           o.Status,
		TotalAmount:      o.TotalAmount,
		DeliveryAddress:  o.DeliveryAddress,
		Phone:            o.Phone,
		Notes:            o.Notes,
		PaymentReference: o.PaymentReference,
		CreatedAt:        o.CreatedAt,
		Items:            items,
	}
	if p := o.Payment; p != nil {
		detail.Payment = &PaymentView{
			Reference:        p.Reference,
			Status:           p.Status,
			Amount:           p.Amount,
			AuthorizationURL: p.AuthorizationURL,
			PaidAt:           p.PaidAt,
		}
	}
	return detail
}
