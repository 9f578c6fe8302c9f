package outbox

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is queued when a cart becomes an order.
type OrderCreatedEvent struct {
	OrderID     int64           `json:"orderId"`
	BuyerID     int64           `json:"buyerId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ItemCount   int             `json:"itemCount"`
	FarmerIDs   []int64         `json:"farmerIds"`
}

// OrderPaidEvent is queued when the gateway confirms payment.
type OrderPaidEvent struct {
	OrderID          int64           `json:"orderId"`
	BuyerID          int64           `json:"buyerId"`
	PaymentReference string          `json:"paymentReference"`
	Amount           decimal.Decimal `json:"amount"`
	PaidAt           time.Time       `json:"paidAt"`
}

// OrderCancelledEvent is queued when an unpaid order expires.
type OrderCancelledEvent struct {
	OrderID     int64     `json:"orderId"`
	BuyerID     int64     `json:"buyerId"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelledAt"`
}
