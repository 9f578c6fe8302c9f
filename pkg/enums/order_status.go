package enums

// OrderStatus tracks an order through payment.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatuses = values[OrderStatus]{OrderStatusPending, OrderStatusPaid, OrderStatusCancelled}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return orderStatuses.has(s) }

// CanTransitionTo allows pending to paid and pending to cancelled. Paid and
// cancelled are terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderStatusPending && (next == OrderStatusPaid || next == OrderStatusCancelled)
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	return orderStatuses.parse("order status", value)
}
