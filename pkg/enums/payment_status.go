package enums

// PaymentStatus tracks the gateway transaction behind an order.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

var paymentStatuses = values[PaymentStatus]{PaymentStatusPending, PaymentStatusPaid}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return paymentStatuses.has(p) }

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return paymentStatuses.parse("payment status", value)
}
