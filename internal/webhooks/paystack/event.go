package paystackwebhook

import "strings"

const (
	EventChargeSuccess = "charge.success"
	Provider           = "paystack"
)

// Event is the part of a Paystack webhook body we act on.
type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

type EventData struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	PaidAt    string `json:"paid_at"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// DeliveryID identifies a delivery for the duplicate guard. Empty when the
// event carries no reference.
func (e Event) DeliveryID() string {
	ref := strings.TrimSpace(e.Data.Reference)
	if ref == "" {
		return ""
	}
	return strings.TrimSpace(e.Event) + ":" + ref
}
