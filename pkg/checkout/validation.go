package checkout

import (
	"strings"

	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
)

// ValidateQuantity rejects cart quantities below one.
func ValidateQuantity(quantity int) error {
	if quantity < 1 {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be at least 1, got %d", quantity).
			WithDetails(map[string]any{"quantity": quantity})
	}
	return nil
}

// DeliveryInput is what the buyer supplies at checkout.
type DeliveryInput struct {
	DeliveryAddress string
	Phone           string
	Notes           string
}

// Validate ensures the delivery address and phone are present.
func (in DeliveryInput) Validate() error {
	var missing []string
	if strings.TrimSpace(in.DeliveryAddress) == "" {
		missing = append(missing, "delivery_address")
	}
	if strings.TrimSpace(in.Phone) == "" {
		missing = append(missing, "phone_number")
	}
	if len(missing) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "delivery details are incomplete").WithDetails(map[string]any{
		"missing": missing,
	})
}
