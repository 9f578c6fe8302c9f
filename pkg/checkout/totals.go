package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
)

var hundred = decimal.NewFromInt(100)

// LineTotal returns quantity x unit price.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// CartTotal sums quantity x current product price over the provided lines.
// Lines without a loaded product contribute nothing. This is the only place cart
// and order totals are computed.
func CartTotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		if line.Product == nil {
			continue
		}
		total = total.Add(LineTotal(line.Product.Price, line.Quantity))
	}
	return total
}

// MinorUnits converts a KES amount into the integer cents the gateway expects.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
