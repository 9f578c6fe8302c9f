package checkout

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
)

func line(price string, qty int) models.CartLine {
	return models.CartLine{Quantity: qty, Product: &models.Product{Price: decimal.RequireFromString(price)}}
}

func TestCartTotal(t *testing.T) {
	lines := []models.CartLine{line("100", 2), line("50", 1)}
	if got := CartTotal(lines); !got.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected 250, got %s", got)
	}
}

func TestCartTotalEmptyAndMissingProduct(t *testing.T) {
	if got := CartTotal(nil); !got.IsZero() {
		t.Fatalf("expected zero total, got %s", got)
	}
	lines := []models.CartLine{{Quantity: 3}, line("12.50", 2)}
	if got := CartTotal(lines); !got.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("expected 25, got %s", got)
	}
}

func TestMinorUnits(t *testing.T) {
	tests := map[string]int64{
		"250":     25000,
		"0.01":    1,
		"1234.56": 123456,
		"0":       0,
	}
	for in, want := range tests {
		if got := MinorUnits(decimal.RequireFromString(in)); got != want {
			t.Fatalf("MinorUnits(%s): expected %d got %d", in, want, got)
		}
	}
}

func TestValidateQuantity(t *testing.T) {
	if err := ValidateQuantity(1); err != nil {
		t.Fatalf("expected 1 to be valid, got %v", err)
	}
	err := ValidateQuantity(0)
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeliveryInputValidate(t *testing.T) {
	if err := (DeliveryInput{DeliveryAddress: "Kisumu", Phone: "0700"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := DeliveryInput{DeliveryAddress: "  "}.Validate()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %T", err)
	}
	if typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", typed.Code())
	}
	missing, _ := typed.Details().(map[string]any)["missing"].([]string)
	if len(missing) != 2 {
		t.Fatalf("expected both fields missing, got %v", missing)
	}
}
