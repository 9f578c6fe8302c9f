package paystackwebhook

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/internal/ledger"
	"github.com/agrimarket/agrimarket-backend/internal/payments"
	"github.com/agrimarket/agrimarket-backend/pkg/db/dbtest"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
	"github.com/agrimarket/agrimarket-backend/pkg/metrics"
	"github.com/agrimarket/agrimarket-backend/pkg/outbox"
)

type fixture struct {
	conn    *gorm.DB
	svc     *Service
	order   models.Order
	payment models.Payment
}

// setup seeds a pending order of 2x100 from one farmer and 1x50 from another
// with its pending payment.
func setup(t *testing.T) fixture {
	t.Helper()
	client, conn := dbtest.NewClient(t)
	buyer := dbtest.SeedUser(t, conn, "buyer@example.com", enums.UserRoleBuyer)
	alice := dbtest.SeedUser(t, conn, "alice@example.com", enums.UserRoleFarmer)
	bob := dbtest.SeedUser(t, conn, "bob@example.com", enums.UserRoleFarmer)
	maize := dbtest.SeedProduct(t, conn, alice.ID, "Maize", "100")
	beans := dbtest.SeedProduct(t, conn, bob.ID, "Beans", "50")

	order := models.Order{
		BuyerID:         buyer.ID,
		DeliveryAddress: "Kitale",
		Phone:           "0722000000",
		TotalAmount:     decimal.NewFromInt(250),
		Status:          enums.OrderStatusPending,
	}
	require.NoError(t, conn.Omit("Items", "Payment").Create(&order).Error)
	items := []models.OrderItem{
		{OrderID: order.ID, ProductID: maize.ID, FarmerID: alice.ID, ProductName: "Maize", Quantity: 2, UnitPrice: decimal.NewFromInt(100), LineTotal: decimal.NewFromInt(200)},
		{OrderID: order.ID, ProductID: beans.ID, FarmerID: bob.ID, ProductName: "Beans", Quantity: 1, UnitPrice: decimal.NewFromInt(50), LineTotal: decimal.NewFromInt(50)},
	}
	require.NoError(t, conn.Create(&items).Error)

	payment := models.Payment{
		OrderID:          order.ID,
		Reference:        "ORDER-1-1772366400",
		Amount:           order.TotalAmount,
		Status:           enums.PaymentStatusPending,
		AuthorizationURL: "https://checkout.paystack.com/abc",
	}
	require.NoError(t, conn.Create(&payment).Error)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Payments:          payments.NewRepository(conn),
		Ledger:            ledgerSvc,
		Outbox:            outbox.NewService(outbox.NewRepository(conn), nil),
		TransactionRunner: client,
		Now:               func() time.Time { return time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc, order: order, payment: payment}
}

func chargeSuccess(reference string, amount int64) *Event {
	return &Event{Event: EventChargeSuccess, Data: EventData{Reference: reference, Amount: amount, Status: "success"}}
}

func (f fixture) reload(t *testing.T) (models.Payment, models.Order) {
	t.Helper()
	var payment models.Payment
	require.NoError(t, f.conn.First(&payment, f.payment.ID).Error)
	var order models.Order
	require.NoError(t, f.conn.First(&order, f.order.ID).Error)
	return payment, order
}

func count(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Count(&n).Error)
	return n
}

func TestChargeSuccessMarksPaidOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	raw := []byte(`{"event":"charge.success","data":{"reference":"ORDER-1-1772366400","amount":25000}}`)

	outcome, err := f.svc.HandleEvent(ctx, chargeSuccess(f.payment.Reference, 25000), raw)
	require.NoError(t, err)
	assert.Equal(t, metrics.WebhookApplied, outcome)

	payment, order := f.reload(t)
	assert.Equal(t, enums.PaymentStatusPaid, payment.Status)
	require.NotNil(t, payment.PaidAt)
	assert.JSONEq(t, string(raw), string(payment.GatewayResponse))
	assert.Equal(t, enums.OrderStatusPaid, order.Status)

	var credits []models.LedgerEvent
	require.NoError(t, f.conn.Order("farmer_id ASC").Find(&credits).Error)
	require.Len(t, credits, 2)
	assert.True(t, credits[0].Amount.Equal(decimal.NewFromInt(200)))
	assert.True(t, credits[1].Amount.Equal(decimal.NewFromInt(50)))

	outcome, err = f.svc.HandleEvent(ctx, chargeSuccess(f.payment.Reference, 25000), raw)
	require.NoError(t, err)
	assert.Equal(t, metrics.WebhookDuplicate, outcome)
	assert.Equal(t, int64(2), count(t, f.conn, &models.LedgerEvent{}))

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderPaid, events[0].EventType)
}

func TestChargeSuccessUnknownReference(t *testing.T) {
	f := setup(t)

	outcome, err := f.svc.HandleEvent(context.Background(), chargeSuccess("ORDER-404-1", 25000), nil)
	require.NoError(t, err)
	assert.Equal(t, metrics.WebhookIgnored, outcome)

	payment, order := f.reload(t)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Zero(t, count(t, f.conn, &models.LedgerEvent{}))
}

func TestChargeSuccessAmountMismatchIsIgnored(t *testing.T) {
	f := setup(t)

	outcome, err := f.svc.HandleEvent(context.Background(), chargeSuccess(f.payment.Reference, 100), nil)
	require.NoError(t, err)
	assert.Equal(t, metrics.WebhookIgnored, outcome)

	payment, _ := f.reload(t)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
}

func TestChargeSuccessWithoutAmountIsApplied(t *testing.T) {
	f := setup(t)

	outcome, err := f.svc.HandleEvent(context.Background(), chargeSuccess(f.payment.Reference, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, metrics.WebhookApplied, outcome)
}

func TestChargeSuccessLeavesCancelledOrderAlone(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", f.order.ID).
		Update("status", enums.OrderStatusCancelled).Error)

	outcome, err := f.svc.HandleEvent(context.Background(), chargeSuccess(f.payment.Reference, 25000), nil)
	require.NoError(t, err)
	assert.Equal(t, metrics.WebhookApplied, outcome)

	payment, order := f.reload(t)
	assert.Equal(t, enums.PaymentStatusPaid, payment.Status)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	assert.Zero(t, count(t, f.conn, &models.LedgerEvent{}))
	assert.Zero(t, count(t, f.conn, &models.OutboxEvent{}))
}

func TestOtherEventsAreIgnored(t *testing.T) {
	f := setup(t)

	outcome, err := f.svc.HandleEvent(context.Background(), &Event{Event: "transfer.success"}, nil)
	require.NoError(t, err)
	assert.Equal(t, metrics.WebhookIgnored, outcome)

	payment, _ := f.reload(t)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
}

func TestDeliveryID(t *testing.T) {
	assert.Equal(t, "charge.success:ORDER-1-2", chargeSuccess("ORDER-1-2", 1).DeliveryID())
	assert.Empty(t, (&Event{Event: EventChargeSuccess}).DeliveryID())
}
