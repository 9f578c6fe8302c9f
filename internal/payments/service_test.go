package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/internal/users"
	"github.com/agrimarket/agrimarket-backend/pkg/db/dbtest"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
	"github.com/agrimarket/agrimarket-backend/pkg/paystack"
)

type stubGateway struct {
	calls int
	last  paystack.InitializeRequest
	err   error
}

func (s *stubGateway) InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeData, error) {
	s.calls++
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &paystack.InitializeData{
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		AccessCode:       "code",
		Reference:        req.Reference,
	}, nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	conn    *gorm.DB
	svc     *Service
	gateway *stubGateway
	buyer   models.User
	other   models.User
	order   models.Order
}

func setup(t *testing.T) fixture {
	t.Helper()
	client, conn := dbtest.NewClient(t)
	buyer := dbtest.SeedUser(t, conn, "buyer@example.com", enums.UserRoleBuyer)
	other := dbtest.SeedUser(t, conn, "other@example.com", enums.UserRoleBuyer)
	order := models.Order{
		BuyerID:         buyer.ID,
		DeliveryAddress: "Eldoret",
		Phone:           "0711000000",
		TotalAmount:     decimal.NewFromInt(250),
		Status:          enums.OrderStatusPending,
	}
	require.NoError(t, conn.Create(&order).Error)

	gateway := &stubGateway{}
	svc, err := NewService(ServiceParams{
		Repo:              NewRepository(conn),
		Users:             users.NewRepository(conn),
		Gateway:           gateway,
		TransactionRunner: client,
		CallbackURL:       "http://localhost:5173/payment/verify",
		Now:               func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc, gateway: gateway, buyer: buyer, other: other, order: order}
}

func TestInitiateRecordsPendingPayment(t *testing.T) {
	f := setup(t)

	co, err := f.svc.Initiate(context.Background(), &f.order, f.buyer.Email)
	require.NoError(t, err)

	wantRef := Reference(f.order.ID, fixedNow)
	assert.Equal(t, wantRef, co.Reference)
	assert.Equal(t, f.order.ID, co.OrderID)
	assert.Equal(t, int64(25000), f.gateway.last.Amount)
	assert.Equal(t, "buyer@example.com", f.gateway.last.Email)
	assert.Equal(t, "http://localhost:5173/payment/verify", f.gateway.last.CallbackURL)

	var payment models.Payment
	require.NoError(t, f.conn.Where("order_id = ?", f.order.ID).First(&payment).Error)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
	assert.True(t, payment.Amount.Equal(f.order.TotalAmount))
	assert.Equal(t, co.AuthorizationURL, payment.AuthorizationURL)

	var order models.Order
	require.NoError(t, f.conn.First(&order, f.order.ID).Error)
	require.NotNil(t, order.PaymentReference)
	assert.Equal(t, wantRef, *order.PaymentReference)
}

func TestInitiateGatewayFailureWritesNothing(t *testing.T) {
	f := setup(t)
	f.gateway.err = pkgerrors.New(pkgerrors.CodeDependency, "paystack rejected transaction: Invalid key")

	_, err := f.svc.Initiate(context.Background(), &f.order, f.buyer.Email)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePaymentInit, typed.Code())
	assert.Equal(t, map[string]any{"order_id": f.order.ID}, typed.Details())

	var count int64
	require.NoError(t, f.conn.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count)

	var order models.Order
	require.NoError(t, f.conn.First(&order, f.order.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Nil(t, order.PaymentReference)
}

func TestReinitiateReturnsExistingPendingPayment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.Initiate(ctx, &f.order, f.buyer.Email)
	require.NoError(t, err)

	again, err := f.svc.Reinitiate(ctx, f.buyer.ID, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, f.gateway.calls)
}

func TestReinitiateAfterFailedInitiation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.gateway.err = errors.New("timeout")
	_, err := f.svc.Initiate(ctx, &f.order, f.buyer.Email)
	require.Error(t, err)

	f.gateway.err = nil
	co, err := f.svc.Reinitiate(ctx, f.buyer.ID, f.order.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, co.AuthorizationURL)
	assert.Equal(t, 2, f.gateway.calls)
}

func TestReinitiateGuards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Reinitiate(ctx, f.buyer.ID, f.order.ID+50)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = f.svc.Reinitiate(ctx, f.other.ID, f.order.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden), "got %v", err)

	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", f.order.ID).Update("status", enums.OrderStatusPaid).Error)
	_, err = f.svc.Reinitiate(ctx, f.buyer.ID, f.order.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "got %v", err)
	assert.Zero(t, f.gateway.calls)
}

func TestRepositoryMarkPaidIsCompareAndSwap(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Initiate(ctx, &f.order, f.buyer.Email)
	require.NoError(t, err)
	payment, err := f.svc.repo.FindByOrderID(ctx, f.order.ID)
	require.NoError(t, err)

	rows, err := f.svc.repo.MarkPaid(ctx, payment.ID, fixedNow, []byte(`{"event":"charge.success"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = f.svc.repo.MarkPaid(ctx, payment.ID, fixedNow, nil)
	require.NoError(t, err)
	assert.Zero(t, rows)

	rows, err = f.svc.repo.MarkOrderPaid(ctx, f.order.ID, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	rows, err = f.svc.repo.MarkOrderPaid(ctx, f.order.ID, fixedNow)
	require.NoError(t, err)
	assert.Zero(t, rows)
}

func TestReferenceFormat(t *testing.T) {
	assert.Equal(t, "ORDER-42-1772366400", Reference(42, fixedNow))
}
