package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/internal/cart"
	"github.com/agrimarket/agrimarket-backend/internal/payments"
	"github.com/agrimarket/agrimarket-backend/internal/users"
	"github.com/agrimarket/agrimarket-backend/pkg/checkout"
	"github.com/agrimarket/agrimarket-backend/pkg/db/dbtest"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
	"github.com/agrimarket/agrimarket-backend/pkg/outbox"
	"github.com/agrimarket/agrimarket-backend/pkg/paystack"
)

type stubGateway struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubGateway) InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &paystack.InitializeData{
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

type fixture struct {
	conn     *gorm.DB
	svc      Service
	gateway  *stubGateway
	buyer    models.User
	other    models.User
	tomatoes models.Product
	kale     models.Product
}

func setup(t *testing.T) fixture {
	t.Helper()
	client, conn := dbtest.NewClient(t)
	farmer := dbtest.SeedUser(t, conn, "farmer@example.com", enums.UserRoleFarmer)
	gateway := &stubGateway{}

	userRepo := users.NewRepository(conn)
	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Repo:              payments.NewRepository(conn),
		Users:             userRepo,
		Gateway:           gateway,
		TransactionRunner: client,
		Now:               func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:              NewRepository(conn),
		Carts:             cart.NewRepository(conn),
		Users:             userRepo,
		Payments:          paymentSvc,
		Outbox:            outbox.NewService(outbox.NewRepository(conn), nil),
		TransactionRunner: client,
	})
	require.NoError(t, err)

	return fixture{
		conn:     conn,
		svc:      svc,
		gateway:  gateway,
		buyer:    dbtest.SeedUser(t, conn, "buyer@example.com", enums.UserRoleBuyer),
		other:    dbtest.SeedUser(t, conn, "other@example.com", enums.UserRoleBuyer),
		tomatoes: dbtest.SeedProduct(t, conn, farmer.ID, "Tomatoes", "100"),
		kale:     dbtest.SeedProduct(t, conn, farmer.ID, "Kale", "50"),
	}
}

func delivery() checkout.DeliveryInput {
	return checkout.DeliveryInput{DeliveryAddress: "Plot 12, Eldoret", Phone: "0711000000", Notes: "gate B"}
}

func countRows(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Count(&n).Error)
	return n
}

func TestCreateOrderSnapshotsCart(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dbtest.SeedCartLine(t, f.conn, f.buyer.ID, f.tomatoes.ID, 2)
	dbtest.SeedCartLine(t, f.conn, f.buyer.ID, f.kale.ID, 1)

	result, err := f.svc.CreateOrder(ctx, f.buyer.ID, delivery())
	require.NoError(t, err)
	assert.NotZero(t, result.OrderID)
	assert.NotEmpty(t, result.AuthorizationURL)
	assert.NotEmpty(t, result.Reference)

	detail, err := f.svc.Get(ctx, f.buyer.ID, result.OrderID)
	require.NoError(t, err)
	assert.True(t, detail.TotalAmount.Equal(decimal.NewFromInt(250)), "total %s", detail.TotalAmount)
	assert.Equal(t, enums.OrderStatusPending, detail.Status)
	require.Len(t, detail.Items, 2)
	assert.Equal(t, "Tomatoes", detail.Items[0].ProductName)
	assert.True(t, detail.Items[0].UnitPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, detail.Items[0].LineTotal.Equal(decimal.NewFromInt(200)))
	assert.True(t, detail.Items[1].UnitPrice.Equal(decimal.NewFromInt(50)))
	require.NotNil(t, detail.Notes)
	assert.Equal(t, "gate B", *detail.Notes)
	require.NotNil(t, detail.Payment)
	assert.Equal(t, enums.PaymentStatusPending, detail.Payment.Status)
	assert.Equal(t, result.Reference, detail.Payment.Reference)

	assert.Zero(t, countRows(t, f.conn, &models.CartLine{}), "cart is emptied")

	var event models.OutboxEvent
	require.NoError(t, f.conn.First(&event).Error)
	assert.Equal(t, enums.EventOrderCreated, event.EventType)
	assert.Equal(t, result.OrderID, event.AggregateID)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	f := setup(t)

	_, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, delivery())
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeEmptyCart), "got %v", err)
	assert.Zero(t, countRows(t, f.conn, &models.Order{}))
	assert.Zero(t, f.gateway.calls)
}

func TestCreateOrderValidatesDelivery(t *testing.T) {
	f := setup(t)
	dbtest.SeedCartLine(t, f.conn, f.buyer.ID, f.tomatoes.ID, 1)

	_, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, checkout.DeliveryInput{DeliveryAddress: " "})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)
	assert.Equal(t, int64(1), countRows(t, f.conn, &models.CartLine{}))
}

func TestCreateOrderGatewayFailureKeepsPendingOrder(t *testing.T) {
	f := setup(t)
	f.gateway.err = errors.New("paystack unavailable")
	dbtest.SeedCartLine(t, f.conn, f.buyer.ID, f.tomatoes.ID, 1)

	_, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, delivery())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePaymentInit, typed.Code())

	var order models.Order
	require.NoError(t, f.conn.First(&order).Error)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, map[string]any{"order_id": order.ID}, typed.Details())
	assert.Zero(t, countRows(t, f.conn, &models.Payment{}))
	assert.Zero(t, countRows(t, f.conn, &models.CartLine{}))
}

func TestCreateOrderConcurrentCheckoutsProduceOneOrder(t *testing.T) {
	f := setup(t)
	dbtest.SeedCartLine(t, f.conn, f.buyer.ID, f.tomatoes.ID, 3)

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		empty   int
		other   []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, delivery())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case pkgerrors.Is(err, pkgerrors.CodeEmptyCart):
				empty++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, empty)
	assert.Equal(t, int64(1), countRows(t, f.conn, &models.Order{}))
	assert.Equal(t, int64(1), countRows(t, f.conn, &models.OrderItem{}))
}

func TestGetAndListAreScopedToBuyer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	dbtest.SeedCartLine(t, f.conn, f.buyer.ID, f.tomatoes.ID, 1)
	first, err := f.svc.CreateOrder(ctx, f.buyer.ID, delivery())
	require.NoError(t, err)
	dbtest.SeedCartLine(t, f.conn, f.buyer.ID, f.kale.ID, 4)
	second, err := f.svc.CreateOrder(ctx, f.buyer.ID, delivery())
	require.NoError(t, err)

	list, err := f.svc.List(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.OrderID, list[0].ID, "newest first")
	assert.Equal(t, first.OrderID, list[1].ID)
	assert.Equal(t, 4, list[0].ItemCount)

	empty, err := f.svc.List(ctx, f.other.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = f.svc.Get(ctx, f.other.ID, first.OrderID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden), "got %v", err)
	_, err = f.svc.Get(ctx, f.buyer.ID, second.OrderID+100)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)
}
