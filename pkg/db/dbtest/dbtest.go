// Package dbtest opens isolated in-memory sqlite databases carrying the
// marketplace schema for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agrimarket/agrimarket-backend/pkg/db"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
)

// sqlite mirror of the goose migrations. Enum columns become text.
var schema = []string{
	`CREATE TABLE users (
		id integer PRIMARY KEY AUTOINCREMENT,
		email text NOT NULL UNIQUE,
		username text NOT NULL,
		role text NOT NULL,
		phone text,
		location text,
		verified boolean NOT NULL DEFAULT false,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE products (
		id integer PRIMARY KEY AUTOINCREMENT,
		farmer_id integer NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name text NOT NULL,
		description text,
		price numeric NOT NULL CHECK (price >= 0),
		stock integer NOT NULL DEFAULT 0,
		image_url text,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE cart_lines (
		id integer PRIMARY KEY AUTOINCREMENT,
		user_id integer NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		product_id integer NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		quantity integer NOT NULL CHECK (quantity >= 1),
		created_at datetime,
		updated_at datetime,
		UNIQUE (user_id, product_id)
	)`,
	`CREATE TABLE orders (
		id integer PRIMARY KEY AUTOINCREMENT,
		buyer_id integer NOT NULL REFERENCES users(id),
		delivery_address text NOT NULL,
		phone text NOT NULL,
		notes text,
		total_amount numeric NOT NULL,
		status text NOT NULL DEFAULT 'pending',
		payment_reference text,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE order_items (
		id integer PRIMARY KEY AUTOINCREMENT,
		order_id integer NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id integer NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
		farmer_id integer NOT NULL,
		product_name text NOT NULL,
		quantity integer NOT NULL,
		unit_price numeric NOT NULL,
		line_total numeric NOT NULL,
		created_at datetime
	)`,
	`CREATE TABLE payments (
		id integer PRIMARY KEY AUTOINCREMENT,
		order_id integer NOT NULL UNIQUE REFERENCES orders(id) ON DELETE CASCADE,
		reference text NOT NULL UNIQUE,
		amount numeric NOT NULL,
		status text NOT NULL DEFAULT 'pending',
		authorization_url text NOT NULL,
		gateway_response blob,
		paid_at datetime,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE ledger_events (
		id integer PRIMARY KEY AUTOINCREMENT,
		order_id integer NOT NULL,
		farmer_id integer NOT NULL,
		type text NOT NULL,
		amount numeric NOT NULL,
		created_at datetime,
		UNIQUE (order_id, farmer_id, type)
	)`,
	`CREATE TABLE outbox_events (
		id integer PRIMARY KEY AUTOINCREMENT,
		event_type text NOT NULL,
		aggregate_type text NOT NULL,
		aggregate_id integer NOT NULL,
		payload blob NOT NULL,
		created_at datetime,
		published_at datetime,
		attempt_count integer NOT NULL DEFAULT 0,
		last_error text,
		UNIQUE (event_type, aggregate_type, aggregate_id)
	)`,
}

// New opens a fresh database with foreign keys enforced. A single connection is
// used so concurrent transactions serialize the way row locks do in Postgres.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// NewClient wraps New in a db.Client.
func NewClient(t testing.TB) (*db.Client, *gorm.DB) {
	conn := New(t)
	return db.FromConn(conn), conn
}

// SeedUser inserts a user with the given role.
func SeedUser(t testing.TB, conn *gorm.DB, email string, role enums.UserRole) models.User {
	t.Helper()
	user := models.User{Email: email, Username: email, Role: role}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

// SeedProduct inserts a product owned by farmerID.
func SeedProduct(t testing.TB, conn *gorm.DB, farmerID int64, name, price string) models.Product {
	t.Helper()
	product := models.Product{
		FarmerID:  farmerID,
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Stock:     100,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, conn.Create(&product).Error)
	return product
}

// SeedCartLine inserts a cart line for userID.
func SeedCartLine(t testing.TB, conn *gorm.DB, userID, productID int64, quantity int) models.CartLine {
	t.Helper()
	line := models.CartLine{UserID: userID, ProductID: productID, Quantity: quantity}
	require.NoError(t, conn.Create(&line).Error)
	return line
}
