package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	cartsvc "github.com/agrimarket/agrimarket-backend/internal/cart"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
	"github.com/agrimarket/agrimarket-backend/pkg/types"
)

type stubCartService struct {
	userID    int64
	productID int64
	lineID    int64
	quantity  int
	line      *models.CartLine
	view      *cartsvc.View
	err       error
}

func (s *stubCartService) AddOrUpdate(ctx context.Context, userID, productID int64, quantity int) (*models.CartLine, error) {
	s.userID, s.productID, s.quantity = userID, productID, quantity
	return s.line, s.err
}

func (s *stubCartService) UpdateLine(ctx context.Context, userID, lineID int64, quantity int) (*models.CartLine, error) {
	s.userID, s.lineID, s.quantity = userID, lineID, quantity
	return s.line, s.err
}

func (s *stubCartService) Remove(ctx context.Context, userID, lineID int64) error {
	s.userID, s.lineID = userID, lineID
	return s.err
}

func (s *stubCartService) List(ctx context.Context, userID int64) (*cartsvc.View, error) {
	s.userID = userID
	return s.view, s.err
}

func tomatoLine() *models.CartLine {
	return &models.CartLine{
		ID:        3,
		UserID:    7,
		ProductID: 11,
		Quantity:  4,
		Product:   &models.Product{ID: 11, FarmerID: 2, Name: "Tomatoes", Price: decimal.RequireFromString("12.50"), Stock: 40},
	}
}

func TestCartAddReturnsCreatedLine(t *testing.T) {
	svc := &stubCartService{line: tomatoLine()}
	rec := httptest.NewRecorder()
	CartAdd(svc, testLogger())(rec, buyerRequest(http.MethodPost, "/api/cart/add", []byte(`{"product_id":11,"quantity":4}`), 7))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.userID != 7 || svc.productID != 11 || svc.quantity != 4 {
		t.Fatalf("unexpected service call %+v", svc)
	}
	var body cartLineResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.LineTotal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected line total 50 got %s", body.LineTotal)
	}
}

func TestCartAddRejectsUnknownFields(t *testing.T) {
	svc := &stubCartService{line: tomatoLine()}
	rec := httptest.NewRecorder()
	CartAdd(svc, testLogger())(rec, buyerRequest(http.MethodPost, "/api/cart/add", []byte(`{"product_id":11,"quantity":4,"price":"0.01"}`), 7))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.userID != 0 {
		t.Fatalf("service should not be called")
	}
}

func TestCartAddPropagatesValidation(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")}
	rec := httptest.NewRecorder()
	CartAdd(svc, testLogger())(rec, buyerRequest(http.MethodPost, "/api/cart/add", []byte(`{"product_id":11,"quantity":0}`), 7))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	var env types.ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error != "quantity must be at least 1" {
		t.Fatalf("unexpected message %q", env.Error)
	}
}

func TestCartUpdateUsesPathID(t *testing.T) {
	svc := &stubCartService{line: tomatoLine()}
	rec := httptest.NewRecorder()
	CartUpdate(svc, testLogger())(rec, buyerRequest(http.MethodPut, "/api/cart/update/3", []byte(`{"quantity":2}`), 7, "id", "3"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lineID != 3 || svc.quantity != 2 {
		t.Fatalf("unexpected service call %+v", svc)
	}
}

func TestCartUpdateRejectsBadID(t *testing.T) {
	svc := &stubCartService{}
	rec := httptest.NewRecorder()
	CartUpdate(svc, testLogger())(rec, buyerRequest(http.MethodPut, "/api/cart/update/abc", []byte(`{"quantity":2}`), 7, "id", "abc"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestCartRemoveForeignLineIsNotFound(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")}
	rec := httptest.NewRecorder()
	CartRemove(svc, testLogger())(rec, buyerRequest(http.MethodDelete, "/api/cart/remove/9", nil, 7, "id", "9"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestCartRemoveNoContent(t *testing.T) {
	svc := &stubCartService{}
	rec := httptest.NewRecorder()
	CartRemove(svc, testLogger())(rec, buyerRequest(http.MethodDelete, "/api/cart/remove/3", nil, 7, "id", "3"))

	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("expected bare 204 got %d %q", rec.Code, rec.Body.String())
	}
}

func TestCartListReturnsTotal(t *testing.T) {
	svc := &stubCartService{view: &cartsvc.View{Items: []models.CartLine{*tomatoLine()}, Total: decimal.NewFromInt(50)}}
	rec := httptest.NewRecorder()
	CartList(svc, testLogger())(rec, buyerRequest(http.MethodGet, "/api/cart", nil, 7))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var body cartResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 1 || !body.Total.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected cart %+v", body)
	}
}

func TestCartListEmptyCartHasEmptyArray(t *testing.T) {
	svc := &stubCartService{view: &cartsvc.View{Total: decimal.Zero}}
	rec := httptest.NewRecorder()
	CartList(svc, testLogger())(rec, buyerRequest(http.MethodGet, "/api/cart", nil, 7))

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw["items"]) != "[]" {
		t.Fatalf("expected empty items array got %s", raw["items"])
	}
}
