package controllers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrimarket/agrimarket-backend/pkg/checkout"
	"github.com/agrimarket/agrimarket-backend/pkg/db/models"
)

type productResponse struct {
	ID          int64           `json:"id"`
	FarmerID    int64           `json:"farmer_id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    *string         `json:"image_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type cartLineResponse struct {
	ID        int64            `json:"id"`
	ProductID int64            `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Product   *productResponse `json:"product,omitempty"`
	LineTotal decimal.Decimal  `json:"line_total"`
}

type cartResponse struct {
	Items []cartLineResponse `json:"items"`
	Total decimal.Decimal    `json:"total"`
}

func newProductResponse(p *models.Product) *productResponse {
	if p == nil {
		return nil
	}
	return &productResponse{
		ID:          p.ID,
		FarmerID:    p.FarmerID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		CreatedAt:   p.CreatedAt,
	}
}

func newCartLineResponse(line *models.CartLine) cartLineResponse {
	resp := cartLineResponse{
		ID:        line.ID,
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		Product:   newProductResponse(line.Product),
		LineTotal: decimal.Zero,
	}
	if line.Product != nil {
		resp.LineTotal = checkout.LineTotal(line.Product.Price, line.Quantity)
	}
	return resp
}
