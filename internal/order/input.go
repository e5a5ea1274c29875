package order

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"justmatcha-backend/internal/apperr"
	"justmatcha-backend/internal/model"
)

type CreateItem struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

// CreateInput is a checkout request. ItemsPrice is the client's claim and is
// only compared against the server's figure; TotalPrice is ignored.
type CreateInput struct {
	OrderItems      []CreateItem          `json:"orderItems"`
	ShippingAddress model.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
	ItemsPrice      float64               `json:"itemsPrice"`
	TaxPrice        float64               `json:"taxPrice"`
	ShippingPrice   float64               `json:"shippingPrice"`
	TotalPrice      float64               `json:"totalPrice"`
}

func (in CreateInput) lines() ([]line, error) {
	if len(in.OrderItems) == 0 {
		return nil, apperr.Invalid("No order items")
	}
	lines := make([]line, 0, len(in.OrderItems))
	for _, item := range in.OrderItems {
		id, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			return nil, apperr.NotFound("Product not found: %s", item.ProductID)
		}
		if item.Quantity <= 0 {
			return nil, apperr.Invalid("Quantity must be greater than 0")
		}
		lines = append(lines, line{productID: id, quantity: item.Quantity})
	}
	return lines, nil
}

type AddressPatch struct {
	FullName   *string `json:"fullName"`
	Address    *string `json:"address"`
	City       *string `json:"city"`
	PostalCode *string `json:"postalCode"`
	Country    *string `json:"country"`
	Phone      *string `json:"phone"`
	Email      *string `json:"email"`
}

func (p *AddressPatch) mergeInto(a *model.ShippingAddress) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&a.FullName, p.FullName)
	set(&a.Address, p.Address)
	set(&a.City, p.City)
	set(&a.PostalCode, p.PostalCode)
	set(&a.Country, p.Country)
	set(&a.Phone, p.Phone)
	set(&a.Email, p.Email)
}

type UpdateInput struct {
	Status          *model.OrderStatus `json:"status"`
	IsPaid          *bool              `json:"isPaid"`
	IsDelivered     *bool              `json:"isDelivered"`
	ShippingAddress *AddressPatch      `json:"shippingAddress"`
}
