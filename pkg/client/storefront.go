package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

type User struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
}

type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Product struct {
	ID          string  `json:"_id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

type OrderItem struct {
	ProductID string  `json:"product"`
	Name      string  `json:"name,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
}

type ShippingAddress struct {
	FullName   string `json:"fullName,omitempty"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
}

type Order struct {
	ID              string          `json:"_id"`
	UserID          string          `json:"user"`
	OrderItems      []OrderItem     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	ItemsPrice      float64         `json:"itemsPrice"`
	TaxPrice        float64         `json:"taxPrice"`
	ShippingPrice   float64         `json:"shippingPrice"`
	TotalPrice      float64         `json:"totalPrice"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	IsDelivered     bool            `json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type OrderRequest struct {
	OrderItems      []OrderItem     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	ItemsPrice      float64         `json:"itemsPrice"`
	TaxPrice        float64         `json:"taxPrice"`
	ShippingPrice   float64         `json:"shippingPrice"`
	// IdempotencyKey is sent as the Idempotency-Key header when set.
	IdempotencyKey string `json:"-"`
}

func (c *Client) SignUp(ctx context.Context, name, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/sign-up", body, &s, nil); err != nil {
		return nil, err
	}
	return &s, nil
}

// SignIn returns a copy of c carrying the new token.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Client, *User, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/sign-in", body, &s, nil); err != nil {
		return nil, nil, err
	}
	return c.WithToken(s.Token), &s.User, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/auth/user", nil, &u, nil); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var ps []Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, &ps, nil); err != nil {
		return nil, err
	}
	return ps, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &p, nil); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CreateProduct(ctx context.Context, p Product) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodPost, "/products", p, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	var headers map[string]string
	if req.IdempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": req.IdempotencyKey}
	}
	var o Order
	if err := c.do(ctx, http.MethodPost, "/orders", req, &o, headers); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	return c.order(ctx, http.MethodGet, "/orders/"+url.PathEscape(id))
}

func (c *Client) MyOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.do(ctx, http.MethodGet, "/orders/myorders", nil, &orders, nil); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) MarkPaid(ctx context.Context, id string) (*Order, error) {
	return c.order(ctx, http.MethodPut, "/orders/"+url.PathEscape(id)+"/pay")
}

func (c *Client) MarkDelivered(ctx context.Context, id string) (*Order, error) {
	return c.order(ctx, http.MethodPut, "/orders/"+url.PathEscape(id)+"/deliver")
}

func (c *Client) order(ctx context.Context, method, path string) (*Order, error) {
	var o Order
	if err := c.do(ctx, method, path, nil, &o, nil); err != nil {
		return nil, err
	}
	return &o, nil
}
