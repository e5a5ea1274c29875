// Package cart keeps one shopping cart per user.
package cart

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"justmatcha-backend/internal/apperr"
	"justmatcha-backend/internal/model"
	"justmatcha-backend/internal/store"
)

type ItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type RemoveInput struct {
	ProductID string `json:"productId"`
}

// Line is a cart entry with the product resolved.
type Line struct {
	Product  *model.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

// View is the cart as returned to clients.
type View struct {
	ID        primitive.ObjectID `json:"_id"`
	UserID    primitive.ObjectID `json:"user"`
	Products  []Line             `json:"products"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type Service struct {
	carts    store.CartStore
	products store.ProductStore
	log      zerolog.Logger
}

func NewService(carts store.CartStore, products store.ProductStore, log zerolog.Logger) *Service {
	return &Service{carts: carts, products: products, log: log}
}

// Get returns the user's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, userID primitive.ObjectID) (*View, error) {
	c, err := s.load(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

// Add puts quantity units of a product in the cart, on top of any already there.
func (s *Service) Add(ctx context.Context, userID primitive.ObjectID, in ItemInput) (*View, error) {
	return s.change(ctx, userID, in, func(line *model.CartItem) error {
		if line.Quantity > math.MaxInt-in.Quantity {
			return apperr.Invalid("Quantity too large")
		}
		line.Quantity += in.Quantity
		return nil
	})
}

// SetQuantity overwrites the quantity of a product, adding it when absent.
func (s *Service) SetQuantity(ctx context.Context, userID primitive.ObjectID, in ItemInput) (*View, error) {
	return s.change(ctx, userID, in, func(line *model.CartItem) error {
		line.Quantity = in.Quantity
		return nil
	})
}

func (s *Service) change(ctx context.Context, userID primitive.ObjectID, in ItemInput, apply func(*model.CartItem) error) (*View, error) {
	if in.Quantity <= 0 {
		return nil, apperr.Invalid("Quantity must be greater than 0")
	}
	productID, err := s.existingProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	c, err := s.load(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range c.Products {
		if c.Products[i].ProductID == productID {
			if err := apply(&c.Products[i]); err != nil {
				return nil, err
			}
			found = true
			break
		}
	}
	if !found {
		c.Products = append(c.Products, model.CartItem{ProductID: productID, Quantity: in.Quantity})
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

// Remove drops a product. A user without a cart gets an empty one back.
func (s *Service) Remove(ctx context.Context, userID primitive.ObjectID, productID string) (*View, error) {
	c, err := s.load(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	if c.ID.IsZero() {
		return s.view(ctx, c)
	}
	kept := c.Products[:0]
	for _, line := range c.Products {
		if line.ProductID.Hex() != productID {
			kept = append(kept, line)
		}
	}
	c.Products = kept
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

// Clear deletes the cart and returns what it held.
func (s *Service) Clear(ctx context.Context, userID primitive.ObjectID) (*model.Cart, error) {
	c, err := s.carts.DeleteByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Cart not found")
		}
		return nil, apperr.Internal(err, "could not delete cart")
	}
	s.log.Debug().Str("user_id", userID.Hex()).Msg("cart cleared")
	return c, nil
}

// load returns the stored cart or a fresh unsaved one; persist saves the
// fresh cart straight away.
func (s *Service) load(ctx context.Context, userID primitive.ObjectID, persist bool) (*model.Cart, error) {
	c, err := s.carts.GetByUser(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal(err, "could not load cart")
	}
	now := time.Now().UTC()
	c = &model.Cart{UserID: userID, Products: []model.CartItem{}, CreatedAt: now, UpdatedAt: now}
	if persist {
		if err := s.carts.Save(ctx, c); err != nil {
			return nil, apperr.Internal(err, "could not create cart")
		}
	}
	return c, nil
}

func (s *Service) save(ctx context.Context, c *model.Cart) error {
	c.UpdatedAt = time.Now().UTC()
	if err := s.carts.Save(ctx, c); err != nil {
		return apperr.Internal(err, "could not save cart")
	}
	return nil
}

func (s *Service) existingProduct(ctx context.Context, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.NotFound("Product not found")
	}
	if _, err := s.products.GetByID(ctx, oid); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return primitive.NilObjectID, apperr.NotFound("Product not found")
		}
		return primitive.NilObjectID, apperr.Internal(err, "could not load product")
	}
	return oid, nil
}

// view resolves product details. Lines whose product was deleted are left out.
func (s *Service) view(ctx context.Context, c *model.Cart) (*View, error) {
	v := &View{ID: c.ID, UserID: c.UserID, Products: make([]Line, 0, len(c.Products)), CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
	for _, line := range c.Products {
		p, err := s.products.GetByID(ctx, line.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, apperr.Internal(err, "could not load cart products")
		}
		v.Products = append(v.Products, Line{Product: p, Quantity: line.Quantity})
	}
	return v, nil
}
