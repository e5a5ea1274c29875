// Package store defines the persistence ports used by the services.
// Implementations live in mongostore (MongoDB) and memstore (in-process).
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"justmatcha-backend/internal/model"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrDuplicate         = errors.New("duplicate key")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// Transactor runs fn so that every store call made with the ctx passed to fn
// commits or rolls back together.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Update returns ErrDuplicate when the new email belongs to another user.
	Update(ctx context.Context, u *model.User) error
}

type ProductStore interface {
	Create(ctx context.Context, p *model.Product) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Product, error)
	List(ctx context.Context) ([]model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// DecrementStock subtracts qty only if at least qty units are in stock,
	// otherwise it returns ErrInsufficientStock and leaves stock untouched.
	// qty must be positive (ErrInvalidQuantity).
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) error
}

type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Order, error)
	// ListByUser returns newest first.
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]model.Order, error)
	ListAll(ctx context.Context) ([]model.Order, error)
	Replace(ctx context.Context, o *model.Order) error
}

type CartStore interface {
	GetByUser(ctx context.Context, userID primitive.ObjectID) (*model.Cart, error)
	// Save upserts the cart keyed by its user.
	Save(ctx context.Context, c *model.Cart) error
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) (*model.Cart, error)
}

type WishlistStore interface {
	GetByUser(ctx context.Context, userID primitive.ObjectID) (*model.Wishlist, error)
	Save(ctx context.Context, w *model.Wishlist) error
}

// Store bundles every repository of one backend.
type Store struct {
	Transactor
	Users     UserStore
	Products  ProductStore
	Orders    OrderStore
	Carts     CartStore
	Wishlists WishlistStore
	// Ping checks backend reachability.
	Ping  func(ctx context.Context) error
	Close func(ctx context.Context) error
}
