// Package wishlist keeps one list of saved products per user.
package wishlist

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"justmatcha-backend/internal/apperr"
	"justmatcha-backend/internal/model"
	"justmatcha-backend/internal/store"
)

type AddInput struct {
	ProductID string `json:"productId"`
}

type Entry struct {
	Product *model.Product `json:"product"`
	AddedAt time.Time      `json:"addedAt"`
}

type View struct {
	ID       primitive.ObjectID `json:"_id"`
	UserID   primitive.ObjectID `json:"user"`
	Products []Entry            `json:"products"`
}

type Service struct {
	wishlists store.WishlistStore
	products  store.ProductStore
	now       func() time.Time
	log       zerolog.Logger
}

func NewService(wishlists store.WishlistStore, products store.ProductStore, log zerolog.Logger) *Service {
	return &Service{
		wishlists: wishlists,
		products:  products,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

func (s *Service) Get(ctx context.Context, userID primitive.ObjectID) (*View, error) {
	w, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.ID.IsZero() {
		if err := s.save(ctx, w); err != nil {
			return nil, err
		}
	}
	return s.view(ctx, w)
}

// Add saves a product once; adding it again is a no-op.
func (s *Service) Add(ctx context.Context, userID primitive.ObjectID, in AddInput) (*View, error) {
	productID, err := primitive.ObjectIDFromHex(in.ProductID)
	if err != nil {
		return nil, apperr.NotFound("Product not found")
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, apperr.Internal(err, "could not load product")
	}

	w, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, e := range w.Products {
		if e.ProductID == productID {
			return s.view(ctx, w)
		}
	}
	w.Products = append(w.Products, model.WishlistItem{ProductID: productID, AddedAt: s.now()})
	if err := s.save(ctx, w); err != nil {
		return nil, err
	}
	return s.view(ctx, w)
}

func (s *Service) Remove(ctx context.Context, userID primitive.ObjectID, productID string) (*View, error) {
	w, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.ID.IsZero() {
		return s.view(ctx, w)
	}
	kept := w.Products[:0]
	for _, e := range w.Products {
		if e.ProductID.Hex() != productID {
			kept = append(kept, e)
		}
	}
	w.Products = kept
	if err := s.save(ctx, w); err != nil {
		return nil, err
	}
	return s.view(ctx, w)
}

// Clear empties the wishlist. It does not create one for a user without.
func (s *Service) Clear(ctx context.Context, userID primitive.ObjectID) (*View, error) {
	w, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !w.ID.IsZero() {
		w.Products = []model.WishlistItem{}
		if err := s.save(ctx, w); err != nil {
			return nil, err
		}
	}
	return s.view(ctx, w)
}

func (s *Service) load(ctx context.Context, userID primitive.ObjectID) (*model.Wishlist, error) {
	w, err := s.wishlists.GetByUser(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal(err, "could not load wishlist")
	}
	now := s.now()
	return &model.Wishlist{UserID: userID, Products: []model.WishlistItem{}, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *Service) save(ctx context.Context, w *model.Wishlist) error {
	w.UpdatedAt = s.now()
	if err := s.wishlists.Save(ctx, w); err != nil {
		return apperr.Internal(err, "could not save wishlist")
	}
	return nil
}

func (s *Service) view(ctx context.Context, w *model.Wishlist) (*View, error) {
	v := &View{ID: w.ID, UserID: w.UserID, Products: make([]Entry, 0, len(w.Products))}
	for _, e := range w.Products {
		p, err := s.products.GetByID(ctx, e.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, apperr.Internal(err, "could not load wishlist products")
		}
		v.Products = append(v.Products, Entry{Product: p, AddedAt: e.AddedAt})
	}
	return v, nil
}
