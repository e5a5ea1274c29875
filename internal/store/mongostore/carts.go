package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"justmatcha-backend/internal/model"
)

type cartStore struct {
	col *mongo.Collection
}

func (s *cartStore) GetByUser(ctx context.Context, userID primitive.ObjectID) (*model.Cart, error) {
	var c model.Cart
	if err := s.col.FindOne(ctx, bson.M{"user": userID}).Decode(&c); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *cartStore) Save(ctx context.Context, c *model.Cart) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"user": c.UserID}, c, options.Replace().SetUpsert(true))
	return translate(err)
}

func (s *cartStore) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (*model.Cart, error) {
	var c model.Cart
	if err := s.col.FindOneAndDelete(ctx, bson.M{"user": userID}).Decode(&c); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

type wishlistStore struct {
	col *mongo.Collection
}

func (s *wishlistStore) GetByUser(ctx context.Context, userID primitive.ObjectID) (*model.Wishlist, error) {
	var w model.Wishlist
	if err := s.col.FindOne(ctx, bson.M{"user": userID}).Decode(&w); err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (s *wishlistStore) Save(ctx context.Context, w *model.Wishlist) error {
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"user": w.UserID}, w, options.Replace().SetUpsert(true))
	return translate(err)
}
