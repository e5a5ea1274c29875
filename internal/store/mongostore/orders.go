package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"justmatcha-backend/internal/model"
	"justmatcha-backend/internal/store"
)

type orderStore struct {
	col *mongo.Collection
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (s *orderStore) Create(ctx context.Context, o *model.Order) error {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, o)
	return translate(err)
}

func (s *orderStore) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Order, error) {
	var o model.Order
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *orderStore) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]model.Order, error) {
	return s.find(ctx, bson.M{"user": userID})
}

func (s *orderStore) ListAll(ctx context.Context) ([]model.Order, error) {
	return s.find(ctx, bson.M{})
}

func (s *orderStore) find(ctx context.Context, filter bson.M) ([]model.Order, error) {
	cur, err := s.col.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, err
	}
	orders := []model.Order{}
	if err := cur.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *orderStore) Replace(ctx context.Context, o *model.Order) error {
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": o.ID}, o)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
