package mongostore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"justmatcha-backend/internal/model"
	"justmatcha-backend/internal/store"
)

// MongoStoreTestSuite needs a replica set, e.g.
// MONGO_TEST_URI=mongodb://localhost:27017/?replicaSet=rs0
type MongoStoreTestSuite struct {
	suite.Suite
	m   *Mongo
	st  *store.Store
	ctx context.Context
}

func TestMongoStoreSuite(t *testing.T) {
	if os.Getenv("MONGO_TEST_URI") == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	suite.Run(t, new(MongoStoreTestSuite))
}

func (s *MongoStoreTestSuite) SetupSuite() {
	s.ctx = context.Background()
	dbName := fmt.Sprintf("storefront_test_%d", time.Now().UnixNano())
	m, err := Connect(s.ctx, os.Getenv("MONGO_TEST_URI"), dbName)
	require.NoError(s.T(), err)
	s.m = m
	s.st = m.Store()
}

func (s *MongoStoreTestSuite) SetupTest() {
	for _, col := range []string{colUsers, colProducts, colOrders, colCarts, colWishlists} {
		_, err := s.m.db.Collection(col).DeleteMany(s.ctx, map[string]any{})
		require.NoError(s.T(), err)
	}
}

func (s *MongoStoreTestSuite) TearDownSuite() {
	_ = s.m.db.Drop(s.ctx)
	_ = s.st.Close(s.ctx)
}

func (s *MongoStoreTestSuite) TestUserEmailUnique() {
	require.NoError(s.T(), s.st.Users.Create(s.ctx, &model.User{Name: "Ana", Email: "ana@example.com"}))
	err := s.st.Users.Create(s.ctx, &model.User{Name: "Ana 2", Email: "ANA@example.com"})
	require.ErrorIs(s.T(), err, store.ErrDuplicate)

	u, err := s.st.Users.GetByEmail(s.ctx, "Ana@Example.com")
	require.NoError(s.T(), err)
	require.Equal(s.T(), "Ana", u.Name)

	u.Name = "Ana Maria"
	u.Phone = "555"
	require.NoError(s.T(), s.st.Users.Update(s.ctx, u))
	got, err := s.st.Users.GetByID(s.ctx, u.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), "Ana Maria", got.Name)
	require.Equal(s.T(), "555", got.Phone)
}

func (s *MongoStoreTestSuite) TestDecrementStock() {
	p := &model.Product{Name: "Ceremonial", Price: 10, Stock: 5}
	require.NoError(s.T(), s.st.Products.Create(s.ctx, p))

	require.NoError(s.T(), s.st.Products.DecrementStock(s.ctx, p.ID, 5))
	require.ErrorIs(s.T(), s.st.Products.DecrementStock(s.ctx, p.ID, 1), store.ErrInsufficientStock)
	require.ErrorIs(s.T(), s.st.Products.DecrementStock(s.ctx, primitive.NewObjectID(), 1), store.ErrNotFound)
	require.ErrorIs(s.T(), s.st.Products.DecrementStock(s.ctx, p.ID, -1), store.ErrInvalidQuantity)

	got, err := s.st.Products.GetByID(s.ctx, p.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 0, got.Stock)
}

func (s *MongoStoreTestSuite) TestTransactionRollsBack() {
	p := &model.Product{Name: "Bowl", Price: 20, Stock: 2}
	require.NoError(s.T(), s.st.Products.Create(s.ctx, p))

	boom := errors.New("boom")
	err := s.st.WithinTransaction(s.ctx, func(ctx context.Context) error {
		if err := s.st.Orders.Create(ctx, &model.Order{UserID: primitive.NewObjectID(), CreatedAt: time.Now()}); err != nil {
			return err
		}
		if err := s.st.Products.DecrementStock(ctx, p.ID, 2); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(s.T(), err, boom)

	got, err := s.st.Products.GetByID(s.ctx, p.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 2, got.Stock)

	orders, err := s.st.Orders.ListAll(s.ctx)
	require.NoError(s.T(), err)
	require.Empty(s.T(), orders)
}

func (s *MongoStoreTestSuite) TestCartUpsert() {
	user := primitive.NewObjectID()
	c := &model.Cart{UserID: user, Products: []model.CartItem{{ProductID: primitive.NewObjectID(), Quantity: 2}}}
	require.NoError(s.T(), s.st.Carts.Save(s.ctx, c))

	c.Products[0].Quantity = 4
	require.NoError(s.T(), s.st.Carts.Save(s.ctx, c))

	got, err := s.st.Carts.GetByUser(s.ctx, user)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 4, got.Products[0].Quantity)
}
