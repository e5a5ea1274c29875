package order

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"justmatcha-backend/internal/apperr"
	"justmatcha-backend/internal/events"
	"justmatcha-backend/internal/model"
	"justmatcha-backend/internal/store"
	"justmatcha-backend/internal/store/memstore"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, evt events.Event) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *mockPublisher) Close() error { return nil }

func eventOfType(t string) any {
	return mock.MatchedBy(func(evt events.Event) bool { return evt.Type == t })
}

type invalidations struct {
	mu  sync.Mutex
	ids []primitive.ObjectID
}

func (i *invalidations) Invalidate(_ context.Context, ids ...primitive.ObjectID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, ids...)
}

// failingDecrement fails DecrementStock for one product after the checks pass.
type failingDecrement struct {
	store.ProductStore
	id primitive.ObjectID
}

func (f failingDecrement) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	if id == f.id {
		return errors.New("write conflict")
	}
	return f.ProductStore.DecrementStock(ctx, id, qty)
}

type OrderServiceTestSuite struct {
	suite.Suite
	ctx   context.Context
	st    *store.Store
	pub   *mockPublisher
	inv   *invalidations
	svc   *Service
	now   time.Time
	buyer Actor
	admin Actor
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceTestSuite))
}

func (s *OrderServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.st = memstore.New().Store()
	s.pub = new(mockPublisher)
	s.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	s.inv = &invalidations{}
	s.now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.svc = s.newService(false)
	s.buyer = Actor{ID: primitive.NewObjectID()}
	s.admin = Actor{ID: primitive.NewObjectID(), IsAdmin: true}
}

func (s *OrderServiceTestSuite) newService(strict bool) *Service {
	return NewService(s.st.Transactor, s.st.Products, s.st.Orders, zerolog.Nop(),
		WithPublisher(s.pub),
		WithStockInvalidator(s.inv),
		WithStrictTransitions(strict),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *OrderServiceTestSuite) product(name string, price float64, stock int) *model.Product {
	p := &model.Product{Name: name, Description: name, Image: name + ".png", Price: price, Stock: stock}
	require.NoError(s.T(), s.st.Products.Create(s.ctx, p))
	return p
}

func (s *OrderServiceTestSuite) stockOf(id primitive.ObjectID) int {
	p, err := s.st.Products.GetByID(s.ctx, id)
	require.NoError(s.T(), err)
	return p.Stock
}

func (s *OrderServiceTestSuite) place(actor Actor, itemsPrice float64, items ...CreateItem) (*model.Order, error) {
	return s.svc.Create(s.ctx, actor, CreateInput{
		OrderItems:      items,
		ShippingAddress: model.ShippingAddress{FullName: "Aiko", Address: "1 Tea Lane", City: "Uji", Country: "JP"},
		ItemsPrice:      itemsPrice,
	})
}

func item(p *model.Product, qty int) CreateItem {
	return CreateItem{ProductID: p.ID.Hex(), Quantity: qty}
}

func (s *OrderServiceTestSuite) TestCreateRecomputesAndDecrementsStock() {
	p := s.product("Matcha", 10, 5)

	o, err := s.place(s.buyer, 30, item(p, 3))
	require.NoError(s.T(), err)
	require.Equal(s.T(), 30.0, o.ItemsPrice)
	require.Equal(s.T(), 30.0, o.TotalPrice)
	require.Equal(s.T(), model.StatusPending, o.Status)
	require.False(s.T(), o.IsPaid)
	require.Nil(s.T(), o.PaidAt)
	require.Equal(s.T(), model.PaymentCashOnDelivery, o.PaymentMethod)
	require.Equal(s.T(), s.buyer.ID, o.UserID)
	require.Equal(s.T(), "Matcha", o.OrderItems[0].Name)
	require.Equal(s.T(), 2, s.stockOf(p.ID))

	require.Equal(s.T(), []primitive.ObjectID{p.ID}, s.inv.ids)
	s.pub.AssertCalled(s.T(), "Publish", mock.Anything, eventOfType(events.OrderCreated))
}

func (s *OrderServiceTestSuite) TestCreateAddsTaxAndShipping() {
	p := s.product("Whisk", 19.99, 10)
	o, err := s.svc.Create(s.ctx, s.buyer, CreateInput{
		OrderItems:    []CreateItem{item(p, 3)},
		ItemsPrice:    59.97,
		TaxPrice:      4.8,
		ShippingPrice: 5,
		TotalPrice:    1,
	})
	require.NoError(s.T(), err)
	require.InDelta(s.T(), 59.97, o.ItemsPrice, 1e-9)
	require.InDelta(s.T(), 69.77, o.TotalPrice, 1e-9)
}

func (s *OrderServiceTestSuite) TestCreateRejectsInsufficientStock() {
	p := s.product("Matcha", 10, 5)

	_, err := s.place(s.buyer, 100, item(p, 10))
	require.True(s.T(), apperr.Is(err, apperr.KindInvalidRequest))
	require.Equal(s.T(), 5, s.stockOf(p.ID))

	orders, err := s.st.Orders.ListAll(s.ctx)
	require.NoError(s.T(), err)
	require.Empty(s.T(), orders)
	s.pub.AssertNotCalled(s.T(), "Publish", mock.Anything, mock.Anything)
}

func (s *OrderServiceTestSuite) TestCreateSumsRepeatedLinesBeforeStockCheck() {
	p := s.product("Matcha", 10, 5)
	_, err := s.place(s.buyer, 60, item(p, 3), item(p, 3))
	require.True(s.T(), apperr.Is(err, apperr.KindInvalidRequest))
	require.Equal(s.T(), 5, s.stockOf(p.ID))

	o, err := s.place(s.buyer, 50, item(p, 3), item(p, 2))
	require.NoError(s.T(), err)
	require.Len(s.T(), o.OrderItems, 2)
	require.Equal(s.T(), 0, s.stockOf(p.ID))
}

func (s *OrderServiceTestSuite) TestCreateRejectsOverflowingQuantities() {
	p := s.product("Sample", 0, 5)

	cases := [][]CreateItem{
		{item(p, math.MaxInt)},
		{item(p, math.MaxInt), item(p, 2)},
		{item(p, math.MaxInt), item(p, math.MaxInt), item(p, 7)},
	}
	for _, items := range cases {
		_, err := s.place(s.buyer, 0, items...)
		require.True(s.T(), apperr.Is(err, apperr.KindInvalidRequest))
		require.Equal(s.T(), 5, s.stockOf(p.ID))
	}

	orders, err := s.st.Orders.ListAll(s.ctx)
	require.NoError(s.T(), err)
	require.Empty(s.T(), orders)
}

func (s *OrderServiceTestSuite) TestCreatePriceTolerance() {
	p := s.product("Matcha", 10, 50)

	_, err := s.place(s.buyer, 30.005, item(p, 3))
	require.NoError(s.T(), err)

	_, err = s.place(s.buyer, 29.98, item(p, 3))
	require.True(s.T(), apperr.Is(err, apperr.KindInvalidRequest))
	require.Equal(s.T(), "Cart items price does not match", apperr.Message(err))
	require.Equal(s.T(), 47, s.stockOf(p.ID))
}

func (s *OrderServiceTestSuite) TestCreateInputErrors() {
	p := s.product("Matcha", 10, 5)

	_, err := s.place(s.buyer, 0)
	require.True(s.T(), apperr.Is(err, apperr.KindInvalidRequest))

	_, err = s.place(s.buyer, 0, item(p, 0))
	require.True(s.T(), apperr.Is(err, apperr.KindInvalidRequest))

	_, err = s.place(s.buyer, 10, CreateItem{ProductID: "bogus", Quantity: 1})
	require.True(s.T(), apperr.Is(err, apperr.KindNotFound))

	_, err = s.place(s.buyer, 10, CreateItem{ProductID: primitive.NewObjectID().Hex(), Quantity: 1})
	require.True(s.T(), apperr.Is(err, apperr.KindNotFound))

	_, err = s.svc.Create(s.ctx, s.buyer, CreateInput{OrderItems: []CreateItem{item(p, 1)}, ItemsPrice: 10, TaxPrice: -1})
	require.True(s.T(), apperr.Is(err, apperr.KindInvalidRequest))
}

func (s *OrderServiceTestSuite) TestPrepaidMethodMarksPaid() {
	p := s.product("Matcha", 10, 5)
	o, err := s.svc.Create(s.ctx, s.buyer, CreateInput{
		OrderItems:    []CreateItem{item(p, 1)},
		ItemsPrice:    10,
		PaymentMethod: "Card",
	})
	require.NoError(s.T(), err)
	require.True(s.T(), o.IsPaid)
	require.Equal(s.T(), s.now, *o.PaidAt)
}

func (s *OrderServiceTestSuite) TestCreateRollsBackWhenDecrementFails() {
	a := s.product("Matcha", 10, 5)
	b := s.product("Whisk", 20, 5)
	svc := NewService(s.st.Transactor, failingDecrement{ProductStore: s.st.Products, id: b.ID}, s.st.Orders, zerolog.Nop())

	_, err := svc.Create(s.ctx, s.buyer, CreateInput{OrderItems: []CreateItem{item(a, 2), item(b, 1)}, ItemsPrice: 40})
	require.True(s.T(), apperr.Is(err, apperr.KindInternal))
	require.Equal(s.T(), 5, s.stockOf(a.ID))
	require.Equal(s.T(), 5, s.stockOf(b.ID))

	orders, err := s.st.Orders.ListAll(s.ctx)
	require.NoError(s.T(), err)
	require.Empty(s.T(), orders)
}

func (s *OrderServiceTestSuite) TestConcurrentOrdersNeverOversell() {
	p := s.product("Matcha", 10, 5)

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.place(Actor{ID: primitive.NewObjectID()}, 20, item(p, 2))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		require.True(s.T(), apperr.Is(err, apperr.KindInvalidRequest))
	}
	require.Equal(s.T(), 2, ok)
	require.Equal(s.T(), 1, s.stockOf(p.ID))

	orders, err := s.st.Orders.ListAll(s.ctx)
	require.NoError(s.T(), err)
	units := 0
	for i := range orders {
		units += orders[i].TotalUnits()
	}
	require.Equal(s.T(), 5-s.stockOf(p.ID), units)
}

func (s *OrderServiceTestSuite) TestPublishFailureDoesNotFailOrder() {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	svc := NewService(s.st.Transactor, s.st.Products, s.st.Orders, zerolog.Nop(), WithPublisher(pub))
	p := s.product("Matcha", 10, 5)

	_, err := svc.Create(s.ctx, s.buyer, CreateInput{OrderItems: []CreateItem{item(p, 1)}, ItemsPrice: 10})
	require.NoError(s.T(), err)
	pub.AssertNumberOfCalls(s.T(), "Publish", 1)
}

func (s *OrderServiceTestSuite) TestGetHidesOtherUsersOrders() {
	p := s.product("Matcha", 10, 5)
	o, err := s.place(s.buyer, 10, item(p, 1))
	require.NoError(s.T(), err)

	got, err := s.svc.Get(s.ctx, s.buyer, o.ID.Hex())
	require.NoError(s.T(), err)
	require.Equal(s.T(), o.ID, got.ID)

	_, err = s.svc.Get(s.ctx, Actor{ID: primitive.NewObjectID()}, o.ID.Hex())
	require.True(s.T(), apperr.Is(err, apperr.KindNotFound))

	_, err = s.svc.Get(s.ctx, s.admin, o.ID.Hex())
	require.NoError(s.T(), err)

	_, err = s.svc.Get(s.ctx, s.buyer, "nope")
	require.True(s.T(), apperr.Is(err, apperr.KindNotFound))
}

func (s *OrderServiceTestSuite) TestListings() {
	p := s.product("Matcha", 10, 50)
	first, err := s.place(s.buyer, 10, item(p, 1))
	require.NoError(s.T(), err)
	s.now = s.now.Add(time.Minute)
	second, err := s.place(s.buyer, 10, item(p, 1))
	require.NoError(s.T(), err)
	_, err = s.place(Actor{ID: primitive.NewObjectID()}, 10, item(p, 1))
	require.NoError(s.T(), err)

	mine, err := s.svc.ListMine(s.ctx, s.buyer)
	require.NoError(s.T(), err)
	require.Len(s.T(), mine, 2)
	require.Equal(s.T(), second.ID, mine[0].ID)
	require.Equal(s.T(), first.ID, mine[1].ID)

	_, err = s.svc.ListAll(s.ctx, s.buyer)
	require.True(s.T(), apperr.Is(err, apperr.KindForbidden))

	all, err := s.svc.ListAll(s.ctx, s.admin)
	require.NoError(s.T(), err)
	require.Len(s.T(), all, 3)
}

func (s *OrderServiceTestSuite) TestMarkPaidKeepsFirstTimestamp() {
	p := s.product("Matcha", 10, 5)
	o, err := s.place(s.buyer, 10, item(p, 1))
	require.NoError(s.T(), err)

	paid, err := s.svc.MarkPaid(s.ctx, o.ID.Hex())
	require.NoError(s.T(), err)
	require.True(s.T(), paid.IsPaid)
	require.Equal(s.T(), model.StatusProcessing, paid.Status)
	firstPaidAt := *paid.PaidAt

	s.now = s.now.Add(time.Hour)
	again, err := s.svc.MarkPaid(s.ctx, o.ID.Hex())
	require.NoError(s.T(), err)
	require.Equal(s.T(), firstPaidAt, *again.PaidAt)
	s.pub.AssertCalled(s.T(), "Publish", mock.Anything, eventOfType(events.OrderPaid))

	_, err = s.svc.MarkPaid(s.ctx, primitive.NewObjectID().Hex())
	require.True(s.T(), apperr.Is(err, apperr.KindNotFound))
}

func (s *OrderServiceTestSuite) TestMarkDelivered() {
	p := s.product("Matcha", 10, 5)
	o, err := s.place(s.buyer, 10, item(p, 1))
	require.NoError(s.T(), err)

	d, err := s.svc.MarkDelivered(s.ctx, o.ID.Hex())
	require.NoError(s.T(), err)
	require.True(s.T(), d.IsDelivered)
	require.Equal(s.T(), model.StatusDelivered, d.Status)
	require.Equal(s.T(), s.now, *d.DeliveredAt)

	// Permissive mode lets payment move a delivered order back to processing.
	paid, err := s.svc.MarkPaid(s.ctx, o.ID.Hex())
	require.NoError(s.T(), err)
	require.Equal(s.T(), model.StatusProcessing, paid.Status)
}

func (s *OrderServiceTestSuite) TestUpdateMergesFields() {
	p := s.product("Matcha", 10, 5)
	o, err := s.place(s.buyer, 10, item(p, 1))
	require.NoError(s.T(), err)

	status := model.StatusShipped
	city := "Kyoto"
	paid := true
	updated, err := s.svc.Update(s.ctx, o.ID.Hex(), UpdateInput{
		Status:          &status,
		IsPaid:          &paid,
		ShippingAddress: &AddressPatch{City: &city},
	})
	require.NoError(s.T(), err)
	require.Equal(s.T(), model.StatusShipped, updated.Status)
	require.True(s.T(), updated.IsPaid)
	require.NotNil(s.T(), updated.PaidAt)
	require.Equal(s.T(), "Kyoto", updated.ShippingAddress.City)
	require.Equal(s.T(), "1 Tea Lane", updated.ShippingAddress.Address)
	require.False(s.T(), updated.IsDelivered)

	bogus := model.OrderStatus("lost")
	_, err = s.svc.Update(s.ctx, o.ID.Hex(), UpdateInput{Status: &bogus})
	require.True(s.T(), apperr.Is(err, apperr.KindInvalidRequest))
}

func (s *OrderServiceTestSuite) TestStrictTransitions() {
	svc := s.newService(true)
	p := s.product("Matcha", 10, 5)
	o, err := s.place(s.buyer, 10, item(p, 1))
	require.NoError(s.T(), err)

	cancelled := model.StatusCancelled
	_, err = svc.Update(s.ctx, o.ID.Hex(), UpdateInput{Status: &cancelled})
	require.NoError(s.T(), err)

	_, err = svc.MarkDelivered(s.ctx, o.ID.Hex())
	require.True(s.T(), apperr.Is(err, apperr.KindInvalidRequest))

	pending := model.StatusPending
	_, err = svc.Update(s.ctx, o.ID.Hex(), UpdateInput{Status: &pending})
	require.True(s.T(), apperr.Is(err, apperr.KindInvalidRequest))

	// Payment is still recorded on a terminal order; the status stays put.
	paid, err := svc.MarkPaid(s.ctx, o.ID.Hex())
	require.NoError(s.T(), err)
	require.True(s.T(), paid.IsPaid)
	require.Equal(s.T(), model.StatusCancelled, paid.Status)
}
