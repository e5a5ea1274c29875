package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"justmatcha-backend/internal/apperr"
	"justmatcha-backend/internal/events"
	"justmatcha-backend/internal/model"
	"justmatcha-backend/internal/store"
)

// priceTolerance is the largest accepted gap between the client's itemsPrice
// and the server's.
var priceTolerance = decimal.New(1, -2)

// Actor is the authenticated caller.
type Actor struct {
	ID      primitive.ObjectID
	IsAdmin bool
}

// StockInvalidator is told which products lost stock after a committed order.
type StockInvalidator interface {
	Invalidate(ctx context.Context, ids ...primitive.ObjectID)
}

type Service struct {
	tx        store.Transactor
	products  store.ProductStore
	orders    store.OrderStore
	publisher events.Publisher
	stock     StockInvalidator
	strict    bool
	now       func() time.Time
	log       zerolog.Logger
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithStockInvalidator(inv StockInvalidator) Option {
	return func(s *Service) { s.stock = inv }
}

// WithStrictTransitions makes status changes follow model.CanTransition.
func WithStrictTransitions(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(tx store.Transactor, products store.ProductStore, orders store.OrderStore, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		tx:        tx,
		products:  products,
		orders:    orders,
		publisher: events.Nop{},
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type line struct {
	productID primitive.ObjectID
	quantity  int
}

// Create validates the request against the catalog, recomputes the prices,
// stores the order and takes the ordered units out of stock in one
// transaction.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*model.Order, error) {
	lines, err := in.lines()
	if err != nil {
		return nil, err
	}
	if in.TaxPrice < 0 || in.ShippingPrice < 0 {
		return nil, apperr.Invalid("tax and shipping prices must not be negative")
	}
	paymentMethod := strings.TrimSpace(in.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = model.PaymentCashOnDelivery
	}

	// Units per product, so repeated lines are checked against stock together.
	requested := map[primitive.ObjectID]int{}
	var productOrder []primitive.ObjectID
	for _, l := range lines {
		if _, seen := requested[l.productID]; !seen {
			productOrder = append(productOrder, l.productID)
		}
		if requested[l.productID] > math.MaxInt-l.quantity {
			return nil, apperr.Invalid("Quantity too large for product: %s", l.productID.Hex())
		}
		requested[l.productID] += l.quantity
	}

	var created *model.Order
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		catalog := make(map[primitive.ObjectID]*model.Product, len(productOrder))
		for _, id := range productOrder {
			p, err := s.products.GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return apperr.NotFound("Product not found: %s", id.Hex())
				}
				return fmt.Errorf("load product %s: %w", id.Hex(), err)
			}
			if p.Stock < requested[id] {
				return apperr.Invalid("Not enough stock for product: %s", p.Name)
			}
			catalog[id] = p
		}

		itemsPrice := decimal.Zero
		items := make([]model.OrderItem, 0, len(lines))
		for _, l := range lines {
			p := catalog[l.productID]
			itemsPrice = itemsPrice.Add(decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(l.quantity))))
			items = append(items, model.OrderItem{
				ProductID: p.ID,
				Name:      p.Name,
				Price:     p.Price,
				Image:     p.Image,
				Quantity:  l.quantity,
			})
		}
		if itemsPrice.Sub(decimal.NewFromFloat(in.ItemsPrice)).Abs().GreaterThan(priceTolerance) {
			return apperr.Invalid("Cart items price does not match")
		}

		tax := decimal.NewFromFloat(in.TaxPrice)
		shipping := decimal.NewFromFloat(in.ShippingPrice)
		now := s.now()
		o := &model.Order{
			UserID:          actor.ID,
			OrderItems:      items,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   paymentMethod,
			ItemsPrice:      itemsPrice.InexactFloat64(),
			TaxPrice:        tax.InexactFloat64(),
			ShippingPrice:   shipping.InexactFloat64(),
			TotalPrice:      itemsPrice.Add(tax).Add(shipping).InexactFloat64(),
			Status:          model.StatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		// No payment gateway: anything but cash on delivery counts as paid up front.
		if paymentMethod != model.PaymentCashOnDelivery {
			o.IsPaid = true
			o.PaidAt = &now
		}
		if err := s.orders.Create(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, id := range productOrder {
			if err := s.products.DecrementStock(ctx, id, requested[id]); err != nil {
				switch {
				case errors.Is(err, store.ErrInsufficientStock):
					return apperr.Invalid("Not enough stock for product: %s", catalog[id].Name)
				case errors.Is(err, store.ErrNotFound):
					return apperr.NotFound("Product not found: %s", id.Hex())
				}
				return fmt.Errorf("decrement stock %s: %w", id.Hex(), err)
			}
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, s.fail(err, "Error creating order")
	}

	if s.stock != nil {
		s.stock.Invalidate(ctx, productOrder...)
	}
	s.log.Info().
		Str("order_id", created.ID.Hex()).
		Str("user_id", actor.ID.Hex()).
		Int("units", created.TotalUnits()).
		Float64("total", created.TotalPrice).
		Msg("order created")
	s.publish(ctx, events.OrderCreated, created)
	return created, nil
}

// Get returns the order to its owner or an admin. Anyone else gets NotFound
// so order ids cannot be enumerated.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*model.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != actor.ID && !actor.IsAdmin {
		return nil, apperr.NotFound("Order not found")
	}
	return o, nil
}

func (s *Service) ListMine(ctx context.Context, actor Actor) ([]model.Order, error) {
	orders, err := s.orders.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, apperr.Internal(err, "Server error while fetching orders")
	}
	return orders, nil
}

func (s *Service) ListAll(ctx context.Context, actor Actor) ([]model.Order, error) {
	if !actor.IsAdmin {
		return nil, apperr.Forbidden("Admin access required")
	}
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "Server error while fetching orders")
	}
	return orders, nil
}

// MarkPaid keeps the first paidAt across repeated calls.
func (s *Service) MarkPaid(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	o.IsPaid = true
	if o.PaidAt == nil {
		o.PaidAt = &now
	}
	if !s.strict || model.CanTransition(o.Status, model.StatusProcessing) {
		o.Status = model.StatusProcessing
	}
	return s.save(ctx, o, events.OrderPaid)
}

func (s *Service) MarkDelivered(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.strict && !model.CanTransition(o.Status, model.StatusDelivered) {
		return nil, apperr.Invalid("Order cannot move from %s to %s", o.Status, model.StatusDelivered)
	}
	now := s.now()
	o.IsDelivered = true
	if o.DeliveredAt == nil {
		o.DeliveredAt = &now
	}
	o.Status = model.StatusDelivered
	return s.save(ctx, o, events.OrderDelivered)
}

// Update applies an administrator's correction. Only the fields present in
// in change; the shipping address is merged field by field.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Status != nil && *in.Status != "" {
		next := *in.Status
		if !next.Valid() {
			return nil, apperr.Invalid("Unknown order status: %s", next)
		}
		if s.strict && !model.CanTransition(o.Status, next) {
			return nil, apperr.Invalid("Order cannot move from %s to %s", o.Status, next)
		}
		o.Status = next
	}

	now := s.now()
	if in.IsPaid != nil {
		o.IsPaid = *in.IsPaid
		if o.IsPaid && o.PaidAt == nil {
			o.PaidAt = &now
		}
	}
	if in.IsDelivered != nil {
		o.IsDelivered = *in.IsDelivered
		if o.IsDelivered && o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
	}
	if in.ShippingAddress != nil {
		in.ShippingAddress.mergeInto(&o.ShippingAddress)
	}
	return s.save(ctx, o, events.OrderUpdated)
}

func (s *Service) load(ctx context.Context, id string) (*model.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.NotFound("Order not found")
	}
	o, err := s.orders.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, apperr.Internal(err, "could not load order")
	}
	return o, nil
}

func (s *Service) save(ctx context.Context, o *model.Order, eventType string) (*model.Order, error) {
	o.UpdatedAt = s.now()
	if err := s.orders.Replace(ctx, o); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, apperr.Internal(err, "Error updating order")
	}
	s.log.Info().Str("order_id", o.ID.Hex()).Str("status", string(o.Status)).Str("event", eventType).Msg("order updated")
	s.publish(ctx, eventType, o)
	return o, nil
}

// publish is best effort; the order is already committed.
func (s *Service) publish(ctx context.Context, eventType string, o *model.Order) {
	if err := s.publisher.Publish(ctx, events.NewOrderEvent(eventType, o)); err != nil {
		s.log.Error().Err(err).Str("order_id", o.ID.Hex()).Str("event", eventType).Msg("order event publish failed")
	}
}

func (s *Service) fail(err error, msg string) error {
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	s.log.Error().Err(err).Msg(msg)
	return apperr.Internal(err, msg)
}
