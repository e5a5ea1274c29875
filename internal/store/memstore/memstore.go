// Package memstore keeps every collection in process memory. It backs local
// runs (STORAGE_DRIVER=memory) and the service tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"justmatcha-backend/internal/model"
	"justmatcha-backend/internal/store"
)

type txKey struct{}

type DB struct {
	mu        sync.Mutex
	txMu      sync.Mutex
	users     map[primitive.ObjectID]model.User
	products  map[primitive.ObjectID]model.Product
	orders    map[primitive.ObjectID]model.Order
	carts     map[primitive.ObjectID]model.Cart
	wishlists map[primitive.ObjectID]model.Wishlist
}

func New() *DB {
	return &DB{
		users:     map[primitive.ObjectID]model.User{},
		products:  map[primitive.ObjectID]model.Product{},
		orders:    map[primitive.ObjectID]model.Order{},
		carts:     map[primitive.ObjectID]model.Cart{},
		wishlists: map[primitive.ObjectID]model.Wishlist{},
	}
}

// Store exposes db through the store ports.
func (db *DB) Store() *store.Store {
	return &store.Store{
		Transactor: db,
		Users:      userStore{db},
		Products:   productStore{db},
		Orders:     orderStore{db},
		Carts:      cartStore{db},
		Wishlists:  wishlistStore{db},
		Ping:       func(context.Context) error { return nil },
		Close:      func(context.Context) error { return nil },
	}
}

// txn is the undo log of one transaction, replayed in reverse on rollback.
type txn struct{ undo []func() }

// WithinTransaction serialises transactions and, when fn fails, reverts the
// writes fn made. Writes made outside the transaction are left alone. Nested
// calls join the outer transaction.
func (db *DB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txn); ok {
		return fn(ctx)
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()

	t := &txn{}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		db.rollback(t)
		return err
	}
	return nil
}

func (db *DB) rollback(t *txn) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
}

// track records how to restore m[k] if ctx belongs to a transaction that
// later fails. Callers hold db.mu and call it before writing m[k].
func track[K comparable, V any](ctx context.Context, m map[K]V, k K) {
	t, ok := ctx.Value(txKey{}).(*txn)
	if !ok {
		return
	}
	old, had := m[k]
	t.undo = append(t.undo, func() {
		if had {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
}

func cloneOrder(o model.Order) model.Order {
	o.OrderItems = append([]model.OrderItem(nil), o.OrderItems...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		o.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		o.DeliveredAt = &t
	}
	return o
}

func cloneCart(c model.Cart) model.Cart {
	c.Products = append([]model.CartItem{}, c.Products...)
	return c
}

func cloneWishlist(w model.Wishlist) model.Wishlist {
	w.Products = append([]model.WishlistItem{}, w.Products...)
	return w
}

func now() time.Time { return time.Now().UTC() }

// ----- users -----

type userStore struct{ db *DB }

func (s userStore) Create(ctx context.Context, u *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	track(ctx, s.db.users, u.ID)
	s.db.users[u.ID] = *u
	return nil
}

func (s userStore) Update(ctx context.Context, u *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[u.ID]; !ok {
		return store.ErrNotFound
	}
	for id, existing := range s.db.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	track(ctx, s.db.users, u.ID)
	s.db.users[u.ID] = *u
	return nil
}

func (s userStore) GetByID(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s userStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

// ----- products -----

type productStore struct{ db *DB }

func (s productStore) Create(ctx context.Context, p *model.Product) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	track(ctx, s.db.products, p.ID)
	s.db.products[p.ID] = *p
	return nil
}

func (s productStore) GetByID(_ context.Context, id primitive.ObjectID) (*model.Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s productStore) List(_ context.Context) ([]model.Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]model.Product, 0, len(s.db.products))
	for _, p := range s.db.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (s productStore) Update(ctx context.Context, p *model.Product) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.products[p.ID]; !ok {
		return store.ErrNotFound
	}
	track(ctx, s.db.products, p.ID)
	s.db.products[p.ID] = *p
	return nil
}

func (s productStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.products[id]; !ok {
		return store.ErrNotFound
	}
	track(ctx, s.db.products, id)
	delete(s.db.products, id)
	return nil
}

func (s productStore) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	if qty <= 0 {
		return store.ErrInvalidQuantity
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.products[id]
	if !ok {
		return store.ErrNotFound
	}
	if p.Stock < qty {
		return store.ErrInsufficientStock
	}
	track(ctx, s.db.products, id)
	p.Stock -= qty
	p.UpdatedAt = now()
	s.db.products[id] = p
	return nil
}

// ----- orders -----

type orderStore struct{ db *DB }

func (s orderStore) Create(ctx context.Context, o *model.Order) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	track(ctx, s.db.orders, o.ID)
	s.db.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (s orderStore) GetByID(_ context.Context, id primitive.ObjectID) (*model.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	o, ok := s.db.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (s orderStore) ListByUser(_ context.Context, userID primitive.ObjectID) ([]model.Order, error) {
	return s.list(func(o model.Order) bool { return o.UserID == userID }), nil
}

func (s orderStore) ListAll(_ context.Context) ([]model.Order, error) {
	return s.list(func(model.Order) bool { return true }), nil
}

func (s orderStore) list(keep func(model.Order) bool) []model.Order {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]model.Order, 0)
	for _, o := range s.db.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out
}

func (s orderStore) Replace(ctx context.Context, o *model.Order) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.orders[o.ID]; !ok {
		return store.ErrNotFound
	}
	track(ctx, s.db.orders, o.ID)
	s.db.orders[o.ID] = cloneOrder(*o)
	return nil
}

// ----- carts -----

type cartStore struct{ db *DB }

func (s cartStore) GetByUser(_ context.Context, userID primitive.ObjectID) (*model.Cart, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.carts[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c = cloneCart(c)
	return &c, nil
}

func (s cartStore) Save(ctx context.Context, c *model.Cart) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	track(ctx, s.db.carts, c.UserID)
	s.db.carts[c.UserID] = cloneCart(*c)
	return nil
}

func (s cartStore) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (*model.Cart, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.carts[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	track(ctx, s.db.carts, userID)
	delete(s.db.carts, userID)
	return &c, nil
}

// ----- wishlists -----

type wishlistStore struct{ db *DB }

func (s wishlistStore) GetByUser(_ context.Context, userID primitive.ObjectID) (*model.Wishlist, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	w, ok := s.db.wishlists[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	w = cloneWishlist(w)
	return &w, nil
}

func (s wishlistStore) Save(ctx context.Context, w *model.Wishlist) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	track(ctx, s.db.wishlists, w.UserID)
	s.db.wishlists[w.UserID] = cloneWishlist(*w)
	return nil
}
