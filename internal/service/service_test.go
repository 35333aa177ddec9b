package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/idpuniv/livewire/internal/repository"
	"github.com/idpuniv/livewire/internal/repository/sqlstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store    *sqlstore.Store
	products repository.ProductRepository
	carts    repository.CartRepository
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	ledger   repository.StockLedger

	catalog  *CatalogService
	cart     *CartService
	order    *OrderService
	payment  *PaymentService
	checkout *CheckoutService
	stock    *StockService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := sqlstore.Open(context.Background(), sqlstore.SQLite, ":memory:")
	require.NoError(t, err)
	return harnessOn(t, store)
}

func harnessOn(t *testing.T, store *sqlstore.Store) *harness {
	t.Helper()
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		store:    store,
		products: sqlstore.NewProductRepository(store),
		carts:    sqlstore.NewCartRepository(store),
		orders:   sqlstore.NewOrderRepository(store),
		payments: sqlstore.NewPaymentRepository(store),
		ledger:   sqlstore.NewStockLedger(store),
	}
	h.wire(h.orders)
	return h
}

// wire builds the services on top of orders, which tests may wrap.
func (h *harness) wire(orders repository.OrderRepository) {
	h.catalog = NewCatalogService(h.products)
	h.cart = NewCartService(h.store, h.carts, h.products)
	h.order = NewOrderService(h.store, orders, h.carts, h.products)
	h.payment = NewPaymentService(h.store, orders, h.payments)
	h.checkout = NewCheckoutService(h.store, h.carts, h.order, h.payment)
	h.stock = NewStockService(h.store, h.products, h.ledger)
}

func (h *harness) product(t *testing.T, code string, price int64, stock int) *entity.Product {
	t.Helper()
	p := &entity.Product{Name: "Product " + code, Code: code, Price: decimal.NewFromInt(price), Stock: stock, Published: true}
	require.NoError(t, h.products.Create(context.Background(), p))
	return p
}

// scenarioCart returns a cart holding 2 × 800 and 1 × 1500.
func (h *harness) scenarioCart(t *testing.T, ownerID int64) (*entity.Cart, *entity.Product, *entity.Product) {
	t.Helper()
	ctx := context.Background()
	milk := h.product(t, "001", 800, 50)
	juice := h.product(t, "003", 1500, 25)

	cart, err := h.cart.GetOrCreate(ctx, ownerID)
	require.NoError(t, err)
	_, err = h.cart.AddItem(ctx, cart.ID, milk.ID, 2)
	require.NoError(t, err)
	cart, err = h.cart.AddItem(ctx, cart.ID, juice.ID, 1)
	require.NoError(t, err)
	return cart, milk, juice
}

func (h *harness) stockOf(t *testing.T, id int64) int {
	t.Helper()
	p, err := h.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var errSimulated = errors.New("simulated crash before order update")

// failingOrders fails Confirm, the step right after the transaction row is written.
type failingOrders struct {
	repository.OrderRepository
}

func (failingOrders) Confirm(context.Context, int64, decimal.Decimal) error {
	return errSimulated
}

type published struct {
	topic string
	key   string
	event any
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, key: key, event: event})
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.msgs {
		out = append(out, m.topic)
	}
	return out
}
