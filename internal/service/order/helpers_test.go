package order

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Additional-Code/taller/internal/cache"
	"github.com/Additional-Code/taller/internal/config"
	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/messaging"
	"github.com/Additional-Code/taller/internal/pricing"
	"github.com/Additional-Code/taller/internal/repository/memory"
	"github.com/Additional-Code/taller/internal/service/audit"
	"github.com/Additional-Code/taller/internal/service/payment"
)

const (
	productCake    int64 = 101
	productSnacks  int64 = 102
	productCookies int64 = 103

	methodCash int64 = 1
	methodCard int64 = 2

	testActor = "ana"
)

var fixedNow = time.Date(2025, 5, 10, 9, 30, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func price(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func tomorrow() *time.Time {
	d := fixedNow.AddDate(0, 0, 1)
	return &d
}

type fixture struct {
	svc       *Service
	store     *memory.Store
	payments  *payment.Service
	publisher *stubPublisher
	cache     *stubCache
	reader    *sdkmetric.ManualReader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	store.PutProduct(entity.Product{ID: productCake, Name: "Pastel", UnitPrice: dec("50"), Active: true}, 10, 2)
	store.PutProduct(entity.Product{ID: productSnacks, Name: "Bocadillos", UnitPrice: dec("150"), Active: true}, 5, 1)
	store.PutProduct(entity.Product{ID: productCookies, Name: "Galletas", UnitPrice: dec("10"), Active: true}, 2, 0)
	store.PutMethod(entity.PaymentMethod{ID: methodCash, Name: "Efectivo", IsCash: true, Active: true})
	store.PutMethod(entity.PaymentMethod{ID: methodCard, Name: "Tarjeta", Active: true})

	cfg := config.Config{
		Cache:     config.Cache{DefaultTTL: time.Minute},
		Messaging: config.Messaging{Enabled: true, Kafka: config.Kafka{Topic: "orders.lifecycle"}},
		Orders: config.Orders{
			DepositThreshold:  dec("300"),
			DepositRate:       dec("0.25"),
			ElaborationMarkup: dec("2"),
			PaymentTolerance:  dec("0.01"),
			ReferencePrefix:   "PEDIDO",
		},
	}
	clock := func() time.Time { return fixedNow }
	recorder := audit.NewRecorderWithClock(store.Audit(), nil, clock)
	payments := payment.NewService(payment.Params{
		UnitOfWork: store,
		Orders:     store.Orders(),
		Payments:   store.Payments(),
		Cash:       store.Cash(),
		Audit:      recorder,
		Config:     cfg,
		Clock:      clock,
	})

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	publisher := &stubPublisher{}
	orderCache := newStubCache()

	svc, err := NewService(Params{
		UnitOfWork: store,
		Orders:     store.Orders(),
		Kardex:     store.Kardex(),
		Stocks:     store.Stocks(),
		Products:   store.Products(),
		Payments:   payments,
		Calculator: pricing.New(cfg),
		Audit:      recorder,
		Cache:      orderCache,
		Publisher:  publisher,
		Meter:      provider.Meter("test"),
		Clock:      clock,
		Config:     cfg,
	})
	require.NoError(t, err)

	return &fixture{
		svc:       svc,
		store:     store,
		payments:  payments,
		publisher: publisher,
		cache:     orderCache,
		reader:    reader,
	}
}

func (f *fixture) create(t *testing.T, lines ...LineInput) *entity.Order {
	t.Helper()
	res, err := f.svc.Create(context.Background(), CreateCommand{
		Actor:        testActor,
		ClientID:     7,
		DeliveryDate: tomorrow(),
		Lines:        lines,
	})
	require.NoError(t, err)
	return res.Order
}

// seed stores an order as is, bypassing the lifecycle.
func (f *fixture) seed(t *testing.T, order entity.Order) *entity.Order {
	t.Helper()
	require.NoError(t, f.store.Orders().Create(context.Background(), &order))
	return &order
}

func (f *fixture) reload(t *testing.T, id int64) *entity.Order {
	t.Helper()
	order, err := f.store.Orders().GetByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (f *fixture) entriesOf(orderID int64) []entity.KardexEntry {
	reference := entity.Reference("PEDIDO", orderID)
	var out []entity.KardexEntry
	for _, entry := range f.store.KardexEntries() {
		if entry.Reference == reference {
			out = append(out, entry)
		}
	}
	return out
}

func (f *fixture) warnings() int {
	var n int
	for _, entry := range f.store.AuditEntries() {
		if entry.Level == entity.AuditLevelWarning {
			n++
		}
	}
	return n
}

type published struct {
	key     string
	event   LifecycleEvent
	headers map[string]string
}

type stubPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *stubPublisher) Publish(_ context.Context, key []byte, value []byte, headers map[string]string) error {
	var event LifecycleEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{key: string(key), event: event, headers: headers})
	return nil
}

func (p *stubPublisher) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (p *stubPublisher) Topic() string { return "orders.lifecycle" }

func (p *stubPublisher) transitions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.event.Transition)
	}
	return out
}

type stubCache struct {
	mu      sync.Mutex
	items   map[string][]byte
	deletes []string
}

func newStubCache() *stubCache {
	return &stubCache{items: map[string][]byte{}}
}

func (c *stubCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (c *stubCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *stubCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	c.deletes = append(c.deletes, key)
	return nil
}
