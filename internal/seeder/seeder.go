package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/taller/internal/database"
	"github.com/Additional-Code/taller/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{db: conns.Writer, logger: logger}
}

type productSeed struct {
	product entity.Product
	onHand  int
	reorder int
}

func catalog(now time.Time) []productSeed {
	price := decimal.RequireFromString
	return []productSeed{
		{entity.Product{ID: 1, Name: "Pastel de chocolate", UnitPrice: price("50.00"), Active: true, CreatedAt: now}, 20, 5},
		{entity.Product{ID: 2, Name: "Bocadillos surtidos", UnitPrice: price("150.00"), Active: true, CreatedAt: now}, 10, 3},
		{entity.Product{ID: 3, Name: "Galletas decoradas", UnitPrice: price("10.00"), Active: true, CreatedAt: now}, 60, 15},
		{entity.Product{ID: 4, Name: "Cupcakes", UnitPrice: price("12.50"), Active: true, CreatedAt: now}, 48, 12},
	}
}

func methods() []entity.PaymentMethod {
	return []entity.PaymentMethod{
		{ID: 1, Name: "Efectivo", IsCash: true, Active: true},
		{ID: 2, Name: "Tarjeta", Active: true},
		{ID: 3, Name: "Transferencia", Active: true},
	}
}

// All seeds the catalog, stock, payment methods and an open cash session in one transaction.
func (s *Seeder) All(ctx context.Context, cashier string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.products(ctx, tx); err != nil {
			return err
		}
		if err := s.methods(ctx, tx); err != nil {
			return err
		}
		return s.session(ctx, tx, cashier)
	})
}

func (s *Seeder) products(ctx context.Context, tx bun.Tx) error {
	now := time.Now().UTC()
	seeds := catalog(now)
	for _, seed := range seeds {
		product := seed.product
		if _, err := tx.NewInsert().Model(&product).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("seed product %d: %w", product.ID, err)
		}
		stock := entity.Stock{
			ProductID:    product.ID,
			OnHand:       seed.onHand,
			ReorderLevel: seed.reorder,
			UpdatedBy:    "seeder",
			UpdatedAt:    now,
		}
		if _, err := tx.NewInsert().Model(&stock).On("CONFLICT (product_id) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("seed stock of product %d: %w", product.ID, err)
		}
	}
	s.logger.Info("seeded products", zap.Int("count", len(seeds)))
	return nil
}

func (s *Seeder) methods(ctx context.Context, tx bun.Tx) error {
	seeds := methods()
	for _, method := range seeds {
		method := method
		if _, err := tx.NewInsert().Model(&method).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("seed payment method %s: %w", method.Name, err)
		}
	}
	s.logger.Info("seeded payment methods", zap.Int("count", len(seeds)))
	return nil
}

func (s *Seeder) session(ctx context.Context, tx bun.Tx, cashier string) error {
	if cashier == "" {
		return nil
	}
	open, err := tx.NewSelect().Model((*entity.CashSession)(nil)).
		Where("opened_by = ?", cashier).
		Where("closed_at IS NULL").
		Count(ctx)
	if err != nil {
		return fmt.Errorf("count open sessions: %w", err)
	}
	if open > 0 {
		return nil
	}
	session := entity.CashSession{OpenedBy: cashier, OpenedAt: time.Now().UTC()}
	if _, err := tx.NewInsert().Model(&session).Exec(ctx); err != nil {
		return fmt.Errorf("open cash session: %w", err)
	}
	s.logger.Info("opened cash session", zap.String("cashier", cashier), zap.Int64("session_id", session.ID))
	return nil
}
