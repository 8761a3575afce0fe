// Package repository declares the storage contracts used by the order lifecycle.
package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/taller/internal/entity"
)

// ErrNotFound is returned when a requested row is missing.
var ErrNotFound = errors.New("record not found")

// UnitOfWork runs fn inside one transaction; repositories called with the context handed to
// fn take part in it.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository stores order headers and their lines.
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	UpdateHeader(ctx context.Context, order *entity.Order) error
	InsertLine(ctx context.Context, line *entity.OrderLine) error
	UpdateLine(ctx context.Context, line *entity.OrderLine) error
	DeleteLine(ctx context.Context, lineID int64) error
}

// KardexRepository stores ledger entries.
type KardexRepository interface {
	Insert(ctx context.Context, entry *entity.KardexEntry) error
	Update(ctx context.Context, entry *entity.KardexEntry) error
	Delete(ctx context.Context, id int64) error
	// Find returns the first entry of kind for (productID, reference) or ErrNotFound.
	Find(ctx context.Context, productID int64, reference string, kind entity.Movement) (*entity.KardexEntry, error)
	ListByReference(ctx context.Context, reference string, kind entity.Movement) ([]entity.KardexEntry, error)
	ListByProduct(ctx context.Context, productID int64, limit int) ([]entity.KardexEntry, error)
}

// StockRepository stores per-product stock records.
type StockRepository interface {
	Get(ctx context.Context, productID int64) (*entity.Stock, error)
	Save(ctx context.Context, stock *entity.Stock) error
	ListBelowReorder(ctx context.Context) ([]entity.Stock, error)
}

// ProductRepository reads the catalog.
type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Product, error)
	ListByIDs(ctx context.Context, ids []int64) (map[int64]entity.Product, error)
}

// PaymentRepository stores receipts and resolves payment methods.
type PaymentRepository interface {
	Insert(ctx context.Context, receipt *entity.PaymentReceipt) error
	ListByOrder(ctx context.Context, orderID int64) ([]entity.PaymentReceipt, error)
	SumByOrder(ctx context.Context, orderID int64, concept entity.PaymentConcept) (decimal.Decimal, error)
	GetMethod(ctx context.Context, id int64) (*entity.PaymentMethod, error)
}

// CashRepository resolves open register sessions and records movements.
type CashRepository interface {
	ActiveSession(ctx context.Context, actor string) (*entity.CashSession, error)
	InsertMovement(ctx context.Context, movement *entity.CashMovement) error
}

// AuditRepository appends audit entries.
type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditEntry) error
}
