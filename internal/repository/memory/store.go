// Package memory implements every repository contract in process memory. Transactions are
// emulated with snapshot and restore, so rolled back work is observable in tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/repository"
)

type state struct {
	orders    map[int64]entity.Order
	lines     map[int64]entity.OrderLine
	kardex    map[int64]entity.KardexEntry
	stocks    map[int64]entity.Stock
	products  map[int64]entity.Product
	receipts  map[int64]entity.PaymentReceipt
	methods   map[int64]entity.PaymentMethod
	sessions  map[int64]entity.CashSession
	movements map[int64]entity.CashMovement
	seq       int64
}

func newState() state {
	return state{
		orders:    map[int64]entity.Order{},
		lines:     map[int64]entity.OrderLine{},
		kardex:    map[int64]entity.KardexEntry{},
		stocks:    map[int64]entity.Stock{},
		products:  map[int64]entity.Product{},
		receipts:  map[int64]entity.PaymentReceipt{},
		methods:   map[int64]entity.PaymentMethod{},
		sessions:  map[int64]entity.CashSession{},
		movements: map[int64]entity.CashMovement{},
	}
}

func (s state) clone() state {
	cp := state{seq: s.seq}
	cp.orders = cloneMap(s.orders)
	cp.lines = cloneMap(s.lines)
	cp.kardex = cloneMap(s.kardex)
	cp.stocks = cloneMap(s.stocks)
	cp.products = cloneMap(s.products)
	cp.receipts = cloneMap(s.receipts)
	cp.methods = cloneMap(s.methods)
	cp.sessions = cloneMap(s.sessions)
	cp.movements = cloneMap(s.movements)
	return cp
}

func cloneMap[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store holds all tables. The zero value is not usable; call New.
type Store struct {
	mu       sync.Mutex
	data     state
	audit    []entity.AuditEntry
	failures map[string]error
	inTx     bool

	Commits   int
	Rollbacks int
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newState(), failures: map[string]error{}}
}

// FailOn makes the named operation (for example "kardex.Insert") return err until cleared
// with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

func (s *Store) next() int64 {
	s.data.seq++
	return s.data.seq
}

// RunInTx snapshots every table, runs fn and restores the snapshot when fn fails.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	if s.inTx {
		s.mu.Unlock()
		return fn(ctx)
	}
	snapshot := s.data.clone()
	s.inTx = true
	s.mu.Unlock()

	err := fn(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inTx = false
	if err != nil {
		s.data = snapshot
		s.Rollbacks++
		return err
	}
	if commitErr := s.fail("tx.Commit"); commitErr != nil {
		s.data = snapshot
		s.Rollbacks++
		return commitErr
	}
	s.Commits++
	return nil
}

// PutProduct registers a product with its stock record.
func (s *Store) PutProduct(product entity.Product, onHand, reorderLevel int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.products[product.ID] = product
	s.data.stocks[product.ID] = entity.Stock{ProductID: product.ID, OnHand: onHand, ReorderLevel: reorderLevel}
	if product.ID > s.data.seq {
		s.data.seq = product.ID
	}
}

// PutMethod registers a payment method.
func (s *Store) PutMethod(method entity.PaymentMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.methods[method.ID] = method
}

// OpenSession opens a register session for actor and returns its id.
func (s *Store) OpenSession(session entity.CashSession) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.ID == 0 {
		session.ID = s.next()
	}
	s.data.sessions[session.ID] = session
	return session.ID
}

// Stock returns the current stock record of a product.
func (s *Store) Stock(productID int64) entity.Stock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.stocks[productID]
}

// KardexEntries returns every entry ordered by id.
func (s *Store) KardexEntries() []entity.KardexEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.data.kardex, func(e entity.KardexEntry) int64 { return e.ID })
}

// Receipts returns every receipt ordered by id.
func (s *Store) Receipts() []entity.PaymentReceipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.data.receipts, func(r entity.PaymentReceipt) int64 { return r.ID })
}

// Movements returns every cash movement ordered by id.
func (s *Store) Movements() []entity.CashMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.data.movements, func(m entity.CashMovement) int64 { return m.ID })
}

// AuditEntries returns every audit entry in append order.
func (s *Store) AuditEntries() []entity.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.audit)
}

func sortedValues[V any](m map[int64]V, id func(V) int64) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

// Orders exposes the order repository.
func (s *Store) Orders() repository.OrderRepository { return orderRepo{s} }

// Kardex exposes the kardex repository.
func (s *Store) Kardex() repository.KardexRepository { return kardexRepo{s} }

// Stocks exposes the stock repository.
func (s *Store) Stocks() repository.StockRepository { return stockRepo{s} }

// Products exposes the product repository.
func (s *Store) Products() repository.ProductRepository { return productRepo{s} }

// Payments exposes the payment repository.
func (s *Store) Payments() repository.PaymentRepository { return paymentRepo{s} }

// Cash exposes the cash repository.
func (s *Store) Cash() repository.CashRepository { return cashRepo{s} }

// Audit exposes the audit repository.
func (s *Store) Audit() repository.AuditRepository { return auditRepo{s} }

type orderRepo struct{ s *Store }

func (r orderRepo) Create(_ context.Context, order *entity.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("orders.Create"); err != nil {
		return err
	}
	order.ID = r.s.next()
	header := *order
	header.Lines = nil
	r.s.data.orders[order.ID] = header
	for i := range order.Lines {
		order.Lines[i].ID = r.s.next()
		order.Lines[i].OrderID = order.ID
		r.s.data.lines[order.Lines[i].ID] = order.Lines[i]
	}
	return nil
}

func (r orderRepo) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("orders.GetByID"); err != nil {
		return nil, err
	}
	header, ok := r.s.data.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	order := header
	for _, line := range sortedValues(r.s.data.lines, func(l entity.OrderLine) int64 { return l.ID }) {
		if line.OrderID == id {
			order.Lines = append(order.Lines, line)
		}
	}
	return &order, nil
}

func (r orderRepo) UpdateHeader(_ context.Context, order *entity.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("orders.UpdateHeader"); err != nil {
		return err
	}
	if _, ok := r.s.data.orders[order.ID]; !ok {
		return repository.ErrNotFound
	}
	header := *order
	header.Lines = nil
	r.s.data.orders[order.ID] = header
	return nil
}

func (r orderRepo) InsertLine(_ context.Context, line *entity.OrderLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("orders.InsertLine"); err != nil {
		return err
	}
	line.ID = r.s.next()
	r.s.data.lines[line.ID] = *line
	return nil
}

func (r orderRepo) UpdateLine(_ context.Context, line *entity.OrderLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("orders.UpdateLine"); err != nil {
		return err
	}
	if _, ok := r.s.data.lines[line.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.data.lines[line.ID] = *line
	return nil
}

func (r orderRepo) DeleteLine(_ context.Context, lineID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("orders.DeleteLine"); err != nil {
		return err
	}
	delete(r.s.data.lines, lineID)
	return nil
}

type kardexRepo struct{ s *Store }

func (r kardexRepo) Insert(_ context.Context, entry *entity.KardexEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("kardex.Insert"); err != nil {
		return err
	}
	entry.ID = r.s.next()
	r.s.data.kardex[entry.ID] = *entry
	return nil
}

func (r kardexRepo) Update(_ context.Context, entry *entity.KardexEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("kardex.Update"); err != nil {
		return err
	}
	if _, ok := r.s.data.kardex[entry.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.data.kardex[entry.ID] = *entry
	return nil
}

func (r kardexRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("kardex.Delete"); err != nil {
		return err
	}
	delete(r.s.data.kardex, id)
	return nil
}

func (r kardexRepo) Find(_ context.Context, productID int64, reference string, kind entity.Movement) (*entity.KardexEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, entry := range sortedValues(r.s.data.kardex, func(e entity.KardexEntry) int64 { return e.ID }) {
		if entry.ProductID == productID && entry.Reference == reference && entry.Kind == kind {
			return &entry, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r kardexRepo) ListByReference(_ context.Context, reference string, kind entity.Movement) ([]entity.KardexEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.KardexEntry
	for _, entry := range sortedValues(r.s.data.kardex, func(e entity.KardexEntry) int64 { return e.ID }) {
		if entry.Reference == reference && entry.Kind == kind {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r kardexRepo) ListByProduct(_ context.Context, productID int64, limit int) ([]entity.KardexEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.KardexEntry
	all := sortedValues(r.s.data.kardex, func(e entity.KardexEntry) int64 { return e.ID })
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].ProductID == productID {
			out = append(out, all[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type stockRepo struct{ s *Store }

func (r stockRepo) Get(_ context.Context, productID int64) (*entity.Stock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stock, ok := r.s.data.stocks[productID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &stock, nil
}

func (r stockRepo) Save(_ context.Context, stock *entity.Stock) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("stock.Save"); err != nil {
		return err
	}
	if _, ok := r.s.data.stocks[stock.ProductID]; !ok {
		return repository.ErrNotFound
	}
	r.s.data.stocks[stock.ProductID] = *stock
	return nil
}

func (r stockRepo) ListBelowReorder(_ context.Context) ([]entity.Stock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.Stock
	for _, stock := range sortedValues(r.s.data.stocks, func(s entity.Stock) int64 { return s.ProductID }) {
		if stock.BelowReorder() {
			out = append(out, stock)
		}
	}
	return out, nil
}

type productRepo struct{ s *Store }

func (r productRepo) GetByID(_ context.Context, id int64) (*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	product, ok := r.s.data.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &product, nil
}

func (r productRepo) ListByIDs(_ context.Context, ids []int64) (map[int64]entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[int64]entity.Product, len(ids))
	for _, id := range ids {
		if product, ok := r.s.data.products[id]; ok {
			out[id] = product
		}
	}
	return out, nil
}

type paymentRepo struct{ s *Store }

func (r paymentRepo) Insert(_ context.Context, receipt *entity.PaymentReceipt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("payments.Insert"); err != nil {
		return err
	}
	receipt.ID = r.s.next()
	r.s.data.receipts[receipt.ID] = *receipt
	return nil
}

func (r paymentRepo) ListByOrder(_ context.Context, orderID int64) ([]entity.PaymentReceipt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.PaymentReceipt
	for _, receipt := range sortedValues(r.s.data.receipts, func(p entity.PaymentReceipt) int64 { return p.ID }) {
		if receipt.OrderID == orderID {
			out = append(out, receipt)
		}
	}
	return out, nil
}

func (r paymentRepo) SumByOrder(_ context.Context, orderID int64, concept entity.PaymentConcept) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for _, receipt := range r.s.data.receipts {
		if receipt.OrderID == orderID && receipt.Concept == concept {
			sum = sum.Add(receipt.Amount)
		}
	}
	return sum, nil
}

func (r paymentRepo) GetMethod(_ context.Context, id int64) (*entity.PaymentMethod, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	method, ok := r.s.data.methods[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &method, nil
}

type cashRepo struct{ s *Store }

func (r cashRepo) ActiveSession(_ context.Context, actor string) (*entity.CashSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *entity.CashSession
	for _, session := range sortedValues(r.s.data.sessions, func(c entity.CashSession) int64 { return c.ID }) {
		if session.OpenedBy == actor && session.ClosedAt == nil {
			sess := session
			found = &sess
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (r cashRepo) InsertMovement(_ context.Context, movement *entity.CashMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("cash.InsertMovement"); err != nil {
		return err
	}
	movement.ID = r.s.next()
	r.s.data.movements[movement.ID] = *movement
	return nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Append(_ context.Context, entry *entity.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("audit.Append"); err != nil {
		return err
	}
	entry.ID = int64(len(r.s.audit) + 1)
	r.s.audit = append(r.s.audit, *entry)
	return nil
}
