package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/WholesaleGo/internal/domain"
	"github.com/utafrali/WholesaleGo/internal/repository"
	apperrors "github.com/utafrali/WholesaleGo/pkg/errors"
	"github.com/utafrali/WholesaleGo/pkg/lock"
)

// --- in-memory Store with snapshot transactions ---

type memState struct {
	products  map[uuid.UUID]domain.Product
	suppliers map[uuid.UUID]domain.Supplier
	orders    map[uuid.UUID]domain.PurchaseOrder
	movements []domain.StockMovement
}

func newMemState() *memState {
	return &memState{
		products:  map[uuid.UUID]domain.Product{},
		suppliers: map[uuid.UUID]domain.Supplier{},
		orders:    map[uuid.UUID]domain.PurchaseOrder{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.suppliers {
		c.suppliers[k] = v
	}
	for k, v := range s.orders {
		v.Items = slices.Clone(v.Items)
		c.orders[k] = v
	}
	c.movements = slices.Clone(s.movements)
	return c
}

// memDB commits a transaction by swapping in the mutated snapshot, so a
// failed unit of work leaves state exactly as it was.
type memDB struct {
	mu    sync.Mutex
	state *memState
}

func newMemDB() *memDB {
	return &memDB{state: newMemState()}
}

func (db *memDB) Store() repository.Store { return &memStore{state: db.state} }

func (db *memDB) WithinTx(ctx context.Context, fn func(store repository.Store) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := db.state.clone()
	if err := fn(&memStore{state: snapshot}); err != nil {
		return err
	}
	*db.state = *snapshot
	return nil
}

type memStore struct{ state *memState }

func (s *memStore) Products() repository.ProductRepository             { return memProducts{s.state} }
func (s *memStore) Suppliers() repository.SupplierRepository           { return memSuppliers{s.state} }
func (s *memStore) PurchaseOrders() repository.PurchaseOrderRepository { return memOrders{s.state} }
func (s *memStore) Movements() repository.StockMovementRepository      { return memMovements{s.state} }

type memProducts struct{ st *memState }

func (r memProducts) Create(_ context.Context, p *domain.Product) error {
	for _, existing := range r.st.products {
		if existing.CompanyID == p.CompanyID && existing.SKU == p.SKU {
			return apperrors.AlreadyExists("product", "sku", p.SKU)
		}
	}
	r.st.products[p.ID] = *p
	return nil
}

func (r memProducts) GetByID(_ context.Context, companyID, id uuid.UUID) (*domain.Product, error) {
	p, ok := r.st.products[id]
	if !ok || p.CompanyID != companyID {
		return nil, apperrors.NotFound("product", id.String())
	}
	return &p, nil
}

func (r memProducts) LockByIDs(_ context.Context, companyID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	out := map[uuid.UUID]*domain.Product{}
	for _, id := range ids {
		if p, ok := r.st.products[id]; ok && p.CompanyID == companyID {
			out[id] = &p
		}
	}
	return out, nil
}

func (r memProducts) UpdateInventory(_ context.Context, p *domain.Product) error {
	if _, ok := r.st.products[p.ID]; !ok {
		return apperrors.NotFound("product", p.ID.String())
	}
	if p.Stock < 0 {
		return errors.New("stock check constraint violated")
	}
	r.st.products[p.ID] = *p
	return nil
}

type memSuppliers struct{ st *memState }

func (r memSuppliers) Create(_ context.Context, s *domain.Supplier) error {
	r.st.suppliers[s.ID] = *s
	return nil
}

func (r memSuppliers) GetByID(_ context.Context, companyID, id uuid.UUID) (*domain.Supplier, error) {
	s, ok := r.st.suppliers[id]
	if !ok || s.CompanyID != companyID {
		return nil, apperrors.NotFound("supplier", id.String())
	}
	return &s, nil
}

type memOrders struct{ st *memState }

func (r memOrders) Create(_ context.Context, o *domain.PurchaseOrder) error {
	stored := *o
	stored.Supplier = nil
	stored.Items = slices.Clone(o.Items)
	r.st.orders[o.ID] = stored
	return nil
}

func (r memOrders) get(companyID, id uuid.UUID) (*domain.PurchaseOrder, error) {
	o, ok := r.st.orders[id]
	if !ok || o.CompanyID != companyID {
		return nil, apperrors.NotFound("purchase order", id.String())
	}
	o.Items = slices.Clone(o.Items)
	return &o, nil
}

func (r memOrders) GetByID(_ context.Context, companyID, id uuid.UUID) (*domain.PurchaseOrder, error) {
	o, err := r.get(companyID, id)
	if err != nil {
		return nil, err
	}
	if o.SupplierID != nil {
		if s, ok := r.st.suppliers[*o.SupplierID]; ok {
			o.Supplier = &s
		}
	}
	return o, nil
}

func (r memOrders) GetForUpdate(_ context.Context, companyID, id uuid.UUID) (*domain.PurchaseOrder, error) {
	return r.get(companyID, id)
}

func (r memOrders) List(_ context.Context, companyID uuid.UUID, filter repository.PurchaseOrderFilter) ([]domain.PurchaseOrder, int, error) {
	out := []domain.PurchaseOrder{}
	for _, o := range r.st.orders {
		if o.CompanyID != companyID || (filter.Status != "" && o.Status != filter.Status) {
			continue
		}
		o.Items = []domain.PurchaseOrderItem{}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (r memOrders) AddItem(_ context.Context, item *domain.PurchaseOrderItem) error {
	o := r.st.orders[item.PurchaseOrderID]
	o.Items = append(slices.Clone(o.Items), *item)
	r.st.orders[o.ID] = o
	return nil
}

func (r memOrders) DeleteItem(_ context.Context, orderID, itemID uuid.UUID) error {
	o := r.st.orders[orderID]
	idx := slices.IndexFunc(o.Items, func(i domain.PurchaseOrderItem) bool { return i.ID == itemID })
	if idx < 0 {
		return apperrors.NotFound("purchase order item", itemID.String())
	}
	o.Items = slices.Delete(slices.Clone(o.Items), idx, idx+1)
	r.st.orders[orderID] = o
	return nil
}

func (r memOrders) UpdateHeader(_ context.Context, o *domain.PurchaseOrder) error {
	stored, ok := r.st.orders[o.ID]
	if !ok {
		return apperrors.NotFound("purchase order", o.ID.String())
	}
	stored.Status = o.Status
	stored.TotalValue = o.TotalValue
	stored.FinalizedAt = o.FinalizedAt
	stored.PostedAt = o.PostedAt
	stored.ReversedAt = o.ReversedAt
	stored.UpdatedAt = o.UpdatedAt
	r.st.orders[o.ID] = stored
	return nil
}

type memMovements struct{ st *memState }

func (r memMovements) Append(_ context.Context, m *domain.StockMovement) error {
	r.st.movements = append(r.st.movements, *m)
	return nil
}

func (r memMovements) ListByReference(_ context.Context, companyID uuid.UUID, refType string, refID uuid.UUID) ([]domain.StockMovement, error) {
	out := []domain.StockMovement{}
	for _, m := range r.st.movements {
		if m.CompanyID == companyID && m.RefType == refType && m.RefID == refID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memMovements) ListByProduct(ctx context.Context, companyID, productID uuid.UUID, page, perPage int) ([]domain.StockMovement, int, error) {
	all, _ := r.ListAllByProduct(ctx, companyID, productID)
	slices.Reverse(all)
	if perPage <= 0 {
		perPage = 20
	}
	if page < 1 {
		page = 1
	}
	start := min((page-1)*perPage, len(all))
	end := min(start+perPage, len(all))
	return all[start:end], len(all), nil
}

func (r memMovements) ListAllByProduct(_ context.Context, companyID, productID uuid.UUID) ([]domain.StockMovement, error) {
	out := []domain.StockMovement{}
	for _, m := range r.st.movements {
		if m.CompanyID == companyID && m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

// --- fakes ---

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	posted   []*domain.PostingResult
	reversed []*domain.ReversalResult
	adjusted []*domain.StockMovement
}

func (f *fakePublisher) PublishStockPosted(_ context.Context, _ uuid.UUID, r *domain.PostingResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, r)
	return f.err
}

func (f *fakePublisher) PublishStockReversed(_ context.Context, _ uuid.UUID, r *domain.ReversalResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reversed = append(f.reversed, r)
	return f.err
}

func (f *fakePublisher) PublishStockAdjusted(_ context.Context, m *domain.StockMovement, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adjusted = append(f.adjusted, m)
	return f.err
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string) (func(), error) {
	return nil, lock.ErrNotObtained
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- fixture ---

var (
	fixedNow     = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedOrderID = uuid.MustParse("7f1c0d6e-3a52-4b8e-9d2c-5e1f0a9b8c7d")
)

type fixture struct {
	t          *testing.T
	db         *memDB
	events     *fakePublisher
	purchasing *PurchasingService
	inventory  *InventoryService
	companyID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newMemDB()
	events := &fakePublisher{}
	logger := newTestLogger()

	purchasing := NewPurchasingService(db.Store(), db, nil, events, logger)
	purchasing.now = func() time.Time { return fixedNow }
	inventory := NewInventoryService(db.Store(), db, events, logger)
	inventory.now = func() time.Time { return fixedNow }

	return &fixture{
		t:          t,
		db:         db,
		events:     events,
		purchasing: purchasing,
		inventory:  inventory,
		companyID:  uuid.New(),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}

func (f *fixture) product(sku string, stock int64, cost, price string) *domain.Product {
	f.t.Helper()
	p, err := f.inventory.CreateProduct(context.Background(), f.companyID, "tester", CreateProductInput{
		SKU:          sku,
		Name:         "Product " + sku,
		Cost:         dec(cost),
		Price:        dec(price),
		OpeningStock: stock,
	})
	require.NoError(f.t, err)
	return p
}

type line struct {
	product   *domain.Product
	qty       string
	unitCost  string
	sellPrice string
}

func (f *fixture) order(lines ...line) *domain.PurchaseOrder {
	f.t.Helper()
	ctx := context.Background()
	order, err := f.purchasing.CreatePurchaseOrder(ctx, f.companyID, "tester", CreatePurchaseOrderInput{Number: "PO-1"})
	require.NoError(f.t, err)

	for _, l := range lines {
		in := AddItemInput{ProductID: l.product.ID, Qty: dec(l.qty), UnitCost: dec(l.unitCost)}
		if l.sellPrice != "" {
			sp := dec(l.sellPrice)
			in.SellPrice = &sp
		}
		order, err = f.purchasing.AddItem(ctx, f.companyID, order.ID, in)
		require.NoError(f.t, err)
	}
	return order
}

func (f *fixture) stored(id uuid.UUID) domain.Product {
	f.t.Helper()
	p, ok := f.db.state.products[id]
	require.True(f.t, ok)
	return p
}

func (f *fixture) storedOrder(id uuid.UUID) domain.PurchaseOrder {
	f.t.Helper()
	o, ok := f.db.state.orders[id]
	require.True(f.t, ok)
	return o
}

func (f *fixture) orderMovements(orderID uuid.UUID) []domain.StockMovement {
	f.t.Helper()
	out := []domain.StockMovement{}
	for _, m := range f.db.state.movements {
		if m.RefType == domain.RefTypePurchaseOrder && m.RefID == orderID {
			out = append(out, m)
		}
	}
	return out
}
