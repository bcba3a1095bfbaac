package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// memoryStore fakes the stock tables plus the movement ledger so the
// engine can be exercised without PostgreSQL.
type memoryStore struct {
	products  map[int64]*ProductStock
	variants  map[int64]*VariantStock
	movements map[int64]Movement
	nextID    int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		products:  make(map[int64]*ProductStock),
		variants:  make(map[int64]*VariantStock),
		movements: make(map[int64]Movement),
	}
}

func (s *memoryStore) addProduct(id int64, stock float64) {
	s.products[id] = &ProductStock{ID: id, Stock: stock, Active: true}
}

func (s *memoryStore) addVariant(id, productID int64, stock float64) {
	s.variants[id] = &VariantStock{ID: id, ProductID: productID, Stock: stock}
	p := s.products[productID]
	p.HasVariants = true
	sum, _ := s.SumVariantStock(context.Background(), productID)
	p.Stock = sum
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, s)
}

func (s *memoryStore) Stock(ctx context.Context, productID, variantID int64) (float64, error) {
	if variantID != 0 {
		v, ok := s.variants[variantID]
		if !ok || v.ProductID != productID {
			return 0, ErrUnknownReference
		}
		return v.Stock, nil
	}
	p, ok := s.products[productID]
	if !ok {
		return 0, ErrUnknownReference
	}
	return p.Stock, nil
}

func (s *memoryStore) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	var out []Movement
	for _, m := range s.movements {
		out = append(out, m)
	}
	return out, nil
}

func (s *memoryStore) ProductForUpdate(ctx context.Context, productID int64) (ProductStock, error) {
	p, ok := s.products[productID]
	if !ok {
		return ProductStock{}, ErrUnknownReference
	}
	return *p, nil
}

func (s *memoryStore) VariantForUpdate(ctx context.Context, variantID int64) (VariantStock, error) {
	v, ok := s.variants[variantID]
	if !ok {
		return VariantStock{}, ErrUnknownReference
	}
	return *v, nil
}

func (s *memoryStore) SetProductStock(ctx context.Context, productID int64, stock float64) error {
	s.products[productID].Stock = stock
	return nil
}

func (s *memoryStore) SetVariantStock(ctx context.Context, variantID int64, stock float64) error {
	s.variants[variantID].Stock = stock
	return nil
}

func (s *memoryStore) SumVariantStock(ctx context.Context, productID int64) (float64, error) {
	var sum float64
	for _, v := range s.variants {
		if v.ProductID == productID {
			sum += v.Stock
		}
	}
	return sum, nil
}

func (s *memoryStore) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	s.nextID++
	m.ID = s.nextID
	s.movements[m.ID] = m
	return m.ID, nil
}

func (s *memoryStore) FindMovement(ctx context.Context, key MovementKey) (Movement, error) {
	for _, m := range s.movements {
		if m.ProductID == key.ProductID && m.VariantID == key.VariantID &&
			m.SaleID == key.SaleID && m.PurchaseID == key.PurchaseID &&
			m.Direction == key.Direction {
			return m, nil
		}
	}
	return Movement{}, ErrLedgerIntegrity
}

func (s *memoryStore) SetMovementQuantity(ctx context.Context, movementID int64, quantity float64) error {
	m := s.movements[movementID]
	m.Quantity = quantity
	s.movements[movementID] = m
	return nil
}

func (s *memoryStore) DeleteMovement(ctx context.Context, movementID int64) error {
	delete(s.movements, movementID)
	return nil
}

type countingNotifier struct {
	calls int
}

func (n *countingNotifier) StockChanged(ctx context.Context) {
	n.calls++
}

func TestApplyOutboundNeverDrivesStockNegative(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, 5)
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	_, err := svc.Apply(ctx, store, Movement{ProductID: 1, Direction: DirectionOut, Quantity: 8, SaleID: 10})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, 8.0, insufficient.Requested)
	require.Equal(t, 5.0, insufficient.Available)

	// Nothing was written.
	require.Equal(t, 5.0, store.products[1].Stock)
	require.Empty(t, store.movements)
}

func TestApplyWritesStockAndMovementTogether(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, 5)
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	m, err := svc.Apply(ctx, store, Movement{ProductID: 1, Direction: DirectionOut, Quantity: 3, SaleID: 10})
	require.NoError(t, err)
	require.NotZero(t, m.ID)
	require.False(t, m.Date.IsZero())
	require.Equal(t, 2.0, store.products[1].Stock)
	require.Len(t, store.movements, 1)
}

func TestApplyVariantRecomputesProductSum(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, 0)
	store.addVariant(11, 1, 4)
	store.addVariant(12, 1, 6)
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	_, err := svc.Apply(ctx, store, Movement{ProductID: 1, VariantID: 11, Direction: DirectionOut, Quantity: 3, SaleID: 10})
	require.NoError(t, err)
	require.Equal(t, 1.0, store.variants[11].Stock)
	require.Equal(t, 6.0, store.variants[12].Stock)
	require.Equal(t, 7.0, store.products[1].Stock)
}

func TestApplyProductLevelRejectedWhenVariantsExist(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, 0)
	store.addVariant(11, 1, 4)
	svc := NewService(store, nil, nil)

	_, err := svc.Apply(context.Background(), store, Movement{ProductID: 1, Direction: DirectionIn, Quantity: 2})
	require.ErrorIs(t, err, ErrVariantRequired)
}

func TestApplyRejectsForeignVariant(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, 0)
	store.addProduct(2, 3)
	store.addVariant(11, 1, 4)
	svc := NewService(store, nil, nil)

	_, err := svc.Apply(context.Background(), store, Movement{ProductID: 2, VariantID: 11, Direction: DirectionIn, Quantity: 2})
	require.ErrorIs(t, err, ErrUnknownReference)
}

func TestReverseRestoresStockAndRemovesRow(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, 10)
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	m, err := svc.Apply(ctx, store, Movement{ProductID: 1, Direction: DirectionOut, Quantity: 4, SaleID: 10})
	require.NoError(t, err)
	require.Equal(t, 6.0, store.products[1].Stock)

	require.NoError(t, svc.Reverse(ctx, store, m))
	require.Equal(t, 10.0, store.products[1].Stock)
	require.Empty(t, store.movements)
}

func TestReverseInsufficiencyIsIntegrityFault(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, 10)
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	// An inbound movement whose stock was since drained: reversing it
	// would go negative, which means ledger and stock drifted.
	m, err := svc.Apply(ctx, store, Movement{ProductID: 1, Direction: DirectionIn, Quantity: 5, PurchaseID: 20})
	require.NoError(t, err)
	store.products[1].Stock = 2

	err = svc.Reverse(ctx, store, m)
	require.ErrorIs(t, err, ErrLedgerIntegrity)
	require.Len(t, store.movements, 1)
}

func TestAdjustAppliesOnlyTheDelta(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, 10)
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	m, err := svc.Apply(ctx, store, Movement{ProductID: 1, Direction: DirectionOut, Quantity: 3, SaleID: 10})
	require.NoError(t, err)
	require.Equal(t, 7.0, store.products[1].Stock)

	key := MovementKey{ProductID: 1, SaleID: 10, Direction: DirectionOut}

	// 3 -> 5: two more leave.
	require.NoError(t, svc.Adjust(ctx, store, key, 5))
	require.Equal(t, 5.0, store.products[1].Stock)
	require.Equal(t, 5.0, store.movements[m.ID].Quantity)

	// 5 -> 2: three come back; the row keeps its identity.
	require.NoError(t, svc.Adjust(ctx, store, key, 2))
	require.Equal(t, 8.0, store.products[1].Stock)
	require.Equal(t, 2.0, store.movements[m.ID].Quantity)
	require.Len(t, store.movements, 1)
}

func TestAdjustNoOpOnEqualQuantity(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, 10)
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	_, err := svc.Apply(ctx, store, Movement{ProductID: 1, Direction: DirectionOut, Quantity: 3, SaleID: 10})
	require.NoError(t, err)

	key := MovementKey{ProductID: 1, SaleID: 10, Direction: DirectionOut}
	require.NoError(t, svc.Adjust(ctx, store, key, 3))
	require.Equal(t, 7.0, store.products[1].Stock)
}

func TestCheckStockReportsFirstShortageInKeyOrder(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, 10)
	store.addProduct(2, 1)
	store.addProduct(3, 0)
	svc := NewService(store, nil, nil)

	// Submitted out of order: the shortage for product 2 must win over
	// product 3 because checks run in ascending key order.
	ok, shortage, err := svc.CheckStock(context.Background(), []CheckItem{
		{ProductID: 3, Quantity: 1},
		{ProductID: 2, Quantity: 5},
		{ProductID: 1, Quantity: 2},
	})
	require.NoError(t, err)
	require.False(t, ok)
	require.NotNil(t, shortage)
	require.Equal(t, int64(2), shortage.ProductID)
	require.Equal(t, 5.0, shortage.Requested)
	require.Equal(t, 1.0, shortage.Available)

	// Checking never mutates stock.
	require.Equal(t, 10.0, store.products[1].Stock)
}

func TestCheckStockSumsDuplicateKeys(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, 5)
	svc := NewService(store, nil, nil)

	// Each line fits on its own; together they overdraw.
	ok, shortage, err := svc.CheckStock(context.Background(), []CheckItem{
		{ProductID: 1, Quantity: 3},
		{ProductID: 1, Quantity: 3},
	})
	require.NoError(t, err)
	require.False(t, ok)
	require.NotNil(t, shortage)
	require.Equal(t, 6.0, shortage.Requested)
	require.Equal(t, 5.0, shortage.Available)

	ok, shortage, err = svc.CheckStock(context.Background(), []CheckItem{
		{ProductID: 1, Quantity: 3},
		{ProductID: 1, Quantity: 2},
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, shortage)
}

func TestCheckStockSkipsNonPositiveQuantities(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, 2)
	svc := NewService(store, nil, nil)

	ok, shortage, err := svc.CheckStock(context.Background(), []CheckItem{
		{ProductID: 1, Quantity: 0},
		{ProductID: 1, Quantity: -3},
		{ProductID: 1, Quantity: 2},
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, shortage)
}

func TestEditStockRecordsBareMovement(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, 5)
	svc := NewService(store, nil, nil)

	m, err := svc.EditStock(context.Background(), 1, 0, DirectionIn, 3, "recount")
	require.NoError(t, err)
	require.Equal(t, 8.0, store.products[1].Stock)
	require.Zero(t, m.SaleID)
	require.Zero(t, m.PurchaseID)
	require.Equal(t, "recount", m.Note)
}

func TestEditStockNotifiesStockChanged(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, 5)
	notifier := &countingNotifier{}
	svc := NewService(store, nil, notifier)

	_, err := svc.EditStock(context.Background(), 1, 0, DirectionIn, 3, "")
	require.NoError(t, err)
	require.Equal(t, 1, notifier.calls)

	// A failed edit commits nothing and must not invalidate caches.
	_, err = svc.EditStock(context.Background(), 1, 0, DirectionOut, 99, "")
	require.Error(t, err)
	require.Equal(t, 1, notifier.calls)
}

func TestApplyValidation(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, 5)
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	_, err := svc.Apply(ctx, store, Movement{ProductID: 1, Direction: "sideways", Quantity: 1})
	require.Error(t, err)

	_, err = svc.Apply(ctx, store, Movement{ProductID: 1, Direction: DirectionIn, Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Apply(ctx, store, Movement{ProductID: 1, Direction: DirectionIn, Quantity: 1, SaleID: 1, PurchaseID: 2})
	require.Error(t, err)
}
