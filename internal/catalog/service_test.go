package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	products      map[int64]Product
	variants      map[int64]Variant
	categories    map[int64]Category
	nextProductID int64
	nextVariantID int64
	nextCatID     int64
}

type memoryTx struct {
	repo *memoryRepo
}

type countingNotifier struct {
	calls int
}

func (n *countingNotifier) StockChanged(ctx context.Context) {
	n.calls++
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products:   make(map[int64]Product),
		variants:   make(map[int64]Variant),
		categories: make(map[int64]Category),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	p.Variants = nil
	for _, v := range r.variants {
		if v.ProductID == id {
			p.Variants = append(p.Variants, v)
		}
	}
	return p, nil
}

func (r *memoryRepo) ListProducts(ctx context.Context, filter ActiveFilter, search string, limit, offset int) ([]Product, int, error) {
	var out []Product
	for id := range r.products {
		p, _ := r.GetProduct(ctx, id)
		switch filter {
		case FilterActive:
			if !p.Active {
				continue
			}
		case FilterInactive:
			if p.Active {
				continue
			}
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) ExistsName(ctx context.Context, name string, excludeID int64) (bool, error) {
	for _, p := range r.products {
		if p.Name == name && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) LowStock(ctx context.Context, limit int) ([]LowStockEntry, error) {
	return nil, nil
}

func (r *memoryRepo) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	for _, c := range r.categories {
		out = append(out, c)
	}
	return out, nil
}

func (r *memoryRepo) AddCategory(ctx context.Context, name string) (int64, error) {
	r.nextCatID++
	r.categories[r.nextCatID] = Category{ID: r.nextCatID, Name: name}
	return r.nextCatID, nil
}

func (r *memoryRepo) RenameCategory(ctx context.Context, id int64, name string) error {
	c, ok := r.categories[id]
	if !ok {
		return ErrNotFound
	}
	c.Name = name
	r.categories[id] = c
	return nil
}

func (r *memoryRepo) DeleteCategory(ctx context.Context, id int64) error {
	if _, ok := r.categories[id]; !ok {
		return ErrNotFound
	}
	delete(r.categories, id)
	return nil
}

func (r *memoryRepo) CountByCategory(ctx context.Context, categoryID int64) (int, error) {
	count := 0
	for _, p := range r.products {
		if p.CategoryID == categoryID && p.Active {
			count++
		}
	}
	return count, nil
}

func (t *memoryTx) InsertProduct(ctx context.Context, p Product) (int64, error) {
	t.repo.nextProductID++
	p.ID = t.repo.nextProductID
	p.Active = true
	t.repo.products[p.ID] = p
	return p.ID, nil
}

func (t *memoryTx) UpdateProduct(ctx context.Context, p Product) error {
	old, ok := t.repo.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.Active = old.Active
	t.repo.products[p.ID] = p
	return nil
}

func (t *memoryTx) SetProductStock(ctx context.Context, productID int64, stock float64) error {
	p := t.repo.products[productID]
	p.Stock = stock
	t.repo.products[productID] = p
	return nil
}

func (t *memoryTx) SetProductActive(ctx context.Context, productID int64, active bool) error {
	p, ok := t.repo.products[productID]
	if !ok {
		return ErrNotFound
	}
	p.Active = active
	t.repo.products[productID] = p
	return nil
}

func (t *memoryTx) ProductExists(ctx context.Context, productID int64) (bool, error) {
	_, ok := t.repo.products[productID]
	return ok, nil
}

func (t *memoryTx) ListVariantIDs(ctx context.Context, productID int64) ([]int64, error) {
	var ids []int64
	for id, v := range t.repo.variants {
		if v.ProductID == productID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (t *memoryTx) InsertVariant(ctx context.Context, v Variant) (int64, error) {
	t.repo.nextVariantID++
	v.ID = t.repo.nextVariantID
	t.repo.variants[v.ID] = v
	return v.ID, nil
}

func (t *memoryTx) UpdateVariant(ctx context.Context, v Variant) error {
	if _, ok := t.repo.variants[v.ID]; !ok {
		return ErrNotFound
	}
	t.repo.variants[v.ID] = v
	return nil
}

func (t *memoryTx) DeleteVariant(ctx context.Context, variantID int64) error {
	delete(t.repo.variants, variantID)
	return nil
}

func (t *memoryTx) VariantProduct(ctx context.Context, variantID int64) (int64, error) {
	v, ok := t.repo.variants[variantID]
	if !ok {
		return 0, ErrNotFound
	}
	return v.ProductID, nil
}

func (t *memoryTx) SumVariantStock(ctx context.Context, productID int64) (float64, error) {
	var sum float64
	for _, v := range t.repo.variants {
		if v.ProductID == productID {
			sum += v.Stock
		}
	}
	return sum, nil
}

func (t *memoryTx) CountVariants(ctx context.Context, productID int64) (int, error) {
	count := 0
	for _, v := range t.repo.variants {
		if v.ProductID == productID {
			count++
		}
	}
	return count, nil
}

func TestSaveProductSumsVariantStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	id, err := svc.SaveProduct(ctx, SaveProductInput{
		Name:       "Coffee",
		CategoryID: 1,
		Unit:       "kg",
		Price:      12,
		Stock:      99, // ignored once variants exist
		Variants: []VariantInput{
			{Name: "250g", Stock: 4, Price: 5},
			{Name: "1kg", Stock: 6, Price: 12},
		},
	})
	require.NoError(t, err)

	p, err := svc.GetProduct(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 10.0, p.Stock)
	require.Len(t, p.Variants, 2)
}

func TestSaveProductReplacesVariantSet(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	id, err := svc.SaveProduct(ctx, SaveProductInput{
		Name: "Tea", CategoryID: 1, Unit: "box",
		Variants: []VariantInput{
			{Name: "Green", Stock: 3},
			{Name: "Black", Stock: 7},
		},
	})
	require.NoError(t, err)

	p, err := svc.GetProduct(ctx, id)
	require.NoError(t, err)
	require.Len(t, p.Variants, 2)
	var greenID int64
	for _, v := range p.Variants {
		if v.Name == "Green" {
			greenID = v.ID
		}
	}

	// Resave keeping only Green with a new stock: Black must be gone
	// and the cached product stock must follow.
	_, err = svc.SaveProduct(ctx, SaveProductInput{
		ID: id, Name: "Tea", CategoryID: 1, Unit: "box",
		Variants: []VariantInput{{ID: greenID, Name: "Green", Stock: 5}},
	})
	require.NoError(t, err)

	p, err = svc.GetProduct(ctx, id)
	require.NoError(t, err)
	require.Len(t, p.Variants, 1)
	require.Equal(t, "Green", p.Variants[0].Name)
	require.Equal(t, 5.0, p.Stock)
}

func TestSaveProductRejectsForeignVariant(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	first, err := svc.SaveProduct(ctx, SaveProductInput{
		Name: "Rice", CategoryID: 1, Unit: "kg",
		Variants: []VariantInput{{Name: "White", Stock: 2}},
	})
	require.NoError(t, err)
	p, err := svc.GetProduct(ctx, first)
	require.NoError(t, err)
	foreign := p.Variants[0].ID

	second, err := svc.SaveProduct(ctx, SaveProductInput{Name: "Beans", CategoryID: 1, Unit: "kg"})
	require.NoError(t, err)

	_, err = svc.SaveProduct(ctx, SaveProductInput{
		ID: second, Name: "Beans", CategoryID: 1, Unit: "kg",
		Variants: []VariantInput{{ID: foreign, Name: "White", Stock: 2}},
	})
	require.ErrorIs(t, err, ErrForeignVariant)
}

func TestSaveProductRejectsDuplicateName(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.SaveProduct(ctx, SaveProductInput{Name: "Sugar", CategoryID: 1, Unit: "kg"})
	require.NoError(t, err)
	_, err = svc.SaveProduct(ctx, SaveProductInput{Name: "Sugar", CategoryID: 1, Unit: "kg"})
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestDeleteProductIsSoft(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	id, err := svc.SaveProduct(ctx, SaveProductInput{Name: "Salt", CategoryID: 1, Unit: "kg", Stock: 3})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProduct(ctx, id))

	p, err := svc.GetProduct(ctx, id)
	require.NoError(t, err)
	require.False(t, p.Active)
	require.Equal(t, 3.0, p.Stock)

	require.NoError(t, svc.RestoreProduct(ctx, id))
	p, err = svc.GetProduct(ctx, id)
	require.NoError(t, err)
	require.True(t, p.Active)
}

func TestSaveProductUnknownIDFails(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.SaveProduct(context.Background(), SaveProductInput{
		ID: 99, Name: "Ghost", CategoryID: 1, Unit: "kg",
	})
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, repo.products)
}

func TestStockMutationsNotifyChange(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &countingNotifier{}
	svc := NewService(repo, nil, notifier)
	ctx := context.Background()

	id, err := svc.SaveProduct(ctx, SaveProductInput{Name: "Rice", CategoryID: 1, Unit: "kg", Stock: 4})
	require.NoError(t, err)
	require.Equal(t, 1, notifier.calls)

	require.NoError(t, svc.DeleteProduct(ctx, id))
	require.Equal(t, 2, notifier.calls)
	require.NoError(t, svc.RestoreProduct(ctx, id))
	require.Equal(t, 3, notifier.calls)

	// A rejected save commits nothing and must not invalidate caches.
	_, err = svc.SaveProduct(ctx, SaveProductInput{ID: 99, Name: "Ghost", CategoryID: 1, Unit: "kg"})
	require.Error(t, err)
	require.Equal(t, 3, notifier.calls)
}

func TestDeleteCategoryInUse(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	catID, err := svc.AddCategory(ctx, "Drinks")
	require.NoError(t, err)
	_, err = svc.SaveProduct(ctx, SaveProductInput{Name: "Cola", CategoryID: catID, Unit: "bottle"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteCategory(ctx, catID), ErrCategoryInUse)

	empty, err := svc.AddCategory(ctx, "Empty")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteCategory(ctx, empty))
}
