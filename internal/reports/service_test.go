package reports

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	saleCalls int
	topCalls  int
	sales     Totals
	purchases Totals
	daily     []DailyPoint
	top       []TopProduct
	byCat     []CategorySales
	valuation []ValuationLine
}

func (m *mockRepo) SaleTotals(ctx context.Context, from, to time.Time) (Totals, error) {
	m.saleCalls++
	return m.sales, nil
}

func (m *mockRepo) PurchaseTotals(ctx context.Context, from, to time.Time) (Totals, error) {
	return m.purchases, nil
}

func (m *mockRepo) DailySales(ctx context.Context, from, to time.Time) ([]DailyPoint, error) {
	return m.daily, nil
}

func (m *mockRepo) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	m.topCalls++
	if limit < len(m.top) {
		return m.top[:limit], nil
	}
	return m.top, nil
}

func (m *mockRepo) CategorySales(ctx context.Context, from, to time.Time) ([]CategorySales, error) {
	return m.byCat, nil
}

func (m *mockRepo) ValuationLines(ctx context.Context) ([]ValuationLine, error) {
	return m.valuation, nil
}

func newTestService(t *testing.T, repo *mockRepo) (*Service, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	svc := NewService(repo, cache, "EUR")
	return svc, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestOverviewIsCachedUntilBump(t *testing.T) {
	repo := &mockRepo{
		sales:     Totals{Count: 3, Revenue: 120},
		purchases: Totals{Count: 1, Revenue: 40},
		daily:     []DailyPoint{{Date: "2026-08-01", Revenue: 120}},
	}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	first, err := svc.Overview(ctx, from, to)
	require.NoError(t, err)
	require.Equal(t, 3, first.Sales.Count)
	require.Equal(t, 120.0, first.Sales.Revenue)
	require.NotEmpty(t, first.Sales.Display)
	require.Equal(t, 1, repo.saleCalls)

	// Second read hits the cache.
	_, err = svc.Overview(ctx, from, to)
	require.NoError(t, err)
	require.Equal(t, 1, repo.saleCalls)

	// A stock mutation bumps the version and forces a reload.
	svc.cache.StockChanged(ctx)
	repo.sales.Count = 4
	second, err := svc.Overview(ctx, from, to)
	require.NoError(t, err)
	require.Equal(t, 2, repo.saleCalls)
	require.Equal(t, 4, second.Sales.Count)
}

func TestTopProductsHonoursLimit(t *testing.T) {
	repo := &mockRepo{top: []TopProduct{
		{ProductID: 1, Name: "Coffee", Quantity: 30},
		{ProductID: 2, Name: "Tea", Quantity: 20},
		{ProductID: 3, Name: "Sugar", Quantity: 10},
	}}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	top, err := svc.TopProducts(ctx, time.Now().AddDate(0, -1, 0), time.Now(), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "Coffee", top[0].Name)

	// Distinct limits address distinct cache entries.
	top, err = svc.TopProducts(ctx, time.Now().AddDate(0, -1, 0), time.Now(), 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	require.Equal(t, 2, repo.topCalls)
}

func TestCategorySalesPassesPeriod(t *testing.T) {
	repo := &mockRepo{byCat: []CategorySales{
		{CategoryID: 1, Name: "Beverages", Quantity: 12, Revenue: 30},
		{CategoryID: 2, Name: "Snacks", Quantity: 4, Revenue: 9},
	}}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	out, err := svc.CategorySales(context.Background(), time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "Beverages", out[0].Name)
}

func TestValuationSumsLines(t *testing.T) {
	repo := &mockRepo{valuation: []ValuationLine{
		{ProductID: 1, Name: "Coffee", Variant: "1kg", Stock: 5, UnitPrice: 12, Value: 60},
		{ProductID: 2, Name: "Tea", Stock: 2, UnitPrice: 4, Value: 8},
	}}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	v, err := svc.Valuation(context.Background())
	require.NoError(t, err)
	require.Equal(t, 68.0, v.Total)
	require.Len(t, v.Lines, 2)
	require.NotEmpty(t, v.Display)
}

func TestNilCacheLoadsThrough(t *testing.T) {
	repo := &mockRepo{sales: Totals{Count: 1, Revenue: 10}}
	svc := NewService(repo, nil, "XXX")

	out, err := svc.Overview(context.Background(), time.Now().AddDate(0, 0, -7), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, out.Sales.Count)
}
