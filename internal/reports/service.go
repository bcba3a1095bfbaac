package reports

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// RepositoryPort abstracts the aggregation queries.
type RepositoryPort interface {
	SaleTotals(ctx context.Context, from, to time.Time) (Totals, error)
	PurchaseTotals(ctx context.Context, from, to time.Time) (Totals, error)
	DailySales(ctx context.Context, from, to time.Time) ([]DailyPoint, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error)
	CategorySales(ctx context.Context, from, to time.Time) ([]CategorySales, error)
	ValuationLines(ctx context.Context) ([]ValuationLine, error)
}

// Service assembles the report payloads, caching them until the next
// stock mutation bumps the cache version.
type Service struct {
	repo    RepositoryPort
	cache   *Cache
	printer *message.Printer
	unit    currency.Unit
}

// NewService builds the reports service. Amounts are rendered in the
// given ISO 4217 currency; an unknown code falls back to USD.
func NewService(repo RepositoryPort, cache *Cache, currencyCode string) *Service {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		unit = currency.USD
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		printer: message.NewPrinter(language.Spanish),
		unit:    unit,
	}
}

func (s *Service) amount(value float64) string {
	return s.printer.Sprintf("%v", currency.Symbol(s.unit.Amount(value)))
}

// Overview returns the period dashboard: sale and purchase totals plus
// the per-day revenue series, fetched concurrently.
func (s *Service) Overview(ctx context.Context, from, to time.Time) (Overview, error) {
	fromStr, toStr := from.Format("2006-01-02"), to.Format("2006-01-02")
	key, err := s.cache.BuildKey(ctx, keyOverview(fromStr, toStr)...)
	if err != nil {
		return Overview{}, err
	}
	var out Overview
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		ov := Overview{From: fromStr, To: toStr}
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			ov.Sales, err = s.repo.SaleTotals(ctx, from, to)
			return err
		})
		g.Go(func() error {
			var err error
			ov.Purchases, err = s.repo.PurchaseTotals(ctx, from, to)
			return err
		})
		g.Go(func() error {
			var err error
			ov.Daily, err = s.repo.DailySales(ctx, from, to)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		ov.Sales.Display = s.amount(ov.Sales.Revenue)
		ov.Purchases.Display = s.amount(ov.Purchases.Revenue)
		return ov, nil
	})
	return out, err
}

// TopProducts ranks products by quantity sold.
func (s *Service) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = 10
	}
	fromStr, toStr := from.Format("2006-01-02"), to.Format("2006-01-02")
	key, err := s.cache.BuildKey(ctx, keyTopProducts(fromStr, toStr, limit)...)
	if err != nil {
		return nil, err
	}
	var out []TopProduct
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.TopProducts(ctx, from, to, limit)
	})
	return out, err
}

// CategorySales breaks sale revenue down by product category.
func (s *Service) CategorySales(ctx context.Context, from, to time.Time) ([]CategorySales, error) {
	fromStr, toStr := from.Format("2006-01-02"), to.Format("2006-01-02")
	key, err := s.cache.BuildKey(ctx, keyCategorySales(fromStr, toStr)...)
	if err != nil {
		return nil, err
	}
	var out []CategorySales
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.CategorySales(ctx, from, to)
	})
	return out, err
}

// Valuation prices the whole inventory at current selling prices.
func (s *Service) Valuation(ctx context.Context) (Valuation, error) {
	key, err := s.cache.BuildKey(ctx, keyValuation()...)
	if err != nil {
		return Valuation{}, err
	}
	var out Valuation
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		lines, err := s.repo.ValuationLines(ctx)
		if err != nil {
			return nil, err
		}
		v := Valuation{Lines: lines}
		for _, l := range lines {
			v.Total += l.Value
		}
		v.Display = s.amount(v.Total)
		return v, nil
	})
	return out, err
}
