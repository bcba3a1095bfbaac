package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the read-only aggregation queries behind the reports.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaleTotals sums sale headers in [from, to].
func (r *Repository) SaleTotals(ctx context.Context, from, to time.Time) (Totals, error) {
	var t Totals
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(total),0) FROM sale WHERE date BETWEEN $1 AND $2`, from, to).
		Scan(&t.Count, &t.Revenue)
	return t, err
}

// PurchaseTotals sums purchase headers in [from, to].
func (r *Repository) PurchaseTotals(ctx context.Context, from, to time.Time) (Totals, error) {
	var t Totals
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(total),0) FROM purchase WHERE date BETWEEN $1 AND $2`, from, to).
		Scan(&t.Count, &t.Revenue)
	return t, err
}

// DailySales buckets sale revenue per day in [from, to].
func (r *Repository) DailySales(ctx context.Context, from, to time.Time) ([]DailyPoint, error) {
	rows, err := r.pool.Query(ctx, `SELECT date, SUM(total) FROM sale WHERE date BETWEEN $1 AND $2 GROUP BY date ORDER BY date`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var points []DailyPoint
	for rows.Next() {
		var day time.Time
		var revenue float64
		if err := rows.Scan(&day, &revenue); err != nil {
			return nil, err
		}
		points = append(points, DailyPoint{Date: day.Format("2006-01-02"), Revenue: revenue})
	}
	return points, rows.Err()
}

// TopProducts ranks products by quantity sold in [from, to].
func (r *Repository) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	rows, err := r.pool.Query(ctx, `
SELECT p.id, p.name, SUM(d.quantity), SUM(d.quantity * d.unit_price)
FROM sale_detail d
JOIN sale s ON s.id = d.sale_id
JOIN product p ON p.id = d.product_id
WHERE s.date BETWEEN $1 AND $2
GROUP BY p.id, p.name
ORDER BY 3 DESC
LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var top []TopProduct
	for rows.Next() {
		var t TopProduct
		if err := rows.Scan(&t.ProductID, &t.Name, &t.Quantity, &t.Revenue); err != nil {
			return nil, err
		}
		top = append(top, t)
	}
	return top, rows.Err()
}

// CategorySales groups sale lines by product category in [from, to].
func (r *Repository) CategorySales(ctx context.Context, from, to time.Time) ([]CategorySales, error) {
	rows, err := r.pool.Query(ctx, `
SELECT c.id, c.name, SUM(d.quantity), SUM(d.quantity * d.unit_price)
FROM sale_detail d
JOIN sale s ON s.id = d.sale_id
JOIN product p ON p.id = d.product_id
JOIN category c ON c.id = p.category_id
WHERE s.date BETWEEN $1 AND $2
GROUP BY c.id, c.name
ORDER BY 4 DESC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CategorySales
	for rows.Next() {
		var cs CategorySales
		if err := rows.Scan(&cs.CategoryID, &cs.Name, &cs.Quantity, &cs.Revenue); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// ValuationLines prices current stock at the selling price, one line
// per variant plus one per variant-less product.
func (r *Repository) ValuationLines(ctx context.Context) ([]ValuationLine, error) {
	rows, err := r.pool.Query(ctx, `
SELECT p.id, p.name, v.name, v.stock, v.price
FROM product_variant v JOIN product p ON p.id = v.product_id
WHERE p.active
UNION ALL
SELECT p.id, p.name, '', p.stock, p.price
FROM product p
WHERE p.active AND NOT EXISTS (SELECT 1 FROM product_variant v WHERE v.product_id = p.id)
ORDER BY 2, 3`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []ValuationLine
	for rows.Next() {
		var l ValuationLine
		if err := rows.Scan(&l.ProductID, &l.Name, &l.Variant, &l.Stock, &l.UnitPrice); err != nil {
			return nil, err
		}
		l.Value = l.Stock * l.UnitPrice
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
