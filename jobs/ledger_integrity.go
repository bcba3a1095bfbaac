package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/lachapita/lachapita/internal/jobs"
)

// IntegrityFault is one inconsistency between the stock columns and the
// movement ledger.
type IntegrityFault struct {
	Kind      string
	ProductID int64
	VariantID int64
	Detail    string
}

// NewLedgerIntegrityHandler returns the handler for TaskLedgerIntegrity.
// The scan is read-only; faults are logged, never repaired in place.
func NewLedgerIntegrityHandler(pool *pgxpool.Pool, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskLedgerIntegrity)
		faults, err := ScanLedgerIntegrity(ctx, pool)
		if err != nil {
			return tracker.End(err)
		}
		byKind := make(map[string]int)
		for _, f := range faults {
			byKind[f.Kind]++
			logger.Error("ledger integrity fault",
				slog.String("kind", f.Kind),
				slog.Int64("product_id", f.ProductID),
				slog.Int64("variant_id", f.VariantID),
				slog.String("detail", f.Detail),
			)
		}
		for kind, count := range byKind {
			metrics.AddIntegrityFaults(kind, count)
		}
		logger.Info("ledger integrity scan done",
			slog.String("job", TaskLedgerIntegrity),
			slog.Int("faults", len(faults)),
		)
		return tracker.End(nil)
	}
}

// ScanLedgerIntegrity runs the three cross-checks: no negative stock
// anywhere, variant-owning products cache the exact variant sum, and
// every line item matches its movement row quantity.
func ScanLedgerIntegrity(ctx context.Context, pool *pgxpool.Pool) ([]IntegrityFault, error) {
	var faults []IntegrityFault

	rows, err := pool.Query(ctx, `
SELECT id, 0, stock FROM product WHERE stock < 0
UNION ALL
SELECT product_id, id, stock FROM product_variant WHERE stock < 0`)
	if err != nil {
		return nil, fmt.Errorf("scan negative stock: %w", err)
	}
	for rows.Next() {
		var f IntegrityFault
		var stock float64
		if err := rows.Scan(&f.ProductID, &f.VariantID, &stock); err != nil {
			rows.Close()
			return nil, err
		}
		f.Kind = "negative_stock"
		f.Detail = fmt.Sprintf("stock is %g", stock)
		faults = append(faults, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `
SELECT p.id, p.stock, COALESCE(SUM(v.stock),0)
FROM product p JOIN product_variant v ON v.product_id = p.id
GROUP BY p.id, p.stock
HAVING p.stock <> COALESCE(SUM(v.stock),0)`)
	if err != nil {
		return nil, fmt.Errorf("scan variant sums: %w", err)
	}
	for rows.Next() {
		var f IntegrityFault
		var cached, sum float64
		if err := rows.Scan(&f.ProductID, &cached, &sum); err != nil {
			rows.Close()
			return nil, err
		}
		f.Kind = "variant_sum_mismatch"
		f.Detail = fmt.Sprintf("cached %g, variants sum to %g", cached, sum)
		faults = append(faults, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `
SELECT d.sale_id, d.product_id, COALESCE(d.variant_id,0), d.quantity, COALESCE(m.quantity,-1)
FROM sale_detail d
LEFT JOIN stock_movement m
  ON m.sale_id = d.sale_id
 AND m.product_id = d.product_id
 AND m.variant_id IS NOT DISTINCT FROM d.variant_id
 AND m.direction = 'out'
WHERE m.id IS NULL OR m.quantity <> d.quantity
UNION ALL
SELECT d.purchase_id, d.product_id, COALESCE(d.variant_id,0), d.quantity, COALESCE(m.quantity,-1)
FROM purchase_detail d
LEFT JOIN stock_movement m
  ON m.purchase_id = d.purchase_id
 AND m.product_id = d.product_id
 AND m.variant_id IS NOT DISTINCT FROM d.variant_id
 AND m.direction = 'in'
WHERE m.id IS NULL OR m.quantity <> d.quantity`)
	if err != nil {
		return nil, fmt.Errorf("scan detail movements: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f IntegrityFault
		var docID int64
		var lineQty, movQty float64
		if err := rows.Scan(&docID, &f.ProductID, &f.VariantID, &lineQty, &movQty); err != nil {
			return nil, err
		}
		f.Kind = "detail_movement_mismatch"
		if movQty < 0 {
			f.Detail = fmt.Sprintf("document %d line has quantity %g but no movement row", docID, lineQty)
		} else {
			f.Detail = fmt.Sprintf("document %d line has quantity %g, movement has %g", docID, lineQty, movQty)
		}
		faults = append(faults, f)
	}
	return faults, rows.Err()
}
