package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/lachapita/lachapita/internal/catalog"
	jobmetrics "github.com/lachapita/lachapita/internal/jobs"
)

// LowStockLister is the slice of the catalog the scan needs.
type LowStockLister interface {
	LowStock(ctx context.Context, limit int) ([]catalog.LowStockEntry, error)
}

// NewLowStockScanHandler returns the handler for TaskLowStockScan. The
// scan logs every item at or below its threshold so operators see the
// restock list in the worker output.
func NewLowStockScanHandler(lister LowStockLister, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskLowStockScan)
		var payload LowStockScanPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return tracker.End(asynq.SkipRetry)
			}
		}
		entries, err := lister.LowStock(ctx, payload.Limit)
		if err != nil {
			return tracker.End(err)
		}
		metrics.SetLowStockCount(len(entries))
		for _, entry := range entries {
			logger.Warn("low stock",
				slog.String("product", entry.ProductName),
				slog.String("variant", entry.VariantName),
				slog.Float64("stock", entry.Stock),
				slog.Float64("threshold", entry.StockLow),
			)
		}
		logger.Info("low stock scan done",
			slog.String("job", TaskLowStockScan),
			slog.Int("flagged", len(entries)),
		)
		return tracker.End(nil)
	}
}
