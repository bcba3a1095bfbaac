package trade

import (
	"context"
	"fmt"

	"github.com/lachapita/lachapita/internal/ledger"
)

// reconciler drives the stock ledger engine from the difference between
// a document's persisted line items and its desired line items.
type reconciler struct {
	engine *ledger.Service
}

// reconcile applies only the delta between previous and next. Removed
// lines are processed strictly before added and changed ones, so stock
// freed by a removal can satisfy new demand within the same save.
func (rc reconciler) reconcile(ctx context.Context, tx TxRepository, kind Kind, docID int64, previous, next Items) error {
	direction := DirectionFor(kind)
	ltx := tx.Ledger()

	for _, key := range sortedKeys(previous) {
		if _, keep := next[key]; keep {
			continue
		}
		if err := rc.engine.ReverseByKey(ctx, ltx, movementKey(kind, docID, key, direction)); err != nil {
			return fmt.Errorf("reverse removed line (%d,%d): %w", key.ProductID, key.VariantID, err)
		}
		if err := deleteItem(ctx, tx, kind, docID, key); err != nil {
			return err
		}
	}

	for _, key := range sortedKeys(next) {
		item := next[key]
		prev, existed := previous[key]
		if !existed {
			ref, err := tx.GetProductRef(ctx, key.ProductID)
			if err != nil {
				return err
			}
			if !ref.Active {
				return fmt.Errorf("%w: product %d", ErrProductInactive, key.ProductID)
			}
			if _, err := rc.engine.Apply(ctx, ltx, ledger.Movement{
				ProductID:  key.ProductID,
				VariantID:  key.VariantID,
				Direction:  direction,
				Quantity:   item.Quantity,
				SaleID:     saleID(kind, docID),
				PurchaseID: purchaseID(kind, docID),
			}); err != nil {
				return err
			}
			if err := insertItem(ctx, tx, kind, docID, key, item); err != nil {
				return err
			}
			continue
		}
		if prev.Quantity == item.Quantity && prev.UnitPrice == item.UnitPrice {
			continue
		}
		if prev.Quantity != item.Quantity {
			if err := rc.engine.Adjust(ctx, ltx, movementKey(kind, docID, key, direction), item.Quantity); err != nil {
				return err
			}
		}
		// a pure price change never touches the ledger
		if err := updateItem(ctx, tx, kind, docID, key, item); err != nil {
			return err
		}
	}

	return nil
}

// DirectionFor maps the aggregate kind to its ledger direction.
func DirectionFor(kind Kind) ledger.Direction {
	if kind == KindPurchase {
		return ledger.DirectionIn
	}
	return ledger.DirectionOut
}

func movementKey(kind Kind, docID int64, key LineKey, direction ledger.Direction) ledger.MovementKey {
	return ledger.MovementKey{
		ProductID:  key.ProductID,
		VariantID:  key.VariantID,
		SaleID:     saleID(kind, docID),
		PurchaseID: purchaseID(kind, docID),
		Direction:  direction,
	}
}

func saleID(kind Kind, docID int64) int64 {
	if kind == KindSale {
		return docID
	}
	return 0
}

func purchaseID(kind Kind, docID int64) int64 {
	if kind == KindPurchase {
		return docID
	}
	return 0
}

func insertItem(ctx context.Context, tx TxRepository, kind Kind, docID int64, key LineKey, item LineItem) error {
	if kind == KindSale {
		return tx.InsertSaleItem(ctx, docID, key, item)
	}
	return tx.InsertPurchaseItem(ctx, docID, key, item)
}

func updateItem(ctx context.Context, tx TxRepository, kind Kind, docID int64, key LineKey, item LineItem) error {
	if kind == KindSale {
		return tx.UpdateSaleItem(ctx, docID, key, item)
	}
	return tx.UpdatePurchaseItem(ctx, docID, key, item)
}

func deleteItem(ctx context.Context, tx TxRepository, kind Kind, docID int64, key LineKey) error {
	if kind == KindSale {
		return tx.DeleteSaleItem(ctx, docID, key)
	}
	return tx.DeletePurchaseItem(ctx, docID, key)
}
