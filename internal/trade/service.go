package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lachapita/lachapita/internal/ledger"
	"github.com/lachapita/lachapita/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, id int64) (Document, error)
	GetPurchase(ctx context.Context, id int64) (Document, error)
	ListSales(ctx context.Context, from, to time.Time) ([]Document, error)
	ListPurchases(ctx context.Context, from, to time.Time) ([]Document, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ChangeNotifier is told after every committed mutation, e.g. to
// invalidate report caches. Notifications are best-effort.
type ChangeNotifier interface {
	StockChanged(ctx context.Context)
}

// Service owns the sale and purchase aggregates.
type Service struct {
	repo     RepositoryPort
	engine   *ledger.Service
	audit    AuditPort
	notifier ChangeNotifier
}

// NewService builds the trade service.
func NewService(repo RepositoryPort, engine *ledger.Service, audit AuditPort, notifier ChangeNotifier) *Service {
	return &Service{repo: repo, engine: engine, audit: audit, notifier: notifier}
}

// SaveSale creates or updates a sale. Only the delta versus the
// persisted line items reaches the ledger.
func (s *Service) SaveSale(ctx context.Context, input SaveSaleInput) (int64, error) {
	id, err := s.saveDocument(ctx, KindSale, input.SaleID, input.ClientID, input.Date, input.Lines)
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, "sale:save", "sale", id, input.Lines)
	return id, nil
}

// SavePurchase creates or updates a purchase.
func (s *Service) SavePurchase(ctx context.Context, input SavePurchaseInput) (int64, error) {
	id, err := s.saveDocument(ctx, KindPurchase, input.PurchaseID, input.SupplierID, input.Date, input.Lines)
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, "purchase:save", "purchase", id, input.Lines)
	return id, nil
}

// DeleteSale reverses every movement of the sale, then removes its rows.
// Stock ends exactly as if the sale had never been saved.
func (s *Service) DeleteSale(ctx context.Context, id int64) error {
	if err := s.deleteDocument(ctx, KindSale, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "sale:delete", "sale", id, nil)
	return nil
}

// DeletePurchase reverses every movement of the purchase, then removes
// its rows.
func (s *Service) DeletePurchase(ctx context.Context, id int64) error {
	if err := s.deleteDocument(ctx, KindPurchase, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "purchase:delete", "purchase", id, nil)
	return nil
}

// GetSale returns a sale with its items.
func (s *Service) GetSale(ctx context.Context, id int64) (Document, error) {
	return s.repo.GetSale(ctx, id)
}

// GetPurchase returns a purchase with its items.
func (s *Service) GetPurchase(ctx context.Context, id int64) (Document, error) {
	return s.repo.GetPurchase(ctx, id)
}

// ListSales lists sale headers, optionally restricted to a date range.
func (s *Service) ListSales(ctx context.Context, from, to time.Time) ([]Document, error) {
	return s.repo.ListSales(ctx, from, to)
}

// ListPurchases lists purchase headers, optionally restricted to a date range.
func (s *Service) ListPurchases(ctx context.Context, from, to time.Time) ([]Document, error) {
	return s.repo.ListPurchases(ctx, from, to)
}

// CheckSale is the advisory availability check for a sale save. For an
// edit only the positive net requirement per line is checked; unchanged
// or reduced quantities need no additional stock.
func (s *Service) CheckSale(ctx context.Context, saleID int64, lines []LineInput) (bool, *ledger.Shortage, error) {
	next := normalizeLines(lines)
	previous := Items{}
	if saleID != 0 {
		doc, err := s.repo.GetSale(ctx, saleID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, nil, fmt.Errorf("sale %d: %w", saleID, ledger.ErrUnknownReference)
			}
			return false, nil, err
		}
		previous = doc.Items
	}
	var items []ledger.CheckItem
	for key, item := range next {
		net := item.Quantity - previous[key].Quantity
		if net <= 0 {
			continue
		}
		items = append(items, ledger.CheckItem{ProductID: key.ProductID, VariantID: key.VariantID, Quantity: net})
	}
	return s.engine.CheckStock(ctx, items)
}

func (s *Service) saveDocument(ctx context.Context, kind Kind, id, counterpartyID int64, date time.Time, lines []LineInput) (int64, error) {
	if len(lines) == 0 {
		return 0, ErrNoLines
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return 0, ledger.ErrInvalidQuantity
		}
	}
	next := normalizeLines(lines)
	total := next.Total()
	if date.IsZero() {
		date = time.Now().UTC().Truncate(24 * time.Hour)
	}

	rc := reconciler{engine: s.engine}
	docID := id
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if docID != 0 {
			var exists bool
			if kind == KindSale {
				exists, err = tx.SaleExists(ctx, docID)
			} else {
				exists, err = tx.PurchaseExists(ctx, docID)
			}
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%s %d: %w", kind, docID, ledger.ErrUnknownReference)
			}
			if kind == KindSale {
				err = tx.UpdateSale(ctx, docID, date, counterpartyID, total)
			} else {
				err = tx.UpdatePurchase(ctx, docID, date, counterpartyID, total)
			}
			if err != nil {
				return err
			}
		} else {
			if kind == KindSale {
				docID, err = tx.InsertSale(ctx, date, counterpartyID, total)
			} else {
				docID, err = tx.InsertPurchase(ctx, date, counterpartyID, total)
			}
			if err != nil {
				return err
			}
		}

		var previous Items
		if kind == KindSale {
			previous, err = tx.ListSaleItems(ctx, docID)
		} else {
			previous, err = tx.ListPurchaseItems(ctx, docID)
		}
		if err != nil {
			return err
		}
		return rc.reconcile(ctx, tx, kind, docID, previous, next)
	})
	if err != nil {
		return 0, err
	}
	s.notifyChanged(ctx)
	return docID, nil
}

func (s *Service) deleteDocument(ctx context.Context, kind Kind, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ledger.ErrUnknownReference)
	}
	rc := reconciler{engine: s.engine}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var exists bool
		var err error
		if kind == KindSale {
			exists, err = tx.SaleExists(ctx, id)
		} else {
			exists, err = tx.PurchaseExists(ctx, id)
		}
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%s %d: %w", kind, id, ledger.ErrUnknownReference)
		}

		var items Items
		if kind == KindSale {
			items, err = tx.ListSaleItems(ctx, id)
		} else {
			items, err = tx.ListPurchaseItems(ctx, id)
		}
		if err != nil {
			return err
		}

		// reversal must run before the rows holding its inputs go away
		if err := rc.reconcile(ctx, tx, kind, id, items, Items{}); err != nil {
			return err
		}

		if kind == KindSale {
			return tx.DeleteSale(ctx, id)
		}
		return tx.DeletePurchase(ctx, id)
	})
	if err != nil {
		return err
	}
	s.notifyChanged(ctx)
	return nil
}

func (s *Service) notifyChanged(ctx context.Context) {
	if s.notifier != nil {
		s.notifier.StockChanged(ctx)
	}
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, id int64, lines []LineInput) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{}
	if lines != nil {
		meta["line_count"] = len(lines)
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}
