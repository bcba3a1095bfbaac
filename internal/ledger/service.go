package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lachapita/lachapita/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Stock(ctx context.Context, productID, variantID int64) (float64, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ChangeNotifier is told after every committed stock mutation, e.g. to
// invalidate cached reports.
type ChangeNotifier interface {
	StockChanged(ctx context.Context)
}

// Service is the stock ledger engine. It is the only component that
// mutates stock columns, and every mutation lands in the same
// transaction as its movement row.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier ChangeNotifier
}

// NewService builds the engine.
func NewService(repo RepositoryPort, audit AuditPort, notifier ChangeNotifier) *Service {
	return &Service{repo: repo, audit: audit, notifier: notifier}
}

// Apply mutates stock and inserts one movement row inside tx. Outbound
// movements fail with InsufficientStockError before anything is written.
func (s *Service) Apply(ctx context.Context, tx TxRepository, m Movement) (Movement, error) {
	if !m.Direction.Valid() {
		return Movement{}, fmt.Errorf("ledger: invalid direction %q", m.Direction)
	}
	if m.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	if m.SaleID != 0 && m.PurchaseID != 0 {
		return Movement{}, errors.New("ledger: movement cannot reference both a sale and a purchase")
	}
	if err := s.editStock(ctx, tx, m.ProductID, m.VariantID, m.Direction, m.Quantity); err != nil {
		return Movement{}, err
	}
	if m.Date.IsZero() {
		m.Date = time.Now().UTC().Truncate(24 * time.Hour)
	}
	id, err := tx.InsertMovement(ctx, m)
	if err != nil {
		return Movement{}, fmt.Errorf("ledger: insert movement: %w", err)
	}
	m.ID = id
	return m, nil
}

// Reverse undoes a movement: the opposite stock change with the same
// quantity, then removal of the row. A reversal that would drive stock
// negative signals drift between ledger and stock, not a user mistake.
func (s *Service) Reverse(ctx context.Context, tx TxRepository, m Movement) error {
	err := s.editStock(ctx, tx, m.ProductID, m.VariantID, m.Direction.Opposite(), m.Quantity)
	var insufficient *InsufficientStockError
	if errors.As(err, &insufficient) {
		return fmt.Errorf("reversing movement %d would drive stock negative: %w", m.ID, ErrLedgerIntegrity)
	}
	if err != nil {
		return err
	}
	if err := tx.DeleteMovement(ctx, m.ID); err != nil {
		return fmt.Errorf("ledger: delete movement: %w", err)
	}
	return nil
}

// ReverseByKey locates the movement for key and reverses it. A missing
// row is an integrity fault: the caller holds a line item that claims a
// movement exists.
func (s *Service) ReverseByKey(ctx context.Context, tx TxRepository, key MovementKey) error {
	m, err := tx.FindMovement(ctx, key)
	if err != nil {
		return err
	}
	return s.Reverse(ctx, tx, m)
}

// Adjust revises a movement's quantity in place, applying only the
// delta to stock. The row keeps its identity for future lookups.
func (s *Service) Adjust(ctx context.Context, tx TxRepository, key MovementKey, newQuantity float64) error {
	if newQuantity <= 0 {
		return ErrInvalidQuantity
	}
	m, err := tx.FindMovement(ctx, key)
	if err != nil {
		return err
	}
	delta := newQuantity - m.Quantity
	if delta == 0 {
		return nil
	}
	dir := m.Direction
	if delta < 0 {
		dir = m.Direction.Opposite()
		delta = -delta
	}
	if err := s.editStock(ctx, tx, m.ProductID, m.VariantID, dir, delta); err != nil {
		return err
	}
	if err := tx.SetMovementQuantity(ctx, m.ID, newQuantity); err != nil {
		return fmt.Errorf("ledger: update movement quantity: %w", err)
	}
	return nil
}

// EditStock is the manual correction entry point: one bare movement not
// tied to any sale or purchase, committed in its own transaction.
func (s *Service) EditStock(ctx context.Context, productID, variantID int64, direction Direction, quantity float64, note string) (Movement, error) {
	if !direction.Valid() {
		return Movement{}, fmt.Errorf("ledger: direction must be %q or %q", DirectionIn, DirectionOut)
	}
	if quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	var applied Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		applied, err = s.Apply(ctx, tx, Movement{
			ProductID: productID,
			VariantID: variantID,
			Direction: direction,
			Quantity:  quantity,
			Note:      note,
		})
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	if s.notifier != nil {
		s.notifier.StockChanged(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   fmt.Sprintf("stock:%s", direction),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", applied.ID),
			Meta: map[string]any{
				"product_id": productID,
				"variant_id": variantID,
				"quantity":   quantity,
			},
		})
	}
	return applied, nil
}

// CheckStock validates desired quantities against current stock without
// mutating anything. Duplicate (product, variant) keys are summed so
// they draw from the same availability; items are then visited in
// ascending (product, variant) order and the first shortage is
// returned. The engine's own check at apply time remains the
// enforcement point.
func (s *Service) CheckStock(ctx context.Context, items []CheckItem) (bool, *Shortage, error) {
	byKey := make(map[[2]int64]float64, len(items))
	for _, item := range items {
		byKey[[2]int64{item.ProductID, item.VariantID}] += item.Quantity
	}
	sorted := make([]CheckItem, 0, len(byKey))
	for key, qty := range byKey {
		sorted = append(sorted, CheckItem{ProductID: key[0], VariantID: key[1], Quantity: qty})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ProductID != sorted[j].ProductID {
			return sorted[i].ProductID < sorted[j].ProductID
		}
		return sorted[i].VariantID < sorted[j].VariantID
	})
	for _, item := range sorted {
		if item.Quantity <= 0 {
			continue
		}
		available, err := s.repo.Stock(ctx, item.ProductID, item.VariantID)
		if err != nil {
			return false, nil, err
		}
		if available < item.Quantity {
			return false, &Shortage{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Requested: item.Quantity,
				Available: available,
			}, nil
		}
	}
	return true, nil, nil
}

// Movements lists movement history.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

// editStock applies one stock change. Variant mutations recompute the
// owning product's cached sum in the same unit of work.
func (s *Service) editStock(ctx context.Context, tx TxRepository, productID, variantID int64, direction Direction, quantity float64) error {
	if variantID != 0 {
		variant, err := tx.VariantForUpdate(ctx, variantID)
		if err != nil {
			return err
		}
		if variant.ProductID != productID {
			return fmt.Errorf("ledger: variant %d does not belong to product %d: %w", variantID, productID, ErrUnknownReference)
		}
		newStock := variant.Stock + quantity
		if direction == DirectionOut {
			newStock = variant.Stock - quantity
			if newStock < 0 {
				return &InsufficientStockError{ProductID: productID, VariantID: variantID, Requested: quantity, Available: variant.Stock}
			}
		}
		if err := tx.SetVariantStock(ctx, variantID, newStock); err != nil {
			return fmt.Errorf("ledger: update variant stock: %w", err)
		}
		sum, err := tx.SumVariantStock(ctx, productID)
		if err != nil {
			return fmt.Errorf("ledger: sum variant stock: %w", err)
		}
		if err := tx.SetProductStock(ctx, productID, sum); err != nil {
			return fmt.Errorf("ledger: update product stock: %w", err)
		}
		return nil
	}

	product, err := tx.ProductForUpdate(ctx, productID)
	if err != nil {
		return err
	}
	if product.HasVariants {
		return fmt.Errorf("%w: product %d", ErrVariantRequired, productID)
	}
	newStock := product.Stock + quantity
	if direction == DirectionOut {
		newStock = product.Stock - quantity
		if newStock < 0 {
			return &InsufficientStockError{ProductID: productID, Requested: quantity, Available: product.Stock}
		}
	}
	if err := tx.SetProductStock(ctx, productID, newStock); err != nil {
		return fmt.Errorf("ledger: update product stock: %w", err)
	}
	return nil
}
