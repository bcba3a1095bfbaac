package catalog

import (
	"context"
	"fmt"

	"github.com/lachapita/lachapita/internal/shared"
)

// RepositoryPort abstracts catalog persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, filter ActiveFilter, search string, limit, offset int) ([]Product, int, error)
	ExistsName(ctx context.Context, name string, excludeID int64) (bool, error)
	LowStock(ctx context.Context, limit int) ([]LowStockEntry, error)
	ListCategories(ctx context.Context) ([]Category, error)
	AddCategory(ctx context.Context, name string) (int64, error)
	RenameCategory(ctx context.Context, id int64, name string) error
	DeleteCategory(ctx context.Context, id int64) error
	CountByCategory(ctx context.Context, categoryID int64) (int, error)
}

// AuditPort records catalog mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ChangeNotifier is told after every committed mutation that can move a
// stock figure or take a product out of the reports.
type ChangeNotifier interface {
	StockChanged(ctx context.Context)
}

// Service implements catalog use cases.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier ChangeNotifier
}

// NewService constructs the catalog service.
func NewService(repo RepositoryPort, audit AuditPort, notifier ChangeNotifier) *Service {
	return &Service{repo: repo, audit: audit, notifier: notifier}
}

// SaveProduct creates or updates a product together with its full
// variant set. Variants absent from the input are deleted. When any
// variant remains, the product stock is recomputed as the sum of
// variant stocks; the submitted product stock only applies to a
// variant-less product.
func (s *Service) SaveProduct(ctx context.Context, in SaveProductInput) (int64, error) {
	dup, err := s.repo.ExistsName(ctx, in.Name, in.ID)
	if err != nil {
		return 0, fmt.Errorf("check product name: %w", err)
	}
	if dup {
		return 0, fmt.Errorf("product %q: %w", in.Name, ErrDuplicateName)
	}

	productID := in.ID
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p := Product{
			ID:         in.ID,
			Name:       in.Name,
			CategoryID: in.CategoryID,
			Unit:       in.Unit,
			Price:      in.Price,
			Stock:      in.Stock,
			StockLow:   in.StockLow,
		}
		if in.ID == 0 {
			id, err := tx.InsertProduct(ctx, p)
			if err != nil {
				return fmt.Errorf("insert product: %w", err)
			}
			productID = id
		} else {
			exists, err := tx.ProductExists(ctx, in.ID)
			if err != nil {
				return fmt.Errorf("check product %d: %w", in.ID, err)
			}
			if !exists {
				return fmt.Errorf("product %d: %w", in.ID, ErrNotFound)
			}
			if err := tx.UpdateProduct(ctx, p); err != nil {
				return fmt.Errorf("update product %d: %w", in.ID, err)
			}
		}

		if err := s.replaceVariants(ctx, tx, productID, in.Variants); err != nil {
			return err
		}

		// The cached product stock follows the variants whenever any
		// exist.
		count, err := tx.CountVariants(ctx, productID)
		if err != nil {
			return fmt.Errorf("count variants: %w", err)
		}
		if count > 0 {
			sum, err := tx.SumVariantStock(ctx, productID)
			if err != nil {
				return fmt.Errorf("sum variant stock: %w", err)
			}
			if err := tx.SetProductStock(ctx, productID, sum); err != nil {
				return fmt.Errorf("set product stock: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.notifyStockChanged(ctx)
	s.recordAudit(ctx, "product:save", productID, map[string]any{"name": in.Name})
	return productID, nil
}

func (s *Service) replaceVariants(ctx context.Context, tx TxRepository, productID int64, inputs []VariantInput) error {
	existing, err := tx.ListVariantIDs(ctx, productID)
	if err != nil {
		return fmt.Errorf("list variants: %w", err)
	}
	keep := make(map[int64]bool, len(inputs))
	for _, in := range inputs {
		v := Variant{
			ID:        in.ID,
			ProductID: productID,
			Name:      in.Name,
			Stock:     in.Stock,
			StockLow:  in.StockLow,
			Price:     in.Price,
		}
		if in.ID == 0 {
			if _, err := tx.InsertVariant(ctx, v); err != nil {
				return fmt.Errorf("insert variant %q: %w", in.Name, err)
			}
			continue
		}
		owner, err := tx.VariantProduct(ctx, in.ID)
		if err != nil {
			return fmt.Errorf("variant %d: %w", in.ID, err)
		}
		if owner != productID {
			return fmt.Errorf("variant %d: %w", in.ID, ErrForeignVariant)
		}
		if err := tx.UpdateVariant(ctx, v); err != nil {
			return fmt.Errorf("update variant %d: %w", in.ID, err)
		}
		keep[in.ID] = true
	}
	for _, id := range existing {
		if keep[id] {
			continue
		}
		if err := tx.DeleteVariant(ctx, id); err != nil {
			return fmt.Errorf("delete variant %d: %w", id, err)
		}
	}
	return nil
}

// GetProduct returns a product with its variants.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts lists products with their variants.
func (s *Service) ListProducts(ctx context.Context, filter ActiveFilter, search string, limit, offset int) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, filter, search, limit, offset)
}

// DeleteProduct soft deletes a product; its history stays intact.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetProductActive(ctx, id, false)
	})
	if err != nil {
		return fmt.Errorf("deactivate product %d: %w", id, err)
	}
	s.notifyStockChanged(ctx)
	s.recordAudit(ctx, "product:delete", id, nil)
	return nil
}

// RestoreProduct reactivates a soft-deleted product.
func (s *Service) RestoreProduct(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetProductActive(ctx, id, true)
	})
	if err != nil {
		return fmt.Errorf("restore product %d: %w", id, err)
	}
	s.notifyStockChanged(ctx)
	s.recordAudit(ctx, "product:restore", id, nil)
	return nil
}

// LowStock lists products and variants at or below their thresholds.
func (s *Service) LowStock(ctx context.Context, limit int) ([]LowStockEntry, error) {
	return s.repo.LowStock(ctx, limit)
}

// ListCategories returns all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// AddCategory creates a category.
func (s *Service) AddCategory(ctx context.Context, name string) (int64, error) {
	id, err := s.repo.AddCategory(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("add category: %w", err)
	}
	s.recordAudit(ctx, "category:add", id, map[string]any{"name": name})
	return id, nil
}

// RenameCategory renames a category.
func (s *Service) RenameCategory(ctx context.Context, id int64, name string) error {
	if err := s.repo.RenameCategory(ctx, id, name); err != nil {
		return fmt.Errorf("rename category %d: %w", id, err)
	}
	s.recordAudit(ctx, "category:rename", id, map[string]any{"name": name})
	return nil
}

// DeleteCategory removes a category still unused by active products.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	count, err := s.repo.CountByCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("count category products: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("category %d has %d products: %w", id, count, ErrCategoryInUse)
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	s.recordAudit(ctx, "category:delete", id, nil)
	return nil
}

func (s *Service) notifyStockChanged(ctx context.Context) {
	if s.notifier != nil {
		s.notifier.StockChanged(ctx)
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "catalog",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}
