package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lachapita/lachapita/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertProduct(ctx context.Context, p Product) (int64, error)
	UpdateProduct(ctx context.Context, p Product) error
	SetProductStock(ctx context.Context, productID int64, stock float64) error
	SetProductActive(ctx context.Context, productID int64, active bool) error
	ProductExists(ctx context.Context, productID int64) (bool, error)

	ListVariantIDs(ctx context.Context, productID int64) ([]int64, error)
	InsertVariant(ctx context.Context, v Variant) (int64, error)
	UpdateVariant(ctx context.Context, v Variant) error
	DeleteVariant(ctx context.Context, variantID int64) error
	VariantProduct(ctx context.Context, variantID int64) (int64, error)
	SumVariantStock(ctx context.Context, productID int64) (float64, error)
	CountVariants(ctx context.Context, productID int64) (int, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in the exclusive write transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithWriteTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetProduct returns a product with its variants.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, name, category_id, unit, price, stock, stock_low, active FROM product WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.CategoryID, &p.Unit, &p.Price, &p.Stock, &p.StockLow, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	variants, err := r.variantsByProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	p.Variants = variants
	return p, nil
}

// ListProducts returns products filtered by the soft-delete flag, with
// variants attached, paginated.
func (r *Repository) ListProducts(ctx context.Context, filter ActiveFilter, search string, limit, offset int) ([]Product, int, error) {
	where := ` WHERE 1=1`
	var args []any
	argPos := 1
	switch filter {
	case FilterActive:
		where += ` AND active`
	case FilterInactive:
		where += ` AND NOT active`
	}
	if search != "" {
		where += fmt.Sprintf(` AND name ILIKE $%d`, argPos)
		args = append(args, "%"+search+"%")
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM product`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, name, category_id, unit, price, stock, stock_low, active FROM product` + where +
		fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CategoryID, &p.Unit, &p.Price, &p.Stock, &p.StockLow, &p.Active); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range products {
		variants, err := r.variantsByProduct(ctx, products[i].ID)
		if err != nil {
			return nil, 0, err
		}
		products[i].Variants = variants
	}
	return products, total, nil
}

// ExistsName reports whether a product with the name already exists.
func (r *Repository) ExistsName(ctx context.Context, name string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM product WHERE name=$1 AND id<>$2)`, name, excludeID).Scan(&exists)
	return exists, err
}

// LowStock lists variants and variant-less products at or below their
// threshold, lowest stock first.
func (r *Repository) LowStock(ctx context.Context, limit int) ([]LowStockEntry, error) {
	rows, err := r.pool.Query(ctx, `
SELECT p.name, v.name, v.stock, v.stock_low
FROM product_variant v JOIN product p ON p.id = v.product_id
WHERE v.stock <= v.stock_low AND p.active
UNION ALL
SELECT p.name, '', p.stock, p.stock_low
FROM product p
WHERE p.stock <= p.stock_low AND p.active
  AND NOT EXISTS (SELECT 1 FROM product_variant v WHERE v.product_id = p.id)
ORDER BY 3 ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []LowStockEntry
	for rows.Next() {
		var e LowStockEntry
		if err := rows.Scan(&e.ProductName, &e.VariantName, &e.Stock, &e.StockLow); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Categories

// ListCategories returns all categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM category ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// AddCategory inserts a category.
func (r *Repository) AddCategory(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO category (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	return id, err
}

// RenameCategory updates a category name.
func (r *Repository) RenameCategory(ctx context.Context, id int64, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE category SET name=$1 WHERE id=$2`, name, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCategory removes a category.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM category WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByCategory counts active products in a category.
func (r *Repository) CountByCategory(ctx context.Context, categoryID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM product WHERE category_id=$1 AND active`, categoryID).Scan(&count)
	return count, err
}

func (r *Repository) variantsByProduct(ctx context.Context, productID int64) ([]Variant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, name, stock, stock_low, price FROM product_variant WHERE product_id=$1 ORDER BY name`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var variants []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.Stock, &v.StockLow, &v.Price); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (t *txRepo) InsertProduct(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO product (name, category_id, unit, price, stock, stock_low, active)
VALUES ($1,$2,$3,$4,$5,$6,TRUE) RETURNING id`, p.Name, p.CategoryID, p.Unit, p.Price, p.Stock, p.StockLow).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := t.tx.Exec(ctx, `UPDATE product SET name=$1, category_id=$2, unit=$3, price=$4, stock=$5, stock_low=$6 WHERE id=$7`,
		p.Name, p.CategoryID, p.Unit, p.Price, p.Stock, p.StockLow, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) SetProductStock(ctx context.Context, productID int64, stock float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE product SET stock=$1 WHERE id=$2`, stock, productID)
	return err
}

func (t *txRepo) SetProductActive(ctx context.Context, productID int64, active bool) error {
	tag, err := t.tx.Exec(ctx, `UPDATE product SET active=$1 WHERE id=$2`, active, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) ProductExists(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM product WHERE id=$1)`, productID).Scan(&exists)
	return exists, err
}

func (t *txRepo) ListVariantIDs(ctx context.Context, productID int64) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `SELECT id FROM product_variant WHERE product_id=$1`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *txRepo) InsertVariant(ctx context.Context, v Variant) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO product_variant (product_id, name, stock, stock_low, price)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, v.ProductID, v.Name, v.Stock, v.StockLow, v.Price).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateVariant(ctx context.Context, v Variant) error {
	tag, err := t.tx.Exec(ctx, `UPDATE product_variant SET name=$1, stock=$2, stock_low=$3, price=$4 WHERE id=$5`,
		v.Name, v.Stock, v.StockLow, v.Price, v.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteVariant(ctx context.Context, variantID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM product_variant WHERE id=$1`, variantID)
	return err
}

func (t *txRepo) VariantProduct(ctx context.Context, variantID int64) (int64, error) {
	var productID int64
	err := t.tx.QueryRow(ctx, `SELECT product_id FROM product_variant WHERE id=$1`, variantID).Scan(&productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return productID, nil
}

func (t *txRepo) SumVariantStock(ctx context.Context, productID int64) (float64, error) {
	var sum float64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(stock),0) FROM product_variant WHERE product_id=$1`, productID).Scan(&sum)
	return sum, err
}

func (t *txRepo) CountVariants(ctx context.Context, productID int64) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM product_variant WHERE product_id=$1`, productID).Scan(&count)
	return count, err
}
