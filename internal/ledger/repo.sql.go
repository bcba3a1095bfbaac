package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lachapita/lachapita/internal/platform/db"
)

// ProductStock is the lockable stock row of a product.
type ProductStock struct {
	ID          int64
	Stock       float64
	Active      bool
	HasVariants bool
}

// VariantStock is the lockable stock row of a product variant.
type VariantStock struct {
	ID        int64
	ProductID int64
	Stock     float64
}

// Repository provides PostgreSQL backed persistence for stock and movements.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the engine composes.
type TxRepository interface {
	ProductForUpdate(ctx context.Context, productID int64) (ProductStock, error)
	VariantForUpdate(ctx context.Context, variantID int64) (VariantStock, error)
	SetProductStock(ctx context.Context, productID int64, stock float64) error
	SetVariantStock(ctx context.Context, variantID int64, stock float64) error
	SumVariantStock(ctx context.Context, productID int64) (float64, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	FindMovement(ctx context.Context, key MovementKey) (Movement, error)
	SetMovementQuantity(ctx context.Context, movementID int64, quantity float64) error
	DeleteMovement(ctx context.Context, movementID int64) error
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

// NewTx wraps an already open transaction so other repositories can
// compose ledger writes into their own unit of work.
func NewTx(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

// Stock returns the current quantity for a product or variant without
// locking. Used by the read-only availability checker.
func (r *Repository) Stock(ctx context.Context, productID, variantID int64) (float64, error) {
	var stock float64
	var err error
	if variantID != 0 {
		err = r.pool.QueryRow(ctx, `SELECT stock FROM product_variant WHERE id=$1 AND product_id=$2`, variantID, productID).Scan(&stock)
	} else {
		err = r.pool.QueryRow(ctx, `SELECT stock FROM product WHERE id=$1`, productID).Scan(&stock)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUnknownReference
		}
		return 0, err
	}
	return stock, nil
}

// MovementFilter narrows movement history listings.
type MovementFilter struct {
	From      time.Time
	To        time.Time
	Direction Direction
	ProductID int64
	Limit     int
}

// ListMovements returns movement history rows, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	query := `SELECT id, product_id, COALESCE(variant_id,0), direction, quantity, date, note, COALESCE(sale_id,0), COALESCE(purchase_id,0)
FROM stock_movement WHERE 1=1`
	var args []any
	argPos := 1
	if !filter.From.IsZero() {
		query += fmt.Sprintf(` AND date >= $%d`, argPos)
		args = append(args, filter.From)
		argPos++
	}
	if !filter.To.IsZero() {
		query += fmt.Sprintf(` AND date <= $%d`, argPos)
		args = append(args, filter.To)
		argPos++
	}
	if filter.Direction != "" {
		query += fmt.Sprintf(` AND direction = $%d`, argPos)
		args = append(args, string(filter.Direction))
		argPos++
	}
	if filter.ProductID != 0 {
		query += fmt.Sprintf(` AND product_id = $%d`, argPos)
		args = append(args, filter.ProductID)
		argPos++
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query += fmt.Sprintf(` ORDER BY date DESC, id DESC LIMIT $%d`, argPos)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.VariantID, &m.Direction, &m.Quantity, &m.Date, &m.Note, &m.SaleID, &m.PurchaseID); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func (t *txRepo) ProductForUpdate(ctx context.Context, productID int64) (ProductStock, error) {
	var p ProductStock
	err := t.tx.QueryRow(ctx, `SELECT p.id, p.stock, p.active, EXISTS(SELECT 1 FROM product_variant v WHERE v.product_id=p.id)
FROM product p WHERE p.id=$1 FOR UPDATE OF p NOWAIT`, productID).Scan(&p.ID, &p.Stock, &p.Active, &p.HasVariants)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductStock{}, ErrUnknownReference
		}
		return ProductStock{}, err
	}
	return p, nil
}

func (t *txRepo) VariantForUpdate(ctx context.Context, variantID int64) (VariantStock, error) {
	var v VariantStock
	err := t.tx.QueryRow(ctx, `SELECT id, product_id, stock FROM product_variant WHERE id=$1 FOR UPDATE NOWAIT`, variantID).
		Scan(&v.ID, &v.ProductID, &v.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VariantStock{}, ErrUnknownReference
		}
		return VariantStock{}, err
	}
	return v, nil
}

func (t *txRepo) SetProductStock(ctx context.Context, productID int64, stock float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE product SET stock=$1 WHERE id=$2`, stock, productID)
	return err
}

func (t *txRepo) SetVariantStock(ctx context.Context, variantID int64, stock float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE product_variant SET stock=$1 WHERE id=$2`, stock, variantID)
	return err
}

func (t *txRepo) SumVariantStock(ctx context.Context, productID int64) (float64, error) {
	var sum float64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(stock),0) FROM product_variant WHERE product_id=$1`, productID).Scan(&sum)
	return sum, err
}

func (t *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO stock_movement (product_id, variant_id, direction, quantity, date, note, sale_id, purchase_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		m.ProductID, nullInt(m.VariantID), string(m.Direction), m.Quantity, m.Date, m.Note, nullInt(m.SaleID), nullInt(m.PurchaseID)).Scan(&id)
	return id, err
}

func (t *txRepo) FindMovement(ctx context.Context, key MovementKey) (Movement, error) {
	var m Movement
	err := t.tx.QueryRow(ctx, `SELECT id, product_id, COALESCE(variant_id,0), direction, quantity, date, note, COALESCE(sale_id,0), COALESCE(purchase_id,0)
FROM stock_movement
WHERE product_id=$1 AND variant_id IS NOT DISTINCT FROM $2 AND sale_id IS NOT DISTINCT FROM $3 AND purchase_id IS NOT DISTINCT FROM $4 AND direction=$5`,
		key.ProductID, nullInt(key.VariantID), nullInt(key.SaleID), nullInt(key.PurchaseID), string(key.Direction)).
		Scan(&m.ID, &m.ProductID, &m.VariantID, &m.Direction, &m.Quantity, &m.Date, &m.Note, &m.SaleID, &m.PurchaseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movement{}, ErrLedgerIntegrity
		}
		return Movement{}, err
	}
	return m, nil
}

func (t *txRepo) SetMovementQuantity(ctx context.Context, movementID int64, quantity float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_movement SET quantity=$1 WHERE id=$2`, quantity, movementID)
	return err
}

func (t *txRepo) DeleteMovement(ctx context.Context, movementID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM stock_movement WHERE id=$1`, movementID)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
