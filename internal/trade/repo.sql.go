package trade

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lachapita/lachapita/internal/ledger"
	"github.com/lachapita/lachapita/internal/platform/db"
)

// ErrNotFound indicates a missing sale or purchase.
var ErrNotFound = errors.New("trade: record not found")

// ProductRef is the catalog data the reconciler needs about a product.
type ProductRef struct {
	ID     int64
	Active bool
}

// Repository provides PostgreSQL backed persistence for sales and purchases.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. Ledger returns the
// stock ledger handle bound to the same transaction, so header, line and
// movement writes commit or roll back as one unit.
type TxRepository interface {
	InsertSale(ctx context.Context, date time.Time, clientID int64, total float64) (int64, error)
	UpdateSale(ctx context.Context, id int64, date time.Time, clientID int64, total float64) error
	SaleExists(ctx context.Context, id int64) (bool, error)
	ListSaleItems(ctx context.Context, saleID int64) (Items, error)
	InsertSaleItem(ctx context.Context, saleID int64, key LineKey, item LineItem) error
	UpdateSaleItem(ctx context.Context, saleID int64, key LineKey, item LineItem) error
	DeleteSaleItem(ctx context.Context, saleID int64, key LineKey) error
	DeleteSale(ctx context.Context, id int64) error

	InsertPurchase(ctx context.Context, date time.Time, supplierID int64, total float64) (int64, error)
	UpdatePurchase(ctx context.Context, id int64, date time.Time, supplierID int64, total float64) error
	PurchaseExists(ctx context.Context, id int64) (bool, error)
	ListPurchaseItems(ctx context.Context, purchaseID int64) (Items, error)
	InsertPurchaseItem(ctx context.Context, purchaseID int64, key LineKey, item LineItem) error
	UpdatePurchaseItem(ctx context.Context, purchaseID int64, key LineKey, item LineItem) error
	DeletePurchaseItem(ctx context.Context, purchaseID int64, key LineKey) error
	DeletePurchase(ctx context.Context, id int64) error

	GetProductRef(ctx context.Context, productID int64) (ProductRef, error)

	Ledger() ledger.TxRepository
}

type txRepo struct {
	tx     pgx.Tx
	ledger ledger.TxRepository
}

// WithTx wraps the callback in the exclusive write transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithWriteTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, ledger: ledger.NewTx(tx)})
	})
}

// GetSale returns a sale and its items.
func (r *Repository) GetSale(ctx context.Context, id int64) (Document, error) {
	return r.getDocument(ctx, id, `SELECT id, date, COALESCE(client_id,0), total FROM sale WHERE id=$1`,
		`SELECT sd.product_id, COALESCE(sd.variant_id,0), sd.quantity, sd.unit_price, p.active
FROM sale_detail sd JOIN product p ON p.id = sd.product_id
WHERE sd.sale_id=$1 ORDER BY sd.product_id, sd.variant_id`)
}

// GetPurchase returns a purchase and its items.
func (r *Repository) GetPurchase(ctx context.Context, id int64) (Document, error) {
	return r.getDocument(ctx, id, `SELECT id, date, COALESCE(supplier_id,0), total FROM purchase WHERE id=$1`,
		`SELECT pd.product_id, COALESCE(pd.variant_id,0), pd.quantity, pd.unit_price, p.active
FROM purchase_detail pd JOIN product p ON p.id = pd.product_id
WHERE pd.purchase_id=$1 ORDER BY pd.product_id, pd.variant_id`)
}

func (r *Repository) getDocument(ctx context.Context, id int64, headerSQL, itemsSQL string) (Document, error) {
	var doc Document
	err := r.pool.QueryRow(ctx, headerSQL, id).Scan(&doc.ID, &doc.Date, &doc.CounterpartyID, &doc.Total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	rows, err := r.pool.Query(ctx, itemsSQL, id)
	if err != nil {
		return Document{}, err
	}
	defer rows.Close()
	doc.Items = make(Items)
	for rows.Next() {
		var key LineKey
		var item LineItem
		if err := rows.Scan(&key.ProductID, &key.VariantID, &item.Quantity, &item.UnitPrice, &item.Active); err != nil {
			return Document{}, err
		}
		doc.Items[key] = item
	}
	if err := rows.Err(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// ListSales returns sale headers within the date range, newest first.
func (r *Repository) ListSales(ctx context.Context, from, to time.Time) ([]Document, error) {
	return r.listDocuments(ctx, from, to,
		`SELECT id, date, COALESCE(client_id,0), total FROM sale ORDER BY date DESC, id DESC`,
		`SELECT id, date, COALESCE(client_id,0), total FROM sale WHERE date BETWEEN $1 AND $2 ORDER BY date DESC, id DESC`)
}

// ListPurchases returns purchase headers within the date range, newest first.
func (r *Repository) ListPurchases(ctx context.Context, from, to time.Time) ([]Document, error) {
	return r.listDocuments(ctx, from, to,
		`SELECT id, date, COALESCE(supplier_id,0), total FROM purchase ORDER BY date DESC, id DESC`,
		`SELECT id, date, COALESCE(supplier_id,0), total FROM purchase WHERE date BETWEEN $1 AND $2 ORDER BY date DESC, id DESC`)
}

func (r *Repository) listDocuments(ctx context.Context, from, to time.Time, allSQL, rangeSQL string) ([]Document, error) {
	var rows pgx.Rows
	var err error
	if from.IsZero() || to.IsZero() {
		rows, err = r.pool.Query(ctx, allSQL)
	} else {
		rows, err = r.pool.Query(ctx, rangeSQL, from, to)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Date, &doc.CounterpartyID, &doc.Total); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (t *txRepo) Ledger() ledger.TxRepository { return t.ledger }

func (t *txRepo) InsertSale(ctx context.Context, date time.Time, clientID int64, total float64) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO sale (date, client_id, total) VALUES ($1,$2,$3) RETURNING id`,
		date, nullInt(clientID), total).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateSale(ctx context.Context, id int64, date time.Time, clientID int64, total float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE sale SET date=$1, client_id=$2, total=$3 WHERE id=$4`,
		date, nullInt(clientID), total, id)
	return err
}

func (t *txRepo) SaleExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sale WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func (t *txRepo) ListSaleItems(ctx context.Context, saleID int64) (Items, error) {
	return t.listItems(ctx, `SELECT sd.product_id, COALESCE(sd.variant_id,0), sd.quantity, sd.unit_price, p.active
FROM sale_detail sd JOIN product p ON p.id = sd.product_id WHERE sd.sale_id=$1`, saleID)
}

func (t *txRepo) InsertSaleItem(ctx context.Context, saleID int64, key LineKey, item LineItem) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO sale_detail (sale_id, product_id, variant_id, quantity, unit_price) VALUES ($1,$2,$3,$4,$5)`,
		saleID, key.ProductID, nullInt(key.VariantID), item.Quantity, item.UnitPrice)
	return err
}

func (t *txRepo) UpdateSaleItem(ctx context.Context, saleID int64, key LineKey, item LineItem) error {
	_, err := t.tx.Exec(ctx, `UPDATE sale_detail SET quantity=$1, unit_price=$2
WHERE sale_id=$3 AND product_id=$4 AND variant_id IS NOT DISTINCT FROM $5`,
		item.Quantity, item.UnitPrice, saleID, key.ProductID, nullInt(key.VariantID))
	return err
}

func (t *txRepo) DeleteSaleItem(ctx context.Context, saleID int64, key LineKey) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM sale_detail WHERE sale_id=$1 AND product_id=$2 AND variant_id IS NOT DISTINCT FROM $3`,
		saleID, key.ProductID, nullInt(key.VariantID))
	return err
}

func (t *txRepo) DeleteSale(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM sale WHERE id=$1`, id)
	return err
}

func (t *txRepo) InsertPurchase(ctx context.Context, date time.Time, supplierID int64, total float64) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase (date, supplier_id, total) VALUES ($1,$2,$3) RETURNING id`,
		date, nullInt(supplierID), total).Scan(&id)
	return id, err
}

func (t *txRepo) UpdatePurchase(ctx context.Context, id int64, date time.Time, supplierID int64, total float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase SET date=$1, supplier_id=$2, total=$3 WHERE id=$4`,
		date, nullInt(supplierID), total, id)
	return err
}

func (t *txRepo) PurchaseExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM purchase WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func (t *txRepo) ListPurchaseItems(ctx context.Context, purchaseID int64) (Items, error) {
	return t.listItems(ctx, `SELECT pd.product_id, COALESCE(pd.variant_id,0), pd.quantity, pd.unit_price, p.active
FROM purchase_detail pd JOIN product p ON p.id = pd.product_id WHERE pd.purchase_id=$1`, purchaseID)
}

func (t *txRepo) InsertPurchaseItem(ctx context.Context, purchaseID int64, key LineKey, item LineItem) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchase_detail (purchase_id, product_id, variant_id, quantity, unit_price) VALUES ($1,$2,$3,$4,$5)`,
		purchaseID, key.ProductID, nullInt(key.VariantID), item.Quantity, item.UnitPrice)
	return err
}

func (t *txRepo) UpdatePurchaseItem(ctx context.Context, purchaseID int64, key LineKey, item LineItem) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_detail SET quantity=$1, unit_price=$2
WHERE purchase_id=$3 AND product_id=$4 AND variant_id IS NOT DISTINCT FROM $5`,
		item.Quantity, item.UnitPrice, purchaseID, key.ProductID, nullInt(key.VariantID))
	return err
}

func (t *txRepo) DeletePurchaseItem(ctx context.Context, purchaseID int64, key LineKey) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase_detail WHERE purchase_id=$1 AND product_id=$2 AND variant_id IS NOT DISTINCT FROM $3`,
		purchaseID, key.ProductID, nullInt(key.VariantID))
	return err
}

func (t *txRepo) DeletePurchase(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase WHERE id=$1`, id)
	return err
}

func (t *txRepo) GetProductRef(ctx context.Context, productID int64) (ProductRef, error) {
	var ref ProductRef
	err := t.tx.QueryRow(ctx, `SELECT id, active FROM product WHERE id=$1`, productID).Scan(&ref.ID, &ref.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductRef{}, ledger.ErrUnknownReference
		}
		return ProductRef{}, err
	}
	return ref, nil
}

func (t *txRepo) listItems(ctx context.Context, query string, id int64) (Items, error) {
	rows, err := t.tx.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make(Items)
	for rows.Next() {
		var key LineKey
		var item LineItem
		if err := rows.Scan(&key.ProductID, &key.VariantID, &item.Quantity, &item.UnitPrice, &item.Active); err != nil {
			return nil, err
		}
		items[key] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
