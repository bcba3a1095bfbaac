package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for clients and
// suppliers. Both tables share one shape, so the kind picks the table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func table(kind PartyKind) string {
	if kind == KindSupplier {
		return "supplier"
	}
	return "client"
}

// Get returns one party.
func (r *Repository) Get(ctx context.Context, kind PartyKind, id int64) (Party, error) {
	var p Party
	query := fmt.Sprintf(`SELECT id, name, phone, email, notes, active FROM %s WHERE id=$1`, table(kind))
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Phone, &p.Email, &p.Notes, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Party{}, ErrNotFound
		}
		return Party{}, err
	}
	return p, nil
}

// List returns active parties filtered by a name search, ordered by name.
func (r *Repository) List(ctx context.Context, kind PartyKind, search string, includeInactive bool) ([]Party, error) {
	query := fmt.Sprintf(`SELECT id, name, phone, email, notes, active FROM %s WHERE 1=1`, table(kind))
	var args []any
	if !includeInactive {
		query += ` AND active`
	}
	if search != "" {
		query += ` AND name ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var parties []Party
	for rows.Next() {
		var p Party
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.Email, &p.Notes, &p.Active); err != nil {
			return nil, err
		}
		parties = append(parties, p)
	}
	return parties, rows.Err()
}

// Insert creates a party.
func (r *Repository) Insert(ctx context.Context, kind PartyKind, in SavePartyInput) (int64, error) {
	var id int64
	query := fmt.Sprintf(`INSERT INTO %s (name, phone, email, notes, active) VALUES ($1,$2,$3,$4,TRUE) RETURNING id`, table(kind))
	err := r.pool.QueryRow(ctx, query, in.Name, in.Phone, in.Email, in.Notes).Scan(&id)
	return id, err
}

// Update revises a party.
func (r *Repository) Update(ctx context.Context, kind PartyKind, in SavePartyInput) error {
	query := fmt.Sprintf(`UPDATE %s SET name=$1, phone=$2, email=$3, notes=$4 WHERE id=$5`, table(kind))
	tag, err := r.pool.Exec(ctx, query, in.Name, in.Phone, in.Email, in.Notes, in.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive flips the soft-delete flag.
func (r *Repository) SetActive(ctx context.Context, kind PartyKind, id int64, active bool) error {
	query := fmt.Sprintf(`UPDATE %s SET active=$1 WHERE id=$2`, table(kind))
	tag, err := r.pool.Exec(ctx, query, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
