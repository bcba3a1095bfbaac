// Package backup dumps the whole store into a gzip compressed JSON
// archive, lists past archives and prunes old ones. Restoring is a
// manual operation: archives are plain data, so they stay readable
// long after the schema moves on.
package backup

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// tables lists what a dump carries, in restore order: parents first so
// foreign keys resolve on the way back in.
var tables = []string{
	"category",
	"client",
	"supplier",
	"product",
	"product_variant",
	"sale",
	"sale_detail",
	"purchase",
	"purchase_detail",
	"stock_movement",
	"audit_logs",
}

// Archive is the manifest of one dump.
type Archive struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
}

// Service writes and lists archives.
type Service struct {
	pool *pgxpool.Pool
	dir  string
}

// NewService builds the backup service writing into dir.
func NewService(pool *pgxpool.Pool, dir string) *Service {
	return &Service{pool: pool, dir: dir}
}

type dump struct {
	ID        string                      `json:"id"`
	CreatedAt time.Time                   `json:"created_at"`
	Tables    map[string][]map[string]any `json:"tables"`
}

// Create dumps every table into a new gzip JSON archive and returns its
// manifest. The snapshot runs in one repeatable-read transaction so the
// archive is internally consistent.
func (s *Service) Create(ctx context.Context) (Archive, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Archive{}, fmt.Errorf("backup: create dir: %w", err)
	}

	d := dump{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Tables:    make(map[string][]map[string]any, len(tables)),
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return Archive{}, fmt.Errorf("backup: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, table := range tables {
		rows, err := tx.Query(ctx, `SELECT * FROM `+table+` ORDER BY 1`)
		if err != nil {
			return Archive{}, fmt.Errorf("backup: dump %s: %w", table, err)
		}
		records, err := collectRows(rows)
		if err != nil {
			return Archive{}, fmt.Errorf("backup: dump %s: %w", table, err)
		}
		d.Tables[table] = records
	}

	name := fmt.Sprintf("lachapita-%s-%s.json.gz", d.CreatedAt.Format("20060102-150405"), d.ID[:8])
	path := filepath.Join(s.dir, name)
	if err := writeArchive(path, d); err != nil {
		return Archive{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Archive{}, fmt.Errorf("backup: stat archive: %w", err)
	}
	return Archive{ID: d.ID, CreatedAt: d.CreatedAt, Path: path, Size: info.Size()}, nil
}

// List returns the manifests of existing archives, newest first.
func (s *Service) List(ctx context.Context) ([]Archive, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("backup: read dir: %w", err)
	}
	var archives []Archive
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json.gz") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		d, err := readArchive(path)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		archives = append(archives, Archive{ID: d.ID, CreatedAt: d.CreatedAt, Path: path, Size: info.Size()})
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].CreatedAt.After(archives[j].CreatedAt) })
	return archives, nil
}

// Prune deletes archives beyond keep, oldest first.
func (s *Service) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	archives, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := keep; i < len(archives); i++ {
		if err := os.Remove(archives[i].Path); err != nil {
			return removed, fmt.Errorf("backup: prune %s: %w", archives[i].Path, err)
		}
		removed++
	}
	return removed, nil
}

func collectRows(rows pgx.Rows) ([]map[string]any, error) {
	defer rows.Close()
	fields := rows.FieldDescriptions()
	records := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		record := make(map[string]any, len(fields))
		for i, field := range fields {
			record[string(field.Name)] = values[i]
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func writeArchive(path string, d dump) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("backup: create archive: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(d); err != nil {
		return fmt.Errorf("backup: encode archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("backup: flush archive: %w", err)
	}
	return f.Sync()
}

func readArchive(path string) (dump, error) {
	var d dump
	f, err := os.Open(path)
	if err != nil {
		return d, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return d, err
	}
	defer gz.Close()
	err = json.NewDecoder(gz).Decode(&d)
	return d, err
}
