package backup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func writeTestArchive(t *testing.T, dir string, createdAt time.Time) string {
	t.Helper()
	d := dump{
		ID:        uuid.NewString(),
		CreatedAt: createdAt,
		Tables: map[string][]map[string]any{
			"product": {{"id": int64(1), "name": "Coffee", "stock": 4.0}},
		},
	}
	name := "lachapita-" + createdAt.Format("20060102-150405") + "-" + d.ID[:8] + ".json.gz"
	path := filepath.Join(dir, name)
	require.NoError(t, writeArchive(path, d))
	return d.ID
}

func TestArchiveRoundtrip(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().UTC().Truncate(time.Second)
	id := writeTestArchive(t, dir, now)

	svc := NewService(nil, dir)
	archives, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, archives, 1)
	require.Equal(t, id, archives[0].ID)
	require.True(t, archives[0].Size > 0)

	d, err := readArchive(archives[0].Path)
	require.NoError(t, err)
	require.Equal(t, "Coffee", d.Tables["product"][0]["name"])
}

func TestListNewestFirstAndPrune(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		writeTestArchive(t, dir, base.Add(time.Duration(i)*time.Hour))
	}

	svc := NewService(nil, dir)
	ctx := context.Background()

	archives, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, archives, 4)
	for i := 1; i < len(archives); i++ {
		require.True(t, archives[i-1].CreatedAt.After(archives[i].CreatedAt))
	}

	removed, err := svc.Prune(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	archives, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, archives, 2)
	// The two newest survive.
	require.Equal(t, base.Add(3*time.Hour), archives[0].CreatedAt)
}

func TestListMissingDir(t *testing.T) {
	svc := NewService(nil, filepath.Join(t.TempDir(), "nope"))
	archives, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, archives)
}
