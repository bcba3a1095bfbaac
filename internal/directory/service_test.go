package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	records map[PartyKind]map[int64]Party
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: map[PartyKind]map[int64]Party{
		KindClient:   {},
		KindSupplier: {},
	}}
}

func (r *memoryRepo) Get(ctx context.Context, kind PartyKind, id int64) (Party, error) {
	p, ok := r.records[kind][id]
	if !ok {
		return Party{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) List(ctx context.Context, kind PartyKind, search string, includeInactive bool) ([]Party, error) {
	var out []Party
	for _, p := range r.records[kind] {
		if !includeInactive && !p.Active {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) Insert(ctx context.Context, kind PartyKind, in SavePartyInput) (int64, error) {
	r.nextID++
	r.records[kind][r.nextID] = Party{ID: r.nextID, Name: in.Name, Phone: in.Phone, Email: in.Email, Notes: in.Notes, Active: true}
	return r.nextID, nil
}

func (r *memoryRepo) Update(ctx context.Context, kind PartyKind, in SavePartyInput) error {
	p, ok := r.records[kind][in.ID]
	if !ok {
		return ErrNotFound
	}
	p.Name, p.Phone, p.Email, p.Notes = in.Name, in.Phone, in.Email, in.Notes
	r.records[kind][in.ID] = p
	return nil
}

func (r *memoryRepo) SetActive(ctx context.Context, kind PartyKind, id int64, active bool) error {
	p, ok := r.records[kind][id]
	if !ok {
		return ErrNotFound
	}
	p.Active = active
	r.records[kind][id] = p
	return nil
}

func TestSaveAndSoftDelete(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.Save(ctx, KindClient, SavePartyInput{Name: "Maria", Phone: "555-0101"})
	require.NoError(t, err)

	_, err = svc.Save(ctx, KindClient, SavePartyInput{ID: id, Name: "Maria G.", Phone: "555-0101"})
	require.NoError(t, err)

	p, err := svc.Get(ctx, KindClient, id)
	require.NoError(t, err)
	require.Equal(t, "Maria G.", p.Name)

	require.NoError(t, svc.Delete(ctx, KindClient, id))
	p, err = svc.Get(ctx, KindClient, id)
	require.NoError(t, err)
	require.False(t, p.Active)

	active, err := svc.List(ctx, KindClient, "", false)
	require.NoError(t, err)
	require.Empty(t, active)

	all, err := svc.List(ctx, KindClient, "", true)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, svc.Restore(ctx, KindClient, id))
	p, _ = svc.Get(ctx, KindClient, id)
	require.True(t, p.Active)
}

func TestKindsAreIsolated(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.Save(ctx, KindSupplier, SavePartyInput{Name: "Acme"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, KindClient, id)
	require.ErrorIs(t, err, ErrNotFound)
}
