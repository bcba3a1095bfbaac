package directory

import (
	"context"
	"fmt"

	"github.com/lachapita/lachapita/internal/shared"
)

// RepositoryPort abstracts party persistence.
type RepositoryPort interface {
	Get(ctx context.Context, kind PartyKind, id int64) (Party, error)
	List(ctx context.Context, kind PartyKind, search string, includeInactive bool) ([]Party, error)
	Insert(ctx context.Context, kind PartyKind, in SavePartyInput) (int64, error)
	Update(ctx context.Context, kind PartyKind, in SavePartyInput) error
	SetActive(ctx context.Context, kind PartyKind, id int64, active bool) error
}

// AuditPort records directory mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements client and supplier use cases.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds the directory service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Get returns one party.
func (s *Service) Get(ctx context.Context, kind PartyKind, id int64) (Party, error) {
	return s.repo.Get(ctx, kind, id)
}

// List returns parties matching the search.
func (s *Service) List(ctx context.Context, kind PartyKind, search string, includeInactive bool) ([]Party, error) {
	return s.repo.List(ctx, kind, search, includeInactive)
}

// Save creates or updates a party.
func (s *Service) Save(ctx context.Context, kind PartyKind, in SavePartyInput) (int64, error) {
	if in.ID == 0 {
		id, err := s.repo.Insert(ctx, kind, in)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", kind, err)
		}
		s.recordAudit(ctx, string(kind)+":create", kind, id, in.Name)
		return id, nil
	}
	if err := s.repo.Update(ctx, kind, in); err != nil {
		return 0, fmt.Errorf("update %s %d: %w", kind, in.ID, err)
	}
	s.recordAudit(ctx, string(kind)+":update", kind, in.ID, in.Name)
	return in.ID, nil
}

// Delete soft deletes a party; sales and purchases keep referencing it.
func (s *Service) Delete(ctx context.Context, kind PartyKind, id int64) error {
	if err := s.repo.SetActive(ctx, kind, id, false); err != nil {
		return fmt.Errorf("deactivate %s %d: %w", kind, id, err)
	}
	s.recordAudit(ctx, string(kind)+":delete", kind, id, "")
	return nil
}

// Restore reactivates a soft-deleted party.
func (s *Service) Restore(ctx context.Context, kind PartyKind, id int64) error {
	if err := s.repo.SetActive(ctx, kind, id, true); err != nil {
		return fmt.Errorf("restore %s %d: %w", kind, id, err)
	}
	s.recordAudit(ctx, string(kind)+":restore", kind, id, "")
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, kind PartyKind, id int64, name string) {
	if s.audit == nil {
		return
	}
	var meta map[string]any
	if name != "" {
		meta = map[string]any{"name": name}
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   string(kind),
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}
