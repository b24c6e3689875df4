package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"calendra/internal/reservations/calendar"
	reservationerrors "calendra/internal/reservations/errors"
	"calendra/pkg/model"

	"github.com/google/uuid"
)

// MemoryReservationStore keeps reservations in process. Used when no database
// is configured and by tests.
type MemoryReservationStore struct {
	mu   sync.RWMutex
	byID map[string]*model.Reservation
}

func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{byID: make(map[string]*model.Reservation)}
}

func (s *MemoryReservationStore) LoadCalendar(_ context.Context, resourceID string) (*calendar.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*model.Reservation
	for _, r := range s.byID {
		if r.ResourceID == resourceID && r.Status.Active() {
			active = append(active, r.Clone())
		}
	}
	return calendar.New(resourceID, active...), nil
}

func (s *MemoryReservationStore) PersistReservation(ctx context.Context, reservation *model.Reservation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", reservationerrors.ErrPersistence, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.byID[reservation.ID]; ok && stored.Version >= reservation.Version {
		return fmt.Errorf("%w: %s at version %d", reservationerrors.ErrVersionConflict, reservation.ID, stored.Version)
	}
	s.byID[reservation.ID] = reservation.Clone()
	return nil
}

func (s *MemoryReservationStore) PersistCancellation(ctx context.Context, reservation *model.Reservation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", reservationerrors.ErrPersistence, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[reservation.ID]
	if !ok {
		return reservationerrors.NotFound("reservation", reservation.ID)
	}
	if stored.Version >= reservation.Version {
		return fmt.Errorf("%w: %s at version %d", reservationerrors.ErrVersionConflict, reservation.ID, stored.Version)
	}
	stored.Status = model.StatusCancelled
	stored.UpdatedAt = reservation.UpdatedAt
	stored.Version = reservation.Version
	return nil
}

func (s *MemoryReservationStore) FindByID(_ context.Context, id string) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok {
		return nil, reservationerrors.NotFound("reservation", id)
	}
	return r.Clone(), nil
}

func (s *MemoryReservationStore) FindByRequester(_ context.Context, requesterID string, limit int, offset int64) ([]*model.Reservation, error) {
	s.mu.RLock()
	var matched []*model.Reservation
	for _, r := range s.byID {
		if r.RequesterID == requesterID {
			matched = append(matched, r.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Range.Start.Equal(matched[j].Range.Start) {
			return matched[i].Range.Start.Before(matched[j].Range.Start)
		}
		return matched[i].ID < matched[j].ID
	})
	return page(matched, limit, offset), nil
}

func (s *MemoryReservationStore) CountByRequester(_ context.Context, requesterID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.byID {
		if r.RequesterID == requesterID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryReservationStore) FindExpiredHolds(_ context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	s.mu.RLock()
	var expired []*model.Reservation
	for _, r := range s.byID {
		if r.HoldExpired(now) {
			expired = append(expired, r.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(*expired[j].ExpiresAt) })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

type MemoryResourceRepository struct {
	mu        sync.RWMutex
	resources map[string]*model.Resource
}

func NewMemoryResourceRepository() *MemoryResourceRepository {
	return &MemoryResourceRepository{resources: make(map[string]*model.Resource)}
}

func (r *MemoryResourceRepository) Create(_ context.Context, resource *model.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if resource.ID != "" {
		if _, exists := r.resources[resource.ID]; exists {
			return fmt.Errorf("resource %s: %w", resource.ID, reservationerrors.ErrAlreadyExists)
		}
	}
	prepareResource(resource)
	stored := *resource
	r.resources[resource.ID] = &stored
	return nil
}

func (r *MemoryResourceRepository) FindByID(_ context.Context, id string) (*model.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resource, ok := r.resources[id]
	if !ok {
		return nil, reservationerrors.NotFound("resource", id)
	}
	out := *resource
	return &out, nil
}

func (r *MemoryResourceRepository) FindAll(_ context.Context, limit int, offset int64) ([]*model.Resource, error) {
	r.mu.RLock()
	all := make([]*model.Resource, 0, len(r.resources))
	for _, resource := range r.resources {
		out := *resource
		all = append(all, &out)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return page(all, limit, offset), nil
}

func (r *MemoryResourceRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.resources)), nil
}

type MemoryAuditLog struct {
	mu      sync.RWMutex
	entries []model.AuditEntry
}

func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

func (a *MemoryAuditLog) Record(_ context.Context, entry model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	a.mu.Lock()
	a.entries = append(a.entries, entry)
	a.mu.Unlock()
	return nil
}

func (a *MemoryAuditLog) FindByReservation(_ context.Context, reservationID string) ([]model.AuditEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []model.AuditEntry
	for _, e := range a.entries {
		if e.ReservationID == reservationID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Entries returns a copy of everything recorded so far.
func (a *MemoryAuditLog) Entries() []model.AuditEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.entries)
}

func page[T any](items []T, limit int, offset int64) []T {
	if offset >= int64(len(items)) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
