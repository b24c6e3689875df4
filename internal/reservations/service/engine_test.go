package service

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"sync"
	"testing"
	"time"

	"calendra/internal/reservations/calendar"
	"calendra/internal/reservations/coordinator"
	reservationerrors "calendra/internal/reservations/errors"
	"calendra/internal/reservations/policy"
	"calendra/internal/reservations/repository"
	"calendra/pkg/identity"
	"calendra/pkg/model"

	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func window(start, end time.Time) model.TimeRange {
	return model.TimeRange{Start: start, End: end}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event model.Event) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func (p *recordingPublisher) last() model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

// flakyStore fails the next failures persist calls.
type flakyStore struct {
	*repository.MemoryReservationStore
	mu       sync.Mutex
	failures int
}

func (s *flakyStore) failNext(n int) {
	s.mu.Lock()
	s.failures = n
	s.mu.Unlock()
}

func (s *flakyStore) fail() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return reservationerrors.ErrPersistence
	}
	return nil
}

func (s *flakyStore) PersistReservation(ctx context.Context, r *model.Reservation) error {
	if err := s.fail(); err != nil {
		return err
	}
	return s.MemoryReservationStore.PersistReservation(ctx, r)
}

func (s *flakyStore) PersistCancellation(ctx context.Context, r *model.Reservation) error {
	if err := s.fail(); err != nil {
		return err
	}
	return s.MemoryReservationStore.PersistCancellation(ctx, r)
}

type harness struct {
	engine    ReservationEngine
	store     *flakyStore
	resources *repository.MemoryResourceRepository
	audit     *repository.MemoryAuditLog
	publisher *recordingPublisher
	clock     *fakeClock
	deps      Dependencies
	opts      Options
}

var (
	alice = identity.Actor{ID: "alice"}
	bob   = identity.Actor{ID: "bob"}
	admin = identity.Actor{ID: "ops", Privileged: true}
)

func newHarness(t *testing.T, configure ...func(*Dependencies, *Options)) *harness {
	t.Helper()

	h := &harness{
		store:     &flakyStore{MemoryReservationStore: repository.NewMemoryReservationStore()},
		resources: repository.NewMemoryResourceRepository(),
		audit:     repository.NewMemoryAuditLog(),
		publisher: &recordingPublisher{},
		clock:     &fakeClock{now: at(8, 0)},
	}

	ctx := context.Background()
	require.NoError(t, h.resources.Create(ctx, &model.Resource{ID: "room", Name: "Room", Capacity: 1}))
	require.NoError(t, h.resources.Create(ctx, &model.Resource{ID: "hall", Name: "Hall", Capacity: 2}))
	require.NoError(t, h.resources.Create(ctx, &model.Resource{ID: "lab", Name: "Lab", Capacity: 3}))

	h.deps = Dependencies{
		Store:       h.store,
		Resources:   h.resources,
		Audit:       h.audit,
		Coordinator: coordinator.NewKeyedMutex(),
		Policy:      policy.New(policy.Buffer{}),
		Publisher:   h.publisher,
		Clock:       h.clock,
	}
	h.opts = Options{
		GraceWindow:    time.Minute,
		HoldTTL:        5 * time.Minute,
		PersistTimeout: time.Second,
		SweepBackoff:   time.Millisecond,
	}
	for _, fn := range configure {
		fn(&h.deps, &h.opts)
	}

	h.engine = NewReservationEngine(h.deps, h.opts)
	return h
}

func request(resourceID, requesterID string, start, end time.Time) model.ReservationRequest {
	return model.ReservationRequest{ResourceID: resourceID, RequesterID: requesterID, Start: start, End: end}
}

func (h *harness) submit(t *testing.T, resourceID, requesterID string, start, end time.Time) *model.Reservation {
	t.Helper()
	r, err := h.engine.Submit(context.Background(), request(resourceID, requesterID, start, end))
	require.NoError(t, err)
	return r
}

func blockingIDs(t *testing.T, err error) []string {
	t.Helper()
	var conflictErr *reservationerrors.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	ids := slices.Clone(conflictErr.BlockingIDs)
	slices.Sort(ids)
	return ids
}

func collect(t *testing.T, h *harness, resourceID string, w model.TimeRange) []model.TimeRange {
	t.Helper()
	seq, err := h.engine.GetAvailability(context.Background(), resourceID, w)
	require.NoError(t, err)
	var out []model.TimeRange
	for free := range seq {
		out = append(out, free)
	}
	return out
}

func TestSubmit_ExclusiveScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.submit(t, "room", "alice", at(10, 0), at(11, 0))
	require.Equal(t, model.StatusConfirmed, first.Status)
	require.Equal(t, int64(2), first.Version)

	_, err := h.engine.Submit(ctx, request("room", "bob", at(10, 30), at(11, 30)))
	require.ErrorIs(t, err, reservationerrors.ErrConflict)
	require.Equal(t, []string{first.ID}, blockingIDs(t, err))

	touching := h.submit(t, "room", "bob", at(11, 0), at(12, 0))
	require.Equal(t, model.StatusConfirmed, touching.Status)

	free := collect(t, h, "room", window(at(9, 0), at(12, 0)))
	require.Equal(t, []model.TimeRange{window(at(9, 0), at(10, 0))}, free)
}

func TestSubmit_CapacityScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.submit(t, "hall", "alice", at(9, 0), at(10, 0))
	b := h.submit(t, "hall", "bob", at(9, 0), at(10, 0))

	_, err := h.engine.Submit(ctx, request("hall", "carol", at(9, 30), at(10, 30)))
	require.ErrorIs(t, err, reservationerrors.ErrConflict)
	expected := []string{a.ID, b.ID}
	slices.Sort(expected)
	require.Equal(t, expected, blockingIDs(t, err))

	fourth := h.submit(t, "hall", "carol", at(10, 0), at(11, 0))
	require.Equal(t, model.StatusConfirmed, fourth.Status)
}

func TestSubmit_CapacityOverride(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.submit(t, "room", "alice", at(9, 0), at(10, 0))

	two := 2
	req := request("room", "bob", at(9, 0), at(10, 0))
	req.CapacityOverride = &two
	r, err := h.engine.Submit(ctx, req)
	require.NoError(t, err)
	require.Equal(t, model.StatusConfirmed, r.Status)
}

func TestSubmit_ConflictListsEveryBlocker(t *testing.T) {
	h := newHarness(t)

	var want []string
	for _, slot := range [][2]time.Time{
		{at(10, 0), at(10, 30)},
		{at(10, 30), at(11, 0)},
		{at(11, 0), at(11, 30)},
	} {
		want = append(want, h.submit(t, "room", "alice", slot[0], slot[1]).ID)
	}
	h.submit(t, "room", "alice", at(12, 0), at(13, 0))
	slices.Sort(want)

	_, err := h.engine.Submit(context.Background(), request("room", "bob", at(9, 45), at(11, 15)))
	require.Equal(t, want, blockingIDs(t, err))
}

func TestSubmit_RejectionIsAuditedNotStored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	blocker := h.submit(t, "room", "alice", at(10, 0), at(11, 0))
	_, err := h.engine.Submit(ctx, request("room", "bob", at(10, 0), at(11, 0)))
	require.ErrorIs(t, err, reservationerrors.ErrConflict)

	stored, total, err := h.engine.ListByRequester(ctx, "bob", 10, 0)
	require.NoError(t, err)
	require.Empty(t, stored)
	require.Zero(t, total)

	rejected := h.publisher.last()
	require.Equal(t, model.EventReservationRejected, rejected.Type)
	require.Equal(t, model.StatusRejected, rejected.Status)
	require.Equal(t, []string{blocker.ID}, rejected.BlockingIDs)

	var sawRejected bool
	for _, entry := range h.audit.Entries() {
		if entry.To == model.StatusRejected {
			sawRejected = true
			require.Equal(t, model.StatusPending, entry.From)
			require.NotEmpty(t, entry.Reason)
		}
	}
	require.True(t, sawRejected)
}

func TestSubmit_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   model.ReservationRequest
		field string
	}{
		{"inverted", request("room", "alice", at(11, 0), at(10, 0)), "range"},
		{"empty", request("room", "alice", at(10, 0), at(10, 0)), "range"},
		{"past", request("room", "alice", at(7, 0), at(9, 0)), "start"},
		{"unknown resource", request("nowhere", "alice", at(10, 0), at(11, 0)), "resource_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.Submit(ctx, tt.req)
			require.ErrorIs(t, err, reservationerrors.ErrValidation)
			var validationErr *reservationerrors.ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.Equal(t, tt.field, validationErr.Field)
		})
	}

	// inside the grace window
	_, err := h.engine.Submit(ctx, request("room", "alice", at(7, 59), at(9, 0)))
	require.NoError(t, err)
}

func TestSubmit_PersistFailureLeavesCalendarUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.failNext(1)
	_, err := h.engine.Submit(ctx, request("room", "alice", at(10, 0), at(11, 0)))
	require.ErrorIs(t, err, reservationerrors.ErrPersistence)
	require.Empty(t, h.publisher.types())

	free := collect(t, h, "room", window(at(10, 0), at(11, 0)))
	require.Equal(t, []model.TimeRange{window(at(10, 0), at(11, 0))}, free)

	r := h.submit(t, "room", "bob", at(10, 0), at(11, 0))
	require.Equal(t, model.StatusConfirmed, r.Status)
}

func TestSubmit_ConcurrentSameRangeExactlyOneWins(t *testing.T) {
	h := newHarness(t)

	const callers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		confirmed int
		conflicts int
		other     []error
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := h.engine.Submit(context.Background(), request("room", "caller", at(14, 0), at(15, 0)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				confirmed++
			case errors.Is(err, reservationerrors.ErrConflict):
				conflicts++
			default:
				other = append(other, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	require.Empty(t, other)
	require.Equal(t, 1, confirmed)
	require.Equal(t, callers-1, conflicts)
}

func TestSubmit_DifferentResourcesProceedIndependently(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for _, resourceID := range []string{"room", "hall", "lab"} {
		wg.Add(1)
		go func(resourceID string) {
			defer wg.Done()
			_, err := h.engine.Submit(context.Background(), request(resourceID, "alice", at(14, 0), at(15, 0)))
			errs <- err
		}(resourceID)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestSubmit_CapacityBoundUnderConcurrency(t *testing.T) {
	h := newHarness(t)
	rng := rand.New(rand.NewSource(7))

	type slot struct{ start, end time.Time }
	slots := make([]slot, 60)
	for i := range slots {
		start := at(9, 0).Add(time.Duration(rng.Intn(16)) * 15 * time.Minute)
		slots[i] = slot{start: start, end: start.Add(time.Duration(1+rng.Intn(6)) * 15 * time.Minute)}
	}

	var wg sync.WaitGroup
	for _, s := range slots {
		wg.Add(1)
		go func(s slot) {
			defer wg.Done()
			_, _ = h.engine.Submit(context.Background(), request("lab", "load", s.start, s.end))
		}(s)
	}
	wg.Wait()

	confirmed, _, err := h.engine.ListByRequester(context.Background(), "load", 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, confirmed)

	whole := window(at(0, 0), at(23, 0))
	require.LessOrEqual(t, calendar.MaxConcurrent(whole, calendar.Ranges(confirmed)), 3)
}

func TestSubmit_BufferSeparatesReservations(t *testing.T) {
	h := newHarness(t, func(d *Dependencies, _ *Options) {
		d.Policy = policy.New(policy.Buffer{After: 15 * time.Minute})
	})
	ctx := context.Background()

	h.submit(t, "room", "alice", at(10, 0), at(11, 0))

	// only the candidate is widened by the buffer
	_, err := h.engine.Submit(ctx, request("room", "bob", at(9, 0), at(10, 0)))
	require.ErrorIs(t, err, reservationerrors.ErrConflict)

	_, err = h.engine.Submit(ctx, request("room", "bob", at(8, 30), at(9, 45)))
	require.NoError(t, err)

	r, err := h.engine.Submit(ctx, request("room", "bob", at(11, 0), at(12, 0)))
	require.NoError(t, err)
	require.Equal(t, window(at(11, 0), at(12, 0)), r.Range, "buffer is never stored")
}

func TestSubmit_ExclusivePolicyIgnoresCapacity(t *testing.T) {
	h := newHarness(t, func(d *Dependencies, _ *Options) {
		d.Policy = policy.Exclusive(policy.Buffer{})
	})

	h.submit(t, "hall", "alice", at(9, 0), at(10, 0))
	_, err := h.engine.Submit(context.Background(), request("hall", "bob", at(9, 0), at(10, 0)))
	require.ErrorIs(t, err, reservationerrors.ErrConflict)
}

func TestHold_BlocksThenConfirms(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	hold, err := h.engine.Hold(ctx, request("room", "alice", at(10, 0), at(11, 0)), 0)
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, hold.Status)
	require.NotNil(t, hold.ExpiresAt)
	require.Equal(t, at(8, 5), *hold.ExpiresAt)

	_, err = h.engine.Submit(ctx, request("room", "bob", at(10, 0), at(11, 0)))
	require.ErrorIs(t, err, reservationerrors.ErrConflict)

	_, err = h.engine.Confirm(ctx, hold.ID, bob)
	require.ErrorIs(t, err, reservationerrors.ErrForbidden)

	confirmed, err := h.engine.Confirm(ctx, hold.ID, alice)
	require.NoError(t, err)
	require.Equal(t, model.StatusConfirmed, confirmed.Status)
	require.Nil(t, confirmed.ExpiresAt)
	require.Equal(t, hold.Version+1, confirmed.Version)

	again, err := h.engine.Confirm(ctx, hold.ID, alice)
	require.NoError(t, err)
	require.Equal(t, confirmed.Version, again.Version)

	require.Equal(t, []model.EventType{model.EventReservationHeld, model.EventReservationRejected, model.EventReservationConfirmed}, h.publisher.types())
}

func TestHold_LateConfirmExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	hold, err := h.engine.Hold(ctx, request("room", "alice", at(10, 0), at(11, 0)), time.Minute)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Minute)
	expired, err := h.engine.Confirm(ctx, hold.ID, alice)
	require.ErrorIs(t, err, reservationerrors.ErrHoldExpired)
	require.Equal(t, model.StatusExpired, expired.Status)

	_, err = h.engine.Confirm(ctx, hold.ID, alice)
	require.ErrorIs(t, err, reservationerrors.ErrHoldExpired)

	r := h.submit(t, "room", "bob", at(10, 0), at(11, 0))
	require.Equal(t, model.StatusConfirmed, r.Status)
}

func TestHold_OverdueHoldStopsBlockingBeforeSweep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	hold, err := h.engine.Hold(ctx, request("room", "alice", at(10, 0), at(11, 0)), time.Minute)
	require.NoError(t, err)
	moving := h.submit(t, "room", "bob", at(12, 0), at(13, 0))

	_, err = h.engine.Submit(ctx, request("room", "bob", at(10, 0), at(11, 0)))
	var conflict *reservationerrors.ConflictError
	require.ErrorAs(t, err, &conflict)

	h.clock.Advance(2 * time.Minute)

	r := h.submit(t, "room", "bob", at(10, 0), at(10, 30))
	require.Equal(t, model.StatusConfirmed, r.Status)

	moved, err := h.engine.Reschedule(ctx, moving.ID, bob, window(at(10, 30), at(11, 0)))
	require.NoError(t, err)
	require.Equal(t, at(10, 30), moved.Range.Start)

	_, err = h.engine.Confirm(ctx, hold.ID, alice)
	require.ErrorIs(t, err, reservationerrors.ErrHoldExpired)

	n, err := h.engine.ExpireHolds(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	stored, err := h.engine.Get(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusConfirmed, stored.Status)
}

func TestExpireHolds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	short, err := h.engine.Hold(ctx, request("room", "alice", at(10, 0), at(11, 0)), time.Minute)
	require.NoError(t, err)
	_, err = h.engine.Hold(ctx, request("hall", "alice", at(10, 0), at(11, 0)), time.Minute)
	require.NoError(t, err)
	long, err := h.engine.Hold(ctx, request("lab", "alice", at(10, 0), at(11, 0)), time.Hour)
	require.NoError(t, err)

	h.clock.Advance(10 * time.Minute)
	n, err := h.engine.ExpireHolds(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	stored, err := h.engine.Get(ctx, short.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusExpired, stored.Status)

	stillHeld, err := h.engine.Get(ctx, long.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, stillHeld.Status)

	free := collect(t, h, "room", window(at(10, 0), at(11, 0)))
	require.Len(t, free, 1)

	n, err = h.engine.ExpireHolds(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestExpireHolds_RetriesTransientFailures(t *testing.T) {
	h := newHarness(t, func(_ *Dependencies, o *Options) {
		o.SweepMaxRetries = 3
	})
	ctx := context.Background()

	_, err := h.engine.Hold(ctx, request("room", "alice", at(10, 0), at(11, 0)), time.Minute)
	require.NoError(t, err)
	h.clock.Advance(time.Hour)

	h.store.failNext(2)
	n, err := h.engine.ExpireHolds(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestExpireHolds_GivesUpAndContinues(t *testing.T) {
	h := newHarness(t, func(_ *Dependencies, o *Options) {
		o.SweepMaxRetries = 2
	})
	ctx := context.Background()

	_, err := h.engine.Hold(ctx, request("room", "alice", at(10, 0), at(11, 0)), time.Minute)
	require.NoError(t, err)
	h.clock.Advance(time.Hour)

	h.store.failNext(10)
	n, err := h.engine.ExpireHolds(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	h.store.failNext(0)
	n, err = h.engine.ExpireHolds(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r := h.submit(t, "room", "alice", at(10, 0), at(11, 0))

	_, err := h.engine.Cancel(ctx, r.ID, bob)
	require.ErrorIs(t, err, reservationerrors.ErrForbidden)

	cancelled, err := h.engine.Cancel(ctx, r.ID, alice)
	require.NoError(t, err)
	require.Equal(t, model.StatusCancelled, cancelled.Status)
	require.Equal(t, r.Version+1, cancelled.Version)

	again, err := h.engine.Cancel(ctx, r.ID, alice)
	require.NoError(t, err)
	require.Equal(t, model.StatusCancelled, again.Status)
	require.Equal(t, cancelled.Version, again.Version)

	var cancelledEvents int
	for _, typ := range h.publisher.types() {
		if typ == model.EventReservationCancelled {
			cancelledEvents++
		}
	}
	require.Equal(t, 1, cancelledEvents)

	h.submit(t, "room", "bob", at(10, 0), at(11, 0))
}

func TestCancel_Privileged(t *testing.T) {
	h := newHarness(t)

	r := h.submit(t, "room", "alice", at(10, 0), at(11, 0))
	cancelled, err := h.engine.Cancel(context.Background(), r.ID, admin)
	require.NoError(t, err)
	require.Equal(t, model.StatusCancelled, cancelled.Status)
}

func TestCancel_AlreadyCompleted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r := h.submit(t, "room", "alice", at(10, 0), at(11, 0))
	h.clock.Advance(4 * time.Hour)

	got, err := h.engine.Cancel(ctx, r.ID, alice)
	require.ErrorIs(t, err, reservationerrors.ErrAlreadyCompleted)
	require.Equal(t, model.StatusConfirmed, got.Status)
	require.Equal(t, r.Version, got.Version)
}

func TestCancel_PendingHoldIsInvalidTransition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	hold, err := h.engine.Hold(ctx, request("room", "alice", at(10, 0), at(11, 0)), 0)
	require.NoError(t, err)

	_, err = h.engine.Cancel(ctx, hold.ID, alice)
	require.ErrorIs(t, err, reservationerrors.ErrInvalidTransition)
	var transitionErr *reservationerrors.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	require.Equal(t, model.StatusPending, transitionErr.From)
	require.Equal(t, model.StatusCancelled, transitionErr.To)
}

func TestCancel_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Cancel(context.Background(), "missing", admin)
	require.ErrorIs(t, err, reservationerrors.ErrNotFound)
}

func TestCancel_PersistFailureKeepsOccupancy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r := h.submit(t, "room", "alice", at(10, 0), at(11, 0))

	h.store.failNext(1)
	_, err := h.engine.Cancel(ctx, r.ID, alice)
	require.ErrorIs(t, err, reservationerrors.ErrPersistence)

	_, err = h.engine.Submit(ctx, request("room", "bob", at(10, 0), at(11, 0)))
	require.ErrorIs(t, err, reservationerrors.ErrConflict)
}

func TestReschedule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.submit(t, "room", "alice", at(10, 0), at(11, 0))
	second := h.submit(t, "room", "bob", at(11, 0), at(12, 0))

	_, err := h.engine.Reschedule(ctx, first.ID, alice, window(at(10, 30), at(11, 30)))
	require.Equal(t, []string{second.ID}, blockingIDs(t, err))

	_, err = h.engine.Reschedule(ctx, first.ID, bob, window(at(9, 0), at(10, 0)))
	require.ErrorIs(t, err, reservationerrors.ErrForbidden)

	moved, err := h.engine.Reschedule(ctx, first.ID, alice, window(at(9, 30), at(10, 30)))
	require.NoError(t, err)
	require.Equal(t, window(at(9, 30), at(10, 30)), moved.Range)
	require.Equal(t, first.Version+1, moved.Version)
	require.Equal(t, model.EventReservationRescheduled, h.publisher.last().Type)

	free := collect(t, h, "room", window(at(9, 0), at(12, 0)))
	require.Equal(t, []model.TimeRange{
		window(at(9, 0), at(9, 30)),
		window(at(10, 30), at(11, 0)),
	}, free)

	_, err = h.engine.Reschedule(ctx, first.ID, alice, window(at(11, 0), at(10, 0)))
	require.ErrorIs(t, err, reservationerrors.ErrValidation)
}

func TestReschedule_RequiresConfirmed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	hold, err := h.engine.Hold(ctx, request("room", "alice", at(10, 0), at(11, 0)), 0)
	require.NoError(t, err)

	_, err = h.engine.Reschedule(ctx, hold.ID, alice, window(at(12, 0), at(13, 0)))
	require.ErrorIs(t, err, reservationerrors.ErrValidation)
}

func TestSlots(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.submit(t, "hall", "alice", at(10, 0), at(11, 0))
	h.submit(t, "hall", "bob", at(10, 0), at(12, 0))

	slots, err := h.engine.Slots(ctx, "hall", window(at(9, 0), at(12, 0)), time.Hour)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	require.Equal(t, []bool{true, false, true}, []bool{slots[0].Available, slots[1].Available, slots[2].Available})
	require.Equal(t, []int{2, 0, 1}, []int{slots[0].Remaining, slots[1].Remaining, slots[2].Remaining})

	_, err = h.engine.Slots(ctx, "hall", window(at(9, 0), at(12, 0)), 0)
	require.ErrorIs(t, err, reservationerrors.ErrValidation)

	_, err = h.engine.Slots(ctx, "nowhere", window(at(9, 0), at(12, 0)), time.Hour)
	require.ErrorIs(t, err, reservationerrors.ErrNotFound)
}

func TestGetAvailability_InvalidWindow(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.GetAvailability(context.Background(), "room", window(at(12, 0), at(9, 0)))
	require.ErrorIs(t, err, reservationerrors.ErrValidation)
}

func TestListByRequester(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for hour := 9; hour < 14; hour++ {
		h.submit(t, "room", "alice", at(hour, 0), at(hour+1, 0))
	}
	h.submit(t, "hall", "bob", at(9, 0), at(10, 0))

	page, total, err := h.engine.ListByRequester(ctx, "alice", 2, 1)
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	require.Equal(t, at(10, 0), page[0].Range.Start)
}

func TestGet_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Get(context.Background(), "missing")
	require.ErrorIs(t, err, reservationerrors.ErrNotFound)
}

func TestReloadCalendars_SharedStore(t *testing.T) {
	h := newHarness(t, func(_ *Dependencies, o *Options) {
		o.ReloadCalendars = true
	})
	replica := NewReservationEngine(h.deps, h.opts)
	ctx := context.Background()

	h.submit(t, "room", "alice", at(10, 0), at(11, 0))

	_, err := replica.Submit(ctx, request("room", "bob", at(10, 0), at(11, 0)))
	require.ErrorIs(t, err, reservationerrors.ErrConflict)
}
