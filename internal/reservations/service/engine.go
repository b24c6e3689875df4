package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"calendra/internal/reservations/calendar"
	"calendra/internal/reservations/coordinator"
	reservationerrors "calendra/internal/reservations/errors"
	"calendra/internal/reservations/events"
	"calendra/internal/reservations/lifecycle"
	"calendra/internal/reservations/metrics"
	"calendra/internal/reservations/policy"
	"calendra/pkg/identity"
	"calendra/pkg/logger"
	"calendra/pkg/model"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ReservationEngine interface {
	// Submit places a confirmed reservation or fails with a ConflictError naming every blocker.
	Submit(ctx context.Context, req model.ReservationRequest) (*model.Reservation, error)
	// Hold places a pending reservation that blocks the range until it is confirmed or expires.
	Hold(ctx context.Context, req model.ReservationRequest, ttl time.Duration) (*model.Reservation, error)
	Confirm(ctx context.Context, id string, actor identity.Actor) (*model.Reservation, error)
	Cancel(ctx context.Context, id string, actor identity.Actor) (*model.Reservation, error)
	Reschedule(ctx context.Context, id string, actor identity.Actor, to model.TimeRange) (*model.Reservation, error)
	GetAvailability(ctx context.Context, resourceID string, window model.TimeRange) (iter.Seq[model.TimeRange], error)
	Slots(ctx context.Context, resourceID string, window model.TimeRange, step time.Duration) ([]model.Slot, error)
	Get(ctx context.Context, id string) (*model.Reservation, error)
	ListByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Reservation, int64, error)
	// ExpireHolds moves every overdue hold to expired and reports how many moved.
	ExpireHolds(ctx context.Context) (int, error)
}

const (
	opSubmit       = "submit"
	opHold         = "hold"
	opConfirm      = "confirm"
	opCancel       = "cancel"
	opReschedule   = "reschedule"
	opAvailability = "availability"
	opSlots        = "slots"
	opExpire       = "expire"
)

type engine struct {
	deps   Dependencies
	opts   Options
	log    *logger.Logger
	tracer trace.Tracer

	mu        sync.Mutex
	calendars map[string]*calendar.Calendar
}

func NewReservationEngine(deps Dependencies, opts Options) ReservationEngine {
	if deps.Coordinator == nil {
		deps.Coordinator = coordinator.NewKeyedMutex()
	}
	if deps.Audit == nil {
		deps.Audit = noopAudit{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Discard{}
	}
	if deps.Authorizer == nil {
		deps.Authorizer = OwnerOrPrivileged
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}

	return &engine{
		deps:      deps,
		opts:      opts.withDefaults(),
		log:       deps.Log.Component("reservation-engine"),
		tracer:    otel.Tracer("calendra/reservations"),
		calendars: make(map[string]*calendar.Calendar),
	}
}

func (e *engine) Submit(ctx context.Context, req model.ReservationRequest) (res *model.Reservation, err error) {
	ctx, done := e.begin(ctx, opSubmit, attribute.String("resource_id", req.ResourceID))
	defer func() { done(err) }()

	return e.place(ctx, req, model.StatusConfirmed, 0)
}

func (e *engine) Hold(ctx context.Context, req model.ReservationRequest, ttl time.Duration) (res *model.Reservation, err error) {
	ctx, done := e.begin(ctx, opHold, attribute.String("resource_id", req.ResourceID))
	defer func() { done(err) }()

	if ttl <= 0 {
		ttl = e.opts.HoldTTL
	}
	return e.place(ctx, req, model.StatusPending, ttl)
}

// place runs the check-then-insert sequence for a new reservation. target is
// Confirmed for a single-phase submit and Pending for a hold.
func (e *engine) place(ctx context.Context, req model.ReservationRequest, target model.ReservationStatus, ttl time.Duration) (*model.Reservation, error) {
	now := e.deps.Clock.Now()

	rng, err := e.validateRange(req.Start, req.End, now)
	if err != nil {
		return nil, err
	}
	capacity, err := e.capacityFor(ctx, req)
	if err != nil {
		return nil, err
	}

	r := &model.Reservation{
		ID:          uuid.NewString(),
		ResourceID:  req.ResourceID,
		RequesterID: req.RequesterID,
		Range:       rng,
		Status:      model.StatusPending,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	release, cal, err := e.lock(ctx, r.ResourceID)
	if err != nil {
		return nil, err
	}

	decision := e.deps.Policy.Evaluate(r.Range, blockers(cal, e.deps.Policy.Window(r.Range), now, ""), capacity)
	if !decision.Allowed {
		release()
		return nil, e.reject(ctx, r, decision, now)
	}

	if target == model.StatusConfirmed {
		if err := lifecycle.Transition(r, model.StatusConfirmed, now); err != nil {
			release()
			return nil, err
		}
	} else {
		expiresAt := now.Add(ttl)
		r.ExpiresAt = &expiresAt
	}

	if err := e.persist(ctx, r); err != nil {
		release()
		return nil, err
	}
	cal.Insert(r)
	out := r.Clone()
	release()

	eventType, from := model.EventReservationConfirmed, model.StatusPending
	if target == model.StatusPending {
		eventType, from = model.EventReservationHeld, ""
	}
	e.record(ctx, out, "", from, out.RequesterID)
	e.emit(ctx, events.New(eventType, out, now))

	e.log.Ctx(ctx).Info("Reservation placed",
		"reservation_id", out.ID,
		"resource_id", out.ResourceID,
		"requester_id", out.RequesterID,
		"range", out.Range.String(),
		"status", out.Status,
	)
	return out, nil
}

// reject records the refusal and builds the ConflictError. r is never stored.
func (e *engine) reject(ctx context.Context, r *model.Reservation, decision policy.Decision, now time.Time) error {
	blocking := make([]string, 0, len(decision.Blocking))
	for _, b := range decision.Blocking {
		blocking = append(blocking, b.ID)
	}

	if err := lifecycle.Transition(r, model.StatusRejected, now); err != nil {
		return err
	}

	e.record(ctx, r, decision.Reason, model.StatusPending, r.RequesterID)
	event := events.New(model.EventReservationRejected, r, now)
	event.BlockingIDs = blocking
	e.emit(ctx, event)

	e.log.Ctx(ctx).Warn("Reservation rejected",
		"resource_id", r.ResourceID,
		"requester_id", r.RequesterID,
		"range", r.Range.String(),
		"blocking_ids", blocking,
		"reason", decision.Reason,
	)

	return &reservationerrors.ConflictError{
		ResourceID:  r.ResourceID,
		Range:       r.Range,
		BlockingIDs: blocking,
		Reason:      decision.Reason,
	}
}

func (e *engine) Confirm(ctx context.Context, id string, actor identity.Actor) (res *model.Reservation, err error) {
	ctx, done := e.begin(ctx, opConfirm, attribute.String("reservation_id", id))
	defer func() { done(err) }()

	release, cal, current, err := e.lockReservation(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	now := e.deps.Clock.Now()
	next := current.Clone()
	changed, confirmErr := lifecycle.Confirm(next, now)
	if confirmErr != nil && !errors.Is(confirmErr, reservationerrors.ErrHoldExpired) {
		release()
		return nil, confirmErr
	}
	if !changed {
		release()
		return next, confirmErr
	}

	if err := e.persist(ctx, next); err != nil {
		release()
		return nil, err
	}
	if next.Status.Active() {
		cal.Insert(next)
	} else {
		cal.Remove(next.ID)
	}
	out := next.Clone()
	release()

	if out.Status == model.StatusExpired {
		metrics.HoldExpired()
		e.record(ctx, out, "confirmed after deadline", model.StatusPending, actor.ID)
		e.emit(ctx, events.New(model.EventReservationExpired, out, now))
		e.log.Ctx(ctx).Info("Hold expired on confirmation", "reservation_id", out.ID, "resource_id", out.ResourceID)
		return out, confirmErr
	}

	e.record(ctx, out, "", model.StatusPending, actor.ID)
	e.emit(ctx, events.New(model.EventReservationConfirmed, out, now))
	e.log.Ctx(ctx).Info("Hold confirmed", "reservation_id", out.ID, "resource_id", out.ResourceID)
	return out, nil
}

// Cancel returns ErrAlreadyCompleted together with the unchanged reservation
// when its range already elapsed.
func (e *engine) Cancel(ctx context.Context, id string, actor identity.Actor) (res *model.Reservation, err error) {
	ctx, done := e.begin(ctx, opCancel, attribute.String("reservation_id", id))
	defer func() { done(err) }()

	release, cal, current, err := e.lockReservation(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	now := e.deps.Clock.Now()
	next := current.Clone()
	changed, err := lifecycle.Cancel(next, now)
	if err != nil {
		release()
		if errors.Is(err, reservationerrors.ErrAlreadyCompleted) {
			return current.Clone(), err
		}
		return nil, err
	}
	if !changed {
		release()
		return next, nil
	}

	if err := e.withPersistTimeout(ctx, func(ctx context.Context) error {
		return e.deps.Store.PersistCancellation(ctx, next)
	}); err != nil {
		e.evict(next.ResourceID)
		release()
		return nil, err
	}
	cal.Remove(next.ID)
	out := next.Clone()
	release()

	e.record(ctx, out, "", model.StatusConfirmed, actor.ID)
	e.emit(ctx, events.New(model.EventReservationCancelled, out, now))
	e.log.Ctx(ctx).Info("Reservation cancelled",
		"reservation_id", out.ID,
		"resource_id", out.ResourceID,
		"actor_id", actor.ID,
	)
	return out, nil
}

// Reschedule moves a confirmed reservation. The reservation's own occupancy is
// ignored while the new range is evaluated.
func (e *engine) Reschedule(ctx context.Context, id string, actor identity.Actor, to model.TimeRange) (res *model.Reservation, err error) {
	ctx, done := e.begin(ctx, opReschedule, attribute.String("reservation_id", id))
	defer func() { done(err) }()

	now := e.deps.Clock.Now()
	rng, err := e.validateRange(to.Start, to.End, now)
	if err != nil {
		return nil, err
	}

	release, cal, current, err := e.lockReservation(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	if current.Status != model.StatusConfirmed {
		release()
		return nil, reservationerrors.Validation("status", fmt.Sprintf("only confirmed reservations can be rescheduled, got %s", current.Status))
	}
	if !current.Range.End.After(now) {
		release()
		return current.Clone(), reservationerrors.ErrAlreadyCompleted
	}

	resource, err := e.deps.Resources.FindByID(ctx, current.ResourceID)
	if err != nil {
		release()
		return nil, err
	}

	others := blockers(cal, e.deps.Policy.Window(rng), now, current.ID)
	decision := e.deps.Policy.Evaluate(rng, others, resource.EffectiveCapacity())
	if !decision.Allowed {
		release()
		blocking := make([]string, 0, len(decision.Blocking))
		for _, b := range decision.Blocking {
			blocking = append(blocking, b.ID)
		}
		e.log.Ctx(ctx).Warn("Reschedule rejected",
			"reservation_id", current.ID,
			"range", rng.String(),
			"blocking_ids", blocking,
		)
		return nil, &reservationerrors.ConflictError{
			ResourceID:  current.ResourceID,
			Range:       rng,
			BlockingIDs: blocking,
			Reason:      decision.Reason,
		}
	}

	next := current.Clone()
	previous := next.Range
	next.Range = rng
	next.Version++
	next.UpdatedAt = now

	if err := e.persist(ctx, next); err != nil {
		release()
		return nil, err
	}
	cal.Insert(next)
	out := next.Clone()
	release()

	e.record(ctx, out, fmt.Sprintf("moved from %s", previous), model.StatusConfirmed, actor.ID)
	e.emit(ctx, events.New(model.EventReservationRescheduled, out, now))
	e.log.Ctx(ctx).Info("Reservation rescheduled",
		"reservation_id", out.ID,
		"resource_id", out.ResourceID,
		"from", previous.String(),
		"to", out.Range.String(),
	)
	return out, nil
}

// GetAvailability yields the free sub-intervals of window. The sequence reads
// from a snapshot taken under the resource lock.
func (e *engine) GetAvailability(ctx context.Context, resourceID string, window model.TimeRange) (seq iter.Seq[model.TimeRange], err error) {
	ctx, done := e.begin(ctx, opAvailability, attribute.String("resource_id", resourceID))
	defer func() { done(err) }()

	err = e.read(ctx, resourceID, window, func(cal *calendar.Calendar, capacity int) {
		seq = cal.Free(window, capacity)
	})
	return seq, err
}

func (e *engine) Slots(ctx context.Context, resourceID string, window model.TimeRange, step time.Duration) (slots []model.Slot, err error) {
	ctx, done := e.begin(ctx, opSlots, attribute.String("resource_id", resourceID))
	defer func() { done(err) }()

	if step <= 0 {
		return nil, reservationerrors.Validation("step", "must be positive")
	}
	if window.Duration()/step > maxSlots {
		return nil, reservationerrors.Validation("step", "produces too many slots for the window")
	}

	err = e.read(ctx, resourceID, window, func(cal *calendar.Calendar, capacity int) {
		slots = cal.Slots(window, step, capacity)
	})
	return slots, err
}

const maxSlots = 10000

// read runs fn under the resource lock with the capacity availability is measured against.
func (e *engine) read(ctx context.Context, resourceID string, window model.TimeRange, fn func(cal *calendar.Calendar, capacity int)) error {
	if !window.Valid() {
		return reservationerrors.Validation("window", "start must be before end")
	}

	resource, err := e.deps.Resources.FindByID(ctx, resourceID)
	if err != nil {
		return err
	}

	release, cal, err := e.lock(ctx, resourceID)
	if err != nil {
		return err
	}
	defer release()

	fn(cal, e.deps.Policy.Capacity(resource.EffectiveCapacity()))
	return nil
}

func (e *engine) Get(ctx context.Context, id string) (*model.Reservation, error) {
	return e.deps.Store.FindByID(ctx, id)
}

func (e *engine) ListByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	var (
		count        int64
		reservations []*model.Reservation
		errCount     error
		errFind      error
		wg           sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = e.deps.Store.CountByRequester(ctx, requesterID)
	}()

	go func() {
		defer wg.Done()
		reservations, errFind = e.deps.Store.FindByRequester(ctx, requesterID, limit, offset)
	}()

	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return reservations, count, nil
}

// validateRange enforces start < end and rejects starts older than the grace window.
func (e *engine) validateRange(start, end time.Time, now time.Time) (model.TimeRange, error) {
	rng, err := model.NewTimeRange(start, end)
	if err != nil {
		return model.TimeRange{}, reservationerrors.Validation("range", err.Error())
	}
	if rng.Start.Before(now.Add(-e.opts.GraceWindow)) {
		return model.TimeRange{}, reservationerrors.Validation("start", "is in the past")
	}
	return rng, nil
}

func (e *engine) capacityFor(ctx context.Context, req model.ReservationRequest) (int, error) {
	resource, err := e.deps.Resources.FindByID(ctx, req.ResourceID)
	if errors.Is(err, reservationerrors.ErrNotFound) {
		return 0, reservationerrors.Validation("resource_id", "unknown resource")
	}
	if err != nil {
		return 0, err
	}

	if req.CapacityOverride != nil {
		if *req.CapacityOverride < 1 {
			return 0, reservationerrors.Validation("capacity_override", "must be at least 1")
		}
		return *req.CapacityOverride, nil
	}
	return resource.EffectiveCapacity(), nil
}

// lock acquires the resource's critical section and returns its calendar.
// The calendar may only be touched until release is called.
func (e *engine) lock(ctx context.Context, resourceID string) (coordinator.Release, *calendar.Calendar, error) {
	waitStart := time.Now()
	release, err := e.deps.Coordinator.Acquire(ctx, resourceID)
	metrics.ObserveLockWait(time.Since(waitStart))
	if err != nil {
		return nil, nil, fmt.Errorf("lock resource %s: %w", resourceID, err)
	}

	cal, err := e.calendarFor(ctx, resourceID)
	if err != nil {
		release()
		return nil, nil, err
	}
	return release, cal, nil
}

// lockReservation resolves id to its resource, checks the actor and locks the
// resource. The returned reservation is the authoritative copy read under the lock.
func (e *engine) lockReservation(ctx context.Context, id string, actor identity.Actor) (coordinator.Release, *calendar.Calendar, *model.Reservation, error) {
	stored, err := e.deps.Store.FindByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if !e.deps.Authorizer.CanModify(actor, stored) {
		e.log.Ctx(ctx).Warn("Actor not allowed to modify reservation",
			"reservation_id", id,
			"actor_id", actor.ID,
		)
		return nil, nil, nil, reservationerrors.ErrForbidden
	}

	release, cal, err := e.lock(ctx, stored.ResourceID)
	if err != nil {
		return nil, nil, nil, err
	}

	if live, ok := cal.Get(id); ok {
		return release, cal, live, nil
	}

	current, err := e.deps.Store.FindByID(ctx, id)
	if err != nil {
		release()
		return nil, nil, nil, err
	}
	return release, cal, current, nil
}

// blockers lists the entries in window that can still block a placement.
// Overdue holds are skipped even before the sweeper has expired them.
func blockers(cal *calendar.Calendar, window model.TimeRange, now time.Time, skipID string) []*model.Reservation {
	var out []*model.Reservation
	for _, other := range cal.Overlapping(window) {
		if other.ID == skipID || other.HoldExpired(now) {
			continue
		}
		out = append(out, other)
	}
	return out
}

// calendarFor is only called while the resource lock is held.
func (e *engine) calendarFor(ctx context.Context, resourceID string) (*calendar.Calendar, error) {
	e.mu.Lock()
	cal, ok := e.calendars[resourceID]
	e.mu.Unlock()
	if ok && !e.opts.ReloadCalendars {
		return cal, nil
	}

	var loaded *calendar.Calendar
	err := e.withPersistTimeout(ctx, func(ctx context.Context) error {
		var err error
		loaded, err = e.deps.Store.LoadCalendar(ctx, resourceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.calendars[resourceID] = loaded
	n := len(e.calendars)
	e.mu.Unlock()
	metrics.SetCalendarsLoaded(n)

	return loaded, nil
}

// evict drops a calendar whose durable state is uncertain so the next
// operation reloads it.
func (e *engine) evict(resourceID string) {
	e.mu.Lock()
	delete(e.calendars, resourceID)
	n := len(e.calendars)
	e.mu.Unlock()
	metrics.SetCalendarsLoaded(n)
}

func (e *engine) persist(ctx context.Context, r *model.Reservation) error {
	err := e.withPersistTimeout(ctx, func(ctx context.Context) error {
		return e.deps.Store.PersistReservation(ctx, r)
	})
	if err != nil {
		e.evict(r.ResourceID)
		e.log.Ctx(ctx).Error("Failed to persist reservation, calendar left unchanged",
			"reservation_id", r.ID,
			"resource_id", r.ResourceID,
			"status", r.Status,
			"error", err,
		)
	}
	return err
}

func (e *engine) withPersistTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.opts.PersistTimeout)
	defer cancel()
	return fn(ctx)
}

func (e *engine) record(ctx context.Context, r *model.Reservation, reason string, from model.ReservationStatus, actorID string) {
	entry := model.AuditEntry{
		ID:            uuid.NewString(),
		ReservationID: r.ID,
		ResourceID:    r.ResourceID,
		ActorID:       actorID,
		From:          from,
		To:            r.Status,
		Reason:        reason,
		At:            r.UpdatedAt,
	}
	if err := e.deps.Audit.Record(ctx, entry); err != nil {
		e.log.Ctx(ctx).Error("Failed to record audit entry",
			"reservation_id", r.ID,
			"to", r.Status,
			"error", err,
		)
	}
}

func (e *engine) emit(ctx context.Context, event model.Event) {
	if err := e.deps.Publisher.Publish(ctx, event); err != nil {
		metrics.PublishFailed(string(event.Type))
		e.log.Ctx(ctx).Warn("Failed to publish reservation event",
			"event_type", event.Type,
			"reservation_id", event.ReservationID,
			"error", err,
		)
	}
}

// begin opens a span and returns a func that closes it and records metrics.
func (e *engine) begin(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "reservations."+operation, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, metrics.Result(err))
		}
		span.SetAttributes(attribute.String("result", metrics.Result(err)))
		span.End()
		metrics.ObserveOperation(operation, start, err)
	}
}
