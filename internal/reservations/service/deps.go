package service

import (
	"context"
	"time"

	"calendra/internal/reservations/coordinator"
	"calendra/internal/reservations/events"
	"calendra/internal/reservations/policy"
	"calendra/internal/reservations/repository"
	"calendra/pkg/config"
	"calendra/pkg/identity"
	"calendra/pkg/logger"
	"calendra/pkg/model"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Authorizer decides whether actor may mutate r.
type Authorizer interface {
	CanModify(actor identity.Actor, r *model.Reservation) bool
}

type AuthorizerFunc func(actor identity.Actor, r *model.Reservation) bool

func (f AuthorizerFunc) CanModify(actor identity.Actor, r *model.Reservation) bool {
	return f(actor, r)
}

// OwnerOrPrivileged lets the requester and privileged actors through.
var OwnerOrPrivileged = AuthorizerFunc(func(actor identity.Actor, r *model.Reservation) bool {
	if actor.Privileged {
		return true
	}
	return !actor.IsZero() && actor.ID == r.RequesterID
})

type Dependencies struct {
	Store       repository.ReservationStore
	Resources   repository.ResourceRepository
	Audit       repository.AuditLog
	Coordinator coordinator.Coordinator
	Policy      policy.ConflictPolicy
	Publisher   events.Publisher
	Authorizer  Authorizer
	Clock       Clock
	Log         *logger.Logger
}

type Options struct {
	GraceWindow    time.Duration
	HoldTTL        time.Duration
	PersistTimeout time.Duration

	// ReloadCalendars re-reads the calendar from the store on every locked
	// operation. Required when several replicas share one store.
	ReloadCalendars bool

	SweepMaxRetries int
	SweepBackoff    time.Duration
	SweepBatchSize  int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		GraceWindow:     cfg.SubmitGraceWindow,
		HoldTTL:         cfg.HoldTTL,
		PersistTimeout:  cfg.PersistTimeout,
		ReloadCalendars: cfg.Coordinator == config.CoordinatorRedis,
		SweepMaxRetries: cfg.SweepMaxRetries,
		SweepBackoff:    cfg.SweepBackoff,
		SweepBatchSize:  cfg.SweepBatchSize,
	}
}

func (o Options) withDefaults() Options {
	if o.GraceWindow < 0 {
		o.GraceWindow = 0
	}
	if o.HoldTTL <= 0 {
		o.HoldTTL = config.DefaultHoldTTL
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = config.DefaultPersistTimeout
	}
	if o.SweepMaxRetries <= 0 {
		o.SweepMaxRetries = config.DefaultSweepMaxRetries
	}
	if o.SweepBackoff <= 0 {
		o.SweepBackoff = config.DefaultSweepBackoff
	}
	if o.SweepBatchSize <= 0 {
		o.SweepBatchSize = config.DefaultSweepBatchSize
	}
	return o
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, model.AuditEntry) error { return nil }

func (noopAudit) FindByReservation(context.Context, string) ([]model.AuditEntry, error) {
	return nil, nil
}
