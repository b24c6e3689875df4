package service

import (
	"context"
	"sync"

	"calendra/internal/reservations/repository"
	"calendra/internal/reservations/validator"
	"calendra/pkg/logger"
	"calendra/pkg/model"
	"calendra/pkg/sanitizer"
)

type ResourceService interface {
	Create(ctx context.Context, resource *model.Resource) error
	GetByID(ctx context.Context, id string) (*model.Resource, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Resource, int64, error)
}

type resourceService struct {
	repo      repository.ResourceRepository
	validator *validator.ReservationValidator
	log       *logger.Logger
}

func NewResourceService(repo repository.ResourceRepository, validator *validator.ReservationValidator, log *logger.Logger) ResourceService {
	return &resourceService{
		repo:      repo,
		validator: validator,
		log:       log.Component("resource-service"),
	}
}

func (s *resourceService) Create(ctx context.Context, resource *model.Resource) error {
	s.sanitize(resource)

	if err := s.validator.ValidateResource(resource); err != nil {
		s.log.Ctx(ctx).Warn("Resource validation failed",
			"name", resource.Name,
			"error", err,
		)
		return err
	}

	resource.CreatedAt = SystemClock{}.Now()
	if err := s.repo.Create(ctx, resource); err != nil {
		s.log.Ctx(ctx).Error("Failed to create resource",
			"resource_id", resource.ID,
			"error", err,
		)
		return err
	}

	s.log.Ctx(ctx).Info("Resource created",
		"resource_id", resource.ID,
		"capacity", resource.Capacity,
	)
	return nil
}

func (s *resourceService) GetByID(ctx context.Context, id string) (*model.Resource, error) {
	if err := s.validator.ValidateID("id", id); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *resourceService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Resource, int64, error) {
	var (
		count     int64
		resources []*model.Resource
		errCount  error
		errFind   error
		wg        sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
	}()

	go func() {
		defer wg.Done()
		resources, errFind = s.repo.FindAll(ctx, limit, offset)
	}()

	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return resources, count, nil
}

func (s *resourceService) sanitize(resource *model.Resource) {
	resource.ID = sanitizer.NormalizeIdentifier(resource.ID)
	resource.Name = sanitizer.NormalizeName(resource.Name)
	resource.Kind = sanitizer.NormalizeKind(resource.Kind)
}
