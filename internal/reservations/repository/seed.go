package repository

import (
	"context"
	"errors"
	"fmt"

	reservationerrors "calendra/internal/reservations/errors"
	"calendra/pkg/model"
)

// DefaultResources is the classroom catalogue a fresh deployment starts with.
func DefaultResources() []model.Resource {
	return []model.Resource{
		{ID: "A101", Name: "A101 Studio", Kind: "studio", Capacity: 1, Seats: 20},
		{ID: "B202", Name: "B202 Lecture Hall", Kind: "lecture_hall", Capacity: 1, Seats: 50},
		{ID: "C303", Name: "C303 Lab", Kind: "lab", Capacity: 1, Seats: 30},
		{ID: "D404", Name: "D404 Seminar Room", Kind: "seminar_room", Capacity: 1, Seats: 15},
	}
}

// Seed creates every resource that does not exist yet and reports how many were added.
func Seed(ctx context.Context, repo ResourceRepository, resources []model.Resource) (int, error) {
	created := 0
	for i := range resources {
		resource := resources[i]
		err := repo.Create(ctx, &resource)
		if errors.Is(err, reservationerrors.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed resource %s: %w", resource.ID, err)
		}
		created++
	}
	return created, nil
}
