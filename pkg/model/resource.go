package model

import "time"

type Resource struct {
	ID        string    `json:"id" bson:"_id" validate:"omitempty,identifier"`
	Name      string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Kind      string    `json:"kind,omitempty" bson:"kind,omitempty" validate:"omitempty,max=50"`
	Capacity  int       `json:"capacity" bson:"capacity" validate:"omitempty,min=1,max=1000"`
	Seats     int       `json:"seats,omitempty" bson:"seats,omitempty" validate:"omitempty,min=1,max=10000"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// EffectiveCapacity treats an unset capacity as exclusive use.
func (r *Resource) EffectiveCapacity() int {
	if r == nil || r.Capacity < 1 {
		return 1
	}
	return r.Capacity
}
