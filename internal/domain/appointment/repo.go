package appointment

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists appointments. Listings are ordered by appointment date
// ascending, then creation time descending. Update compares a.VersionID with
// the stored version and fails with a conflict when they differ.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByEmail(ctx context.Context, email string) ([]*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Appointment, int, error)
}
