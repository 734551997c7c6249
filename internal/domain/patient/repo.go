package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists profiles. Update compares p.VersionID with the stored
// version and fails with a conflict when they differ; on success p carries
// the new version.
type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	GetByExternalID(ctx context.Context, externalID string) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
	AppendAppointment(ctx context.Context, profileID, appointmentID uuid.UUID) error
	ListDoctors(ctx context.Context, specialization string, limit, offset int) ([]*Profile, int, error)
}
