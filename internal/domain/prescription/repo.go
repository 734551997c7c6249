package prescription

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	// ListByUser returns the user's prescriptions, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Prescription, error)
	// SetSummary stores summary and status and refreshes UpdatedAt on p.
	SetSummary(ctx context.Context, p *Prescription) error
	Delete(ctx context.Context, id uuid.UUID) error
}
