package patient

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careline/careline/internal/platform/apperr"
)

// Service owns the profile lifecycle and the link between profiles and the
// appointments booked for them.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "patient").Logger()}
}

// ValidateForm checks the patient part of an intake form.
func ValidateForm(f FormData) error {
	if strings.TrimSpace(f.Name) == "" {
		return apperr.Validation("name is required")
	}
	if err := validateEmail(f.Email); err != nil {
		return err
	}
	if f.Gender != "" && !validGenders[f.Gender] {
		return apperr.Validation("invalid gender: %s", f.Gender)
	}
	if _, err := ParseBirthDate(f.DateOfBirth); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Validation("invalid email: %s", email)
	}
	return nil
}

func validateProfile(p *Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperr.Validation("name is required")
	}
	if err := validateEmail(p.Email); err != nil {
		return err
	}
	if !validRoles[p.Role] {
		return apperr.Validation("invalid role: %s", p.Role)
	}
	if p.Gender != "" && !validGenders[p.Gender] {
		return apperr.Validation("invalid gender: %s", p.Gender)
	}
	if p.Role == RoleDoctor {
		if len(p.Specializations) == 0 {
			return apperr.Validation("a doctor needs at least one specialization")
		}
		if strings.TrimSpace(p.LicenseNumber) == "" {
			return apperr.Validation("a doctor needs a license number")
		}
	}
	for _, w := range p.Availability {
		if err := w.validate(); err != nil {
			return apperr.Validation("availability: %s", err.Error())
		}
	}
	return nil
}

// UpsertFromForm finds the profile for the form's email and overwrites it
// with the submitted values, or creates a patient profile when none exists.
// Profiles are matched by email only. externalID is the identity-provider
// subject of the caller and is given to a new profile unless it is empty or
// already owned by another profile, in which case a generated identifier is
// used.
func (s *Service) UpsertFromForm(ctx context.Context, f FormData, externalID string) (*Profile, error) {
	if err := ValidateForm(f); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByEmail(ctx, f.Email)
	switch {
	case err == nil:
		p.applyForm(f)
		if err := s.repo.Update(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	if externalID != "" {
		_, err := s.repo.GetByExternalID(ctx, externalID)
		switch {
		case err == nil:
			externalID = ""
		case !errors.Is(err, apperr.ErrNotFound):
			return nil, err
		}
	}
	if externalID == "" {
		externalID = "form-" + uuid.NewString()
	}
	p = &Profile{
		ExternalID: externalID,
		Role:       RolePatient,
		Status:     StatusActive,
	}
	p.applyForm(f)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("profile_id", p.ID.String()).Msg("profile created from intake form")
	return p, nil
}

// LinkAppointment appends appointmentID to the profile's appointment list.
// Linking the same id twice is a no-op.
func (s *Service) LinkAppointment(ctx context.Context, profileID, appointmentID uuid.UUID) error {
	return s.repo.AppendAppointment(ctx, profileID, appointmentID)
}

// Register creates a profile explicitly. The role defaults to patient.
func (s *Service) Register(ctx context.Context, p *Profile) error {
	p.Email = NormalizeEmail(p.Email)
	p.Name = strings.TrimSpace(p.Name)
	if p.Role == "" {
		p.Role = RolePatient
	}
	p.Status = StatusActive
	p.AppointmentIDs = nil
	if err := validateProfile(p); err != nil {
		return err
	}
	if strings.TrimSpace(p.ExternalID) == "" {
		return apperr.Validation("externalId is required")
	}

	if _, err := s.repo.GetByEmail(ctx, p.Email); err == nil {
		return apperr.Conflict("email %s is already registered", p.Email)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	s.logger.Info().Str("profile_id", p.ID.String()).Str("role", p.Role).Msg("profile registered")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *Service) GetByExternalID(ctx context.Context, externalID string) (*Profile, error) {
	return s.repo.GetByExternalID(ctx, externalID)
}

// UpdateOptions controls which protected fields an Update may touch.
type UpdateOptions struct {
	AllowRoleChange bool
}

// Update overwrites the editable fields of profile id with in. A non-zero
// in.VersionID must match the stored version.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in *Profile, opts UpdateOptions) (*Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.VersionID != 0 && in.VersionID != p.VersionID {
		return nil, apperr.Conflict("profile %s has version %d, not %d", id, p.VersionID, in.VersionID)
	}

	p.applyUpdate(in)
	if in.Role != "" && in.Role != p.Role {
		if !opts.AllowRoleChange {
			return nil, apperr.Validation("role can only be changed by an administrator")
		}
		p.Role = in.Role
	}
	if err := validateProfile(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Deactivate flips the profile to inactive. Profiles are never removed.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusInactive {
		return p, nil
	}
	p.Status = StatusInactive
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("profile_id", id.String()).Msg("profile deactivated")
	return p, nil
}

// ListDoctors returns active doctors, optionally filtered by specialization.
func (s *Service) ListDoctors(ctx context.Context, specialization string, limit, offset int) ([]*Profile, int, error) {
	return s.repo.ListDoctors(ctx, strings.TrimSpace(specialization), limit, offset)
}

// Doctor returns the active doctor profile with the given id.
func (s *Service) Doctor(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Validation("doctor %s does not exist", id)
	}
	if err != nil {
		return nil, err
	}
	if !p.IsDoctor() {
		return nil, apperr.Validation("profile %s is not an active doctor", id)
	}
	return p, nil
}
