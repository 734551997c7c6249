package appointment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careline/careline/internal/domain/patient"
	"github.com/careline/careline/internal/platform/apperr"
	"github.com/careline/careline/internal/platform/notification"
)

// ProfileLinker is the part of the patient service the lifecycle needs.
type ProfileLinker interface {
	UpsertFromForm(ctx context.Context, f patient.FormData, externalID string) (*patient.Profile, error)
	LinkAppointment(ctx context.Context, profileID, appointmentID uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*patient.Profile, error)
	GetByEmail(ctx context.Context, email string) (*patient.Profile, error)
	GetByExternalID(ctx context.Context, externalID string) (*patient.Profile, error)
	Doctor(ctx context.Context, id uuid.UUID) (*patient.Profile, error)
}

// TxRunner runs fn in one store transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier sends templated notifications.
type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

// TransitionObserver counts lifecycle transitions.
type TransitionObserver interface {
	ObserveTransition(from, to, outcome string)
}

// Service is the appointment lifecycle manager.
type Service struct {
	repo     Repository
	profiles ProfileLinker
	tx       TxRunner
	notifier Notifier
	observer TransitionObserver
	loc      *time.Location
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(repo Repository, profiles ProfileLinker, tx TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		tx:       tx,
		loc:      time.UTC,
		now:      time.Now,
		logger:   logger.With().Str("component", "appointment").Logger(),
	}
}

// SetLocation sets the zone used to derive and interpret appointment times.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func (s *Service) SetObserver(o TransitionObserver) { s.observer = o }

func (s *Service) observe(from, to, outcome string) {
	if s.observer != nil {
		s.observer.ObserveTransition(from, to, outcome)
	}
}

func requireConsents(treatment, disclosure, privacy bool) error {
	switch {
	case !treatment:
		return apperr.Validation("treatment consent is required")
	case !disclosure:
		return apperr.Validation("disclosure consent is required")
	case !privacy:
		return apperr.Validation("privacy consent is required")
	}
	return nil
}

// resolveDoctor checks the optional doctor reference and the doctor's
// declared availability. It fills DoctorName when the caller left it empty.
func (s *Service) resolveDoctor(ctx context.Context, a *Appointment) error {
	if a.DoctorID == nil {
		if strings.TrimSpace(a.DoctorName) == "" {
			return apperr.Validation("doctor is required")
		}
		return nil
	}
	doc, err := s.profiles.Doctor(ctx, *a.DoctorID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(a.DoctorName) == "" {
		a.DoctorName = doc.Name
	}
	at, err := a.ScheduledAt(s.loc)
	if err != nil {
		return apperr.Validation("%s", err.Error())
	}
	if !doc.Accepts(at) {
		return apperr.Validation("%s is not available on %s at %s", doc.Name, at.Format(dateLayout), a.AppointmentTime)
	}
	return nil
}

// Create books an appointment from a direct payload. The patient is
// resolved by PatientID, or by PatientEmail when no id is given.
func (s *Service) Create(ctx context.Context, a *Appointment) error {
	a.PatientEmail = patient.NormalizeEmail(a.PatientEmail)
	if strings.TrimSpace(a.Reason) == "" {
		return apperr.Validation("reason is required")
	}
	if a.AppointmentDate.IsZero() {
		return apperr.Validation("appointmentDate is required")
	}
	clock, err := ParseClock(a.AppointmentTime)
	if err != nil {
		return apperr.Validation("%s", err.Error())
	}
	a.AppointmentTime = clock
	a.AppointmentDate = calendarDate(a.AppointmentDate, time.UTC)
	if err := requireConsents(a.TreatmentConsent, a.DisclosureConsent, a.PrivacyConsent); err != nil {
		return err
	}

	var p *patient.Profile
	switch {
	case a.PatientID != uuid.Nil:
		p, err = s.profiles.Get(ctx, a.PatientID)
	case a.PatientEmail != "":
		p, err = s.profiles.GetByEmail(ctx, a.PatientEmail)
	default:
		return apperr.Validation("patientId or patientEmail is required")
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Validation("patient profile does not exist")
	}
	if err != nil {
		return err
	}
	if err := s.resolveDoctor(ctx, a); err != nil {
		return err
	}

	a.ID = uuid.Nil
	a.Status = StatusPending
	a.CancellationReason = ""
	a.snapshot(p)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
		return s.profiles.LinkAppointment(ctx, p.ID, a.ID)
	})
	if err != nil {
		return err
	}

	s.observe("", StatusPending, "created")
	s.notify(ctx, a, notification.TemplateAppointmentBooked)
	return nil
}

func validateForm(f Form) error {
	if err := patient.ValidateForm(f.FormData); err != nil {
		return err
	}
	if f.Schedule.IsZero() {
		return apperr.Validation("schedule is required")
	}
	if strings.TrimSpace(f.Reason) == "" {
		return apperr.Validation("reason is required")
	}
	if f.DoctorID == nil && strings.TrimSpace(f.PrimaryPhysician) == "" {
		return apperr.Validation("primaryPhysician is required")
	}
	return requireConsents(f.TreatmentConsent, f.DisclosureConsent, f.PrivacyConsent)
}

// CreateFromForm upserts the patient profile, creates a pending appointment
// and links it to the profile in a single store transaction.
func (s *Service) CreateFromForm(ctx context.Context, f Form, externalID string) (*FormResult, error) {
	if err := validateForm(f); err != nil {
		return nil, err
	}

	a := &Appointment{
		DoctorName:         strings.TrimSpace(f.PrimaryPhysician),
		DoctorID:           f.DoctorID,
		AppointmentDate:    calendarDate(f.Schedule, s.loc),
		AppointmentTime:    f.Schedule.In(s.loc).Format(TimeLayout),
		Reason:             strings.TrimSpace(f.Reason),
		Notes:              f.Note,
		Status:             StatusPending,
		TreatmentConsent:   f.TreatmentConsent,
		DisclosureConsent:  f.DisclosureConsent,
		PrivacyConsent:     f.PrivacyConsent,
		EmailNotifications: f.EmailNotifications,
		SMSNotifications:   f.SMSNotifications,
		PushNotifications:  f.PushNotifications,
	}
	if err := s.resolveDoctor(ctx, a); err != nil {
		return nil, err
	}

	var profile *patient.Profile
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.profiles.UpsertFromForm(ctx, f.FormData, externalID)
		if err != nil {
			return err
		}
		a.snapshot(p)
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
		if err := s.profiles.LinkAppointment(ctx, p.ID, a.ID); err != nil {
			return err
		}
		profile, err = s.profiles.Get(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("patient_id", profile.ID.String()).
		Msg("appointment booked from form")
	s.observe("", StatusPending, "created")
	s.notify(ctx, a, notification.TemplateAppointmentBooked)
	return &FormResult{Appointment: a, User: profile}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateStatus moves the appointment to status through Transition. force
// bypasses the transition graph.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string, force bool) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := a.Status
	if err := Transition(from, status, TransitionOptions{Force: force}); err != nil {
		s.observe(from, status, "rejected")
		return nil, err
	}

	a.Status = status
	if status != StatusCancelled {
		a.CancellationReason = ""
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	outcome := "applied"
	if force {
		outcome = "forced"
		s.logger.Warn().Str("appointment_id", id.String()).Str("from", from).Str("to", status).Msg("forced status change")
	}
	s.observe(from, status, outcome)
	if from != status {
		s.notify(ctx, a, notification.TemplateAppointmentStatus)
	}
	return a, nil
}

// Reschedule moves a non-terminal appointment to a new date and time that
// is not in the past.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, date time.Time, clock string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Transition(a.Status, a.Status, TransitionOptions{}); err != nil {
		s.observe(a.Status, a.Status, "rejected")
		return nil, err
	}

	norm, err := ParseClock(clock)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	date = calendarDate(date, time.UTC)
	at, err := combine(date, norm, s.loc)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	if at.Before(s.now()) {
		return nil, apperr.Validation("cannot reschedule to a time in the past")
	}

	a.AppointmentDate = date
	a.AppointmentTime = norm
	if err := s.resolveDoctor(ctx, a); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	s.observe(a.Status, a.Status, "rescheduled")
	s.notify(ctx, a, notification.TemplateAppointmentRescheduled)
	return a, nil
}

// Cancel moves the appointment to cancelled. Cancelling a terminal
// appointment, including an already cancelled one, is a conflict.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := a.Status
	if err := Transition(from, StatusCancelled, TransitionOptions{}); err != nil {
		s.observe(from, StatusCancelled, "rejected")
		return nil, err
	}

	a.Status = StatusCancelled
	a.CancellationReason = strings.TrimSpace(reason)
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	s.observe(from, StatusCancelled, "applied")
	s.notify(ctx, a, notification.TemplateAppointmentCancelled)
	return a, nil
}

// Delete removes the appointment permanently. The patient profile keeps the
// id in its appointment list.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("appointment_id", id.String()).Msg("appointment deleted")
	return nil
}

func (s *Service) ListByEmail(ctx context.Context, email string) ([]*Appointment, error) {
	return s.repo.ListByEmail(ctx, patient.NormalizeEmail(email))
}

// ListByPatient accepts a profile id or an identity-provider subject. An
// unknown subject yields an empty list.
func (s *Service) ListByPatient(ctx context.Context, ref string) ([]*Appointment, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return s.repo.ListByPatient(ctx, id)
	}
	p, err := s.profiles.GetByExternalID(ctx, ref)
	if errors.Is(err, apperr.ErrNotFound) {
		return []*Appointment{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, p.ID)
}

// Upcoming returns the patient's pending and confirmed appointments from
// today on.
func (s *Service) Upcoming(ctx context.Context, ref string) ([]*Appointment, error) {
	all, err := s.ListByPatient(ctx, ref)
	if err != nil {
		return nil, err
	}
	today := calendarDate(s.now(), s.loc)
	out := make([]*Appointment, 0, len(all))
	for _, a := range all {
		if !IsTerminal(a.Status) && !a.AppointmentDate.Before(today) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Service) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Appointment, int, error) {
	if params.Status != "" && !ValidStatus(params.Status) {
		return nil, 0, apperr.Validation("invalid status: %q", params.Status)
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// notify sends the template for a to the patient on every channel they
// opted into. Failures are logged only.
func (s *Service) notify(ctx context.Context, a *Appointment, templateID string) {
	if s.notifier == nil {
		return
	}
	data := map[string]string{
		"patient_name": a.PatientName,
		"doctor":       a.DoctorName,
		"date":         a.AppointmentDate.Format(dateLayout),
		"time":         a.AppointmentTime,
		"status":       a.Status,
		"reason":       a.CancellationReason,
	}
	if a.EmailNotifications && a.PatientEmail != "" {
		s.send(ctx, a, templateID, data, a.PatientEmail)
	}
	if a.SMSNotifications && a.PatientPhone != "" {
		s.send(ctx, a, notification.SMSTemplateID(templateID), data, a.PatientPhone)
	}
}

func (s *Service) send(ctx context.Context, a *Appointment, templateID string, data map[string]string, recipient string) {
	if _, err := s.notifier.SendFromTemplate(ctx, templateID, data, recipient); err != nil {
		s.logger.Warn().Err(err).
			Str("appointment_id", a.ID.String()).
			Str("template", templateID).
			Msg("appointment notification failed")
	}
}
