package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/careline/careline/internal/domain/appointment"
	"github.com/careline/careline/internal/domain/patient"
	"github.com/careline/careline/internal/platform/apperr"
)

func bookingForm(email string) appointment.Form {
	return appointment.Form{
		FormData: patient.FormData{
			Name:               "Integration Patient",
			Email:              email,
			PhoneNumber:        "+15550001111",
			DateOfBirth:        "1985-04-12",
			Allergies:          "latex",
			EmailNotifications: true,
		},
		PrimaryPhysician:  "Dr. Adams",
		Schedule:          time.Now().Add(72 * time.Hour),
		Reason:            "annual physical",
		TreatmentConsent:  true,
		DisclosureConsent: true,
		PrivacyConsent:    true,
	}
}

func TestBooking_FormLinksProfile(t *testing.T) {
	ctx := context.Background()
	svc := newServices()
	email := uniqueEmail("form")

	first, err := svc.appointments.CreateFromForm(ctx, bookingForm(email), "")
	if err != nil {
		t.Fatalf("CreateFromForm: %v", err)
	}
	second, err := svc.appointments.CreateFromForm(ctx, bookingForm(email), "")
	if err != nil {
		t.Fatalf("CreateFromForm (repeat): %v", err)
	}
	if first.User.ID != second.User.ID {
		t.Fatalf("expected the profile to be reused, got %s and %s", first.User.ID, second.User.ID)
	}

	profile, err := svc.profiles.Get(ctx, first.User.ID)
	if err != nil {
		t.Fatalf("Get profile: %v", err)
	}
	if len(profile.AppointmentIDs) != 2 ||
		!profile.HasAppointment(first.Appointment.ID) || !profile.HasAppointment(second.Appointment.ID) {
		t.Errorf("expected both appointments linked, got %v", profile.AppointmentIDs)
	}
	if len(profile.Allergies) != 1 || profile.Allergies[0] != "latex" {
		t.Errorf("unexpected allergies %v", profile.Allergies)
	}

	items, err := svc.appointments.ListByEmail(ctx, email)
	if err != nil {
		t.Fatalf("ListByEmail: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(items))
	}
	if items[0].PatientEmail != email || items[0].Status != appointment.StatusPending {
		t.Errorf("unexpected snapshot %+v", items[0])
	}
}

func TestBooking_FailedFormWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc := newServices()
	email := uniqueEmail("rollback")

	f := bookingForm(email)
	missing := uuid.New()
	f.DoctorID = &missing
	if _, err := svc.appointments.CreateFromForm(ctx, f, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := svc.profiles.GetByEmail(ctx, email); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected no profile after a failed booking, got %v", err)
	}
}

func TestBooking_StaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	svc := newServices()

	res, err := svc.appointments.CreateFromForm(ctx, bookingForm(uniqueEmail("cas")), "")
	if err != nil {
		t.Fatalf("CreateFromForm: %v", err)
	}

	a1, err := svc.apptRepo.GetByID(ctx, res.Appointment.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	a2, err := svc.apptRepo.GetByID(ctx, res.Appointment.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	a1.Notes = "first writer"
	if err := svc.apptRepo.Update(ctx, a1); err != nil {
		t.Fatalf("Update: %v", err)
	}
	a2.Notes = "second writer"
	if err := svc.apptRepo.Update(ctx, a2); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict for stale version, got %v", err)
	}
}

func TestBooking_Lifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newServices()

	res, err := svc.appointments.CreateFromForm(ctx, bookingForm(uniqueEmail("life")), "")
	if err != nil {
		t.Fatalf("CreateFromForm: %v", err)
	}
	id := res.Appointment.ID

	a, err := svc.appointments.UpdateStatus(ctx, id, appointment.StatusConfirmed, false)
	if err != nil || a.Status != appointment.StatusConfirmed {
		t.Fatalf("UpdateStatus: %v", err)
	}

	next := time.Now().Add(96 * time.Hour)
	a, err = svc.appointments.Reschedule(ctx, id, next, "10:15 am")
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if a.AppointmentTime != "10:15 AM" {
		t.Errorf("expected normalized time, got %s", a.AppointmentTime)
	}

	if _, err := svc.appointments.Cancel(ctx, id, "travel"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := svc.appointments.Cancel(ctx, id, "again"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict on second cancel, got %v", err)
	}

	if err := svc.appointments.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.appointments.Get(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}
