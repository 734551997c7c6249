package patient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careline/careline/internal/platform/apperr"
)

func newTestService() (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func sampleForm() FormData {
	return FormData{
		Name:               "Jane Doe",
		Email:              "Jane@Example.com",
		PhoneNumber:        "+15550100",
		DateOfBirth:        "1990-05-01",
		Gender:             GenderFemale,
		Allergies:          "penicillin",
		CurrentMedication:  "ibuprofen",
		EmailNotifications: true,
	}
}

func TestUpsertFromForm_CreatesProfile(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.UpsertFromForm(context.Background(), sampleForm(), "auth0|abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("expected ID to be assigned")
	}
	if p.Email != "jane@example.com" {
		t.Errorf("expected lower-cased email, got %s", p.Email)
	}
	if p.Role != RolePatient || p.Status != StatusActive {
		t.Errorf("expected active patient, got %s/%s", p.Role, p.Status)
	}
	if p.ExternalID != "auth0|abc" {
		t.Errorf("expected external id auth0|abc, got %s", p.ExternalID)
	}
	if len(p.Allergies) != 1 || p.Allergies[0] != "penicillin" {
		t.Errorf("expected single allergy entry, got %v", p.Allergies)
	}
	if p.VersionID != 1 {
		t.Errorf("expected version 1, got %d", p.VersionID)
	}
	if p.DateOfBirth == nil || !p.DateOfBirth.Equal(time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected parsed date of birth, got %v", p.DateOfBirth)
	}
}

func TestUpsertFromForm_GeneratesExternalID(t *testing.T) {
	svc, _ := newTestService()
	p, err := svc.UpsertFromForm(context.Background(), sampleForm(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ExternalID == "" {
		t.Error("expected generated external id")
	}
}

func TestUpsertFromForm_OverwritesExisting(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.UpsertFromForm(ctx, sampleForm(), "auth0|abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f := sampleForm()
	f.Email = "JANE@example.COM"
	f.Allergies = ""
	f.CurrentMedication = "metformin"
	f.Address = "1 Main St"
	second, err := svc.UpsertFromForm(ctx, f, "auth0|abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same profile, got %s and %s", first.ID, second.ID)
	}
	if len(second.Allergies) != 0 {
		t.Errorf("expected allergies replaced by empty list, got %v", second.Allergies)
	}
	if len(second.CurrentMedications) != 1 || second.CurrentMedications[0] != "metformin" {
		t.Errorf("expected medications replaced, got %v", second.CurrentMedications)
	}
	if second.Address != "1 Main St" {
		t.Errorf("expected address overwritten, got %q", second.Address)
	}
	if second.VersionID != 2 {
		t.Errorf("expected version 2, got %d", second.VersionID)
	}
}

func TestUpsertFromForm_StaffSubjectKeepsProfilesApart(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	staff := &Profile{ExternalID: "staff-sub", Email: "desk@example.com", Name: "Front Desk"}
	if err := svc.Register(ctx, staff); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	alice := sampleForm()
	alice.Name = "Alice"
	alice.Email = "alice@example.com"
	bob := sampleForm()
	bob.Name = "Bob"
	bob.Email = "bob@example.com"

	a, err := svc.UpsertFromForm(ctx, alice, "staff-sub")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := svc.UpsertFromForm(ctx, bob, "staff-sub")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.ID == b.ID || a.ID == staff.ID || b.ID == staff.ID {
		t.Fatalf("expected three distinct profiles, got staff=%s alice=%s bob=%s", staff.ID, a.ID, b.ID)
	}
	if a.ExternalID == "staff-sub" || b.ExternalID == "staff-sub" || a.ExternalID == b.ExternalID {
		t.Errorf("expected generated external ids, got %q and %q", a.ExternalID, b.ExternalID)
	}

	gotAlice, err := svc.GetByEmail(ctx, "alice@example.com")
	if err != nil || gotAlice.Name != "Alice" {
		t.Errorf("expected alice's profile intact, got %+v (%v)", gotAlice, err)
	}
	gotStaff, err := svc.GetByExternalID(ctx, "staff-sub")
	if err != nil || gotStaff.Email != "desk@example.com" || gotStaff.Name != "Front Desk" {
		t.Errorf("expected staff profile untouched, got %+v (%v)", gotStaff, err)
	}
}

func TestUpsertFromForm_UnclaimedSubjectIsUsed(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.UpsertFromForm(ctx, sampleForm(), "auth0|abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := sampleForm()
	other.Email = "other@example.com"
	second, err := svc.UpsertFromForm(ctx, other, "auth0|abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a new profile for a different email")
	}
	if first.ExternalID != "auth0|abc" || second.ExternalID == "auth0|abc" {
		t.Errorf("unexpected external ids %q and %q", first.ExternalID, second.ExternalID)
	}
}

func TestUpsertFromForm_Validation(t *testing.T) {
	svc, repo := newTestService()
	tests := []struct {
		name string
		mod  func(*FormData)
	}{
		{"missing name", func(f *FormData) { f.Name = " " }},
		{"missing email", func(f *FormData) { f.Email = "" }},
		{"bad email", func(f *FormData) { f.Email = "not-an-email" }},
		{"bad gender", func(f *FormData) { f.Gender = "unknown" }},
		{"bad birth date", func(f *FormData) { f.DateOfBirth = "01/05/1990" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := sampleForm()
			tt.mod(&f)
			_, err := svc.UpsertFromForm(context.Background(), f, "")
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if len(repo.store) != 0 {
		t.Errorf("expected no writes, got %d profiles", len(repo.store))
	}
}

func TestLinkAppointment_Idempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p, _ := svc.UpsertFromForm(ctx, sampleForm(), "")

	apptID := uuid.New()
	for i := 0; i < 2; i++ {
		if err := svc.LinkAppointment(ctx, p.ID, apptID); err != nil {
			t.Fatalf("link %d: %v", i, err)
		}
	}
	got, _ := svc.Get(ctx, p.ID)
	if len(got.AppointmentIDs) != 1 || got.AppointmentIDs[0] != apptID {
		t.Errorf("expected exactly one linked appointment, got %v", got.AppointmentIDs)
	}

	if err := svc.LinkAppointment(ctx, uuid.New(), apptID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for unknown profile, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	p := &Profile{Name: "Jane", Email: "Jane@Example.com", ExternalID: "sub-1"}
	if err := svc.Register(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Role != RolePatient || p.Email != "jane@example.com" {
		t.Errorf("unexpected profile: role=%s email=%s", p.Role, p.Email)
	}

	dup := &Profile{Name: "Other", Email: "jane@example.com", ExternalID: "sub-2"}
	if err := svc.Register(ctx, dup); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict for duplicate email, got %v", err)
	}

	noSub := &Profile{Name: "Other", Email: "other@example.com"}
	if err := svc.Register(ctx, noSub); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error without external id, got %v", err)
	}
}

func TestRegister_DoctorRequiresSpecializationAndLicense(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	doc := &Profile{Name: "Dr. Patel", Email: "patel@example.com", ExternalID: "doc-1", Role: RoleDoctor}
	if err := svc.Register(ctx, doc); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	doc.Specializations = []string{"cardiology"}
	if err := svc.Register(ctx, doc); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error without license, got %v", err)
	}
	doc.LicenseNumber = "LIC-1"
	doc.Availability = []AvailabilityWindow{{Weekday: time.Monday, FromMinute: 600, ToMinute: 540}}
	if err := svc.Register(ctx, doc); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for inverted window, got %v", err)
	}
	doc.Availability[0].ToMinute = 720
	if err := svc.Register(ctx, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p := &Profile{Name: "Jane", Email: "jane@example.com", ExternalID: "sub-1"}
	if err := svc.Register(ctx, p); err != nil {
		t.Fatalf("register: %v", err)
	}

	in := &Profile{Name: "Jane Q", Email: "jane@example.com", Address: "2 Elm", VersionID: 1}
	got, err := svc.Update(ctx, p.ID, in, UpdateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Jane Q" || got.Address != "2 Elm" || got.VersionID != 2 {
		t.Errorf("unexpected result: %+v", got)
	}
	if got.ExternalID != "sub-1" {
		t.Errorf("external id must not change, got %s", got.ExternalID)
	}

	stale := &Profile{Name: "Jane", Email: "jane@example.com", VersionID: 1}
	if _, err := svc.Update(ctx, p.ID, stale, UpdateOptions{}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict for stale version, got %v", err)
	}

	promote := &Profile{Name: "Jane", Email: "jane@example.com", Role: RoleAdmin}
	if _, err := svc.Update(ctx, p.ID, promote, UpdateOptions{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected role change to be rejected, got %v", err)
	}
	if _, err := svc.Update(ctx, p.ID, promote, UpdateOptions{AllowRoleChange: true}); err != nil {
		t.Errorf("expected admin role change to succeed, got %v", err)
	}

	if _, err := svc.Update(ctx, uuid.New(), in, UpdateOptions{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDeactivate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p := &Profile{Name: "Jane", Email: "jane@example.com", ExternalID: "sub-1"}
	_ = svc.Register(ctx, p)

	got, err := svc.Deactivate(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusInactive {
		t.Errorf("expected inactive, got %s", got.Status)
	}
	again, err := svc.Deactivate(ctx, p.ID)
	if err != nil || again.Status != StatusInactive {
		t.Errorf("expected repeated deactivate to be a no-op, got %v", err)
	}
}

func registerDoctor(t *testing.T, svc *Service, name, spec string) *Profile {
	t.Helper()
	d := &Profile{
		Name:            name,
		Email:           uuid.NewString() + "@clinic.test",
		ExternalID:      uuid.NewString(),
		Role:            RoleDoctor,
		Specializations: []string{spec},
		LicenseNumber:   "LIC-" + name,
	}
	if err := svc.Register(context.Background(), d); err != nil {
		t.Fatalf("register doctor: %v", err)
	}
	return d
}

func TestListDoctorsAndDoctor(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	b := registerDoctor(t, svc, "Dr. B", "cardiology")
	registerDoctor(t, svc, "Dr. A", "dermatology")
	patient := &Profile{Name: "P", Email: "p@example.com", ExternalID: "p"}
	_ = svc.Register(ctx, patient)

	all, total, err := svc.ListDoctors(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(all) != 2 || all[0].Name != "Dr. A" {
		t.Errorf("expected two doctors sorted by name, got %d", total)
	}

	cardio, total, _ := svc.ListDoctors(ctx, "cardiology", 10, 0)
	if total != 1 || cardio[0].ID != b.ID {
		t.Errorf("expected only the cardiologist, got %d", total)
	}

	if _, err := svc.Doctor(ctx, b.ID); err != nil {
		t.Errorf("expected doctor lookup to succeed, got %v", err)
	}
	if _, err := svc.Doctor(ctx, patient.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for non-doctor, got %v", err)
	}
	if _, err := svc.Doctor(ctx, uuid.New()); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for unknown doctor, got %v", err)
	}

	_, _ = svc.Deactivate(ctx, b.ID)
	if _, err := svc.Doctor(ctx, b.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected inactive doctor to be rejected, got %v", err)
	}
}
