package patient

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"

	StatusActive   = "active"
	StatusInactive = "inactive"

	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

var validRoles = map[string]bool{RolePatient: true, RoleDoctor: true, RoleAdmin: true}

var validGenders = map[string]bool{GenderMale: true, GenderFemale: true, GenderOther: true}

// Profile is the persistent user record. Appointments keep their own
// snapshot of the patient fields, so edits here never reach existing
// appointments.
type Profile struct {
	ID         uuid.UUID `json:"id" bson:"_id"`
	ExternalID string    `json:"externalId" bson:"externalId"`
	Email      string    `json:"email" bson:"email"`
	Name       string    `json:"name" bson:"name"`
	Role       string    `json:"role" bson:"role"`
	Status     string    `json:"status" bson:"status"`

	PhoneNumber string     `json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty" bson:"dateOfBirth,omitempty"`
	Gender      string     `json:"gender,omitempty" bson:"gender,omitempty"`
	Address     string     `json:"address,omitempty" bson:"address,omitempty"`
	Occupation  string     `json:"occupation,omitempty" bson:"occupation,omitempty"`

	EmergencyContactName   string `json:"emergencyContactName,omitempty" bson:"emergencyContactName,omitempty"`
	EmergencyContactNumber string `json:"emergencyContactNumber,omitempty" bson:"emergencyContactNumber,omitempty"`
	InsuranceProvider      string `json:"insuranceProvider,omitempty" bson:"insuranceProvider,omitempty"`
	InsurancePolicyNumber  string `json:"insurancePolicyNumber,omitempty" bson:"insurancePolicyNumber,omitempty"`

	MedicalHistory       []string `json:"medicalHistory" bson:"medicalHistory"`
	Allergies            []string `json:"allergies" bson:"allergies"`
	CurrentMedications   []string `json:"currentMedications" bson:"currentMedications"`
	FamilyMedicalHistory string   `json:"familyMedicalHistory,omitempty" bson:"familyMedicalHistory,omitempty"`
	PastMedicalHistory   string   `json:"pastMedicalHistory,omitempty" bson:"pastMedicalHistory,omitempty"`

	IdentificationType   string `json:"identificationType,omitempty" bson:"identificationType,omitempty"`
	IdentificationNumber string `json:"identificationNumber,omitempty" bson:"identificationNumber,omitempty"`

	EmailNotifications bool `json:"emailNotifications" bson:"emailNotifications"`
	SMSNotifications   bool `json:"smsNotifications" bson:"smsNotifications"`
	PushNotifications  bool `json:"pushNotifications" bson:"pushNotifications"`

	// Doctor-only fields.
	Specializations []string             `json:"specializations,omitempty" bson:"specializations,omitempty"`
	LicenseNumber   string               `json:"licenseNumber,omitempty" bson:"licenseNumber,omitempty"`
	Availability    []AvailabilityWindow `json:"availability,omitempty" bson:"availability,omitempty"`

	AppointmentIDs []uuid.UUID `json:"appointmentIds" bson:"appointmentIds"`

	VersionID int       `json:"versionId" bson:"versionId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// IsDoctor reports whether the profile is an active doctor.
func (p *Profile) IsDoctor() bool {
	return p.Role == RoleDoctor && p.Status == StatusActive
}

// HasAppointment reports whether id is already in the back-reference list.
func (p *Profile) HasAppointment(id uuid.UUID) bool {
	for _, a := range p.AppointmentIDs {
		if a == id {
			return true
		}
	}
	return false
}

// FormData is the patient part of the appointment intake form.
type FormData struct {
	Name                   string `json:"name"`
	Email                  string `json:"email"`
	PhoneNumber            string `json:"phoneNumber"`
	DateOfBirth            string `json:"dateOfBirth"`
	Gender                 string `json:"gender"`
	Address                string `json:"address"`
	Occupation             string `json:"occupation"`
	EmergencyContactName   string `json:"emergencyContactName"`
	EmergencyContactNumber string `json:"emergencyContactNumber"`
	InsuranceProvider      string `json:"insuranceProvider"`
	InsurancePolicyNumber  string `json:"insurancePolicyNumber"`
	Allergies              string `json:"allergies"`
	CurrentMedication      string `json:"currentMedication"`
	FamilyMedicalHistory   string `json:"familyMedicalHistory"`
	PastMedicalHistory     string `json:"pastMedicalHistory"`
	IdentificationType     string `json:"identificationType"`
	IdentificationNumber   string `json:"identificationNumber"`
	EmailNotifications     bool   `json:"emailNotifications"`
	SMSNotifications       bool   `json:"smsNotifications"`
	PushNotifications      bool   `json:"pushNotifications"`
}

// ParseBirthDate accepts YYYY-MM-DD or an RFC 3339 timestamp. An empty
// string yields nil.
func ParseBirthDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return &d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date of birth %q", s)
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d, nil
}

// NormalizeEmail trims and lower-cases an address. Every stored and queried
// email goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// freeText turns a free-text form answer into the list stored on the profile.
func freeText(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	return []string{s}
}

// applyForm overwrites the profile fields the intake form carries.
func (p *Profile) applyForm(f FormData) {
	p.Email = NormalizeEmail(f.Email)
	p.Name = strings.TrimSpace(f.Name)
	p.PhoneNumber = f.PhoneNumber
	p.DateOfBirth, _ = ParseBirthDate(f.DateOfBirth)
	p.Gender = f.Gender
	p.Address = f.Address
	p.Occupation = f.Occupation
	p.EmergencyContactName = f.EmergencyContactName
	p.EmergencyContactNumber = f.EmergencyContactNumber
	p.InsuranceProvider = f.InsuranceProvider
	p.InsurancePolicyNumber = f.InsurancePolicyNumber
	p.Allergies = freeText(f.Allergies)
	p.CurrentMedications = freeText(f.CurrentMedication)
	p.FamilyMedicalHistory = f.FamilyMedicalHistory
	p.PastMedicalHistory = f.PastMedicalHistory
	p.IdentificationType = f.IdentificationType
	p.IdentificationNumber = f.IdentificationNumber
	p.EmailNotifications = f.EmailNotifications
	p.SMSNotifications = f.SMSNotifications
	p.PushNotifications = f.PushNotifications
}

// applyUpdate copies the caller-editable fields from in. Identity, role,
// status and the appointment list are left alone.
func (p *Profile) applyUpdate(in *Profile) {
	p.Email = NormalizeEmail(in.Email)
	p.Name = strings.TrimSpace(in.Name)
	p.PhoneNumber = in.PhoneNumber
	p.DateOfBirth = in.DateOfBirth
	p.Gender = in.Gender
	p.Address = in.Address
	p.Occupation = in.Occupation
	p.EmergencyContactName = in.EmergencyContactName
	p.EmergencyContactNumber = in.EmergencyContactNumber
	p.InsuranceProvider = in.InsuranceProvider
	p.InsurancePolicyNumber = in.InsurancePolicyNumber
	p.MedicalHistory = in.MedicalHistory
	p.Allergies = in.Allergies
	p.CurrentMedications = in.CurrentMedications
	p.FamilyMedicalHistory = in.FamilyMedicalHistory
	p.PastMedicalHistory = in.PastMedicalHistory
	p.IdentificationType = in.IdentificationType
	p.IdentificationNumber = in.IdentificationNumber
	p.EmailNotifications = in.EmailNotifications
	p.SMSNotifications = in.SMSNotifications
	p.PushNotifications = in.PushNotifications
	p.Specializations = in.Specializations
	p.LicenseNumber = in.LicenseNumber
	p.Availability = in.Availability
}

// normalizeLists replaces nil slices so both stores persist empty lists.
func (p *Profile) normalizeLists() {
	if p.MedicalHistory == nil {
		p.MedicalHistory = []string{}
	}
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	if p.CurrentMedications == nil {
		p.CurrentMedications = []string{}
	}
	if p.Specializations == nil {
		p.Specializations = []string{}
	}
	if p.Availability == nil {
		p.Availability = []AvailabilityWindow{}
	}
	if p.AppointmentIDs == nil {
		p.AppointmentIDs = []uuid.UUID{}
	}
}
