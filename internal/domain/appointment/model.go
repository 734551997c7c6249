package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careline/careline/internal/domain/patient"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// TimeLayout is the display format of AppointmentTime.
const TimeLayout = "03:04 PM"

const dateLayout = "2006-01-02"

// Appointment is a booked visit. The patient fields are a snapshot taken at
// creation and are not resynced when the profile changes later.
type Appointment struct {
	ID        uuid.UUID `json:"id" bson:"_id"`
	PatientID uuid.UUID `json:"patientId" bson:"patientId"`

	PatientEmail           string     `json:"patientEmail" bson:"patientEmail"`
	PatientName            string     `json:"patientName" bson:"patientName"`
	PatientPhone           string     `json:"patientPhone,omitempty" bson:"patientPhone,omitempty"`
	PatientDateOfBirth     *time.Time `json:"patientDateOfBirth,omitempty" bson:"patientDateOfBirth,omitempty"`
	PatientGender          string     `json:"patientGender,omitempty" bson:"patientGender,omitempty"`
	PatientAddress         string     `json:"patientAddress,omitempty" bson:"patientAddress,omitempty"`
	Occupation             string     `json:"occupation,omitempty" bson:"occupation,omitempty"`
	EmergencyContactName   string     `json:"emergencyContactName,omitempty" bson:"emergencyContactName,omitempty"`
	EmergencyContactNumber string     `json:"emergencyContactNumber,omitempty" bson:"emergencyContactNumber,omitempty"`
	InsuranceProvider      string     `json:"insuranceProvider,omitempty" bson:"insuranceProvider,omitempty"`
	InsurancePolicyNumber  string     `json:"insurancePolicyNumber,omitempty" bson:"insurancePolicyNumber,omitempty"`
	Allergies              []string   `json:"allergies" bson:"allergies"`
	CurrentMedications     []string   `json:"currentMedications" bson:"currentMedications"`
	FamilyMedicalHistory   string     `json:"familyMedicalHistory,omitempty" bson:"familyMedicalHistory,omitempty"`
	PastMedicalHistory     string     `json:"pastMedicalHistory,omitempty" bson:"pastMedicalHistory,omitempty"`
	IdentificationType     string     `json:"identificationType,omitempty" bson:"identificationType,omitempty"`
	IdentificationNumber   string     `json:"identificationNumber,omitempty" bson:"identificationNumber,omitempty"`

	DoctorName string     `json:"doctorName" bson:"doctorName"`
	DoctorID   *uuid.UUID `json:"doctorId,omitempty" bson:"doctorId,omitempty"`
	// AppointmentDate is the calendar date, stored as midnight UTC.
	AppointmentDate    time.Time `json:"appointmentDate" bson:"appointmentDate"`
	AppointmentTime    string    `json:"appointmentTime" bson:"appointmentTime"`
	Reason             string    `json:"reason" bson:"reason"`
	Notes              string    `json:"notes,omitempty" bson:"notes,omitempty"`
	Status             string    `json:"status" bson:"status"`
	CancellationReason string    `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`

	TreatmentConsent  bool `json:"treatmentConsent" bson:"treatmentConsent"`
	DisclosureConsent bool `json:"disclosureConsent" bson:"disclosureConsent"`
	PrivacyConsent    bool `json:"privacyConsent" bson:"privacyConsent"`

	EmailNotifications bool `json:"emailNotifications" bson:"emailNotifications"`
	SMSNotifications   bool `json:"smsNotifications" bson:"smsNotifications"`
	PushNotifications  bool `json:"pushNotifications" bson:"pushNotifications"`

	VersionID int       `json:"versionId" bson:"versionId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// snapshot copies the patient fields of p onto the appointment.
func (a *Appointment) snapshot(p *patient.Profile) {
	a.PatientID = p.ID
	a.PatientEmail = p.Email
	a.PatientName = p.Name
	a.PatientPhone = p.PhoneNumber
	a.PatientDateOfBirth = p.DateOfBirth
	a.PatientGender = p.Gender
	a.PatientAddress = p.Address
	a.Occupation = p.Occupation
	a.EmergencyContactName = p.EmergencyContactName
	a.EmergencyContactNumber = p.EmergencyContactNumber
	a.InsuranceProvider = p.InsuranceProvider
	a.InsurancePolicyNumber = p.InsurancePolicyNumber
	a.Allergies = append([]string{}, p.Allergies...)
	a.CurrentMedications = append([]string{}, p.CurrentMedications...)
	a.FamilyMedicalHistory = p.FamilyMedicalHistory
	a.PastMedicalHistory = p.PastMedicalHistory
	a.IdentificationType = p.IdentificationType
	a.IdentificationNumber = p.IdentificationNumber
}

func (a *Appointment) normalizeLists() {
	if a.Allergies == nil {
		a.Allergies = []string{}
	}
	if a.CurrentMedications == nil {
		a.CurrentMedications = []string{}
	}
}

// ScheduledAt combines AppointmentDate and AppointmentTime into an instant
// in loc.
func (a *Appointment) ScheduledAt(loc *time.Location) (time.Time, error) {
	return combine(a.AppointmentDate, a.AppointmentTime, loc)
}

// Form is the intake form submitted by a patient booking an appointment.
type Form struct {
	patient.FormData

	PrimaryPhysician  string     `json:"primaryPhysician"`
	DoctorID          *uuid.UUID `json:"doctorId,omitempty"`
	Schedule          time.Time  `json:"schedule"`
	Reason            string     `json:"reason"`
	Note              string     `json:"note"`
	TreatmentConsent  bool       `json:"treatmentConsent"`
	DisclosureConsent bool       `json:"disclosureConsent"`
	PrivacyConsent    bool       `json:"privacyConsent"`
}

// FormResult is returned by CreateFromForm.
type FormResult struct {
	Appointment *Appointment     `json:"appointment"`
	User        *patient.Profile `json:"user"`
}

// SearchParams filters Search. Zero values match everything.
type SearchParams struct {
	Status   string
	Date     *time.Time
	DoctorID *uuid.UUID
}

// calendarDate returns the date of t in loc as midnight UTC.
func calendarDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar date it names in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return calendarDate(t, loc), nil
}

var clockLayouts = []string{TimeLayout, "3:04 PM", "03:04PM", "3:04PM", "15:04"}

// ParseClock reads a time of day and returns it in TimeLayout.
func ParseClock(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(TimeLayout), nil
		}
	}
	return "", fmt.Errorf("invalid time %q", s)
}

func combine(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	norm, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	tod, _ := time.Parse(TimeLayout, norm)
	y, m, d := date.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), 0, 0, loc), nil
}
