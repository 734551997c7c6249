package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/careline/careline/internal/domain/patient"
	"github.com/careline/careline/internal/platform/apperr"
	"github.com/careline/careline/internal/platform/db"
)

type appointmentRepoPG struct{ pool db.Querier }

func NewRepoPG(pool db.Querier) Repository { return &appointmentRepoPG{pool: pool} }

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `id, patient_id, patient_email, patient_name, patient_phone,
	patient_date_of_birth, patient_gender, patient_address, occupation,
	emergency_contact_name, emergency_contact_number, insurance_provider, insurance_policy_number,
	allergies, current_medications, family_medical_history, past_medical_history,
	identification_type, identification_number,
	doctor_name, doctor_id, appointment_date, appointment_time, reason, notes,
	status, cancellation_reason, treatment_consent, disclosure_consent, privacy_consent,
	email_notifications, sms_notifications, push_notifications,
	version_id, created_at, updated_at`

const listOrder = ` ORDER BY appointment_date ASC, created_at DESC`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.PatientEmail, &a.PatientName, &a.PatientPhone,
		&a.PatientDateOfBirth, &a.PatientGender, &a.PatientAddress, &a.Occupation,
		&a.EmergencyContactName, &a.EmergencyContactNumber, &a.InsuranceProvider, &a.InsurancePolicyNumber,
		&a.Allergies, &a.CurrentMedications, &a.FamilyMedicalHistory, &a.PastMedicalHistory,
		&a.IdentificationType, &a.IdentificationNumber,
		&a.DoctorName, &a.DoctorID, &a.AppointmentDate, &a.AppointmentTime, &a.Reason, &a.Notes,
		&a.Status, &a.CancellationReason, &a.TreatmentConsent, &a.DisclosureConsent, &a.PrivacyConsent,
		&a.EmailNotifications, &a.SMSNotifications, &a.PushNotifications,
		&a.VersionID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment")
	}
	if err != nil {
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	a.VersionID = 1
	a.normalizeLists()

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (`+apptCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
			$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35,$36)`,
		a.ID, a.PatientID, a.PatientEmail, a.PatientName, a.PatientPhone,
		a.PatientDateOfBirth, a.PatientGender, a.PatientAddress, a.Occupation,
		a.EmergencyContactName, a.EmergencyContactNumber, a.InsuranceProvider, a.InsurancePolicyNumber,
		a.Allergies, a.CurrentMedications, a.FamilyMedicalHistory, a.PastMedicalHistory,
		a.IdentificationType, a.IdentificationNumber,
		a.DoctorName, a.DoctorID, a.AppointmentDate, a.AppointmentTime, a.Reason, a.Notes,
		a.Status, a.CancellationReason, a.TreatmentConsent, a.DisclosureConsent, a.PrivacyConsent,
		a.EmailNotifications, a.SMSNotifications, a.PushNotifications,
		a.VersionID, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

// Update writes the mutable lifecycle fields. Snapshot fields are never
// rewritten.
func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET status=$3, appointment_date=$4, appointment_time=$5,
			cancellation_reason=$6, notes=$7,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND version_id = $2
		RETURNING version_id, updated_at`,
		a.ID, a.VersionID, a.Status, a.AppointmentDate, a.AppointmentTime,
		a.CancellationReason, a.Notes,
	).Scan(&a.VersionID, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM appointments WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check appointment: %w", err)
		}
		if !exists {
			return apperr.NotFound("appointment")
		}
		return apperr.Conflict("appointment %s was modified concurrently", a.ID)
	}
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment")
	}
	return nil
}

func (r *appointmentRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()
	items := []*Appointment{}
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListByEmail(ctx context.Context, email string) ([]*Appointment, error) {
	return r.list(ctx, `SELECT `+apptCols+` FROM appointments WHERE patient_email = $1`+listOrder, patient.NormalizeEmail(email))
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return r.list(ctx, `SELECT `+apptCols+` FROM appointments WHERE patient_id = $1`+listOrder, patientID)
}

func (r *appointmentRepoPG) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if params.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, params.Status)
		idx++
	}
	if params.Date != nil {
		where += fmt.Sprintf(` AND appointment_date = $%d`, idx)
		args = append(args, *params.Date)
		idx++
	}
	if params.DoctorID != nil {
		where += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, *params.DoctorID)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := `SELECT ` + apptCols + ` FROM appointments` + where + listOrder +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	items, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
