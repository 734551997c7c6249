package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/careline/careline/internal/platform/apperr"
	"github.com/careline/careline/internal/platform/db"
)

type profileRepoPG struct{ pool db.Querier }

func NewRepoPG(pool db.Querier) Repository { return &profileRepoPG{pool: pool} }

func (r *profileRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const profileCols = `id, external_id, email, name, role, status,
	phone_number, date_of_birth, gender, address, occupation,
	emergency_contact_name, emergency_contact_number, insurance_provider, insurance_policy_number,
	medical_history, allergies, current_medications, family_medical_history, past_medical_history,
	identification_type, identification_number,
	email_notifications, sms_notifications, push_notifications,
	specializations, license_number, availability, appointment_ids,
	version_id, created_at, updated_at`

func (r *profileRepoPG) scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.ExternalID, &p.Email, &p.Name, &p.Role, &p.Status,
		&p.PhoneNumber, &p.DateOfBirth, &p.Gender, &p.Address, &p.Occupation,
		&p.EmergencyContactName, &p.EmergencyContactNumber, &p.InsuranceProvider, &p.InsurancePolicyNumber,
		&p.MedicalHistory, &p.Allergies, &p.CurrentMedications, &p.FamilyMedicalHistory, &p.PastMedicalHistory,
		&p.IdentificationType, &p.IdentificationNumber,
		&p.EmailNotifications, &p.SMSNotifications, &p.PushNotifications,
		&p.Specializations, &p.LicenseNumber, &p.Availability, &p.AppointmentIDs,
		&p.VersionID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("profile")
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return &p, nil
}

func (r *profileRepoPG) Create(ctx context.Context, p *Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.VersionID = 1
	p.normalizeLists()

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO profiles (`+profileCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
			$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32)`,
		p.ID, p.ExternalID, p.Email, p.Name, p.Role, p.Status,
		p.PhoneNumber, p.DateOfBirth, p.Gender, p.Address, p.Occupation,
		p.EmergencyContactName, p.EmergencyContactNumber, p.InsuranceProvider, p.InsurancePolicyNumber,
		p.MedicalHistory, p.Allergies, p.CurrentMedications, p.FamilyMedicalHistory, p.PastMedicalHistory,
		p.IdentificationType, p.IdentificationNumber,
		p.EmailNotifications, p.SMSNotifications, p.PushNotifications,
		p.Specializations, p.LicenseNumber, p.Availability, p.AppointmentIDs,
		p.VersionID, p.CreatedAt, p.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("a profile with this email or external id already exists")
	}
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *profileRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.scanProfile(r.conn(ctx).QueryRow(ctx, `SELECT `+profileCols+` FROM profiles WHERE id = $1`, id))
}

func (r *profileRepoPG) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	return r.scanProfile(r.conn(ctx).QueryRow(ctx, `SELECT `+profileCols+` FROM profiles WHERE email = $1`, NormalizeEmail(email)))
}

func (r *profileRepoPG) GetByExternalID(ctx context.Context, externalID string) (*Profile, error) {
	return r.scanProfile(r.conn(ctx).QueryRow(ctx, `SELECT `+profileCols+` FROM profiles WHERE external_id = $1`, externalID))
}

func (r *profileRepoPG) Update(ctx context.Context, p *Profile) error {
	p.normalizeLists()
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE profiles SET email=$3, name=$4, role=$5, status=$6,
			phone_number=$7, date_of_birth=$8, gender=$9, address=$10, occupation=$11,
			emergency_contact_name=$12, emergency_contact_number=$13,
			insurance_provider=$14, insurance_policy_number=$15,
			medical_history=$16, allergies=$17, current_medications=$18,
			family_medical_history=$19, past_medical_history=$20,
			identification_type=$21, identification_number=$22,
			email_notifications=$23, sms_notifications=$24, push_notifications=$25,
			specializations=$26, license_number=$27, availability=$28,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND version_id = $2
		RETURNING version_id, updated_at`,
		p.ID, p.VersionID, p.Email, p.Name, p.Role, p.Status,
		p.PhoneNumber, p.DateOfBirth, p.Gender, p.Address, p.Occupation,
		p.EmergencyContactName, p.EmergencyContactNumber,
		p.InsuranceProvider, p.InsurancePolicyNumber,
		p.MedicalHistory, p.Allergies, p.CurrentMedications,
		p.FamilyMedicalHistory, p.PastMedicalHistory,
		p.IdentificationType, p.IdentificationNumber,
		p.EmailNotifications, p.SMSNotifications, p.PushNotifications,
		p.Specializations, p.LicenseNumber, p.Availability,
	).Scan(&p.VersionID, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.missOrConflict(ctx, p.ID)
	}
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("email %s is already registered", p.Email)
	}
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// missOrConflict tells a stale version apart from a missing row after an
// UPDATE matched nothing.
func (r *profileRepoPG) missOrConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check profile: %w", err)
	}
	if !exists {
		return apperr.NotFound("profile")
	}
	return apperr.Conflict("profile %s was modified concurrently", id)
}

func (r *profileRepoPG) AppendAppointment(ctx context.Context, profileID, appointmentID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE profiles SET
			appointment_ids = CASE WHEN $2 = ANY(appointment_ids) THEN appointment_ids
				ELSE array_append(appointment_ids, $2) END,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1`, profileID, appointmentID)
	if err != nil {
		return fmt.Errorf("link appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("profile")
	}
	return nil
}

func (r *profileRepoPG) ListDoctors(ctx context.Context, specialization string, limit, offset int) ([]*Profile, int, error) {
	where := ` WHERE role = 'doctor' AND status = 'active'`
	var args []interface{}
	if specialization != "" {
		where += ` AND $1 = ANY(specializations)`
		args = append(args, specialization)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM profiles`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	query := `SELECT ` + profileCols + ` FROM profiles` + where +
		fmt.Sprintf(` ORDER BY name ASC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()
	items := []*Profile{}
	for rows.Next() {
		p, err := r.scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
