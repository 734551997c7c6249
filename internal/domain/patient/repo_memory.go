package patient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/careline/careline/internal/platform/apperr"
)

// MemoryRepo is a Repository held in process memory. It backs
// STORE_DRIVER=memory and the handler tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[uuid.UUID]*Profile
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[uuid.UUID]*Profile)}
}

func clone(p *Profile) *Profile {
	c := *p
	c.MedicalHistory = append([]string(nil), p.MedicalHistory...)
	c.Allergies = append([]string(nil), p.Allergies...)
	c.CurrentMedications = append([]string(nil), p.CurrentMedications...)
	c.Specializations = append([]string(nil), p.Specializations...)
	c.Availability = append([]AvailabilityWindow(nil), p.Availability...)
	c.AppointmentIDs = append([]uuid.UUID(nil), p.AppointmentIDs...)
	c.normalizeLists()
	return &c
}

func (m *MemoryRepo) Create(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.store {
		if existing.Email == p.Email || existing.ExternalID == p.ExternalID {
			return apperr.Conflict("a profile with this email or external id already exists")
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.VersionID = 1
	p.normalizeLists()
	m.store[p.ID] = clone(p)
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("profile")
	}
	return clone(p), nil
}

func (m *MemoryRepo) find(match func(*Profile) bool) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if match(p) {
			return clone(p), nil
		}
	}
	return nil, apperr.NotFound("profile")
}

func (m *MemoryRepo) GetByEmail(_ context.Context, email string) (*Profile, error) {
	email = NormalizeEmail(email)
	return m.find(func(p *Profile) bool { return p.Email == email })
}

func (m *MemoryRepo) GetByExternalID(_ context.Context, externalID string) (*Profile, error) {
	return m.find(func(p *Profile) bool { return p.ExternalID == externalID })
}

func (m *MemoryRepo) Update(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[p.ID]
	if !ok {
		return apperr.NotFound("profile")
	}
	if cur.VersionID != p.VersionID {
		return apperr.Conflict("profile %s was modified concurrently", p.ID)
	}
	for id, other := range m.store {
		if id != p.ID && other.Email == p.Email {
			return apperr.Conflict("email %s is already registered", p.Email)
		}
	}
	p.VersionID++
	p.UpdatedAt = time.Now().UTC()
	m.store[p.ID] = clone(p)
	return nil
}

func (m *MemoryRepo) AppendAppointment(_ context.Context, profileID, appointmentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[profileID]
	if !ok {
		return apperr.NotFound("profile")
	}
	if !p.HasAppointment(appointmentID) {
		p.AppointmentIDs = append(p.AppointmentIDs, appointmentID)
	}
	p.VersionID++
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepo) ListDoctors(_ context.Context, specialization string, limit, offset int) ([]*Profile, int, error) {
	m.mu.RLock()
	var all []*Profile
	for _, p := range m.store {
		if !p.IsDoctor() {
			continue
		}
		if specialization != "" && !contains(p.Specializations, specialization) {
			continue
		}
		all = append(all, clone(p))
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return append([]*Profile{}, all[offset:end]...), total, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
