package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/careline/careline/internal/domain/patient"
	"github.com/careline/careline/internal/platform/apperr"
)

// MemoryRepo is a Repository held in process memory. It backs
// STORE_DRIVER=memory and the handler tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[uuid.UUID]*Appointment
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[uuid.UUID]*Appointment)}
}

func clone(a *Appointment) *Appointment {
	c := *a
	c.Allergies = append([]string{}, a.Allergies...)
	c.CurrentMedications = append([]string{}, a.CurrentMedications...)
	return &c
}

func (m *MemoryRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	a.VersionID = 1
	a.normalizeLists()
	m.store[a.ID] = clone(a)
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("appointment")
	}
	return clone(a), nil
}

func (m *MemoryRepo) Update(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[a.ID]
	if !ok {
		return apperr.NotFound("appointment")
	}
	if cur.VersionID != a.VersionID {
		return apperr.Conflict("appointment %s was modified concurrently", a.ID)
	}
	next := clone(cur)
	next.Status = a.Status
	next.AppointmentDate = a.AppointmentDate
	next.AppointmentTime = a.AppointmentTime
	next.CancellationReason = a.CancellationReason
	next.Notes = a.Notes
	next.VersionID++
	next.UpdatedAt = time.Now().UTC()
	m.store[a.ID] = next

	a.VersionID = next.VersionID
	a.UpdatedAt = next.UpdatedAt
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return apperr.NotFound("appointment")
	}
	delete(m.store, id)
	return nil
}

func (m *MemoryRepo) filter(match func(*Appointment) bool) []*Appointment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := []*Appointment{}
	for _, a := range m.store {
		if match(a) {
			items = append(items, clone(a))
		}
	}
	SortForListing(items)
	return items
}

func (m *MemoryRepo) ListByEmail(_ context.Context, email string) ([]*Appointment, error) {
	email = patient.NormalizeEmail(email)
	return m.filter(func(a *Appointment) bool { return a.PatientEmail == email }), nil
}

func (m *MemoryRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return m.filter(func(a *Appointment) bool { return a.PatientID == patientID }), nil
}

func (m *MemoryRepo) Search(_ context.Context, p SearchParams, limit, offset int) ([]*Appointment, int, error) {
	all := m.filter(func(a *Appointment) bool {
		if p.Status != "" && a.Status != p.Status {
			return false
		}
		if p.Date != nil && !a.AppointmentDate.Equal(*p.Date) {
			return false
		}
		if p.DoctorID != nil && (a.DoctorID == nil || *a.DoctorID != *p.DoctorID) {
			return false
		}
		return true
	})
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// SortForListing orders appointments by date ascending, newest first within
// a date.
func SortForListing(items []*Appointment) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].AppointmentDate.Equal(items[j].AppointmentDate) {
			return items[i].AppointmentDate.Before(items[j].AppointmentDate)
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

// NoTx runs functions without a transaction. It pairs with the memory
// repositories.
type NoTx struct{}

func (NoTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
