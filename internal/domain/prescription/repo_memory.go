package prescription

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/careline/careline/internal/platform/apperr"
)

// MemoryRepo is a Repository held in process memory.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[uuid.UUID]*Prescription
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[uuid.UUID]*Prescription)}
}

func (m *MemoryRepo) Create(_ context.Context, p *Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	c := *p
	m.store[p.ID] = &c
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("prescription")
	}
	c := *p
	return &c, nil
}

func (m *MemoryRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*Prescription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := []*Prescription{}
	for _, p := range m.store {
		if p.UserID == userID {
			c := *p
			items = append(items, &c)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (m *MemoryRepo) SetSummary(_ context.Context, p *Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[p.ID]
	if !ok {
		return apperr.NotFound("prescription")
	}
	cur.Summary = p.Summary
	cur.Status = p.Status
	cur.UpdatedAt = time.Now().UTC()
	p.UpdatedAt = cur.UpdatedAt
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return apperr.NotFound("prescription")
	}
	delete(m.store, id)
	return nil
}
