package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is the in-process driver. It is used by tests and by dry runs
// where losing schedules on restart is acceptable.
type memStore struct {
	mu   sync.RWMutex
	rows map[string]*Schedule
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return &memStore{rows: map[string]*Schedule{}}
}

func (m *memStore) Create(_ context.Context, s *Schedule) error {
	now := time.Now()
	cp := s.Clone()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	m.mu.Lock()
	m.rows[cp.ID] = cp
	m.mu.Unlock()
	return nil
}

func (m *memStore) FindByID(_ context.Context, id string) (*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memStore) FindDue(_ context.Context, now time.Time) ([]*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Schedule
	for _, s := range m.rows {
		if s.IsActive && s.NextRunAt != nil && !s.NextRunAt.After(now) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NextRunAt.Before(*out[j].NextRunAt)
	})
	return out, nil
}

func (m *memStore) FindUninitialized(_ context.Context) ([]*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Schedule
	for _, s := range m.rows {
		if s.IsActive && s.NextRunAt == nil {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateNextRunAt(_ context.Context, id string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	t := ts
	s.NextRunAt = &t
	s.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) UpdateSpec(_ context.Context, id, cronExpression, timezone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	s.CronExpression = cronExpression
	s.Timezone = timezone
	s.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	s.IsActive = active
	s.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.rows, id)
	m.mu.Unlock()
	return nil
}

func (m *memStore) List(_ context.Context) ([]*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Schedule, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) Close() error { return nil }
