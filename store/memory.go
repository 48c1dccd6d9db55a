package store

import (
	"context"
	"sync"
	"time"

	"gpu-genie-allocator/admission"
)

// Memory is an in-process Store for development mode and tests.
// Since the allocator runs as a single pod in dev, plain maps under a
// RWMutex are enough.
type Memory struct {
	mu           sync.RWMutex
	users        map[string]admission.Requester
	servers      []GPUServer
	reservations map[string]*Reservation
}

func NewMemory() *Memory {
	return &Memory{
		users:        make(map[string]admission.Requester),
		reservations: make(map[string]*Reservation),
	}
}

// AddUser seeds a user record.
func (m *Memory) AddUser(u admission.Requester) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// AddServer seeds an inventory entry.
func (m *Memory) AddServer(s GPUServer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, s)
}

func (m *Memory) GetUser(ctx context.Context, id string) (*admission.Requester, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) FindOverlapping(ctx context.Context, gpuType admission.GPUType, start, end time.Time) ([]admission.ExistingAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []admission.ExistingAllocation
	for _, r := range m.reservations {
		if r.Parsed.GPUType != gpuType {
			continue
		}
		if !r.EndTime.After(start) || !r.StartTime.Before(end) {
			continue
		}
		out = append(out, admission.ExistingAllocation{
			ID:        r.ID,
			UserID:    r.UserID,
			GPUType:   r.Parsed.GPUType,
			Quantity:  r.Parsed.Quantity,
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
			Status:    r.Status,
		})
	}
	return out, nil
}

func (m *Memory) AvailableCapacity(ctx context.Context, gpuType admission.GPUType) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, s := range m.servers {
		if s.GPUType == gpuType && s.Status == ServerActive {
			total += s.AvailableGPUs
		}
	}
	return total, nil
}

func (m *Memory) CreateReservation(ctx context.Context, r *Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.reservations[r.ID] = &cp
	return nil
}

func (m *Memory) UpdateReservationStatus(ctx context.Context, id string, status admission.AllocationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) ListUserReservations(ctx context.Context, userID string) ([]Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Reservation
	for _, r := range m.reservations {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}
