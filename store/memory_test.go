package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"gpu-genie-allocator/admission"
)

func seedReservation(id string, gpu admission.GPUType, qty int, start, end time.Time, status admission.AllocationStatus) *Reservation {
	return &Reservation{
		ID:     id,
		UserID: "u1",
		Parsed: admission.StructuredRequest{
			GPUType:   gpu,
			Quantity:  qty,
			StartTime: start,
			EndTime:   end,
			Duration:  int(end.Sub(start).Hours()),
		},
		StartTime: start,
		EndTime:   end,
		Status:    status,
		CreatedAt: start,
		UpdatedAt: start,
	}
}

func TestMemory_GetUser(t *testing.T) {
	m := NewMemory()
	m.AddUser(admission.Requester{ID: "u1", Name: "Alice", Role: admission.RoleUser, BasePriority: 50})

	u, err := m.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUser() error: %v", err)
	}
	if u.Name != "Alice" || u.BasePriority != 50 {
		t.Errorf("unexpected user: %#v", u)
	}

	if _, err := m.GetUser(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemory_FindOverlapping(t *testing.T) {
	m := NewMemory()
	day := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }

	// overlapping, same type
	_ = m.CreateReservation(context.Background(), seedReservation("r1", admission.GPUV100, 2, at(10), at(14), admission.StatusConfirmed))
	// overlapping, same type, pending; still returned, status filtering is not this layer's job
	_ = m.CreateReservation(context.Background(), seedReservation("r2", admission.GPUV100, 1, at(11), at(12), admission.StatusPending))
	// back-to-back, excluded by half-open overlap
	_ = m.CreateReservation(context.Background(), seedReservation("r3", admission.GPUV100, 2, at(14), at(18), admission.StatusConfirmed))
	// wrong type
	_ = m.CreateReservation(context.Background(), seedReservation("r4", admission.GPUH100, 2, at(10), at(14), admission.StatusConfirmed))

	got, err := m.FindOverlapping(context.Background(), admission.GPUV100, at(12), at(14))
	if err != nil {
		t.Fatalf("FindOverlapping() error: %v", err)
	}
	ids := map[string]bool{}
	for _, a := range got {
		ids[a.ID] = true
	}
	if len(got) != 1 || !ids["r1"] {
		t.Errorf("FindOverlapping() = %#v, want only r1", got)
	}

	got, err = m.FindOverlapping(context.Background(), admission.GPUV100, at(11), at(13))
	if err != nil {
		t.Fatalf("FindOverlapping() error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("FindOverlapping() returned %d allocations, want 2 (confirmed and pending)", len(got))
	}
}

func TestMemory_AvailableCapacity(t *testing.T) {
	m := NewMemory()
	m.AddServer(GPUServer{ID: "s1", GPUType: admission.GPUA100, AvailableGPUs: 4, Status: ServerActive})
	m.AddServer(GPUServer{ID: "s2", GPUType: admission.GPUA100, AvailableGPUs: 2, Status: ServerActive})
	m.AddServer(GPUServer{ID: "s3", GPUType: admission.GPUA100, AvailableGPUs: 8, Status: "maintenance"})
	m.AddServer(GPUServer{ID: "s4", GPUType: admission.GPUH100, AvailableGPUs: 8, Status: ServerActive})

	got, err := m.AvailableCapacity(context.Background(), admission.GPUA100)
	if err != nil {
		t.Fatalf("AvailableCapacity() error: %v", err)
	}
	if got != 6 {
		t.Errorf("AvailableCapacity(A100) = %d, want 6", got)
	}

	got, err = m.AvailableCapacity(context.Background(), admission.GPURTX3090)
	if err != nil {
		t.Fatalf("AvailableCapacity() error: %v", err)
	}
	if got != 0 {
		t.Errorf("AvailableCapacity(RTX3090) = %d, want 0", got)
	}
}

func TestMemory_UpdateReservationStatus(t *testing.T) {
	m := NewMemory()
	day := time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)
	_ = m.CreateReservation(context.Background(), seedReservation("r1", admission.GPUV100, 1, day, day.Add(time.Hour), admission.StatusPending))

	if err := m.UpdateReservationStatus(context.Background(), "r1", admission.StatusConfirmed); err != nil {
		t.Fatalf("UpdateReservationStatus() error: %v", err)
	}
	list, err := m.ListUserReservations(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListUserReservations() error: %v", err)
	}
	if len(list) != 1 || list[0].Status != admission.StatusConfirmed {
		t.Errorf("unexpected reservations after update: %#v", list)
	}

	if err := m.UpdateReservationStatus(context.Background(), "missing", admission.StatusCancelled); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateReservationStatus(missing) error = %v, want ErrNotFound", err)
	}
}
