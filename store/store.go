// Package store holds the persistence collaborators behind the admission
// pipeline: user lookup, reservation records, and GPU server inventory.
package store

import (
	"context"
	"errors"
	"time"

	"gpu-genie-allocator/admission"
)

// ErrNotFound is returned when a user or reservation does not exist.
var ErrNotFound = errors.New("not found")

// Reservation is the persisted record of a processed request.
type Reservation struct {
	ID        string                       `json:"id"`
	UserID    string                       `json:"userId"`
	Request   string                       `json:"request"` // raw text as submitted
	Parsed    admission.StructuredRequest  `json:"parsedRequest"`
	StartTime time.Time                    `json:"startTime"`
	EndTime   time.Time                    `json:"endTime"`
	Status    admission.AllocationStatus   `json:"status"`
	Priority  int                          `json:"priority"`
	CreatedAt time.Time                    `json:"createdAt"`
	UpdatedAt time.Time                    `json:"updatedAt"`
}

// GPUServer is one inventory entry; capacity for a GPU type is summed over
// its active servers.
type GPUServer struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	GPUType       admission.GPUType `json:"gpuType"`
	TotalGPUs     int               `json:"totalGpus"`
	AvailableGPUs int               `json:"availableGpus"`
	Status        string            `json:"status"` // active|maintenance|offline
}

// ServerActive is the only inventory status that contributes capacity.
const ServerActive = "active"

// Store is everything the controller needs from persistence. The pipeline
// itself only consumes the two read queries (FindOverlapping,
// AvailableCapacity); serializing concurrent bookings at commit time is this
// layer's responsibility, not the pipeline's.
type Store interface {
	GetUser(ctx context.Context, id string) (*admission.Requester, error)

	// FindOverlapping returns every reservation of the given GPU type whose
	// window overlaps [start, end), regardless of status. Status and
	// quantity filtering is the conflict detector's job.
	FindOverlapping(ctx context.Context, gpuType admission.GPUType, start, end time.Time) ([]admission.ExistingAllocation, error)

	// AvailableCapacity sums available GPUs over active servers of one type.
	AvailableCapacity(ctx context.Context, gpuType admission.GPUType) (int, error)

	CreateReservation(ctx context.Context, r *Reservation) error
	UpdateReservationStatus(ctx context.Context, id string, status admission.AllocationStatus) error
	ListUserReservations(ctx context.Context, userID string) ([]Reservation, error)
}
