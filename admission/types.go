package admission

import "time"

// GPUType is one of the fixed catalog of GPU models that can be reserved.
type GPUType string

const (
	GPUV100    GPUType = "V100"
	GPUA100    GPUType = "A100"
	GPURTX3090 GPUType = "RTX3090"
	GPURTX4090 GPUType = "RTX4090"
	GPUH100    GPUType = "H100"
)

// Catalog lists every reservable GPU type, in match-priority order.
// The first entry doubles as the default when extraction finds nothing.
var Catalog = []GPUType{GPUV100, GPUA100, GPURTX3090, GPURTX4090, GPUH100}

// DefaultGPUType is used when no catalog entry matches the request text.
const DefaultGPUType = GPUV100

const (
	MinQuantity = 1
	MaxQuantity = 10

	MinDurationHours = 1
	MaxDurationHours = 168 // one week
)

// DefaultGraceWindow is how far in the past a start time may lie before the
// interpreter repairs it to the next top-of-hour.
const DefaultGraceWindow = time.Hour

// StructuredRequest is the normalized form of a free-text reservation
// request. Immutable once produced; Duration is derived from the window,
// not trusted independently.
type StructuredRequest struct {
	GPUType   GPUType   `json:"gpuType"`
	Quantity  int       `json:"quantity"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Duration  int       `json:"duration"` // hours
}

// Role of the requesting user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Requester carries the attributes of the user asking for capacity.
// Supplied by the caller; read-only here.
type Requester struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	BasePriority int    `json:"basePriority"`
}

// AllocationStatus is the lifecycle state of an existing reservation.
type AllocationStatus string

const (
	StatusPending   AllocationStatus = "pending"
	StatusConfirmed AllocationStatus = "confirmed"
	StatusRejected  AllocationStatus = "rejected"
	StatusCancelled AllocationStatus = "cancelled"
)

// ExistingAllocation is a previously stored reservation as seen by the
// conflict detector. Only confirmed allocations block new requests.
type ExistingAllocation struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	GPUType   GPUType          `json:"gpuType"`
	Quantity  int              `json:"quantity"`
	StartTime time.Time        `json:"startTime"`
	EndTime   time.Time        `json:"endTime"`
	Status    AllocationStatus `json:"status"`
}

// Recommendation is the three-way admission outcome.
type Recommendation string

const (
	RecommendApprove      Recommendation = "approve"
	RecommendConfirmation Recommendation = "request_confirmation"
	RecommendReject       Recommendation = "reject"
)

// Score thresholds for deriving a recommendation from a bare priority.
const (
	approveThreshold = 70
	rejectThreshold  = 40
)

// RecommendationForScore maps a priority score onto the three bands.
func RecommendationForScore(score int) Recommendation {
	switch {
	case score >= approveThreshold:
		return RecommendApprove
	case score >= rejectThreshold:
		return RecommendConfirmation
	default:
		return RecommendReject
	}
}

// AdmissionVerdict is the evaluator's output for a single request.
type AdmissionVerdict struct {
	PriorityScore  int            `json:"priority"`
	Reasoning      string         `json:"reasoning"`
	Recommendation Recommendation `json:"recommendation"`
}

// Mode selects AI-assisted or deterministic rule-based behavior. It is an
// explicit configuration value handed to the pipeline, never inferred from
// ambient process state.
type Mode string

const (
	ModeAI    Mode = "ai"
	ModeRules Mode = "rules"
)

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// nextTopOfHour returns the first whole hour strictly after now.
func nextTopOfHour(now time.Time) time.Time {
	return now.Truncate(time.Hour).Add(time.Hour)
}
