package queues

import "context"

// ReservationRequest is the inbound envelope: a ticketed free-text request
// from one user.
type ReservationRequest struct {
	TicketID string `json:"ticketId"`
	UserID   string `json:"userId"`
	Request  string `json:"request"`
}

// ParsedRequest is the wire form of the structured request.
// Mirrors admission.StructuredRequest but kept decoupled to avoid import
// loops; timestamps travel as RFC3339 strings.
type ParsedRequest struct {
	GPUType   string `json:"gpuType"`
	Quantity  int    `json:"quantity"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Duration  int    `json:"duration"`
}

type ResultStatus string

const (
	StatusConfirmed ResultStatus = "confirmed"
	StatusPending   ResultStatus = "pending"
	StatusFailure   ResultStatus = "failure"
)

// ReservationResult is the outbound envelope published after processing.
type ReservationResult struct {
	EnvelopeVersion string         `json:"envelopeVersion"`
	Type            string         `json:"type"`
	TicketID        string         `json:"ticketId"`
	ReservationID   *string        `json:"reservationId,omitempty"`
	Status          ResultStatus   `json:"status"`
	Parsed          *ParsedRequest `json:"parsedRequest,omitempty"`
	Priority        *int           `json:"priority,omitempty"`
	Recommendation  *string        `json:"recommendation,omitempty"`
	Reasoning       *string        `json:"reasoning,omitempty"`
	ErrorMessage    *string        `json:"errorMessage,omitempty"`
}

type Subscriber interface {
	Start(ctx context.Context, handler func(context.Context, *ReservationRequest) error) error
}

type Publisher interface {
	PublishResult(ctx context.Context, res *ReservationResult) error
}
