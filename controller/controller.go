// Package controller wires queue consumption to the admission pipeline and
// reservation persistence.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"gpu-genie-allocator/admission"
	"gpu-genie-allocator/metrics"
	"gpu-genie-allocator/queues"
	"gpu-genie-allocator/store"
)

type Controller struct {
	publisher queues.Publisher
	store     store.Store
	pipeline  *admission.Pipeline
	mode      admission.Mode
}

func New(p queues.Publisher, st store.Store, pipeline *admission.Pipeline, mode admission.Mode) *Controller {
	return &Controller{publisher: p, store: st, pipeline: pipeline, mode: mode}
}

// publishFailure builds and publishes a failure ReservationResult with metrics.
func (c *Controller) publishFailure(ctx context.Context, req *queues.ReservationRequest, start time.Time, message string) error {
	metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	metrics.ReservationsTotal.WithLabelValues("none", string(queues.StatusFailure)).Inc()
	res := &queues.ReservationResult{
		EnvelopeVersion: "1.0",
		Type:            "reservation-result",
		TicketID:        req.TicketID,
		Status:          queues.StatusFailure,
		ErrorMessage:    &message,
	}
	if err := c.publisher.PublishResult(ctx, res); err != nil {
		log.Error().Err(err).Str("ticketId", req.TicketID).Msg("controller: failed to publish failure result")
		return err
	}
	return nil
}

// Handle processes one reservation request end to end. A returned error
// means the message should be retried; unknown users and capacity shortfalls
// are terminal and produce a failure result instead.
func (c *Controller) Handle(ctx context.Context, req *queues.ReservationRequest) error {
	start := time.Now()
	log.Info().Str("ticketId", req.TicketID).Str("userId", req.UserID).Msg("controller: handling reservation request")

	requester, err := c.store.GetUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn().Str("ticketId", req.TicketID).Str("userId", req.UserID).Msg("controller: unknown user")
			return c.publishFailure(ctx, req, start, fmt.Sprintf("user %s not found", req.UserID))
		}
		log.Error().Err(err).Str("userId", req.UserID).Msg("controller: user lookup failed")
		return err
	}

	result, err := c.pipeline.ProcessRequest(ctx, req.Request, *requester)
	if err != nil {
		var capErr *admission.CapacityError
		if errors.As(err, &capErr) {
			log.Warn().Str("ticketId", req.TicketID).Str("gpuType", string(capErr.GPUType)).Int("requested", capErr.Requested).Int("available", capErr.Available).Msg("controller: insufficient capacity")
			return c.publishFailure(ctx, req, start, capErr.Error())
		}
		log.Error().Err(err).Str("ticketId", req.TicketID).Msg("controller: pipeline failed")
		return err
	}

	if c.mode == admission.ModeAI {
		if result.InterpretSource == admission.SourceRules {
			metrics.AIFallbacksTotal.WithLabelValues("interpret").Inc()
		}
		if result.EvaluateSource == admission.SourceRules {
			metrics.AIFallbacksTotal.WithLabelValues("evaluate").Inc()
		}
	}

	status := admission.StatusPending
	if result.Verdict.Recommendation == admission.RecommendApprove && len(result.Conflicts) == 0 {
		status = admission.StatusConfirmed
	}

	now := time.Now()
	reservation := &store.Reservation{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Request:   req.Request,
		Parsed:    result.Request,
		StartTime: result.Request.StartTime,
		EndTime:   result.Request.EndTime,
		Status:    status,
		Priority:  result.Verdict.PriorityScore,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.CreateReservation(ctx, reservation); err != nil {
		log.Error().Err(err).Str("ticketId", req.TicketID).Str("reservationId", reservation.ID).Msg("controller: failed to persist reservation")
		return err
	}

	duration := time.Since(start)
	metrics.ProcessingDuration.Observe(duration.Seconds())
	metrics.ReservationsTotal.WithLabelValues(string(result.Verdict.Recommendation), string(status)).Inc()

	res := buildResult(req.TicketID, reservation, result)
	if err := c.publisher.PublishResult(ctx, res); err != nil {
		log.Error().Err(err).Str("ticketId", req.TicketID).Dur("duration", duration).Msg("controller: failed to publish result")
		return err
	}
	log.Info().
		Str("ticketId", req.TicketID).
		Str("reservationId", reservation.ID).
		Str("gpuType", string(result.Request.GPUType)).
		Int("quantity", result.Request.Quantity).
		Int("priority", result.Verdict.PriorityScore).
		Str("recommendation", string(result.Verdict.Recommendation)).
		Str("status", string(status)).
		Dur("duration", duration).
		Msg("controller: reservation processed")
	return nil
}

func buildResult(ticketID string, reservation *store.Reservation, result *admission.Result) *queues.ReservationResult {
	parsed := &queues.ParsedRequest{
		GPUType:   string(result.Request.GPUType),
		Quantity:  result.Request.Quantity,
		StartTime: result.Request.StartTime.UTC().Format(time.RFC3339),
		EndTime:   result.Request.EndTime.UTC().Format(time.RFC3339),
		Duration:  result.Request.Duration,
	}
	recommendation := string(result.Verdict.Recommendation)
	status := queues.StatusPending
	if reservation.Status == admission.StatusConfirmed {
		status = queues.StatusConfirmed
	}
	return &queues.ReservationResult{
		EnvelopeVersion: "1.0",
		Type:            "reservation-result",
		TicketID:        ticketID,
		ReservationID:   &reservation.ID,
		Status:          status,
		Parsed:          parsed,
		Priority:        &reservation.Priority,
		Recommendation:  &recommendation,
		Reasoning:       &result.Verdict.Reasoning,
	}
}
