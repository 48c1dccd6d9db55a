package queues

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestReservationRequest_JSON(t *testing.T) {
	tests := []struct {
		name string
		in   ReservationRequest
	}{
		{"basic", ReservationRequest{TicketID: "t1", UserID: "u1", Request: "V100を2台予約"}},
		{"english text", ReservationRequest{TicketID: "t2", UserID: "u2", Request: "two a100 gpus tomorrow"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("marshal err: %#v", err)
			}
			var out ReservationRequest
			if err := json.Unmarshal(b, &out); err != nil {
				t.Fatalf("unmarshal err: %#v", err)
			}
			if out != tt.in {
				t.Errorf("round-trip mismatch\nin:  %#v\nout: %#v", tt.in, out)
			}
		})
	}
}

func TestReservationResult_JSON(t *testing.T) {
	priority := 85
	recommendation := "approve"
	reasoning := "efficient request"
	reservationID := "res-1"
	tests := []struct {
		name string
		in   ReservationResult
	}{
		{
			name: "confirmed",
			in: ReservationResult{
				EnvelopeVersion: "1.0",
				Type:            "reservation-result",
				TicketID:        "t1",
				ReservationID:   &reservationID,
				Status:          StatusConfirmed,
				Parsed:          &ParsedRequest{GPUType: "V100", Quantity: 2, StartTime: "2025-06-11T15:00:00Z", EndTime: "2025-06-11T18:00:00Z", Duration: 3},
				Priority:        &priority,
				Recommendation:  &recommendation,
				Reasoning:       &reasoning,
			},
		},
		{
			name: "failure",
			in:   ReservationResult{EnvelopeVersion: "1.0", Type: "reservation-result", TicketID: "t2", Status: StatusFailure, ErrorMessage: strPtr("user not found")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("marshal err: %#v", err)
			}
			var out ReservationResult
			if err := json.Unmarshal(b, &out); err != nil {
				t.Fatalf("unmarshal err: %#v", err)
			}
			if !reflect.DeepEqual(tt.in, out) {
				t.Errorf("roundtrip mismatch\n in=%#v\nout=%#v", tt.in, out)
			}
		})
	}
}

func TestReservationResult_OmitsEmptyOptionals(t *testing.T) {
	res := ReservationResult{EnvelopeVersion: "1.0", Type: "reservation-result", TicketID: "t1", Status: StatusFailure, ErrorMessage: strPtr("boom")}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal err: %#v", err)
	}
	for _, key := range []string{"parsedRequest", "priority", "recommendation", "reasoning", "reservationId"} {
		if strings.Contains(string(b), key) {
			t.Errorf("failure envelope should omit %q: %s", key, b)
		}
	}
}

func strPtr(s string) *string { return &s }
