package admission

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gpu-genie-allocator/llm"
)

func staticCompleter(resp string, err error) llm.Completer {
	return llm.CompleterFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return resp, err
	})
}

func TestInterpret_RulesMode(t *testing.T) {
	// The completer must never be consulted outside ModeAI.
	poison := llm.CompleterFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		t.Fatal("completer called in rules mode")
		return "", nil
	})
	it := NewInterpreter(ModeRules, poison, 0)

	got, source := it.Interpret(context.Background(), "明日15時から3時間、V100を2台予約", testNow)
	if source != SourceRules {
		t.Errorf("source = %s, want %s", source, SourceRules)
	}
	want := Extract("明日15時から3時間、V100を2台予約", testNow)
	if got != want {
		t.Errorf("rules-mode result differs from Extract\ngot:  %#v\nwant: %#v", got, want)
	}
}

func TestInterpret_AISuccess(t *testing.T) {
	resp := fmt.Sprintf(
		`Here is the parsed request: {"gpuType": "A100", "quantity": 2, "startTime": %q, "endTime": %q, "duration": 3} Let me know if you need anything else.`,
		testNow.Add(2*time.Hour).Format(time.RFC3339),
		testNow.Add(5*time.Hour).Format(time.RFC3339),
	)
	it := NewInterpreter(ModeAI, staticCompleter(resp, nil), 0)

	got, source := it.Interpret(context.Background(), "whatever", testNow)
	if source != SourceAI {
		t.Fatalf("source = %s, want %s", source, SourceAI)
	}
	if got.GPUType != GPUA100 || got.Quantity != 2 || got.Duration != 3 {
		t.Errorf("unexpected result: %#v", got)
	}
	if !got.StartTime.Equal(testNow.Add(2 * time.Hour)) {
		t.Errorf("StartTime = %s, want %s", got.StartTime, testNow.Add(2*time.Hour))
	}
	if !got.EndTime.Equal(testNow.Add(5 * time.Hour)) {
		t.Errorf("EndTime = %s, want %s", got.EndTime, testNow.Add(5*time.Hour))
	}
}

func TestInterpret_AIValidation(t *testing.T) {
	start := testNow.Add(time.Hour)
	tests := []struct {
		name  string
		resp  string
		check func(t *testing.T, got StructuredRequest)
	}{
		{
			name: "quantity clamped and string-typed numbers accepted",
			resp: fmt.Sprintf(`{"gpuType": "H100", "quantity": "50", "startTime": %q, "endTime": %q, "duration": "2"}`,
				start.Format(time.RFC3339), start.Add(2*time.Hour).Format(time.RFC3339)),
			check: func(t *testing.T, got StructuredRequest) {
				if got.Quantity != MaxQuantity {
					t.Errorf("Quantity = %d, want %d", got.Quantity, MaxQuantity)
				}
				if got.Duration != 2 {
					t.Errorf("Duration = %d, want 2", got.Duration)
				}
			},
		},
		{
			name: "unknown gpu type defaults",
			resp: fmt.Sprintf(`{"gpuType": "TPUv5", "quantity": 1, "startTime": %q, "endTime": %q, "duration": 1}`,
				start.Format(time.RFC3339), start.Add(time.Hour).Format(time.RFC3339)),
			check: func(t *testing.T, got StructuredRequest) {
				if got.GPUType != DefaultGPUType {
					t.Errorf("GPUType = %s, want %s", got.GPUType, DefaultGPUType)
				}
			},
		},
		{
			name: "gpu type matched by containment",
			resp: fmt.Sprintf(`{"gpuType": "NVIDIA A100 80GB", "quantity": 1, "startTime": %q, "endTime": %q, "duration": 1}`,
				start.Format(time.RFC3339), start.Add(time.Hour).Format(time.RFC3339)),
			check: func(t *testing.T, got StructuredRequest) {
				if got.GPUType != GPUA100 {
					t.Errorf("GPUType = %s, want %s", got.GPUType, GPUA100)
				}
			},
		},
		{
			name: "stale start repaired to next top-of-hour",
			resp: fmt.Sprintf(`{"gpuType": "V100", "quantity": 1, "startTime": "2020-01-01T00:00:00Z", "endTime": %q, "duration": 2}`,
				start.Format(time.RFC3339)),
			check: func(t *testing.T, got StructuredRequest) {
				if !got.StartTime.Equal(nextTopOfHour(testNow)) {
					t.Errorf("StartTime = %s, want %s", got.StartTime, nextTopOfHour(testNow))
				}
			},
		},
		{
			name: "unparseable timestamps repaired and end recomputed",
			resp: `{"gpuType": "V100", "quantity": 1, "startTime": "soon", "endTime": "later", "duration": 3}`,
			check: func(t *testing.T, got StructuredRequest) {
				wantStart := nextTopOfHour(testNow)
				if !got.StartTime.Equal(wantStart) {
					t.Errorf("StartTime = %s, want %s", got.StartTime, wantStart)
				}
				// both repaired to the same instant, so end is recomputed
				if !got.EndTime.Equal(wantStart.Add(3 * time.Hour)) {
					t.Errorf("EndTime = %s, want %s", got.EndTime, wantStart.Add(3*time.Hour))
				}
			},
		},
		{
			name: "end before start recomputed from duration",
			resp: fmt.Sprintf(`{"gpuType": "V100", "quantity": 1, "startTime": %q, "endTime": %q, "duration": 4}`,
				start.Format(time.RFC3339), start.Add(-time.Hour).Format(time.RFC3339)),
			check: func(t *testing.T, got StructuredRequest) {
				if !got.EndTime.Equal(start.Add(4 * time.Hour)) {
					t.Errorf("EndTime = %s, want %s", got.EndTime, start.Add(4*time.Hour))
				}
			},
		},
		{
			name: "missing numeric fields default",
			resp: fmt.Sprintf(`{"gpuType": "A100", "startTime": %q, "endTime": %q}`,
				start.Format(time.RFC3339), start.Add(time.Hour).Format(time.RFC3339)),
			check: func(t *testing.T, got StructuredRequest) {
				if got.Quantity != MinQuantity || got.Duration != MinDurationHours {
					t.Errorf("defaults not applied: %#v", got)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := NewInterpreter(ModeAI, staticCompleter(tt.resp, nil), 0)
			got, source := it.Interpret(context.Background(), "request text", testNow)
			if source != SourceAI {
				t.Fatalf("source = %s, want %s", source, SourceAI)
			}
			tt.check(t, got)
		})
	}
}

func TestInterpret_FallsBackOnAIFailure(t *testing.T) {
	text := "明日15時から3時間、V100を2台予約"
	tests := []struct {
		name string
		resp string
		err  error
	}{
		{name: "transport error", err: errors.New("connection refused")},
		{name: "timeout", err: context.DeadlineExceeded},
		{name: "no payload", resp: "I cannot help with that."},
		{name: "invalid json span", resp: "{this is not json}"},
		{name: "wrong payload shape", resp: `{"gpuType": ["not", "a", "string"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := NewInterpreter(ModeAI, staticCompleter(tt.resp, tt.err), 0)
			got, source := it.Interpret(context.Background(), text, testNow)
			if source != SourceRules {
				t.Fatalf("source = %s, want %s", source, SourceRules)
			}
			want := Extract(text, testNow)
			if got != want {
				t.Errorf("fallback result differs from Extract\ngot:  %#v\nwant: %#v", got, want)
			}
		})
	}
}
