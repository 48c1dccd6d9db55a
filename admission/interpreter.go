package admission

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"gpu-genie-allocator/llm"
)

// Source records which path produced an interpretation or verdict.
type Source string

const (
	SourceAI    Source = "ai"
	SourceRules Source = "rules"
)

const interpretMaxTokens = 500

// Interpreter turns raw request text into a StructuredRequest. In ModeAI it
// asks the completion capability first and validates every field of the
// answer; any failure on that path falls back to the rule-based extractor,
// so interpretation never surfaces an error to its caller.
type Interpreter struct {
	mode        Mode
	completer   llm.Completer
	graceWindow time.Duration
}

func NewInterpreter(mode Mode, completer llm.Completer, graceWindow time.Duration) *Interpreter {
	if graceWindow <= 0 {
		graceWindow = DefaultGraceWindow
	}
	return &Interpreter{mode: mode, completer: completer, graceWindow: graceWindow}
}

func (it *Interpreter) Interpret(ctx context.Context, text string, now time.Time) (StructuredRequest, Source) {
	if it.mode != ModeAI || it.completer == nil {
		return Extract(text, now), SourceRules
	}
	req, err := it.interpretAI(ctx, text, now)
	if err != nil {
		log.Warn().Err(err).Msg("interpreter: ai parsing failed, falling back to rule-based extraction")
		return Extract(text, now), SourceRules
	}
	return req, SourceAI
}

// aiParsedRequest tolerates models answering numbers as strings.
type aiParsedRequest struct {
	GPUType   string          `json:"gpuType"`
	Quantity  json.RawMessage `json:"quantity"`
	StartTime string          `json:"startTime"`
	EndTime   string          `json:"endTime"`
	Duration  json.RawMessage `json:"duration"`
}

func (it *Interpreter) interpretAI(ctx context.Context, text string, now time.Time) (StructuredRequest, error) {
	resp, err := it.completer.Complete(ctx, buildInterpretPrompt(text, now), interpretMaxTokens)
	if err != nil {
		return StructuredRequest{}, fmt.Errorf("completion: %w", err)
	}

	payload, err := llm.ExtractJSONObject(resp)
	if err != nil {
		return StructuredRequest{}, err
	}
	var parsed aiParsedRequest
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return StructuredRequest{}, fmt.Errorf("decode payload: %w", err)
	}

	req := StructuredRequest{
		GPUType:   matchGPUType(parsed.GPUType),
		Quantity:  clampInt(intField(parsed.Quantity, MinQuantity), MinQuantity, MaxQuantity),
		StartTime: it.validateTimestamp(parsed.StartTime, now),
		EndTime:   it.validateTimestamp(parsed.EndTime, now),
		Duration:  clampInt(intField(parsed.Duration, MinDurationHours), MinDurationHours, MaxDurationHours),
	}
	if !req.EndTime.After(req.StartTime) {
		req.EndTime = req.StartTime.Add(time.Duration(req.Duration) * time.Hour)
	}
	return req, nil
}

// validateTimestamp accepts an RFC3339 instant no older than the grace
// window; anything else is repaired to the next top-of-hour.
func (it *Interpreter) validateTimestamp(s string, now time.Time) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil || t.Before(now.Add(-it.graceWindow)) {
		return nextTopOfHour(now)
	}
	return t
}

// matchGPUType maps a model's answer onto the catalog: exact match first,
// then containment either way, default otherwise.
func matchGPUType(s string) GPUType {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	if normalized == "" {
		return DefaultGPUType
	}
	for _, t := range Catalog {
		if normalized == string(t) {
			return t
		}
	}
	for _, t := range Catalog {
		if strings.Contains(normalized, string(t)) || strings.Contains(string(t), normalized) {
			return t
		}
	}
	return DefaultGPUType
}

func intField(raw json.RawMessage, def int) int {
	if len(raw) == 0 {
		return def
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return def
}

func buildInterpretPrompt(text string, now time.Time) string {
	var b strings.Builder
	b.WriteString("Parse the following natural-language GPU reservation request into structured data.\n\n")
	fmt.Fprintf(&b, "Current time: %s\n\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "Request: %q\n\n", text)
	b.WriteString("Available GPU types:\n")
	for i, t := range Catalog {
		if i == 0 {
			fmt.Fprintf(&b, "- %s (default)\n", t)
		} else {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}
	b.WriteString("\nRules:\n")
	b.WriteString("1. GPU type defaults to V100 when unspecified.\n")
	b.WriteString("2. Quantity defaults to 1 when unspecified.\n")
	b.WriteString("3. Convert relative start times (tomorrow, next week) to absolute times.\n")
	b.WriteString("4. Duration defaults to 1 hour when unspecified.\n")
	b.WriteString("5. End time = start time + duration.\n\n")
	b.WriteString("Answer with this JSON object and nothing else:\n")
	b.WriteString(`{"gpuType": "...", "quantity": N, "startTime": "RFC3339", "endTime": "RFC3339", "duration": N}`)
	b.WriteString("\n")
	return b.String()
}
