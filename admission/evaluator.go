package admission

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/rs/zerolog/log"

	"gpu-genie-allocator/llm"
)

const (
	evaluateMaxTokens = 1000

	fallbackPriority  = 50
	fallbackReasoning = "AI evaluation failed; applied default priority pending manual confirmation."
	defaultReasoning  = "AI evaluation completed."
)

// Evaluator scores a request and recommends an admission action. Every path
// terminates in a valid verdict: the AI path degrades to a fixed fallback
// verdict on any failure, and ModeRules produces a bounded mock score for
// non-production use.
type Evaluator struct {
	mode      Mode
	completer llm.Completer
}

func NewEvaluator(mode Mode, completer llm.Completer) *Evaluator {
	return &Evaluator{mode: mode, completer: completer}
}

func (ev *Evaluator) Evaluate(ctx context.Context, req StructuredRequest, requester Requester, conflicts []ExistingAllocation) (AdmissionVerdict, Source) {
	if ev.mode != ModeAI || ev.completer == nil {
		return mockVerdict(req, requester), SourceRules
	}
	verdict, err := ev.evaluateAI(ctx, req, requester, conflicts)
	if err != nil {
		log.Warn().Err(err).Str("userId", requester.ID).Msg("evaluator: ai scoring failed, applying fallback verdict")
		return AdmissionVerdict{
			PriorityScore:  fallbackPriority,
			Reasoning:      fallbackReasoning,
			Recommendation: RecommendConfirmation,
		}, SourceRules
	}
	return verdict, SourceAI
}

// mockVerdict returns a bounded pseudo-random score in [50,90] for demo and
// development runs where no model is wired up.
func mockVerdict(req StructuredRequest, requester Requester) AdmissionVerdict {
	score := 50 + rand.IntN(41)
	return AdmissionVerdict{
		PriorityScore: score,
		Reasoning: fmt.Sprintf(
			"Mock evaluation. User base priority %d, requested %s x%d for %dh; overall score %d.",
			requester.BasePriority, req.GPUType, req.Quantity, req.Duration, score),
		Recommendation: RecommendationForScore(score),
	}
}

type aiVerdict struct {
	Priority       json.RawMessage `json:"priority"`
	Reasoning      string          `json:"reasoning"`
	Recommendation string          `json:"recommendation"`
}

func (ev *Evaluator) evaluateAI(ctx context.Context, req StructuredRequest, requester Requester, conflicts []ExistingAllocation) (AdmissionVerdict, error) {
	resp, err := ev.completer.Complete(ctx, buildEvaluatePrompt(req, requester, conflicts), evaluateMaxTokens)
	if err != nil {
		return AdmissionVerdict{}, fmt.Errorf("completion: %w", err)
	}

	payload, err := llm.ExtractJSONObject(resp)
	if err != nil {
		return AdmissionVerdict{}, err
	}
	var parsed aiVerdict
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return AdmissionVerdict{}, fmt.Errorf("decode payload: %w", err)
	}

	verdict := AdmissionVerdict{
		PriorityScore:  clampInt(intField(parsed.Priority, fallbackPriority), 0, 100),
		Reasoning:      parsed.Reasoning,
		Recommendation: RecommendConfirmation,
	}
	if verdict.Reasoning == "" {
		verdict.Reasoning = defaultReasoning
	}
	switch Recommendation(parsed.Recommendation) {
	case RecommendApprove, RecommendConfirmation, RecommendReject:
		verdict.Recommendation = Recommendation(parsed.Recommendation)
	}
	return verdict, nil
}

func buildEvaluatePrompt(req StructuredRequest, requester Requester, conflicts []ExistingAllocation) string {
	conflictInfo := "no conflicting reservations"
	if len(conflicts) > 0 {
		conflictInfo = fmt.Sprintf("%d conflicting reservation(s)", len(conflicts))
	}

	var b strings.Builder
	b.WriteString("You are scoring a GPU reservation request. Decide a priority score (0-100) and a recommended action.\n\n")
	b.WriteString("Reservation:\n")
	fmt.Fprintf(&b, "- GPU type: %s\n", req.GPUType)
	fmt.Fprintf(&b, "- Quantity: %d\n", req.Quantity)
	fmt.Fprintf(&b, "- Duration: %d hours\n", req.Duration)
	fmt.Fprintf(&b, "- Window: %s to %s\n\n", req.StartTime.Format("2006-01-02 15:04"), req.EndTime.Format("2006-01-02 15:04"))
	b.WriteString("User:\n")
	fmt.Fprintf(&b, "- ID: %s\n", requester.ID)
	fmt.Fprintf(&b, "- Name: %s\n", requester.Name)
	fmt.Fprintf(&b, "- Role: %s\n", requester.Role)
	fmt.Fprintf(&b, "- Base priority: %d\n\n", requester.BasePriority)
	fmt.Fprintf(&b, "Resource status: %s\n\n", conflictInfo)
	b.WriteString("Scoring criteria:\n")
	b.WriteString("1. User role and track record (0-30)\n")
	b.WriteString("2. Urgency and importance of the request (0-25)\n")
	b.WriteString("3. Resource usage efficiency (0-25)\n")
	b.WriteString("4. Fairness and waiting time (0-20)\n\n")
	b.WriteString("Recommended actions:\n")
	b.WriteString("- approve: score 70 or above, approve immediately\n")
	b.WriteString("- request_confirmation: score 40-69, needs confirmation\n")
	b.WriteString("- reject: score below 40\n\n")
	b.WriteString("Answer with this JSON object and nothing else:\n")
	b.WriteString(`{"priority": N, "reasoning": "...", "recommendation": "approve/request_confirmation/reject"}`)
	b.WriteString("\n")
	return b.String()
}
