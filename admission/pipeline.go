package admission

import (
	"context"
	"fmt"
	"time"

	"gpu-genie-allocator/llm"
)

// AllocationQueries are the read-only storage queries the pipeline consumes.
// Implemented by the store package; kept as a local interface so the core
// stays decoupled from persistence.
type AllocationQueries interface {
	FindOverlapping(ctx context.Context, gpuType GPUType, start, end time.Time) ([]ExistingAllocation, error)
	AvailableCapacity(ctx context.Context, gpuType GPUType) (int, error)
}

// CapacityError reports that the inventory cannot cover the requested
// quantity at all, before any admission judgment is made.
type CapacityError struct {
	GPUType   GPUType
	Requested int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("insufficient %s capacity: requested %d, available %d", e.GPUType, e.Requested, e.Available)
}

// Result is the complete outcome of processing one request.
type Result struct {
	Request   StructuredRequest
	Conflicts []ExistingAllocation
	Verdict   AdmissionVerdict

	// Which path produced each stage, for observability.
	InterpretSource Source
	EvaluateSource  Source
}

const defaultAITimeout = 30 * time.Second

// PipelineConfig wires a Pipeline. Mode is an explicit value, never read
// from the environment here.
type PipelineConfig struct {
	Mode               Mode
	InterpretCompleter llm.Completer
	EvaluateCompleter  llm.Completer
	Queries            AllocationQueries
	GraceWindow        time.Duration
	AITimeout          time.Duration
	Clock              func() time.Time
}

// Pipeline runs interpretation, conflict detection, and admission evaluation
// for one request at a time. It holds no mutable state between calls.
type Pipeline struct {
	interpreter *Interpreter
	evaluator   *Evaluator
	queries     AllocationQueries
	aiTimeout   time.Duration
	clock       func() time.Time
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	aiTimeout := cfg.AITimeout
	if aiTimeout <= 0 {
		aiTimeout = defaultAITimeout
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Pipeline{
		interpreter: NewInterpreter(cfg.Mode, cfg.InterpretCompleter, cfg.GraceWindow),
		evaluator:   NewEvaluator(cfg.Mode, cfg.EvaluateCompleter),
		queries:     cfg.Queries,
		aiTimeout:   aiTimeout,
		clock:       clock,
	}
}

// ProcessRequest interprets text, detects conflicts against stored
// allocations, and evaluates admission. AI failures degrade inside the
// stages; only storage errors and capacity shortfalls surface, the latter as
// *CapacityError.
func (p *Pipeline) ProcessRequest(ctx context.Context, text string, requester Requester) (*Result, error) {
	now := p.clock()

	interpretCtx, cancel := context.WithTimeout(ctx, p.aiTimeout)
	req, interpretSource := p.interpreter.Interpret(interpretCtx, text, now)
	cancel()

	available, err := p.queries.AvailableCapacity(ctx, req.GPUType)
	if err != nil {
		return nil, fmt.Errorf("query capacity: %w", err)
	}
	if available < req.Quantity {
		return nil, &CapacityError{GPUType: req.GPUType, Requested: req.Quantity, Available: available}
	}

	overlapping, err := p.queries.FindOverlapping(ctx, req.GPUType, req.StartTime, req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("query overlapping allocations: %w", err)
	}
	conflicts := Conflicts(req, overlapping)

	evaluateCtx, cancel := context.WithTimeout(ctx, p.aiTimeout)
	verdict, evaluateSource := p.evaluator.Evaluate(evaluateCtx, req, requester, conflicts)
	cancel()

	return &Result{
		Request:         req,
		Conflicts:       conflicts,
		Verdict:         verdict,
		InterpretSource: interpretSource,
		EvaluateSource:  evaluateSource,
	}, nil
}
