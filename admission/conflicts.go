package admission

// Conflicts returns the existing allocations that block proposed: confirmed
// status, same GPU type, overlapping time window (half-open, so back-to-back
// windows do not touch), and a reserved quantity at least as large as the
// proposed one. Pure and order-preserving over its input.
//
// Note the per-allocation quantity comparison: several smaller overlapping
// allocations that jointly exhaust capacity are not reported here. Summing
// them needs the inventory model behind the store; the capacity precheck in
// the pipeline covers part of that gap.
func Conflicts(proposed StructuredRequest, allocations []ExistingAllocation) []ExistingAllocation {
	conflicts := []ExistingAllocation{}
	for _, a := range allocations {
		if a.Status != StatusConfirmed {
			continue
		}
		if a.GPUType != proposed.GPUType {
			continue
		}
		if !a.EndTime.After(proposed.StartTime) || !a.StartTime.Before(proposed.EndTime) {
			continue
		}
		if a.Quantity < proposed.Quantity {
			continue
		}
		conflicts = append(conflicts, a)
	}
	return conflicts
}
