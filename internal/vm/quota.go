package vm

// quota bounds one transaction: total frames entered and nesting depth.
// Execution is synchronous, so these two limits alone guarantee that every
// transaction terminates.
type quota struct {
	maxSteps int
	maxDepth int
	steps    int
}

func newQuota(maxSteps, maxDepth int) *quota {
	return &quota{maxSteps: maxSteps, maxDepth: maxDepth}
}

// enter counts a new frame at depth and fails once a limit is passed.
func (q *quota) enter(depth int) error {
	q.steps++
	if q.steps > q.maxSteps {
		return Errorf(KindStepsExceeded, "%d frames > %d limit", q.steps, q.maxSteps)
	}
	if depth > q.maxDepth {
		return Errorf(KindDepthExceeded, "depth %d > %d limit", depth, q.maxDepth)
	}
	return nil
}

// Steps returns the number of frames entered so far.
func (q *quota) Steps() int { return q.steps }
