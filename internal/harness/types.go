package harness

import "github.com/roach88/daokit/internal/ir"

// TraceEvent is one applied transaction of a scenario run.
type TraceEvent struct {
	Seq       int64         `json:"seq"`
	Label     string        `json:"label"`
	TxID      string        `json:"tx_id"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Status    string        `json:"status"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Records   []TraceRecord `json:"records"`
}

// TraceRecord is a change record as it appears in a trace.
type TraceRecord struct {
	ID      string    `json:"id"`
	Emitter string    `json:"emitter"`
	Name    string    `json:"name"`
	Fields  ir.Object `json:"fields"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists the deployment and each call in order.
	Trace []TraceEvent `json:"trace"`

	// Errors explains each failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`

	// Predicted holds the addresses the blueprint predicted.
	Predicted map[string]string `json:"predicted"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		Predicted: map[string]string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
