package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/daokit/internal/ir"
)

// Snapshot renders a result's trace and predicted addresses as canonical
// JSON. Identical scenarios yield byte-identical snapshots.
func Snapshot(name string, res *Result) ([]byte, error) {
	trace := make(ir.Array, len(res.Trace))
	for i, ev := range res.Trace {
		records := make(ir.Array, len(ev.Records))
		for j, rec := range ev.Records {
			fields := rec.Fields
			if fields == nil {
				fields = ir.Object{}
			}
			records[j] = ir.Object{
				"id":      ir.String(rec.ID),
				"emitter": ir.String(rec.Emitter),
				"name":    ir.String(rec.Name),
				"fields":  fields,
			}
		}
		event := ir.Object{
			"seq":     ir.Int(ev.Seq),
			"label":   ir.String(ev.Label),
			"tx_id":   ir.String(ev.TxID),
			"from":    ir.String(ev.From),
			"to":      ir.String(ev.To),
			"status":  ir.String(ev.Status),
			"records": records,
		}
		if ev.ErrorKind != "" {
			event["error_kind"] = ir.String(ev.ErrorKind)
		}
		trace[i] = event
	}

	predicted := ir.Object{}
	for k, v := range res.Predicted {
		predicted[k] = ir.String(v)
	}
	return ir.MarshalCanonical(ir.Object{
		"scenario_name": ir.String(name),
		"predicted":     predicted,
		"trace":         trace,
	})
}

// RunWithGolden runs a scenario and compares its snapshot against
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	res, err := Run(t.Context(), sc)
	if err != nil {
		return nil, err
	}
	return res, AssertGolden(t, sc.Name, res, opts...)
}

// AssertGolden compares an existing result against its golden file. opts
// are applied after the default fixture directory and suffix.
func AssertGolden(t *testing.T, name string, res *Result, opts ...goldie.Option) error {
	t.Helper()

	snap, err := Snapshot(name, res)
	if err != nil {
		return err
	}
	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, name, snap)
	return nil
}
