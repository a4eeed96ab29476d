package registry

import (
	"context"
	"reflect"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/schema"
)

// ExampleFailure describes a manifest example that did not reproduce.
type ExampleFailure struct {
	Example  string         `json:"example"`
	Expected map[string]any `json:"expected,omitempty"`
	Actual   map[string]any `json:"actual,omitempty"`
	Error    *domain.Error  `json:"error,omitempty"`
}

// ExampleReport summarizes a self-test run.
type ExampleReport struct {
	NodeType string           `json:"nodeType"`
	Passed   int              `json:"passed"`
	Failed   int              `json:"failed"`
	Failures []ExampleFailure `json:"failures,omitempty"`
}

// OK reports whether every example passed.
func (r *ExampleReport) OK() bool { return r.Failed == 0 }

// ValidateExamples replays each example declared by the manifest through
// Execute and compares the outputs structurally. An example without expected
// outputs passes when execution succeeds.
func (r *Registry) ValidateExamples(ctx context.Context, nodeType string) (*ExampleReport, error) {
	e, lerr := r.lookup(nodeType)
	if lerr != nil {
		return nil, lerr
	}

	report := &ExampleReport{NodeType: nodeType}
	for _, ex := range e.def.Manifest.Examples {
		ec := &domain.ExecutionContext{
			ExecutionID: "example",
			NodeID:      "example:" + ex.Name,
			GraphID:     "examples:" + nodeType,
			Logger:      r.logger,
		}
		res := r.Execute(ctx, nodeType, ex.Inputs, ex.Config, ec)

		if !res.Success {
			report.Failed++
			report.Failures = append(report.Failures, ExampleFailure{Example: ex.Name, Error: res.Error})
			continue
		}

		if ex.ExpectedOutputs != nil {
			expected, err := schema.NormalizeMap(ex.ExpectedOutputs)
			if err != nil || !reflect.DeepEqual(expected, res.Outputs) {
				report.Failed++
				report.Failures = append(report.Failures, ExampleFailure{
					Example:  ex.Name,
					Expected: ex.ExpectedOutputs,
					Actual:   res.Outputs,
				})
				continue
			}
		}
		report.Passed++
	}
	return report, nil
}
