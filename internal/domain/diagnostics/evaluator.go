package diagnostics

import (
	"github.com/pathlab/pathlab/internal/domain/catalog"
	"github.com/pathlab/pathlab/internal/domain/identity"
)

// StatusNormal is reported for every value by NormalEvaluator.
const StatusNormal = "Normal"

// RangeEvaluator classifies a result value against the parameter's
// reference ranges for the patient.
type RangeEvaluator interface {
	Evaluate(value string, p *catalog.Parameter, patient *identity.Patient) string
}

// NormalEvaluator performs no range comparison.
type NormalEvaluator struct{}

func (NormalEvaluator) Evaluate(string, *catalog.Parameter, *identity.Patient) string {
	return StatusNormal
}
