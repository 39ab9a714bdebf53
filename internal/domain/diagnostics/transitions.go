package diagnostics

import "github.com/pathlab/pathlab/internal/platform/apperr"

// TransitionPolicy lists the sample statuses reachable from each status.
// Setting a sample to its current status is always allowed.
type TransitionPolicy struct {
	allowed map[string][]string
}

func DefaultTransitionPolicy() *TransitionPolicy {
	return &TransitionPolicy{allowed: map[string][]string{
		SampleCollectionPending: {SampleCollected, SampleDiscarded},
		SampleCollected:         {SampleInTransit, SampleReceived, SampleDiscarded},
		SampleInTransit:         {SampleReceived, SampleDiscarded},
		SampleReceived:          {SampleTested, SampleDiscarded},
		SampleTested:            {SampleDiscarded},
	}}
}

func (p *TransitionPolicy) Check(from, to string) error {
	if p == nil || from == to {
		return nil
	}
	for _, next := range p.allowed[from] {
		if next == to {
			return nil
		}
	}
	return apperr.Conflict("sample cannot move from %s to %s", from, to)
}
