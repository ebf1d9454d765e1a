package domain

// Saga step names, in execution order. PrincipalDeletion is strictly last:
// deleting the principal earlier would strand the remaining steps with no way
// to re-authenticate and retry.
const (
	StepLocalWipe          = "local_wipe"
	StepDelegateToBackend  = "delegate_backend"
	StepCollectionsCleanup = "collections_cleanup"
	StepBlobErasure        = "blob_erasure"
	StepProfileDeletion    = "profile_deletion"
	StepPrincipalDeletion  = "principal_deletion"
)

// StepStatus is the terminal status of one saga step.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepSkipped   StepStatus = "skipped"
	StepFailed    StepStatus = "failed"
)

// StepResult records how one deletion step ended.
type StepResult struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

// DeletionOutcome is the ephemeral, per-invocation report of an account
// deletion saga. It is returned to the caller for inspection and never
// persisted.
type DeletionOutcome struct {
	UID   string       `json:"uid"`
	Steps []StepResult `json:"steps"`
}

func (o *DeletionOutcome) record(name string, status StepStatus, reason string) {
	o.Steps = append(o.Steps, StepResult{Name: name, Status: status, Reason: reason})
}

// Succeeded records a successful step.
func (o *DeletionOutcome) Succeeded(name string) { o.record(name, StepSucceeded, "") }

// Skipped records a step that did not need to run.
func (o *DeletionOutcome) Skipped(name, reason string) { o.record(name, StepSkipped, reason) }

// Failed records a step failure. The saga keeps going unless the step is
// escalating by design.
func (o *DeletionOutcome) Failed(name, reason string) { o.record(name, StepFailed, reason) }

// Step returns the recorded result for a step name, if present.
func (o *DeletionOutcome) Step(name string) (StepResult, bool) {
	for _, s := range o.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// FullyClean reports whether every recorded step succeeded or was skipped.
func (o *DeletionOutcome) FullyClean() bool {
	for _, s := range o.Steps {
		if s.Status == StepFailed {
			return false
		}
	}
	return true
}
