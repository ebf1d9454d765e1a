package domain

import "time"

// NATS subjects for identity lifecycle events.
const (
	SubjectIdentityConsolidated = "identity.consolidated"
	SubjectAccountDeleted       = "identity.account.deleted"
)

// IdentityConsolidatedEvent is published after a duplicate profile has been
// merged into the survivor keyed by the current principal id.
type IdentityConsolidatedEvent struct {
	EventID      string    `json:"event_id"`
	SurvivorUID  string    `json:"survivor_uid"`
	RetiredUID   string    `json:"retired_uid"`
	Variant      Variant   `json:"variant"`
	MigratedRefs int       `json:"migrated_refs"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// AccountDeletedEvent is published after a deletion saga run, successful or
// not; consumers can inspect the per-step results.
type AccountDeletedEvent struct {
	EventID    string       `json:"event_id"`
	UID        string       `json:"uid"`
	Steps      []StepResult `json:"steps"`
	FullyClean bool         `json:"fully_clean"`
	OccurredAt time.Time    `json:"occurred_at"`
}
