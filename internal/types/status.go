package types

// Status is a type for the lifecycle status of a persisted resource in the
// database. It is orthogonal to the payment state machine: a row stays
// published regardless of how far its payment progressed.
// Any changes to this type should be reflected in the database schema by
// running migrations.
type Status string

const (
	StatusPublished Status = "published"
	StatusDeleted   Status = "deleted"
	StatusArchived  Status = "archived"
)

func (s Status) String() string {
	return string(s)
}
