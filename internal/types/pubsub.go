package types

// PubSubType selects the transport the webhook event stream rides on.
type PubSubType string

const (
	MemoryPubSub PubSubType = "memory"
)
