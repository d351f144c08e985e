package events

// Topic constants for domain events emitted by the POS engine.
const (
	TopicSaleCompleted   = "sale.completed"
	TopicSaleDueRecorded = "sale.due_recorded"
	TopicSaleFailed      = "sale.failed"
)

// DefaultTopics returns the canonical list of topics; the bus rejects emits
// outside it.
func DefaultTopics() []string {
	return []string{
		TopicSaleCompleted,
		TopicSaleDueRecorded,
		TopicSaleFailed,
	}
}

func knownTopic(topic string) bool {
	for _, known := range DefaultTopics() {
		if topic == known {
			return true
		}
	}
	return false
}
