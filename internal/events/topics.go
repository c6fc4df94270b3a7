package events

// Topic constants for domain events emitted by the engine.
const (
	TopicOrderCreated  = "order.created"
	TopicSaleCompleted = "sale.completed"
	TopicSaleParked    = "sale.parked"
	TopicSaleResumed   = "sale.resumed"
)

// DefaultTopics returns the topics the worker subscribes to.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicSaleCompleted,
		TopicSaleParked,
		TopicSaleResumed,
	}
}
