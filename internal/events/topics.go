package events

// Topic constants for domain events emitted by the register.
const (
	TopicSaleCommitted  = "sale.committed"
	TopicCheckoutFailed = "checkout.failed"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicSaleCommitted,
		TopicCheckoutFailed,
	}
}
