package events

// Topic constants for domain events emitted by the booking flow.
const (
	TopicBookingRequested = "booking.requested"
	TopicSessionExpired   = "session.expired"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicBookingRequested,
		TopicSessionExpired,
	}
}
