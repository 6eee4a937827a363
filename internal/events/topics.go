package events

// Topics published on the in-process bus. Every publish is also persisted to
// the domain_events table for later inspection.
const (
	// TopicConsignmentSettled fires after a settlement commit succeeds.
	TopicConsignmentSettled = "consignment.settled"
	// TopicEventReconciled fires after a blind-count confirmation commits.
	TopicEventReconciled = "event.reconciled"
	// TopicReservationExpired fires when the sweep releases reservations.
	TopicReservationExpired = "reservation.expired"
)
