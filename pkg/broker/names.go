package broker

// Exchange names.
const (
	// ExchangeEvents is the primary topic exchange for domain events.
	ExchangeEvents = "events-exchange"

	// ExchangeDeadLetter receives messages that exhausted retries or were
	// rejected.
	ExchangeDeadLetter = "dead-letter-exchange"
)

// Queue names, one per purpose.
const (
	QueueSlipProcessing     = "slip-processing"
	QueueNotifications      = "notifications"
	QueueEmailNotifications = "email-notifications"
	QueuePushNotifications  = "push-notifications"
	QueueReports            = "reports"
	QueueDeadLetter         = "dead-letter"
)

// Routing keys and binding patterns.
const (
	RoutingSlipProcessing    = "slip.processing"
	RoutingSlipVerified      = "slip.verified"
	RoutingSlipRejected      = "slip.rejected"
	RoutingNotificationSend  = "notification.send"
	RoutingNotificationEmail = "notification.email"
	RoutingNotificationPush  = "notification.push"
	RoutingReportGeneration  = "report.generation"

	PatternSlip         = "slip.*"
	PatternNotification = "notification.*"
	PatternAll          = "#"
)
