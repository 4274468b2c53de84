package metrics

// 카운터 이름
const (
	CounterAlertsRaised       = "alerts_raised"
	CounterAlertsCreated      = "alerts_created"
	CounterAlertsCoalesced    = "alerts_coalesced"
	CounterAlertsEscalated    = "alerts_escalated"
	CounterAlertsRateLimited  = "alerts_rate_limited"
	CounterAlertsInvalid      = "alerts_invalid"
	CounterAlertsAcknowledged = "alerts_acknowledged"
	CounterAlertsResolved     = "alerts_resolved"
	CounterAlertsAutoResolved = "alerts_auto_resolved"
	CounterDedupRaces         = "dedup_races"
	CounterStoreFailures      = "store_failures"

	CounterNotificationsInApp = "notifications_in_app"
	CounterNotificationsEmail = "notifications_email"
	CounterNotificationsMuted = "notifications_suppressed"
	CounterMailQueueFailures  = "mail_queue_failures"
	CounterDispatchFailures   = "dispatch_failures"
)

// operation 이름 (latency 샘플)
const (
	OpRaiseAlert       = "raise_alert"
	OpAcknowledgeAlert = "acknowledge_alert"
	OpResolveAlert     = "resolve_alert"
	OpAutoResolve      = "auto_resolve_alert"
	OpGetAlerts        = "get_alerts"
	OpDispatch         = "dispatch_notifications"
	OpDispatchResolved = "dispatch_resolved_notification"
)
