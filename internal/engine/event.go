package engine

// EventType tags an outbound event.
type EventType string

const (
	EventReady   EventType = "ready"
	EventMetrics EventType = "metrics"
	EventStatus  EventType = "status"
	EventError   EventType = "error"

	EventBreakDue       EventType = "break_due"
	EventBreakCompleted EventType = "break_completed"
	EventBreakSnoozed   EventType = "break_snoozed"
	EventBreakSkipped   EventType = "break_skipped"
	EventTimersReset    EventType = "timers_reset"

	EventSessionStarted EventType = "session_started"
	EventSessionPaused  EventType = "session_paused"
	EventSessionResumed EventType = "session_resumed"
	EventSessionEnded   EventType = "session_ended"

	EventRemindersPaused  EventType = "reminders_paused"
	EventRemindersResumed EventType = "reminders_resumed"

	EventHydrationLogged EventType = "hydration_logged"

	EventSettings       EventType = "settings"
	EventSettingUpdated EventType = "setting_updated"

	EventScheduleRules          EventType = "schedule_rules"
	EventScheduleRuleAdded      EventType = "schedule_rule_added"
	EventScheduleRuleUpdated    EventType = "schedule_rule_updated"
	EventScheduleRuleDeleted    EventType = "schedule_rule_deleted"
	EventScheduleWarning        EventType = "schedule_warning"
	EventScheduleActionExecuted EventType = "schedule_action_executed"

	EventBreakStats   EventType = "break_stats"
	EventDataExported EventType = "data_exported"
	EventShutdownAck  EventType = "shutdown_ack"
)

// Event is an outbound message to the host.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// Sink receives every event the engine emits. Implementations must be safe
// for calls from the engine goroutine.
type Sink func(Event)
