package engine

// CommandName is the discriminant tag of a host command.
type CommandName string

const (
	CmdStartSession       CommandName = "start_session"
	CmdPauseSession       CommandName = "pause_session"
	CmdResumeSession      CommandName = "resume_session"
	CmdEndSession         CommandName = "end_session"
	CmdPauseReminders     CommandName = "pause_reminders"
	CmdResumeReminders    CommandName = "resume_reminders"
	CmdCompleteBreak      CommandName = "complete_break"
	CmdSnoozeBreak        CommandName = "snooze_break"
	CmdSkipBreak          CommandName = "skip_break"
	CmdLogHydration       CommandName = "log_hydration"
	CmdGetStatus          CommandName = "get_status"
	CmdGetMetrics         CommandName = "get_metrics"
	CmdUpdateSetting      CommandName = "update_setting"
	CmdGetSettings        CommandName = "get_settings"
	CmdAddScheduleRule    CommandName = "add_schedule_rule"
	CmdUpdateScheduleRule CommandName = "update_schedule_rule"
	CmdDeleteScheduleRule CommandName = "delete_schedule_rule"
	CmdGetScheduleRules   CommandName = "get_schedule_rules"
	CmdResetAllTimers     CommandName = "reset_all_timers"
	CmdGetBreakStats      CommandName = "get_break_stats"
	CmdExportData         CommandName = "export_data"
	CmdShutdown           CommandName = "shutdown"
)

// Command is a host request. Fields beyond Cmd are optional and only
// meaningful for the commands that use them.
type Command struct {
	Cmd CommandName `json:"cmd"`

	Minutes  *int    `json:"minutes,omitempty"`
	AmountML *int    `json:"amount_ml,omitempty"`
	Key      string  `json:"key,omitempty"`
	Value    *string `json:"value,omitempty"`

	ID      *int64   `json:"id,omitempty"`
	Time    string   `json:"time,omitempty"`
	Action  string   `json:"action,omitempty"`
	Days    []string `json:"days,omitempty"`
	Title   string   `json:"title,omitempty"`
	Enabled *bool    `json:"enabled,omitempty"`

	DaysBack *int   `json:"days_back,omitempty"`
	Path     string `json:"path,omitempty"`
}
