package logger

// Standard field names for structured logging.
const (
	FieldInstance     = "instance"
	FieldComponent    = "component"
	FieldJobID        = "job_id"
	FieldRunID        = "run_id"
	FieldSchedule     = "schedule"
	FieldTimeZone     = "time_zone"
	FieldScheduledFor = "scheduled_for"
	FieldAttempt      = "attempt"
	FieldMethod       = "method"
	FieldURI          = "uri"
	FieldStatus       = "status"
	FieldStatusCode   = "status_code"
	FieldDurationMS   = "duration_ms"
	FieldCount        = "count"
	FieldAddress      = "address"
	FieldError        = "error"
)
