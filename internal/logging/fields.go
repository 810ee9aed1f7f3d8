package logging

// Standardized structured-log field names. Components must use these constants
// instead of ad hoc keys so downstream log filtering stays stable.
const (
	FieldComponent  = "component"
	FieldSessionID  = "session_id"
	FieldJobID      = "job_id"
	FieldIdentity   = "identity"
	FieldAttempt    = "attempt"
	FieldStrategy   = "strategy"
	FieldCategory   = "error_category"
	FieldEventType  = "event_type"
	FieldErrorHint  = "error_hint"
	FieldSourcePath = "source_path"
	FieldOutputPath = "output_path"
)
