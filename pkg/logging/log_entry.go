package logging

// LogEntry represents a structured log record with fields particularly
// relevant to autonomy decisions.
type LogEntry struct {
	// Standard fields
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// Decision-specific fields
	ActionClass string  // The action class being evaluated
	Tier        string  // The tier the decision resolved to
	Composite   float64 // Composite score at decision time
	DecisionID  string  // Correlates entries belonging to one evaluation

	// General structured data
	Fields map[string]interface{}
}

// DecisionInfo carries the per-evaluation fields attached to log entries.
type DecisionInfo struct {
	ActionClass string
	Tier        string
	Composite   float64
}
