package domain

// ErrorCategory classifies where a failure originated
type ErrorCategory string

const (
	CategoryAPIFailure  ErrorCategory = "api_failure"
	CategoryDatabase    ErrorCategory = "database_error"
	CategoryRuntime     ErrorCategory = "runtime_error"
	CategoryPerformance ErrorCategory = "performance_issue"
)

// Severity ranks how urgently operators should care about a failure
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ErrorEvent is one captured failure. Created at the moment an intercepted
// operation fails, never mutated afterwards.
type ErrorEvent struct {
	Category ErrorCategory  `json:"category"`
	Source   string         `json:"source"`
	Message  string         `json:"message"`
	Stack    string         `json:"stack,omitempty"`
	Context  map[string]any `json:"context,omitempty"`
}
