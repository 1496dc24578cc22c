package dto

import "time"

// WebhookResponse acknowledges a processed webhook.
type WebhookResponse struct {
	Message   string `json:"message"`
	EventID   string `json:"event_id"`
	Rule      string `json:"rule"`
	Scheduled bool   `json:"scheduled,omitempty"`
}

// RulesResponse lists the active override rules (name to remote id).
type RulesResponse struct {
	Rules map[string]string `json:"rules"`
}

// AuditEntryResponse is one recorded rule action.
type AuditEntryResponse struct {
	RuleName  string    `json:"rule_name"`
	Assignee  string    `json:"assignee"`
	IP        string    `json:"ip"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditResponse lists recent rule actions, newest first.
type AuditResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
