package dto

// CreateWebhookRequest is the rule-creation webhook payload.
type CreateWebhookRequest struct {
	Assignee  string `json:"assignee" binding:"required"`
	IPAddress string `json:"ip_address" binding:"required"`
	// Schedule timestamps, required only when the matching schedule
	// feature is enabled.
	ActualStart string `json:"actual_start,omitempty"`
	ActualEnd   string `json:"actual_end,omitempty"`
}

// DeleteWebhookRequest is the rule-deletion webhook payload.
type DeleteWebhookRequest struct {
	Assignee  string `json:"assignee" binding:"required"`
	IPAddress string `json:"ip_address" binding:"required"`
}
