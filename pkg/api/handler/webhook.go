package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/policyops/isebridge/pkg/api/dto"
	"github.com/policyops/isebridge/pkg/webhook"
)

// WebhookHandler handles inbound rule-creation and rule-deletion webhooks.
type WebhookHandler struct {
	svc *webhook.Service
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(svc *webhook.Service) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

// Create godoc
// @Summary      Process a rule-creation webhook
// @Description  Validates the event and creates (or schedules) an authorization rule
// @Tags         webhook
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateWebhookRequest true "Creation event"
// @Success      200 {object} dto.WebhookResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      502 {object} dto.ErrorResponse
// @Router       /webhook/create [post]
func (h *WebhookHandler) Create(c *gin.Context) {
	var req dto.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.svc.Create(c.Request.Context(), webhook.CreateRequest{
		Assignee:    req.Assignee,
		IPAddress:   req.IPAddress,
		ActualStart: req.ActualStart,
		ActualEnd:   req.ActualEnd,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{
		Message:   "creation webhook processed successfully",
		EventID:   result.EventID,
		Rule:      result.RuleName,
		Scheduled: result.Scheduled,
	})
}

// Delete godoc
// @Summary      Process a rule-deletion webhook
// @Description  Deletes the authorization rule derived from the event
// @Tags         webhook
// @Accept       json
// @Produce      json
// @Param        request body dto.DeleteWebhookRequest true "Deletion event"
// @Success      200 {object} dto.WebhookResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      502 {object} dto.ErrorResponse
// @Router       /webhook/delete [delete]
func (h *WebhookHandler) Delete(c *gin.Context) {
	var req dto.DeleteWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.svc.Delete(c.Request.Context(), webhook.DeleteRequest{
		Assignee:  req.Assignee,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{
		Message: "deletion webhook processed successfully",
		EventID: result.EventID,
		Rule:    result.RuleName,
	})
}

// Rules godoc
// @Summary      List active override rules
// @Tags         rules
// @Produce      json
// @Success      200 {object} dto.RulesResponse
// @Router       /api/v1/rules [get]
func (h *WebhookHandler) Rules(c *gin.Context) {
	c.JSON(http.StatusOK, dto.RulesResponse{Rules: h.svc.Registry().Snapshot()})
}

// Audit godoc
// @Summary      List recent rule actions
// @Tags         rules
// @Produce      json
// @Success      200 {object} dto.AuditResponse
// @Router       /api/v1/audit [get]
func (h *WebhookHandler) Audit(c *gin.Context) {
	entries, err := h.svc.AuditStore().Recent(100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	resp := dto.AuditResponse{Entries: make([]dto.AuditEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, dto.AuditEntryResponse{
			RuleName:  e.RuleName,
			Assignee:  e.Assignee,
			IP:        e.IP,
			Action:    e.Action,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// writeError maps service errors onto the response taxonomy: validation 400,
// duplicate 409, unknown rule 404, anything else a remote failure 502.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, webhook.ErrValidation):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, webhook.ErrRuleExists):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, webhook.ErrRuleNotRegistered):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: err.Error()})
	}
}
