package tools

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"receptionist-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// bodyProbe pulls call/assistant correlation out of the envelope when
// the platform embeds them instead of (or as well as) sending headers.
type bodyProbe struct {
	Message *struct {
		Call *struct {
			ID          string `json:"id"`
			AssistantID string `json:"assistantId"`
		} `json:"call"`
		Assistant *struct {
			ID string `json:"id"`
		} `json:"assistant"`
	} `json:"message"`
}

// Handler is the gin entry point for tool invocations. The voice
// platform speaks the `say` field of whatever JSON comes back, so
// every failure past auth/parse still answers with caller-appropriate
// text.
func (d *Dispatcher) Handler(c *gin.Context) {
	log := logger.FromGin(c)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	req := Request{
		ToolName:       c.GetHeader("x-tool-name"),
		Secret:         c.GetHeader("x-shared-secret"),
		TenantHeader:   c.GetHeader("x-tenant-id"),
		ExternalCallID: c.GetHeader("x-vapi-call-id"),
		Body:           body,
	}

	var probe bodyProbe
	if err := json.Unmarshal(body, &probe); err == nil && probe.Message != nil {
		if probe.Message.Call != nil {
			if req.ExternalCallID == "" {
				req.ExternalCallID = probe.Message.Call.ID
			}
			req.AssistantID = probe.Message.Call.AssistantID
		}
		if req.AssistantID == "" && probe.Message.Assistant != nil {
			req.AssistantID = probe.Message.Assistant.ID
		}
	}

	defer func() {
		if r := recover(); r != nil {
			id := uuid.NewString()
			log.Error("tool handler panic", "request_id", id, "tool", req.ToolName, "panic", r)
			c.JSON(http.StatusOK, Response{
				Success:   false,
				RequestID: id,
				Say:       "I'm sorry, something went wrong on my end. Let me have someone call you back.",
			})
		}
	}()

	resp, err := d.Dispatch(c.Request.Context(), req)
	switch {
	case errors.Is(err, ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, resp)
	case errors.Is(err, ErrUnknownTool):
		c.JSON(http.StatusBadRequest, resp)
	default:
		c.JSON(http.StatusOK, resp)
	}
}
