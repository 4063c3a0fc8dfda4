package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"receptionist-platform/internal/calls"
	"receptionist-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Event types sent by the voice platform.
const (
	TypeAssistantRequest = "assistant-request"
	TypeStatusUpdate     = "status-update"
	TypeEndOfCallReport  = "end-of-call-report"
)

// Envelope is the platform's webhook body. Unknown fields are kept in
// the raw payload, not modeled.
type Envelope struct {
	Type string `json:"type"`
	Call struct {
		ID          string     `json:"id"`
		AssistantID string     `json:"assistantId"`
		Status      string     `json:"status"`
		Cost        float64    `json:"cost"`
		StartedAt   *time.Time `json:"startedAt"`
		EndedAt     *time.Time `json:"endedAt"`
		Customer    *struct {
			Number string `json:"number"`
			Name   string `json:"name"`
		} `json:"customer"`
		PhoneNumber *struct {
			Number string `json:"number"`
		} `json:"phoneNumber"`
		ToolCalls []struct {
			ToolName string `json:"toolName"`
			Success  bool   `json:"success"`
		} `json:"toolCalls"`
	} `json:"call"`
	Artifact *struct {
		RecordingURL string `json:"recordingUrl"`
	} `json:"artifact"`
}

// TenantResolver maps the envelope's assistant id to a tenant,
// returning "" when unknown.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, assistantID string) string
}

// Router authenticates and fans webhook events out to the call
// lifecycle handlers.
type Router struct {
	secret        string
	defaultTenant string
	resolver      TenantResolver
	callSvc       *calls.Service
	clock         func() time.Time
}

func NewRouter(secret, defaultTenant string, resolver TenantResolver, callSvc *calls.Service) *Router {
	return &Router{
		secret:        secret,
		defaultTenant: defaultTenant,
		resolver:      resolver,
		callSvc:       callSvc,
		clock:         time.Now,
	}
}

func (r *Router) WithClock(clock func() time.Time) *Router {
	r.clock = clock
	return r
}

// Handler is the gin entry point. Auth failures answer 401 and parse
// failures 400; everything past that point acknowledges with an empty
// object even when a handler fails, because the platform does not
// usefully retry and a 5xx only hides the logged error.
func (r *Router) Handler(c *gin.Context) {
	log := logger.FromGin(c)

	if c.GetHeader("x-shared-secret") != r.secret || r.secret == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Warn("webhook parse failed", "error", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	func() {
		defer func() {
			if p := recover(); p != nil {
				log.Error("webhook handler panic", "type", env.Type, "external_id", env.Call.ID, "panic", p)
			}
		}()
		if err := r.route(c.Request.Context(), env, raw); err != nil {
			log.Error("webhook handler failed", "type", env.Type, "external_id", env.Call.ID, "error", err)
		}
	}()

	c.JSON(http.StatusOK, gin.H{})
}

func (r *Router) route(ctx context.Context, env Envelope, raw []byte) error {
	ev := r.toEvent(ctx, env, raw)
	switch env.Type {
	case TypeAssistantRequest:
		_, err := r.callSvc.OnAssistantRequest(ctx, ev)
		return err
	case TypeStatusUpdate:
		return r.callSvc.OnStatusUpdate(ctx, ev)
	case TypeEndOfCallReport:
		return r.callSvc.OnEndOfCallReport(ctx, ev)
	default:
		logger.From(ctx).Warn("unknown webhook event type ignored", "type", env.Type, "external_id", env.Call.ID)
		return nil
	}
}

func (r *Router) toEvent(ctx context.Context, env Envelope, raw []byte) calls.LifecycleEvent {
	tenantID := ""
	if r.resolver != nil && env.Call.AssistantID != "" {
		tenantID = r.resolver.ResolveTenant(ctx, env.Call.AssistantID)
	}
	if tenantID == "" {
		logger.From(ctx).Warn("webhook tenant resolution fell back to default",
			"assistant_id", env.Call.AssistantID, "external_id", env.Call.ID,
			"default_tenant", r.defaultTenant)
		tenantID = r.defaultTenant
	}

	ev := calls.LifecycleEvent{
		TenantID:   tenantID,
		ExternalID: env.Call.ID,
		Status:     env.Call.Status,
		StartedAt:  env.Call.StartedAt,
		EndedAt:    env.Call.EndedAt,
		Cost:       env.Call.Cost,
		Raw:        string(raw),
		OccurredAt: r.clock().UTC(),
	}
	if env.Artifact != nil {
		ev.RecordingURL = env.Artifact.RecordingURL
	}
	for _, tc := range env.Call.ToolCalls {
		ev.ToolCalls = append(ev.ToolCalls, calls.ToolCallSummary{ToolName: tc.ToolName, Success: tc.Success})
	}
	return ev
}

// CORS allows the platform to preflight its POSTs from any origin with
// the shared-secret header.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, x-shared-secret, x-tool-name, x-vapi-call-id, x-tenant-id")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
