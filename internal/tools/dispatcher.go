package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"receptionist-platform/internal/bookings"
	"receptionist-platform/internal/invocations"
	"receptionist-platform/internal/quotes"
	"receptionist-platform/internal/sms"
	"receptionist-platform/pkg/logger"

	"github.com/google/uuid"
)

// Tool names as registered with the voice platform.
const (
	ToolCreateBooking = "create_booking"
	ToolQuoteEstimate = "quote_estimate"
	ToolHandoffSMS    = "handoff_sms"
	ToolUpdateCRMNote = "update_crm_note"
)

// TenantResolver maps a voice-platform assistant id to a tenant id,
// returning "" when the assistant is unknown.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, assistantID string) string
}

// Request is one inbound tool invocation, already lifted out of HTTP.
type Request struct {
	ToolName       string
	Secret         string // raw x-shared-secret header value
	TenantHeader   string // optional explicit tenant
	ExternalCallID string
	AssistantID    string
	Body           []byte
}

// Response is what the voice platform speaks and logs. Say is read to
// the caller verbatim, so it must never carry internals.
type Response struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	Say       string `json:"say,omitempty"`
	Error     string `json:"error,omitempty"`

	// Booking success extras.
	Confirmation string `json:"confirmation,omitempty"`
	BookingID    string `json:"booking_id,omitempty"`

	// Quote extras.
	QuoteLabel string `json:"quote_label,omitempty"`
	QuoteRange string `json:"quote_range,omitempty"`
}

var (
	ErrUnauthorized = errors.New("bad tool secret")
	ErrUnknownTool  = errors.New("unknown tool")
)

// Dispatcher authenticates tool invocations, resolves the owning
// tenant, and routes to the per-tool handlers.
type Dispatcher struct {
	secret        string
	defaultTenant string

	resolver  TenantResolver
	bookings  *bookings.Service
	quoteLog  *invocations.Service
	smsSender sms.Sender
}

func NewDispatcher(secret, defaultTenant string, resolver TenantResolver, bookingSvc *bookings.Service, invocationSvc *invocations.Service, sender sms.Sender) *Dispatcher {
	return &Dispatcher{
		secret:        secret,
		defaultTenant: defaultTenant,
		resolver:      resolver,
		bookings:      bookingSvc,
		quoteLog:      invocationSvc,
		smsSender:     sender,
	}
}

// Authenticate checks the shared secret, tolerating a Bearer prefix.
func (d *Dispatcher) Authenticate(secret string) error {
	s := strings.TrimPrefix(secret, "Bearer ")
	if d.secret == "" || s != d.secret {
		return ErrUnauthorized
	}
	return nil
}

// ResolveTenant applies the resolution chain: explicit header, then
// assistant registry, then the configured default.
//
// The default-tenant fallback can misattribute a call when both the
// header and the registry lookup fail; resolution logs a warning on
// that path so misrouted traffic is visible.
func (d *Dispatcher) ResolveTenant(ctx context.Context, req Request) string {
	if req.TenantHeader != "" {
		return req.TenantHeader
	}
	if d.resolver != nil && req.AssistantID != "" {
		if t := d.resolver.ResolveTenant(ctx, req.AssistantID); t != "" {
			return t
		}
	}
	logger.From(ctx).Warn("tenant resolution fell back to default",
		"assistant_id", req.AssistantID, "external_call_id", req.ExternalCallID,
		"default_tenant", d.defaultTenant)
	return d.defaultTenant
}

// Dispatch runs one tool invocation end to end. The error return is
// only for operator-facing failures (auth, unknown tool); handler
// failures come back as a spoken apology with Success=false.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Response, error) {
	requestID := uuid.NewString()

	if err := d.Authenticate(req.Secret); err != nil {
		return Response{Success: false, RequestID: requestID, Error: "unauthorized"}, err
	}

	tenantID := d.ResolveTenant(ctx, req)
	ex := Extract(req.Body, req.ToolName)
	log := logger.From(ctx).With(
		"request_id", requestID, "tenant_id", tenantID,
		"tool", req.ToolName, "shape", string(ex.Shape),
		"external_call_id", req.ExternalCallID)

	var resp Response
	switch req.ToolName {
	case ToolCreateBooking:
		resp = d.handleCreateBooking(ctx, tenantID, req, ex)
	case ToolQuoteEstimate:
		resp = d.handleQuoteEstimate(ctx, tenantID, req, ex)
	case ToolHandoffSMS:
		resp = d.handleHandoffSMS(ctx, tenantID, req, ex)
	case ToolUpdateCRMNote:
		resp = d.handleUpdateCRMNote(ctx, tenantID, req, ex)
	default:
		log.Warn("unknown tool invoked")
		return Response{Success: false, RequestID: requestID, Error: "unknown tool: " + req.ToolName}, ErrUnknownTool
	}

	resp.RequestID = requestID
	d.logInvocation(ctx, tenantID, req, ex, resp)
	log.Info("tool invocation handled", "success", resp.Success)
	return resp, nil
}

func (d *Dispatcher) handleCreateBooking(ctx context.Context, tenantID string, req Request, ex Extraction) Response {
	createReq := bookings.CreateRequest{
		TenantID:       tenantID,
		CustomerName:   str(ex.Args, "name", "customer_name"),
		CustomerPhone:  str(ex.Args, "phone", "customer_phone"),
		Address:        str(ex.Args, "address"),
		PreferredTime:  str(ex.Args, "preferred_time", "time_window"),
		ServiceSummary: str(ex.Args, "service_type", "service", "issue"),
		Priority:       str(ex.Args, "priority"),
		ExternalCallID: req.ExternalCallID,
	}

	b, err := d.bookings.Create(ctx, createReq)
	if err != nil {
		if errors.Is(err, bookings.ErrInvalidRequest) {
			return Response{
				Success: false,
				Say:     "I'm sorry, I couldn't confirm that booking. Could you please verify your phone number and address for me?",
			}
		}
		logger.From(ctx).Error("booking persistence failed",
			"tenant_id", tenantID, "external_call_id", req.ExternalCallID, "error", err)
		return Response{
			Success: false,
			Say:     "I'm sorry, I'm having trouble saving that right now. I'll make sure someone calls you back shortly to finish scheduling.",
		}
	}

	return Response{
		Success:      true,
		Say:          bookings.SpeakableConfirmation(b),
		Confirmation: b.ConfirmationCode,
		BookingID:    b.ID,
	}
}

func (d *Dispatcher) handleQuoteEstimate(ctx context.Context, tenantID string, req Request, ex Extraction) Response {
	serviceType := str(ex.Args, "service_type", "service")
	if serviceType == "" && ex.RawArgs != "" {
		serviceType = ex.RawArgs
	}

	band := quotes.Classify(serviceType)
	return Response{
		Success:    true,
		Say:        band.Speakable(),
		QuoteLabel: band.Label,
		QuoteRange: band.Range(),
	}
}

func (d *Dispatcher) handleHandoffSMS(ctx context.Context, tenantID string, req Request, ex Extraction) Response {
	phone := str(ex.Args, "phone", "customer_phone")
	reason := str(ex.Args, "reason", "topic")

	if d.smsSender != nil && phone != "" {
		_, err := d.smsSender.Send(ctx, sms.SendRequest{
			TenantID:       tenantID,
			To:             phone,
			Body:           handoffBody(reason),
			ExternalCallID: req.ExternalCallID,
		})
		if err != nil {
			logger.From(ctx).Error("handoff sms send failed",
				"tenant_id", tenantID, "external_call_id", req.ExternalCallID, "error", err)
		}
	}

	return Response{
		Success: true,
		Say:     "Of course. I've passed your details along and someone from the team will call you back within the next fifteen minutes.",
	}
}

func (d *Dispatcher) handleUpdateCRMNote(ctx context.Context, tenantID string, req Request, ex Extraction) Response {
	return Response{
		Success: true,
		Say:     "Got it, I've made a note of that.",
	}
}

// logInvocation records the handled tool call, failures included, with
// the response the caller heard. Skipped, not an error, when no call id
// is available yet.
func (d *Dispatcher) logInvocation(ctx context.Context, tenantID string, req Request, ex Extraction, resp Response) {
	if d.quoteLog == nil || req.ExternalCallID == "" {
		return
	}
	args := ex.RawArgs
	if args == "" {
		if raw, err := json.Marshal(ex.Args); err == nil {
			args = string(raw)
		}
	}
	var response string
	if raw, err := json.Marshal(resp); err == nil {
		response = string(raw)
	}
	_ = d.quoteLog.Log(ctx, invocations.Record{
		TenantID:       tenantID,
		ExternalCallID: req.ExternalCallID,
		ToolName:       req.ToolName,
		RequestArgs:    args,
		Response:       response,
		Success:        resp.Success,
	})
}

func handoffBody(reason string) string {
	if reason != "" {
		return "Thanks for calling. A team member will call you back within 15 minutes about: " + reason
	}
	return "Thanks for calling. A team member will call you back within 15 minutes."
}

// str returns the first present, non-empty string value among keys.
func str(args map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := args[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
