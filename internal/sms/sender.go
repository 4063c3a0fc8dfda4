package sms

import (
	"context"
	"errors"
	"sync"
	"time"

	"receptionist-platform/pkg/logger"
)

// Sender is the provider-agnostic boundary for outbound text messages.
//
// Rules:
// - No provider SDK calls outside sms adapters.
// - All requests must be tenant-scoped (tenant_id required).
type Sender interface {
	Name() string
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// SendRequest is one outbound message. To is E.164 where possible.
type SendRequest struct {
	TenantID string `json:"tenant_id"`
	To       string `json:"to"`
	Body     string `json:"body"`

	// ExternalCallID correlates the message with the call that
	// triggered it, when one exists.
	ExternalCallID string `json:"external_call_id,omitempty"`
}

type SendResult struct {
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	AcceptedAt        time.Time `json:"accepted_at"`
}

var ErrInvalidRequest = errors.New("invalid sms request")

func (r SendRequest) validate() error {
	if r.TenantID == "" || r.To == "" || r.Body == "" {
		return ErrInvalidRequest
	}
	return nil
}

// NoopSender accepts every message and delivers nothing. Used where
// actual delivery is handled out-of-band or not yet configured.
type NoopSender struct{}

func (NoopSender) Name() string { return "noop" }

func (NoopSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if err := req.validate(); err != nil {
		return SendResult{}, err
	}
	logger.From(ctx).Info("sms accepted (noop sender)",
		"tenant_id", req.TenantID, "to", req.To, "external_call_id", req.ExternalCallID)
	return SendResult{AcceptedAt: time.Now().UTC()}, nil
}

// RecordingSender captures sent messages for assertions in tests.
type RecordingSender struct {
	mu   sync.Mutex
	sent []SendRequest

	// FailSend, when set, is returned from every Send call.
	FailSend error
}

func (s *RecordingSender) Name() string { return "recording" }

func (s *RecordingSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if err := req.validate(); err != nil {
		return SendResult{}, err
	}
	if s.FailSend != nil {
		return SendResult{}, s.FailSend
	}
	s.mu.Lock()
	s.sent = append(s.sent, req)
	s.mu.Unlock()
	return SendResult{AcceptedAt: time.Now().UTC()}, nil
}

// Sent returns a copy of every accepted request.
func (s *RecordingSender) Sent() []SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SendRequest, len(s.sent))
	copy(out, s.sent)
	return out
}
