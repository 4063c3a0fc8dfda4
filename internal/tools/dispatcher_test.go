package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"receptionist-platform/internal/bookings"
	"receptionist-platform/internal/invocations"
	"receptionist-platform/internal/sms"
)

type staticResolver map[string]string

func (r staticResolver) ResolveTenant(ctx context.Context, assistantID string) string {
	return r[assistantID]
}

type fixture struct {
	dispatcher  *Dispatcher
	bookingRepo *bookings.MemoryRepo
	invRepo     *invocations.MemoryRepo
	sender      *sms.RecordingSender
}

func newFixture(resolver TenantResolver) *fixture {
	f := &fixture{
		bookingRepo: bookings.NewMemoryRepo(),
		invRepo:     invocations.NewMemoryRepo(),
		sender:      &sms.RecordingSender{},
	}
	f.dispatcher = NewDispatcher("s3cret", "tenant-default", resolver,
		bookings.NewService(f.bookingRepo), invocations.NewService(f.invRepo), f.sender)
	return f
}

func TestAuthenticate(t *testing.T) {
	d := newFixture(nil).dispatcher
	if err := d.Authenticate("s3cret"); err != nil {
		t.Fatalf("plain secret rejected: %v", err)
	}
	if err := d.Authenticate("Bearer s3cret"); err != nil {
		t.Fatalf("bearer-prefixed secret rejected: %v", err)
	}
	for _, bad := range []string{"", "wrong", "Bearer wrong", "bearer s3cret"} {
		if err := d.Authenticate(bad); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("Authenticate(%q): err = %v, want ErrUnauthorized", bad, err)
		}
	}
}

func TestDispatch_BadSecretRunsNoHandler(t *testing.T) {
	f := newFixture(nil)
	resp, err := f.dispatcher.Dispatch(context.Background(), Request{
		ToolName: ToolCreateBooking,
		Secret:   "wrong",
		Body:     []byte(`{"name":"Ann","phone":"+15551234567","address":"1 Main St"}`),
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if resp.Success || resp.Say != "" {
		t.Fatalf("unauthorized response leaked content: %+v", resp)
	}
	if len(f.bookingRepo.Rows()) != 0 {
		t.Fatalf("handler ran despite bad secret")
	}
}

func TestResolveTenant_Chain(t *testing.T) {
	f := newFixture(staticResolver{"asst-1": "tenant-a"})
	ctx := context.Background()

	if got := f.dispatcher.ResolveTenant(ctx, Request{TenantHeader: "tenant-h", AssistantID: "asst-1"}); got != "tenant-h" {
		t.Fatalf("header should win, got %q", got)
	}
	if got := f.dispatcher.ResolveTenant(ctx, Request{AssistantID: "asst-1"}); got != "tenant-a" {
		t.Fatalf("registry lookup, got %q", got)
	}
	if got := f.dispatcher.ResolveTenant(ctx, Request{AssistantID: "asst-unknown"}); got != "tenant-default" {
		t.Fatalf("default fallback, got %q", got)
	}
}

func TestDispatch_QuoteEmergencyBand(t *testing.T) {
	f := newFixture(nil)
	body := []byte(`{"message":{"toolCalls":[{"function":{"name":"quote_estimate","arguments":"{\"service_type\":\"emergency repair\"}"}}]}}`)

	resp, err := f.dispatcher.Dispatch(context.Background(), Request{
		ToolName: ToolQuoteEstimate,
		Secret:   "s3cret",
		Body:     body,
	})
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if !resp.Success {
		t.Fatalf("success = false: %+v", resp)
	}
	if resp.QuoteRange != "$150-$250" {
		t.Fatalf("range = %q, want emergency band", resp.QuoteRange)
	}
	if resp.Say == "" || resp.RequestID == "" {
		t.Fatalf("missing say or request id: %+v", resp)
	}
}

func TestDispatch_BookingSuccess(t *testing.T) {
	f := newFixture(nil)
	body := []byte(`{"function":{"name":"create_booking","parameters":{"name":"Ann Lee","phone":"+1 (555) 123-4567","address":"1 Main St","preferred_time":"tomorrow 9-11","service_type":"leak repair"}}}`)

	resp, err := f.dispatcher.Dispatch(context.Background(), Request{
		ToolName:       ToolCreateBooking,
		Secret:         "s3cret",
		ExternalCallID: "abc123",
		Body:           body,
	})
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if !resp.Success {
		t.Fatalf("success = false: %+v", resp)
	}
	if len(resp.Confirmation) != 8 {
		t.Fatalf("confirmation = %q", resp.Confirmation)
	}
	if resp.BookingID == "" {
		t.Fatalf("missing booking id")
	}

	rows := f.bookingRepo.Rows()
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0].CallID != nil {
		t.Fatalf("call id should start unlinked")
	}
	if rows[0].ExternalCallID != "abc123" {
		t.Fatalf("external call id = %q", rows[0].ExternalCallID)
	}
}

func TestDispatch_BookingMissingPhoneWritesNothing(t *testing.T) {
	f := newFixture(nil)
	body := []byte(`{"function":{"parameters":{"name":"Ann","address":"1 Main St"}}}`)

	resp, err := f.dispatcher.Dispatch(context.Background(), Request{
		ToolName: ToolCreateBooking,
		Secret:   "s3cret",
		Body:     body,
	})
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if resp.Success {
		t.Fatalf("expected validation failure")
	}
	if !strings.Contains(resp.Say, "phone") {
		t.Fatalf("say should ask to verify phone: %q", resp.Say)
	}
	if len(f.bookingRepo.Rows()) != 0 {
		t.Fatalf("record written despite validation failure")
	}
}

func TestDispatch_BookingPersistenceFailureSpeaksApology(t *testing.T) {
	f := newFixture(nil)
	f.bookingRepo.FailInsert = errors.New("db down")
	body := []byte(`{"function":{"parameters":{"name":"Ann","phone":"+15551234567","address":"1 Main St"}}}`)

	resp, err := f.dispatcher.Dispatch(context.Background(), Request{
		ToolName: ToolCreateBooking,
		Secret:   "s3cret",
		Body:     body,
	})
	if err != nil {
		t.Fatalf("dispatch must not surface handler errors: %v", err)
	}
	if resp.Success {
		t.Fatalf("expected failure response")
	}
	if resp.Say == "" || strings.Contains(resp.Say, "db down") {
		t.Fatalf("say missing or leaks internals: %q", resp.Say)
	}
}

func TestDispatch_HandoffSendsSMSAndLogs(t *testing.T) {
	f := newFixture(nil)
	body := []byte(`{"function":{"parameters":{"phone":"+15551234567","reason":"pricing question"}}}`)

	resp, err := f.dispatcher.Dispatch(context.Background(), Request{
		ToolName:       ToolHandoffSMS,
		Secret:         "s3cret",
		ExternalCallID: "abc123",
		Body:           body,
	})
	if err != nil || !resp.Success {
		t.Fatalf("dispatch: %+v, %v", resp, err)
	}

	sent := f.sender.Sent()
	if len(sent) != 1 || sent[0].To != "+15551234567" {
		t.Fatalf("sent = %+v", sent)
	}
	if sent[0].TenantID != "tenant-default" {
		t.Fatalf("sms tenant = %q", sent[0].TenantID)
	}

	recs, err := f.invRepo.ListByCall(context.Background(), "tenant-default", "abc123")
	if err != nil || len(recs) != 1 {
		t.Fatalf("invocation log: %v, %v", recs, err)
	}
	if recs[0].ToolName != ToolHandoffSMS {
		t.Fatalf("logged tool = %q", recs[0].ToolName)
	}
}

func TestDispatch_LogsResponsePayload(t *testing.T) {
	f := newFixture(nil)
	body := []byte(`{"message":{"toolCalls":[{"function":{"name":"quote_estimate","arguments":"{\"service_type\":\"emergency repair\"}"}}]}}`)

	resp, err := f.dispatcher.Dispatch(context.Background(), Request{
		ToolName:       ToolQuoteEstimate,
		Secret:         "s3cret",
		ExternalCallID: "abc123",
		Body:           body,
	})
	if err != nil || !resp.Success {
		t.Fatalf("dispatch: %+v, %v", resp, err)
	}

	recs, err := f.invRepo.ListByCall(context.Background(), "tenant-default", "abc123")
	if err != nil || len(recs) != 1 {
		t.Fatalf("invocation log: %v, %v", recs, err)
	}
	if !recs[0].Success {
		t.Fatalf("logged success = false")
	}
	if recs[0].Response == "" {
		t.Fatalf("response payload not recorded")
	}
	if !strings.Contains(recs[0].Response, resp.QuoteRange) {
		t.Fatalf("recorded response %q missing quote range %q", recs[0].Response, resp.QuoteRange)
	}
	if !strings.Contains(recs[0].RequestArgs, "emergency repair") {
		t.Fatalf("recorded args %q missing service type", recs[0].RequestArgs)
	}
}

func TestDispatch_LogsFailedInvocation(t *testing.T) {
	f := newFixture(nil)
	body := []byte(`{"function":{"parameters":{"name":"Ann","address":"1 Main St"}}}`)

	resp, err := f.dispatcher.Dispatch(context.Background(), Request{
		ToolName:       ToolCreateBooking,
		Secret:         "s3cret",
		ExternalCallID: "abc123",
		Body:           body,
	})
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if resp.Success {
		t.Fatalf("expected validation failure")
	}

	recs, err := f.invRepo.ListByCall(context.Background(), "tenant-default", "abc123")
	if err != nil || len(recs) != 1 {
		t.Fatalf("failed invocation not logged: %v, %v", recs, err)
	}
	if recs[0].Success {
		t.Fatalf("logged success = true for a failed invocation")
	}
	if recs[0].Response == "" {
		t.Fatalf("response payload not recorded for failure")
	}
}

func TestDispatch_InvocationLogSkippedWithoutCallID(t *testing.T) {
	f := newFixture(nil)
	resp, err := f.dispatcher.Dispatch(context.Background(), Request{
		ToolName: ToolQuoteEstimate,
		Secret:   "s3cret",
		Body:     []byte(`{"service_type":"repair"}`),
	})
	if err != nil || !resp.Success {
		t.Fatalf("dispatch: %+v, %v", resp, err)
	}
	if rows := f.invRepo.Rows(); len(rows) != 0 {
		t.Fatalf("logged without a call id: %+v", rows)
	}
}

func TestDispatch_UnknownToolNoSay(t *testing.T) {
	f := newFixture(nil)
	resp, err := f.dispatcher.Dispatch(context.Background(), Request{
		ToolName: "delete_everything",
		Secret:   "s3cret",
		Body:     []byte(`{}`),
	})
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("err = %v, want ErrUnknownTool", err)
	}
	if resp.Say != "" {
		t.Fatalf("unknown tool must not produce speakable text: %q", resp.Say)
	}
	if resp.Error == "" {
		t.Fatalf("operator-facing error missing")
	}
}

func TestDispatch_CRMNoteAck(t *testing.T) {
	f := newFixture(nil)
	resp, err := f.dispatcher.Dispatch(context.Background(), Request{
		ToolName:       ToolUpdateCRMNote,
		Secret:         "s3cret",
		ExternalCallID: "abc123",
		Body:           []byte(`{"note":"caller prefers mornings"}`),
	})
	if err != nil || !resp.Success || resp.Say == "" {
		t.Fatalf("dispatch: %+v, %v", resp, err)
	}
}
