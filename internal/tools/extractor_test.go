package tools

import "testing"

func TestExtract_ToolCallArrayWithStringArguments(t *testing.T) {
	body := []byte(`{"message":{"toolCalls":[{"function":{"name":"quote_estimate","arguments":"{\"service_type\":\"emergency repair\"}"}}]}}`)
	ex := Extract(body, "quote_estimate")
	if ex.Shape != ShapeToolCallArray {
		t.Fatalf("shape = %q", ex.Shape)
	}
	if got := ex.Args["service_type"]; got != "emergency repair" {
		t.Fatalf("service_type = %v", got)
	}
}

func TestExtract_ToolCallArrayWithParametersObject(t *testing.T) {
	body := []byte(`{"message":{"toolCalls":[{"function":{"name":"create_booking","parameters":{"name":"Ann","phone":"+15551234567"}}}]}}`)
	ex := Extract(body, "create_booking")
	if ex.Shape != ShapeToolCallArray {
		t.Fatalf("shape = %q", ex.Shape)
	}
	if ex.Args["name"] != "Ann" || ex.Args["phone"] != "+15551234567" {
		t.Fatalf("args = %v", ex.Args)
	}
}

func TestExtract_MatchesByPlainNameAndID(t *testing.T) {
	byName := []byte(`{"message":{"toolCalls":[{"name":"handoff_sms","arguments":{"phone":"+15551234567"}}]}}`)
	ex := Extract(byName, "handoff_sms")
	if ex.Shape != ShapeToolCallArray || ex.Args["phone"] != "+15551234567" {
		t.Fatalf("name match failed: %+v", ex)
	}

	byID := []byte(`{"message":{"toolCalls":[{"id":"update_crm_note","arguments":{"note":"hi"}}]}}`)
	ex = Extract(byID, "update_crm_note")
	if ex.Shape != ShapeToolCallArray || ex.Args["note"] != "hi" {
		t.Fatalf("id match failed: %+v", ex)
	}
}

func TestExtract_ToolCallList(t *testing.T) {
	body := []byte(`{"message":{"toolCallList":[{"name":"quote_estimate","parameters":{"service_type":"install"}}]}}`)
	ex := Extract(body, "quote_estimate")
	if ex.Shape != ShapeToolCallList {
		t.Fatalf("shape = %q", ex.Shape)
	}
	if ex.Args["service_type"] != "install" {
		t.Fatalf("args = %v", ex.Args)
	}
}

func TestExtract_SingleToolCall(t *testing.T) {
	body := []byte(`{"message":{"toolCall":{"function":{"name":"quote_estimate","arguments":"{\"service_type\":\"repair\"}"}}}}`)
	ex := Extract(body, "quote_estimate")
	if ex.Shape != ShapeSingleCall {
		t.Fatalf("shape = %q", ex.Shape)
	}
	if ex.Args["service_type"] != "repair" {
		t.Fatalf("args = %v", ex.Args)
	}
}

func TestExtract_TopLevelFunctionWrap(t *testing.T) {
	body := []byte(`{"function":{"name":"create_booking","parameters":{"name":"Bob"}}}`)
	ex := Extract(body, "create_booking")
	if ex.Shape != ShapeFunctionWrap {
		t.Fatalf("shape = %q", ex.Shape)
	}
	if ex.Args["name"] != "Bob" {
		t.Fatalf("args = %v", ex.Args)
	}
}

func TestExtract_WholeBodyFallback(t *testing.T) {
	body := []byte(`{"service_type":"maintenance","phone":"+15551234567"}`)
	ex := Extract(body, "quote_estimate")
	if ex.Shape != ShapeWholeBody {
		t.Fatalf("shape = %q", ex.Shape)
	}
	if ex.Args["service_type"] != "maintenance" {
		t.Fatalf("args = %v", ex.Args)
	}
}

func TestExtract_ArrayEntryForDifferentToolFallsThrough(t *testing.T) {
	body := []byte(`{"message":{"toolCalls":[{"function":{"name":"other_tool","arguments":{}}}]}}`)
	ex := Extract(body, "quote_estimate")
	if ex.Shape != ShapeWholeBody {
		t.Fatalf("shape = %q, want whole-body fallback", ex.Shape)
	}
}

func TestExtract_UnparseableArgumentsStringKeptRaw(t *testing.T) {
	body := []byte(`{"message":{"toolCalls":[{"function":{"name":"quote_estimate","arguments":"emergency repair please"}}]}}`)
	ex := Extract(body, "quote_estimate")
	if ex.RawArgs != "emergency repair please" {
		t.Fatalf("raw args = %q", ex.RawArgs)
	}
	if len(ex.Args) != 0 {
		t.Fatalf("args should be empty when raw kept: %v", ex.Args)
	}
}

func TestExtract_NeverPanicsOnOddBodies(t *testing.T) {
	bodies := [][]byte{
		[]byte(`null`),
		[]byte(`[]`),
		[]byte(`"just a string"`),
		[]byte(`{"message":null}`),
		[]byte(`{"message":{"toolCalls":"not-an-array"}}`),
		[]byte(``),
		[]byte(`{not json`),
	}
	for _, b := range bodies {
		ex := Extract(b, "quote_estimate")
		if ex.Args == nil {
			t.Fatalf("nil args for body %q", b)
		}
		if ex.Shape != ShapeWholeBody {
			t.Fatalf("body %q: shape = %q, want whole-body", b, ex.Shape)
		}
	}
}
