package tools

import "encoding/json"

// The voice platform's tool-call webhook format has changed across
// versions and several shapes coexist in production. Extract probes
// each known shape in order and takes the first match; it never fails
// on a parseable JSON body, degrading to the whole body as arguments.

// Shape identifies which decoder matched, for logging.
type Shape string

const (
	ShapeToolCallArray Shape = "message.toolCalls"
	ShapeToolCallList  Shape = "message.toolCallList"
	ShapeSingleCall    Shape = "message.toolCall"
	ShapeFunctionWrap  Shape = "function"
	ShapeWholeBody     Shape = "body"
)

// Extraction is the located arguments for one tool plus provenance.
type Extraction struct {
	Args       map[string]any
	RawArgs    string // set when arguments arrived as an unparseable string
	ToolCallID string
	Shape      Shape
}

type functionField struct {
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments"`
	Parameters map[string]any  `json:"parameters"`
}

type toolCallEntry struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Function   *functionField  `json:"function"`
	Arguments  json.RawMessage `json:"arguments"`
	Parameters map[string]any  `json:"parameters"`
}

type envelope struct {
	Message *struct {
		ToolCalls    []toolCallEntry `json:"toolCalls"`
		ToolCallList []toolCallEntry `json:"toolCallList"`
		ToolCall     *toolCallEntry  `json:"toolCall"`
	} `json:"message"`
	Function *functionField `json:"function"`
}

// Extract locates the named tool's arguments in body. The returned
// Extraction always has either Args or RawArgs populated; a body that
// matches no known shape comes back whole under ShapeWholeBody.
func Extract(body []byte, toolName string) Extraction {
	var env envelope
	// A decode failure here only means the typed probe shapes are
	// absent; the whole-body fallback still applies.
	_ = json.Unmarshal(body, &env)

	if env.Message != nil {
		if ex, ok := fromEntries(env.Message.ToolCalls, toolName, ShapeToolCallArray); ok {
			return ex
		}
		if ex, ok := fromEntries(env.Message.ToolCallList, toolName, ShapeToolCallList); ok {
			return ex
		}
		if env.Message.ToolCall != nil {
			if ex, ok := fromEntry(*env.Message.ToolCall, toolName, ShapeSingleCall); ok {
				return ex
			}
		}
	}
	if env.Function != nil && (env.Function.Name == "" || env.Function.Name == toolName) {
		ex := resolveArgs(env.Function.Parameters, env.Function.Arguments)
		ex.Shape = ShapeFunctionWrap
		return ex
	}

	var whole map[string]any
	if err := json.Unmarshal(body, &whole); err != nil || whole == nil {
		whole = map[string]any{}
	}
	return Extraction{Args: whole, Shape: ShapeWholeBody}
}

func fromEntries(entries []toolCallEntry, toolName string, shape Shape) (Extraction, bool) {
	for _, e := range entries {
		if ex, ok := fromEntry(e, toolName, shape); ok {
			return ex, true
		}
	}
	return Extraction{}, false
}

// fromEntry matches by nested function name, tool-call id, or plain
// name field.
func fromEntry(e toolCallEntry, toolName string, shape Shape) (Extraction, bool) {
	matched := (e.Function != nil && e.Function.Name == toolName) ||
		e.ID == toolName ||
		e.Name == toolName
	if !matched {
		return Extraction{}, false
	}

	var ex Extraction
	if e.Function != nil {
		ex = resolveArgs(e.Function.Parameters, e.Function.Arguments)
	} else {
		ex = resolveArgs(e.Parameters, e.Arguments)
	}
	ex.ToolCallID = e.ID
	ex.Shape = shape
	return ex, true
}

// resolveArgs prefers a parameters object; otherwise arguments, which
// may itself be a JSON-encoded string. An arguments string that does
// not parse as JSON is kept raw rather than failing.
func resolveArgs(params map[string]any, args json.RawMessage) Extraction {
	if len(params) > 0 {
		return Extraction{Args: params}
	}
	if len(args) == 0 {
		return Extraction{Args: map[string]any{}}
	}

	var obj map[string]any
	if err := json.Unmarshal(args, &obj); err == nil {
		return Extraction{Args: obj}
	}

	var s string
	if err := json.Unmarshal(args, &s); err == nil {
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			return Extraction{Args: obj}
		}
		return Extraction{Args: map[string]any{}, RawArgs: s}
	}
	return Extraction{Args: map[string]any{}, RawArgs: string(args)}
}
