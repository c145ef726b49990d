package modelbridge

import "github.com/tidwall/gjson"

// frame is the closed set of payloads carried by upstream "message" events.
// Implementations: thinkFrame, textFrame, controlFrame.
type frame interface {
	frameType() string
}

// thinkFrame carries a fragment of the model's reasoning
type thinkFrame struct {
	Content string
}

// textFrame carries a fragment of the answer
type textFrame struct {
	Msg string
}

// controlFrame is any other type: status, plugin and meta frames. Only its
// stop reason is used.
type controlFrame struct {
	Type       string
	StopReason string
}

func (thinkFrame) frameType() string { return "think" }

func (textFrame) frameType() string { return "text" }

func (controlFrame) frameType() string { return "other" }

// decodeFrame parses one event payload. Fields that are missing or not
// strings read as empty. ok is false when data is not valid JSON.
func decodeFrame(data string) (f frame, ok bool) {
	if !gjson.Valid(data) {
		return nil, false
	}
	payload := gjson.Parse(data)

	switch stringField(payload, "type") {
	case "think":
		return thinkFrame{Content: stringField(payload, "content")}, true
	case "text":
		return textFrame{Msg: stringField(payload, "msg")}, true
	default:
		return controlFrame{
			Type:       stringField(payload, "type"),
			StopReason: stringField(payload, "stopReason"),
		}, true
	}
}

func stringField(payload gjson.Result, name string) string {
	if !payload.IsObject() {
		return ""
	}
	v := payload.Get(name)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}
