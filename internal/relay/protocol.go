package relay

import "encoding/json"

// Client-facing event types. Every frame on the widget socket is a JSON
// object discriminated by "type".
const (
	EventInit        = "init"
	EventMessage     = "message"
	EventVoiceStatus = "voice_status"
	EventError       = "error"
)

// ClientEvent is the envelope for frames received from the widget.
type ClientEvent struct {
	Type string `json:"type"`

	// init fields
	AgentID   string `json:"agentId,omitempty"`
	ConfigID  string `json:"configId,omitempty"`
	SignedURL string `json:"signedUrl,omitempty"`

	// message fields
	Content string `json:"content,omitempty"`
}

// VoiceStatusEvent is synthesized for the widget whenever the upstream
// reports a native status, so UI consumers need not understand the
// provider's spelling.
type VoiceStatusEvent struct {
	Type   string `json:"type"`
	Status string `json:"status"` // "listening" | "speaking" | "thinking"
}

// ErrorEvent tells the widget the upstream leg failed. The session stays
// open; reconnect policy belongs to the client.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Upstream event types in the provider's native envelope.
const (
	upstreamAgentResponse = "agent_response"
	upstreamStatus        = "status"
	upstreamUserMessage   = "user_message"
)

// upstreamEvent is the provider's envelope, decoded just far enough to
// classify frames. Unknown types are passed through untouched.
type upstreamEvent struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Status string `json:"status,omitempty"`
}

// userMessageEnvelope wraps widget text for the upstream socket.
type userMessageEnvelope struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func marshalUserMessage(content string) ([]byte, error) {
	return json.Marshal(userMessageEnvelope{Type: upstreamUserMessage, Text: content})
}

// normalizeStatus maps the provider's native status spellings onto the
// widget vocabulary. Unrecognized statuses produce no voice_status event;
// the raw frame is still forwarded.
func normalizeStatus(native string) (string, bool) {
	switch native {
	case "listening":
		return "listening", true
	case "speaking", "talking":
		return "speaking", true
	case "thinking", "processing":
		return "thinking", true
	}
	return "", false
}
