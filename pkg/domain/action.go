package domain

// EffectType names an externally visible action produced by a node.
type EffectType string

// Standard effect types.
const (
	// EffectSendMessage asks the host to deliver Text to the end user.
	EffectSendMessage EffectType = "send_message"
)

// Effect is a side-effect the engine hands to the caller instead of performing it.
type Effect struct {
	Type   EffectType `json:"type"`
	NodeID string     `json:"nodeId"`
	Text   string     `json:"text,omitempty"`
}

// SendMessage builds a send-message effect.
func SendMessage(nodeID, text string) Effect {
	return Effect{Type: EffectSendMessage, NodeID: nodeID, Text: text}
}
