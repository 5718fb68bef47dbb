package domain

// NodeKind identifies the behaviour of a node in a bot graph.
type NodeKind string

// Node kinds understood by the runtime.
const (
	// KindStart is the explicit entry point of a flow.
	KindStart NodeKind = "start"
	// KindTriggerCommand starts a flow when a chat command (e.g. /start) arrives.
	KindTriggerCommand NodeKind = "trigger-command"
	// KindTriggerMessage starts a flow when free text matches the trigger.
	KindTriggerMessage NodeKind = "trigger-message"
	// KindSendMessage produces an outbound message effect.
	KindSendMessage NodeKind = "action-send-message"
	// KindCondition branches on a predicate over the variable scope.
	KindCondition NodeKind = "condition"
	// KindSetVariable writes a value into the variable scope.
	KindSetVariable NodeKind = "set-variable"
)

// IsTrigger reports whether the kind is a trigger-* kind.
func (k NodeKind) IsTrigger() bool {
	return k == KindTriggerCommand || k == KindTriggerMessage
}

// IsEntry reports whether a run may begin at a node of this kind.
func (k NodeKind) IsEntry() bool {
	return k == KindStart || k.IsTrigger()
}

// Known reports whether the kind belongs to the closed set above.
// Unknown kinds still parse; the runtime terminates a run when it reaches one.
func (k NodeKind) Known() bool {
	switch k {
	case KindStart, KindTriggerCommand, KindTriggerMessage, KindSendMessage, KindCondition, KindSetVariable:
		return true
	}
	return false
}

// Node is one vertex of the conversation graph.
type Node struct {
	ID   string   `json:"id" yaml:"id"`
	Kind NodeKind `json:"type" yaml:"type"`

	// Data holds the kind-specific payload as decoded by the compiler.
	// It is one of the *Data types below, or nil for kinds without data.
	Data any `json:"data,omitempty" yaml:"data,omitempty"`

	// Raw keeps the untyped editor payload (labels, positions, styling).
	Raw map[string]any `json:"-" yaml:"-"`
}

// CommandData configures a trigger-command node.
type CommandData struct {
	Command     string `json:"command" mapstructure:"command"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	Label       string `json:"label,omitempty" mapstructure:"label"`
}

// Message trigger match modes.
const (
	MatchExact    = "exact"
	MatchContains = "contains"
	MatchRegex    = "regex"
)

// MessageTriggerData configures a trigger-message node.
type MessageTriggerData struct {
	Text      string `json:"text" mapstructure:"text"`
	MatchType string `json:"matchType,omitempty" mapstructure:"matchType"`
	Label     string `json:"label,omitempty" mapstructure:"label"`
}

// SendMessageData configures an action-send-message node.
// Text may contain {{variable}} placeholders.
type SendMessageData struct {
	Text  string `json:"text" mapstructure:"text"`
	Label string `json:"label,omitempty" mapstructure:"label"`
}

// ConditionData configures a condition node.
type ConditionData struct {
	Variable string `json:"variable" mapstructure:"variable"`
	Operator string `json:"operator" mapstructure:"operator"`
	Value    any    `json:"value,omitempty" mapstructure:"value"`
	Label    string `json:"label,omitempty" mapstructure:"label"`
}

// SetVariableData configures a set-variable node.
type SetVariableData struct {
	Variable string `json:"variable" mapstructure:"variable"`
	Value    any    `json:"value" mapstructure:"value"`
	Label    string `json:"label,omitempty" mapstructure:"label"`
}
