package models

import "time"

// SessionStatus is the lifecycle state of a conversation session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// Frame is one entry of a session's sub-workflow call stack: the workflow and
// step to resume at when the callee workflow ends.
type Frame struct {
	WorkflowID string `json:"workflow_id"`
	StepRef    string `json:"step_ref"`
}

// Session is the runtime state of one in-progress conversation. It is the
// only aggregate the engine mutates; every turn either commits the whole
// transition or none of it.
type Session struct {
	ID             string            `json:"id"`
	ConversantID   string            `json:"conversant_id"`
	Channel        string            `json:"channel,omitempty"`
	WorkflowID     string            `json:"workflow_id"`
	StepRef        string            `json:"step_ref"`
	Stack          []Frame           `json:"stack,omitempty"`
	Variables      map[string]string `json:"variables"`
	Locale         Locale            `json:"locale"`
	Status         SessionStatus     `json:"status"`
	StartedAt      time.Time         `json:"started_at"`
	LastActivityAt time.Time         `json:"last_activity_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

// Clone returns a deep copy. The engine works on a copy per turn so a failed
// persistence write never leaves a half-applied session behind.
func (s *Session) Clone() *Session {
	clone := *s

	clone.Stack = make([]Frame, len(s.Stack))
	copy(clone.Stack, s.Stack)

	clone.Variables = make(map[string]string, len(s.Variables))
	for k, v := range s.Variables {
		clone.Variables[k] = v
	}

	if s.CompletedAt != nil {
		at := *s.CompletedAt
		clone.CompletedAt = &at
	}

	return &clone
}

// SetVariable stores a value in the session's variable bag. Variables are
// global to the session; sub-workflows share the same bag.
func (s *Session) SetVariable(name, value string) {
	if s.Variables == nil {
		s.Variables = make(map[string]string)
	}

	s.Variables[name] = value
}

// Push records the current position before entering a sub-workflow.
func (s *Session) Push(workflowID, stepRef string) {
	s.Stack = append(s.Stack, Frame{WorkflowID: workflowID, StepRef: stepRef})
}

// Pop removes and returns the most recent frame.
func (s *Session) Pop() (Frame, bool) {
	if len(s.Stack) == 0 {
		return Frame{}, false
	}

	frame := s.Stack[len(s.Stack)-1]
	s.Stack = s.Stack[:len(s.Stack)-1]

	return frame, true
}

// MessageRole identifies who authored a transcript message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Message is one transcript row of a session. The assistant layer replays the
// transcript as conversation history.
type Message struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Role      MessageRole    `json:"role"`
	Content   string         `json:"content"`
	StepRef   string         `json:"step_ref,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
