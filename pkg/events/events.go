// Package events defines the event types published on session and catalog
// lifecycle changes.
package events

import (
	"time"

	"github.com/converso/converso/pkg/models"
)

type EventType string

// Kafka topic carrying every converso event.
const Topic = "converso.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Session lifecycle events.
	SessionStartedEvent       EventType = "session.started"
	SessionTurnCompletedEvent EventType = "session.turn.completed"
	SessionEndedEvent         EventType = "session.ended"
	SessionExpiredEvent       EventType = "session.expired"

	// Assistant augmentation events.
	AssistantFallbackEvent EventType = "assistant.fallback"

	// Catalog events.
	WorkflowActivatedEvent EventType = "workflow.activated"
	FormatSavedEvent       EventType = "format.saved"
	FormatDeletedEvent     EventType = "format.deleted"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SessionStarted is published when a first inbound event creates a session.
type SessionStarted struct {
	BaseEvent

	ConversantID string `json:"conversant_id"`
	WorkflowID   string `json:"workflow_id"`
	StepRef      string `json:"step_ref"`
	Channel      string `json:"channel,omitempty"`
}

func (e SessionStarted) GetType() EventType {
	return SessionStartedEvent
}

// SessionTurnCompleted is published after each committed turn.
type SessionTurnCompleted struct {
	BaseEvent

	ConversantID string          `json:"conversant_id"`
	WorkflowID   string          `json:"workflow_id"`
	StepRef      string          `json:"step_ref"`
	Category     models.Category `json:"category,omitempty"`
	Outbound     int             `json:"outbound_count"`
}

func (e SessionTurnCompleted) GetType() EventType {
	return SessionTurnCompletedEvent
}

// SessionEnded is published when a session reaches a terminal end output.
type SessionEnded struct {
	BaseEvent

	ConversantID string `json:"conversant_id"`
	WorkflowID   string `json:"workflow_id"`

	// Diagnostic is set when the session ended because no output matched the
	// step's result category.
	Diagnostic string `json:"diagnostic,omitempty"`
}

func (e SessionEnded) GetType() EventType {
	return SessionEndedEvent
}

// SessionExpired is published by the idle sweeper when it abandons a session.
type SessionExpired struct {
	BaseEvent

	ConversantID   string    `json:"conversant_id"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

func (e SessionExpired) GetType() EventType {
	return SessionExpiredEvent
}

// AssistantFallback is published when an augmentation attempt timed out or
// failed and the deterministic handler answered the turn.
type AssistantFallback struct {
	BaseEvent

	ModuleRef string `json:"module_ref"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason,omitempty"`
}

func (e AssistantFallback) GetType() EventType {
	return AssistantFallbackEvent
}

// WorkflowActivated is published when the authoring API switches the active
// workflow.
type WorkflowActivated struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
}

func (e WorkflowActivated) GetType() EventType {
	return WorkflowActivatedEvent
}

// FormatSaved is published when a validation format is created or updated, so
// engine workers reload their compiled registries.
type FormatSaved struct {
	BaseEvent

	FormatCode string `json:"format_code"`
	Active     bool   `json:"active"`
}

func (e FormatSaved) GetType() EventType {
	return FormatSavedEvent
}

// FormatDeleted is published when a validation format is removed.
type FormatDeleted struct {
	BaseEvent

	FormatCode string `json:"format_code"`
}

func (e FormatDeleted) GetType() EventType {
	return FormatDeletedEvent
}
