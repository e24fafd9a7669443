package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/converso/converso/pkg/eventbus"
	"github.com/converso/converso/pkg/events"
	"github.com/converso/converso/pkg/models"
)

// turn accumulates everything one inbound event produces before it commits:
// session mutations happen on a clone, transcript rows and events are
// buffered, and outbound messages are collected in emit order.
type turn struct {
	session  *models.Session
	workflow *models.Workflow

	outbound []Outbound
	messages []*models.Message
	events   []eventbus.Event

	// pendingDelay carries an output's delay onto the next emitted prompt.
	pendingDelay int

	category models.Category
	ended    bool
}

func (e *Engine) newTurn(session *models.Session, workflow *models.Workflow) *turn {
	return &turn{session: session, workflow: workflow}
}

func (t *turn) emit(message Outbound) {
	t.outbound = append(t.outbound, message)

	if message.Text != "" {
		t.messages = append(t.messages, &models.Message{
			ID:        uuid.NewString(),
			SessionID: t.session.ID,
			Role:      models.MessageRoleAssistant,
			Content:   message.Text,
			StepRef:   t.session.StepRef,
			CreatedAt: time.Now().UTC(),
		})
	}
}

func (t *turn) recordUser(inbound Inbound) {
	at := inbound.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}

	t.messages = append(t.messages, &models.Message{
		ID:        uuid.NewString(),
		SessionID: t.session.ID,
		Role:      models.MessageRoleUser,
		Content:   inbound.Text,
		StepRef:   t.session.StepRef,
		CreatedAt: at,
	})
}

func (t *turn) takeDelay() int {
	delay := t.pendingDelay
	t.pendingDelay = 0

	return delay
}

func (t *turn) addEvent(event eventbus.Event) {
	t.events = append(t.events, event)
}

func (t *turn) baseEvent(eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		SessionID: t.session.ID,
	}
}
