package file

import (
	"testing"
	"time"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleRepository_RoundTrip(t *testing.T) {
	p := NewPersistence(t.TempDir())

	module := &models.Module{
		ID:      "m-1",
		RefCode: "ASK_NAME",
		Name:    "Ask name",
		Type:    models.ModuleTypeCollect,
		Content: models.MultilingualText{
			models.LocaleFrench:  "Quel est votre nom ?",
			models.LocaleEnglish: "What is your name?",
		},
		ValidationFormatCode: "non_empty_text",
		Active:               true,
	}

	require.NoError(t, p.Modules().Save(t.Context(), module))

	loaded, err := p.Modules().GetByRefCode(t.Context(), "ASK_NAME")
	require.NoError(t, err)
	assert.Equal(t, module, loaded)

	modules, err := p.Modules().List(t.Context())
	require.NoError(t, err)
	assert.Len(t, modules, 1)

	require.NoError(t, p.Modules().Delete(t.Context(), "ASK_NAME"))

	_, err = p.Modules().GetByRefCode(t.Context(), "ASK_NAME")
	assert.ErrorIs(t, err, persistence.ErrModuleNotFound)
}

func TestWorkflowRepository_RoundTripPreservesGraph(t *testing.T) {
	p := NewPersistence(t.TempDir())

	workflow := &models.Workflow{
		ID:   "wf-1",
		Name: "Booking",
		Steps: []*models.Step{
			{StepRef: "WELCOME", StepName: "Welcome", ModuleRef: "WELCOME_MSG", IsEntryPoint: true},
			{StepRef: "ASK_NAME", StepName: "Ask name", ModuleRef: "ASK_NAME", OrderIndex: 1},
		},
		Outputs: []*models.Output{
			{ID: "o-1", FromStepRef: "WELCOME", Category: models.CategorySuccess, DestinationType: models.DestinationStep, DestinationRef: "ASK_NAME"},
			{ID: "o-2", FromStepRef: "ASK_NAME", Category: models.CategorySuccess, DestinationType: models.DestinationEnd},
		},
	}

	require.NoError(t, p.Workflows().Save(t.Context(), workflow))

	loaded, err := p.Workflows().GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, workflow, loaded)
}

func TestWorkflowRepository_ExclusiveActivation(t *testing.T) {
	p := NewPersistence(t.TempDir())

	require.NoError(t, p.Workflows().Save(t.Context(), &models.Workflow{ID: "wf-a", Name: "A", Active: true}))
	require.NoError(t, p.Workflows().Save(t.Context(), &models.Workflow{ID: "wf-b", Name: "B"}))

	require.NoError(t, p.Workflows().Activate(t.Context(), "wf-b"))

	active, err := p.Workflows().GetActive(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "wf-b", active.ID)

	a, err := p.Workflows().GetByID(t.Context(), "wf-a")
	require.NoError(t, err)
	assert.False(t, a.Active)

	// Idempotent: activating twice leaves exactly one workflow active.
	require.NoError(t, p.Workflows().Activate(t.Context(), "wf-b"))

	workflows, err := p.Workflows().List(t.Context())
	require.NoError(t, err)

	activeCount := 0
	for _, wf := range workflows {
		if wf.Active {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)
}

func TestWorkflowRepository_GetActive_NoneActive(t *testing.T) {
	p := NewPersistence(t.TempDir())

	require.NoError(t, p.Workflows().Save(t.Context(), &models.Workflow{ID: "wf-a", Name: "A"}))

	_, err := p.Workflows().GetActive(t.Context())
	assert.ErrorIs(t, err, persistence.ErrNoActiveWorkflow)
}

func TestSessionRepository_ActiveByConversant(t *testing.T) {
	p := NewPersistence(t.TempDir())

	ended := &models.Session{ID: "s-1", ConversantID: "c-1", Status: models.SessionStatusCompleted}
	active := &models.Session{ID: "s-2", ConversantID: "c-1", Status: models.SessionStatusActive}

	require.NoError(t, p.Sessions().Save(t.Context(), ended))
	require.NoError(t, p.Sessions().Save(t.Context(), active))

	found, err := p.Sessions().GetActiveByConversant(t.Context(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "s-2", found.ID)

	_, err = p.Sessions().GetActiveByConversant(t.Context(), "c-2")
	assert.ErrorIs(t, err, persistence.ErrSessionNotFound)
}

func TestSessionRepository_ListIdleSince(t *testing.T) {
	p := NewPersistence(t.TempDir())

	now := time.Now().UTC()

	require.NoError(t, p.Sessions().Save(t.Context(), &models.Session{
		ID: "s-old", Status: models.SessionStatusActive, LastActivityAt: now.Add(-2 * time.Hour),
	}))
	require.NoError(t, p.Sessions().Save(t.Context(), &models.Session{
		ID: "s-new", Status: models.SessionStatusActive, LastActivityAt: now,
	}))

	idle, err := p.Sessions().ListIdleSince(t.Context(), now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, idle, 1)
	assert.Equal(t, "s-old", idle[0].ID)
}

func TestCommitTurn_PersistsSessionAndTranscript(t *testing.T) {
	p := NewPersistence(t.TempDir())

	session := &models.Session{
		ID:           "s-1",
		ConversantID: "c-1",
		StepRef:      "ASK_NAME",
		Status:       models.SessionStatusActive,
		Variables:    map[string]string{"NAME": "Dana"},
	}

	messages := []*models.Message{
		{ID: "m-1", SessionID: "s-1", Role: models.MessageRoleUser, Content: "Dana"},
		{ID: "m-2", SessionID: "s-1", Role: models.MessageRoleAssistant, Content: "Merci Dana"},
	}

	require.NoError(t, p.CommitTurn(t.Context(), session, messages))

	loaded, err := p.Sessions().GetByID(t.Context(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Dana", loaded.Variables["NAME"])

	transcript, err := p.Messages().ListBySession(t.Context(), "s-1")
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, models.MessageRoleUser, transcript[0].Role)
	assert.Equal(t, "Merci Dana", transcript[1].Content)
}

func TestMessageRepository_EmptyTranscript(t *testing.T) {
	p := NewPersistence(t.TempDir())

	transcript, err := p.Messages().ListBySession(t.Context(), "nope")
	require.NoError(t, err)
	assert.Empty(t, transcript)
}
