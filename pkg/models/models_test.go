package models

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultilingualText_Resolve_Fallbacks(t *testing.T) {
	text := MultilingualText{
		LocaleFrench:  "Bonjour",
		LocaleEnglish: "Hello",
	}

	assert.Equal(t, "Bonjour", text.Resolve(LocaleFrench))
	assert.Equal(t, "Hello", text.Resolve(LocaleEnglish))
	// Missing Hebrew falls back to the default locale.
	assert.Equal(t, "Bonjour", text.Resolve(LocaleHebrew))

	englishOnly := MultilingualText{LocaleEnglish: "Hi"}
	assert.Equal(t, "Hi", englishOnly.Resolve(LocaleFrench))

	hebrewOnly := MultilingualText{LocaleHebrew: "שלום"}
	assert.Equal(t, "שלום", hebrewOnly.Resolve(LocaleEnglish))

	assert.Empty(t, MultilingualText{}.Resolve(LocaleFrench))
	assert.Empty(t, MultilingualText(nil).Resolve(LocaleFrench))
}

func TestModuleType_AutoExecutes(t *testing.T) {
	assert.True(t, ModuleTypeMessageTextAuto.AutoExecutes())
	assert.True(t, ModuleTypeAvailabilityCheck.AutoExecutes())
	assert.True(t, ModuleTypeOrderGeneration.AutoExecutes())

	assert.False(t, ModuleTypeMessageText.AutoExecutes())
	assert.False(t, ModuleTypeCollect.AutoExecutes())
	assert.False(t, ModuleTypeMultipleChoice.AutoExecutes())
	assert.False(t, ModuleTypeAssistant.AutoExecutes())
}

func TestModule_Validation_ChoiceCardinality(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	module := &Module{
		RefCode: "GAME_AREA",
		Name:    "Game area",
		Type:    ModuleTypeMultipleChoice,
		Choices: []Choice{
			{ID: "A", Label: MultilingualText{LocaleFrench: "Laser"}},
			{ID: "B", Label: MultilingualText{LocaleFrench: "Active"}},
			{ID: "C", Label: MultilingualText{LocaleFrench: "Mix"}},
		},
	}

	require.NoError(t, validate.Struct(module))

	module.Choices = append(module.Choices, Choice{
		ID:    "D",
		Label: MultilingualText{LocaleFrench: "Autre"},
	})

	assert.Error(t, validate.Struct(module), "a fourth choice must be rejected")
}

func TestAssistantConfig_Timeout(t *testing.T) {
	var nilConfig *AssistantConfig

	assert.Equal(t, DefaultAssistantTimeout, nilConfig.Timeout())
	assert.Equal(t, DefaultAssistantTimeout, (&AssistantConfig{}).Timeout())
	assert.Equal(t, DefaultAssistantTimeout, (&AssistantConfig{TimeoutMS: -1}).Timeout())
	assert.Equal(t, DefaultAssistantTimeout/5, (&AssistantConfig{TimeoutMS: 1000}).Timeout())
}

func TestWorkflow_EntryStep(t *testing.T) {
	t.Run("entry flag wins over order", func(t *testing.T) {
		workflow := &Workflow{Steps: []*Step{
			{StepRef: "S1", OrderIndex: 0},
			{StepRef: "S2", OrderIndex: 1, IsEntryPoint: true},
		}}

		entry, ok := workflow.EntryStep()
		require.True(t, ok)
		assert.Equal(t, "S2", entry.StepRef)
	})

	t.Run("lowest order among several entry flags", func(t *testing.T) {
		workflow := &Workflow{Steps: []*Step{
			{StepRef: "S1", OrderIndex: 5, IsEntryPoint: true},
			{StepRef: "S2", OrderIndex: 2, IsEntryPoint: true},
		}}

		entry, ok := workflow.EntryStep()
		require.True(t, ok)
		assert.Equal(t, "S2", entry.StepRef)
	})

	t.Run("no flag falls back to lowest order", func(t *testing.T) {
		workflow := &Workflow{Steps: []*Step{
			{StepRef: "S2", OrderIndex: 1},
			{StepRef: "S1", OrderIndex: 0},
		}}

		entry, ok := workflow.EntryStep()
		require.True(t, ok)
		assert.Equal(t, "S1", entry.StepRef)
	})

	t.Run("empty workflow has no entry", func(t *testing.T) {
		_, ok := (&Workflow{}).EntryStep()
		assert.False(t, ok)
	})
}

func TestWorkflow_OutputFor_PriorityTieBreak(t *testing.T) {
	workflow := &Workflow{Outputs: []*Output{
		{ID: "o1", FromStepRef: "ASK", Category: CategorySuccess, Priority: 10, DestinationRef: "LATE"},
		{ID: "o2", FromStepRef: "ASK", Category: CategorySuccess, Priority: 1, DestinationRef: "EARLY"},
		{ID: "o3", FromStepRef: "ASK", Category: CategoryFailure, Priority: 0, DestinationRef: "FAIL"},
	}}

	output, ok := workflow.OutputFor("ASK", CategorySuccess)
	require.True(t, ok)
	assert.Equal(t, "EARLY", output.DestinationRef)

	_, ok = workflow.OutputFor("ASK", Category("choice_X"))
	assert.False(t, ok)

	_, ok = workflow.OutputFor("OTHER", CategorySuccess)
	assert.False(t, ok)
}

func TestSession_Clone_IsDeep(t *testing.T) {
	now := session().LastActivityAt

	original := session()
	clone := original.Clone()

	clone.SetVariable("NAME", "Dana")
	clone.Push("wf-2", "X")
	clone.StepRef = "OTHER"

	assert.Empty(t, original.Variables["NAME"])
	assert.Empty(t, original.Stack)
	assert.Equal(t, "ASK_NAME", original.StepRef)
	assert.Equal(t, now, original.LastActivityAt)
}

func TestSession_StackPushPop(t *testing.T) {
	s := session()

	s.Push("wf-1", "X")
	s.Push("wf-2", "Y")

	frame, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, Frame{WorkflowID: "wf-2", StepRef: "Y"}, frame)

	frame, ok = s.Pop()
	require.True(t, ok)
	assert.Equal(t, Frame{WorkflowID: "wf-1", StepRef: "X"}, frame)

	_, ok = s.Pop()
	assert.False(t, ok)
}

func session() *Session {
	return &Session{
		ID:           "sess-1",
		ConversantID: "conv-1",
		WorkflowID:   "wf-1",
		StepRef:      "ASK_NAME",
		Variables:    map[string]string{},
		Locale:       LocaleFrench,
		Status:       SessionStatusActive,
	}
}
