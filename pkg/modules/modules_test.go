package modules

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/protocol"
	"github.com/converso/converso/pkg/template"
	"github.com/converso/converso/pkg/validation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTemplates() *template.Engine {
	return template.NewDefaultEngine(testLogger())
}

func testSession(vars map[string]string) *models.Session {
	if vars == nil {
		vars = map[string]string{}
	}

	return &models.Session{
		ID:           "sess-1",
		ConversantID: "conv-1",
		WorkflowID:   "wf-main",
		StepRef:      "S1",
		Variables:    vars,
		Locale:       models.LocaleEnglish,
		Status:       models.SessionStatusActive,
	}
}

func handlerInput(session *models.Session, module *models.Module, inbound string) protocol.HandlerInput {
	return protocol.HandlerInput{
		Session: session,
		Module:  module,
		Step:    &models.Step{StepRef: session.StepRef, StepName: "step", ModuleRef: module.RefCode},
		Inbound: inbound,
	}
}

func TestMessageHandler_RendersVariables(t *testing.T) {
	handler := NewMessageHandler(testTemplates())

	session := testSession(map[string]string{VarName: "Dana"})
	module := &models.Module{
		RefCode: "GREET",
		Type:    models.ModuleTypeMessageText,
		Content: models.MultilingualText{models.LocaleEnglish: "Hello @name!"},
	}

	prompt, err := handler.Prompt(context.Background(), handlerInput(session, module, ""), testLogger())
	require.NoError(t, err)
	assert.Equal(t, "Hello Dana!", prompt.Text)
	assert.False(t, prompt.AutoExecute)

	outcome, err := handler.Handle(context.Background(), handlerInput(session, module, "ok"), testLogger())
	require.NoError(t, err)
	assert.True(t, outcome.Advance)
	assert.Equal(t, models.CategorySuccess, outcome.Category)
}

func TestAutoMessageHandler_AutoExecutes(t *testing.T) {
	handler := NewAutoMessageHandler(testTemplates())

	session := testSession(nil)
	module := &models.Module{
		RefCode: "BYE",
		Type:    models.ModuleTypeMessageTextAuto,
		Content: models.MultilingualText{models.LocaleEnglish: "Goodbye"},
	}

	prompt, err := handler.Prompt(context.Background(), handlerInput(session, module, ""), testLogger())
	require.NoError(t, err)
	assert.True(t, prompt.AutoExecute)
	assert.Equal(t, "Goodbye", prompt.Text)
}

func collectNameModule() *models.Module {
	return &models.Module{
		RefCode:              "ASK_NAME",
		Type:                 models.ModuleTypeCollect,
		Content:              models.MultilingualText{models.LocaleEnglish: "What is your name?"},
		ValidationFormatCode: "non_empty_text",
		Params:               map[string]any{"variable": VarName},
	}
}

func collectFormats(t *testing.T) *validation.Registry {
	t.Helper()

	registry := validation.NewRegistry()
	require.NoError(t, registry.Register(&models.ValidationFormat{
		FormatCode: "non_empty_text",
		FormatName: "Non-empty text",
		Regex:      `.+`,
		ErrorMessage: models.MultilingualText{
			models.LocaleEnglish: "Please enter a value.",
		},
		Active: true,
	}))

	return registry
}

func TestCollectHandler_EmptyReplyRePrompts(t *testing.T) {
	handler := NewCollectHandler(testTemplates(), collectFormats(t))
	session := testSession(nil)

	outcome, err := handler.Handle(context.Background(),
		handlerInput(session, collectNameModule(), "   "), testLogger())
	require.NoError(t, err)

	assert.False(t, outcome.Advance)
	assert.Contains(t, outcome.Reply, "Please enter a value.")
	assert.Contains(t, outcome.Reply, "What is your name?")
	assert.Empty(t, outcome.VariableUpdates)
}

func TestCollectHandler_ValidReplyStoresVariable(t *testing.T) {
	handler := NewCollectHandler(testTemplates(), collectFormats(t))
	session := testSession(nil)

	outcome, err := handler.Handle(context.Background(),
		handlerInput(session, collectNameModule(), "  Dana  "), testLogger())
	require.NoError(t, err)

	assert.True(t, outcome.Advance)
	assert.Equal(t, models.CategorySuccess, outcome.Category)
	assert.Equal(t, "Dana", outcome.VariableUpdates[VarName])
}

func TestCollectHandler_CustomErrorMessageOverridesFormat(t *testing.T) {
	handler := NewCollectHandler(testTemplates(), collectFormats(t))

	module := collectNameModule()
	module.CustomErrorMessage = models.MultilingualText{
		models.LocaleEnglish: "I still need your name.",
	}

	outcome, err := handler.Handle(context.Background(),
		handlerInput(testSession(nil), module, ""), testLogger())
	require.NoError(t, err)

	assert.False(t, outcome.Advance)
	assert.Contains(t, outcome.Reply, "I still need your name.")
	assert.NotContains(t, outcome.Reply, "Please enter a value.")
}

func TestCollectHandler_UnknownFormatRePromptsWithGenericMessage(t *testing.T) {
	handler := NewCollectHandler(testTemplates(), validation.NewRegistry())

	outcome, err := handler.Handle(context.Background(),
		handlerInput(testSession(nil), collectNameModule(), "Dana"), testLogger())
	require.NoError(t, err)

	assert.False(t, outcome.Advance)
	assert.Empty(t, outcome.VariableUpdates)
	assert.Contains(t, outcome.Reply, "Invalid input, please try again.")
	assert.False(t, strings.HasPrefix(outcome.Reply, "\n"))
}

func TestCollectHandler_NoFormatAcceptsAnything(t *testing.T) {
	handler := NewCollectHandler(testTemplates(), validation.NewRegistry())

	module := collectNameModule()
	module.ValidationFormatCode = ""

	outcome, err := handler.Handle(context.Background(),
		handlerInput(testSession(nil), module, "whatever"), testLogger())
	require.NoError(t, err)

	assert.True(t, outcome.Advance)
	assert.Equal(t, "whatever", outcome.VariableUpdates[VarName])
}

func gameChoiceModule() *models.Module {
	return &models.Module{
		RefCode: "PICK_GAME",
		Type:    models.ModuleTypeMultipleChoice,
		Content: models.MultilingualText{models.LocaleEnglish: "Which activity?"},
		Choices: []models.Choice{
			{ID: "A", Label: models.MultilingualText{models.LocaleEnglish: "Laser Game"}},
			{ID: "B", Label: models.MultilingualText{models.LocaleEnglish: "Active Time"}},
		},
	}
}

func TestChoiceHandler_MatchCascade(t *testing.T) {
	handler := NewChoiceHandler(testTemplates())
	session := testSession(nil)

	cases := []struct {
		name     string
		inbound  string
		category models.Category
	}{
		{"exact label", "Laser Game", models.ChoiceCategory("A")},
		{"choice id", "b", models.ChoiceCategory("B")},
		{"numeric shortcut", "2", models.ChoiceCategory("B")},
		{"substring", "laser", models.ChoiceCategory("A")},
		{"fuzzy overlap", "lazer game", models.ChoiceCategory("A")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, err := handler.Handle(context.Background(),
				handlerInput(session, gameChoiceModule(), tc.inbound), testLogger())
			require.NoError(t, err)
			assert.True(t, outcome.Advance)
			assert.Equal(t, tc.category, outcome.Category)
		})
	}
}

func TestChoiceHandler_UnmatchedReplyRePresentsChoices(t *testing.T) {
	handler := NewChoiceHandler(testTemplates())

	outcome, err := handler.Handle(context.Background(),
		handlerInput(testSession(nil), gameChoiceModule(), "Foo"), testLogger())
	require.NoError(t, err)

	assert.False(t, outcome.Advance)
	assert.Equal(t, "Which activity?", outcome.Reply)
	require.Len(t, outcome.Choices, 2)
	assert.Equal(t, "1", outcome.Choices[0].Value)
	assert.Equal(t, "Laser Game", outcome.Choices[0].Label)
}

func TestChoiceHandler_OutOfRangeNumberDoesNotMatch(t *testing.T) {
	handler := NewChoiceHandler(testTemplates())

	outcome, err := handler.Handle(context.Background(),
		handlerInput(testSession(nil), gameChoiceModule(), "7"), testLogger())
	require.NoError(t, err)
	assert.False(t, outcome.Advance)
}

type stubChecker struct {
	result protocol.AvailabilityResult
	err    error
	last   protocol.AvailabilityRequest
}

func (s *stubChecker) CheckAvailability(_ context.Context, req protocol.AvailabilityRequest) (protocol.AvailabilityResult, error) {
	s.last = req

	return s.result, s.err
}

func availabilitySession() *models.Session {
	return testSession(map[string]string{
		VarBranch:       "Haifa",
		VarDate:         "2026-09-04",
		VarTime:         "18:00",
		VarParticipants: "6",
		VarGameArea:     "laser",
		VarLaserGames:   "2",
	})
}

func TestAvailabilityHandler_Available(t *testing.T) {
	checker := &stubChecker{result: protocol.AvailabilityResult{Available: true}}
	handler := NewAvailabilityHandler(checker)

	module := &models.Module{RefCode: "CHECK", Type: models.ModuleTypeAvailabilityCheck}

	outcome, err := handler.Handle(context.Background(),
		handlerInput(availabilitySession(), module, ""), testLogger())
	require.NoError(t, err)

	assert.True(t, outcome.Advance)
	assert.Equal(t, models.CategoryAvailable, outcome.Category)
	assert.Empty(t, outcome.Reply)
	assert.Equal(t, "Haifa", checker.last.Branch)
	assert.Equal(t, 6, checker.last.Participants)
	assert.Equal(t, 2, checker.last.NumberOfGames)
}

func TestAvailabilityHandler_UnavailableStoresAlternatives(t *testing.T) {
	checker := &stubChecker{result: protocol.AvailabilityResult{
		Available: false,
		Alternatives: &protocol.Alternatives{
			BeforeSlot: "17:00",
			AfterSlot:  "19:30",
			SameTimeOtherDays: []protocol.DaySlot{
				{Date: "2026-09-05", DayName: "Saturday"},
			},
		},
	}}
	handler := NewAvailabilityHandler(checker)

	module := &models.Module{RefCode: "CHECK", Type: models.ModuleTypeAvailabilityCheck}

	outcome, err := handler.Handle(context.Background(),
		handlerInput(availabilitySession(), module, ""), testLogger())
	require.NoError(t, err)

	assert.Equal(t, models.CategoryUnavailable, outcome.Category)
	assert.Equal(t, "17:00", outcome.VariableUpdates[VarAltBeforeSlot])
	assert.Equal(t, "19:30", outcome.VariableUpdates[VarAltAfterSlot])
	assert.Contains(t, outcome.VariableUpdates[VarAltOtherDays], "2026-09-05")
}

func TestAvailabilityHandler_LookupFailureCountsAsUnavailable(t *testing.T) {
	checker := &stubChecker{err: errors.New("booking system down")}
	handler := NewAvailabilityHandler(checker)

	module := &models.Module{RefCode: "CHECK", Type: models.ModuleTypeAvailabilityCheck}

	outcome, err := handler.Handle(context.Background(),
		handlerInput(availabilitySession(), module, ""), testLogger())
	require.NoError(t, err)
	assert.Equal(t, models.CategoryUnavailable, outcome.Category)
	assert.True(t, outcome.Advance)
}

func TestSuggestionsHandler_BuildsChoicesFromBag(t *testing.T) {
	handler := NewSuggestionsHandler(testTemplates())

	session := testSession(map[string]string{
		VarAltBeforeSlot: "17:00",
		VarAltAfterSlot:  "19:30",
		VarAltOtherDays:  `[{"date":"2026-09-05","day_name":"Saturday"}]`,
	})
	module := &models.Module{
		RefCode: "SUGGEST",
		Type:    models.ModuleTypeAvailabilitySuggestions,
		Content: models.MultilingualText{models.LocaleEnglish: "That slot is taken. How about:"},
	}

	prompt, err := handler.Prompt(context.Background(), handlerInput(session, module, ""), testLogger())
	require.NoError(t, err)
	require.Len(t, prompt.Choices, 3)
	assert.Equal(t, "17:00", prompt.Choices[0].Label)
	assert.Equal(t, "19:30", prompt.Choices[1].Label)
	assert.Equal(t, "Saturday", prompt.Choices[2].Label)
}

func TestSuggestionsHandler_TimeAndDateChanges(t *testing.T) {
	handler := NewSuggestionsHandler(testTemplates())

	session := testSession(map[string]string{
		VarTime:          "18:00",
		VarAltBeforeSlot: "17:00",
		VarAltOtherDays:  `[{"date":"2026-09-05","day_name":"Saturday"}]`,
	})
	module := &models.Module{
		RefCode: "SUGGEST",
		Type:    models.ModuleTypeAvailabilitySuggestions,
		Content: models.MultilingualText{models.LocaleEnglish: "How about:"},
	}

	outcome, err := handler.Handle(context.Background(),
		handlerInput(session, module, "17:00"), testLogger())
	require.NoError(t, err)
	assert.Equal(t, models.CategoryTimeChanged, outcome.Category)
	assert.Equal(t, "17:00", outcome.VariableUpdates[VarTime])

	outcome, err = handler.Handle(context.Background(),
		handlerInput(session, module, "Saturday"), testLogger())
	require.NoError(t, err)
	assert.Equal(t, models.CategoryDateChanged, outcome.Category)
	assert.Equal(t, "2026-09-05", outcome.VariableUpdates[VarDate])
}

func TestSuggestionsHandler_OtherDateEscape(t *testing.T) {
	handler := NewSuggestionsHandler(testTemplates())

	session := testSession(map[string]string{VarAltBeforeSlot: "17:00"})
	module := &models.Module{
		RefCode: "SUGGEST",
		Type:    models.ModuleTypeAvailabilitySuggestions,
		Content: models.MultilingualText{models.LocaleEnglish: "How about:"},
	}

	outcome, err := handler.Handle(context.Background(),
		handlerInput(session, module, "Another date"), testLogger())
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOtherDate, outcome.Category)
}

type stubOrders struct {
	result protocol.OrderResult
	err    error
	last   protocol.OrderRequest
}

func (s *stubOrders) CreateOrder(_ context.Context, req protocol.OrderRequest) (protocol.OrderResult, error) {
	s.last = req

	return s.result, s.err
}

func orderModule() *models.Module {
	return &models.Module{
		RefCode: "CREATE_ORDER",
		Type:    models.ModuleTypeOrderGeneration,
		SuccessMessage: models.MultilingualText{
			models.LocaleEnglish: "Pay here: @order(Pay now) ref @order_reference",
		},
		FailureMessage: models.MultilingualText{
			models.LocaleEnglish: "Sorry, we could not create your booking.",
		},
	}
}

func TestOrderHandler_Success(t *testing.T) {
	orders := &stubOrders{result: protocol.OrderResult{
		URL:       "https://pay.example/o/123",
		Reference: "REF123",
	}}
	handler := NewOrderHandler(testTemplates(), orders)

	session := testSession(map[string]string{
		VarBranch:       "Haifa",
		VarName:         "Dana Levi",
		VarPhone:        "0501234567",
		VarDate:         "2026-09-04",
		VarTime:         "18:00",
		VarParticipants: "6",
	})

	outcome, err := handler.Handle(context.Background(),
		handlerInput(session, orderModule(), ""), testLogger())
	require.NoError(t, err)

	assert.Equal(t, models.CategorySuccess, outcome.Category)
	assert.Equal(t, "https://pay.example/o/123", outcome.VariableUpdates[template.VarOrderURL])
	assert.Equal(t, "REF123", outcome.VariableUpdates[template.VarOrderReference])
	assert.Contains(t, outcome.Reply, "[BTN:Pay now]https://pay.example/o/123")
	assert.Contains(t, outcome.Reply, "REF123")

	assert.Equal(t, "Dana", orders.last.FirstName)
	assert.Equal(t, "Levi", orders.last.LastName)
	assert.Equal(t, 6, orders.last.Participants)
}

func TestOrderHandler_Failure(t *testing.T) {
	orders := &stubOrders{err: errors.New("payment gateway unreachable")}
	handler := NewOrderHandler(testTemplates(), orders)

	outcome, err := handler.Handle(context.Background(),
		handlerInput(testSession(nil), orderModule(), ""), testLogger())
	require.NoError(t, err)

	assert.Equal(t, models.CategoryFailure, outcome.Category)
	assert.Contains(t, outcome.Reply, "could not create your booking")
	assert.Empty(t, outcome.VariableUpdates)
}

func TestAssistantHandler_FallbackRender(t *testing.T) {
	handler := NewAssistantHandler(testTemplates())

	module := &models.Module{
		RefCode: "CLARA",
		Type:    models.ModuleTypeAssistant,
		Content: models.MultilingualText{models.LocaleEnglish: "How can I help, @name?"},
	}

	outcome, err := handler.Handle(context.Background(),
		handlerInput(testSession(map[string]string{VarName: "Dana"}), module, "hello"), testLogger())
	require.NoError(t, err)

	assert.True(t, outcome.Advance)
	assert.Equal(t, models.CategoryAssistantDefault, outcome.Category)
	assert.Equal(t, "How can I help, Dana?", outcome.Reply)
}
