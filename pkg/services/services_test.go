package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converso/converso/pkg/eventbus"
	"github.com/converso/converso/pkg/events"
	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/modules"
	"github.com/converso/converso/pkg/persistence"
	"github.com/converso/converso/pkg/persistence/file"
	"github.com/converso/converso/pkg/registry"
	"github.com/converso/converso/pkg/template"
	"github.com/converso/converso/pkg/validation"
)

type capturingPublisher struct {
	published []eventbus.Event
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

type testServices struct {
	modules        *ModuleService
	workflows      *WorkflowService
	formats        *FormatService
	faqs           *FAQService
	store          persistence.Persistence
	formatRegistry *validation.Registry
	publisher      *capturingPublisher
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())
	templates := template.NewDefaultEngine(logger)
	formatRegistry := validation.NewRegistry()

	reg := registry.NewRegistry(logger)
	reg.Register(modules.NewMessageHandler(templates))
	reg.Register(modules.NewAutoMessageHandler(templates))
	reg.Register(modules.NewCollectHandler(templates, formatRegistry))
	reg.Register(modules.NewChoiceHandler(templates))

	publisher := &capturingPublisher{}

	return &testServices{
		modules:        NewModuleService(logger, store, reg),
		workflows:      NewWorkflowService(logger, store, publisher),
		formats:        NewFormatService(logger, store, formatRegistry, publisher),
		faqs:           NewFAQService(logger, store),
		store:          store,
		formatRegistry: formatRegistry,
		publisher:      publisher,
	}
}

func english(s string) models.MultilingualText {
	return models.MultilingualText{models.LocaleEnglish: s}
}

func textModule(refCode string) *models.Module {
	return &models.Module{
		RefCode: refCode,
		Name:    "Module " + refCode,
		Type:    models.ModuleTypeMessageText,
		Content: english("Hello there."),
		Active:  true,
	}
}

func TestModuleCreateAssignsIdentity(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	created, err := svc.modules.Create(ctx, textModule("M_HELLO"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	loaded, err := svc.modules.Get(ctx, "M_HELLO")
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
}

func TestModuleCreateRejectsDuplicateRefCode(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.modules.Create(ctx, textModule("M_HELLO"))
	require.NoError(t, err)

	_, err = svc.modules.Create(ctx, textModule("M_HELLO"))
	require.ErrorIs(t, err, ErrDuplicateRefCode)
	assert.True(t, IsConflictError(err))
}

func TestModuleCreateRejectsUnknownType(t *testing.T) {
	svc := newTestServices(t)

	module := textModule("M_BAD")
	module.Type = "teleport"

	_, err := svc.modules.Create(context.Background(), module)
	require.ErrorIs(t, err, ErrUnknownModuleType)
	assert.True(t, IsValidationError(err))
}

func TestModuleCreateRejectsTooManyChoices(t *testing.T) {
	svc := newTestServices(t)

	module := textModule("M_CHOICES")
	module.Type = models.ModuleTypeMultipleChoice
	module.Choices = []models.Choice{
		{ID: "a", Label: english("A")},
		{ID: "b", Label: english("B")},
		{ID: "c", Label: english("C")},
		{ID: "d", Label: english("D")},
	}

	_, err := svc.modules.Create(context.Background(), module)
	require.ErrorIs(t, err, ErrTooManyChoices)
}

func TestModuleCreateRejectsUnknownFormat(t *testing.T) {
	svc := newTestServices(t)

	module := textModule("M_COLLECT")
	module.Type = models.ModuleTypeCollect
	module.ValidationFormatCode = "phone_fr"

	_, err := svc.modules.Create(context.Background(), module)
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestModuleUpdatePreservesIdentity(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	created, err := svc.modules.Create(ctx, textModule("M_HELLO"))
	require.NoError(t, err)

	replacement := textModule("IGNORED")
	replacement.Name = "Renamed"

	updated, err := svc.modules.Update(ctx, "M_HELLO", replacement)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "M_HELLO", updated.RefCode)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestModuleDeleteRefusedWhileReferenced(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.modules.Create(ctx, textModule("M_HELLO"))
	require.NoError(t, err)

	saved, err := svc.workflows.Save(ctx, &models.Workflow{
		Name: "Greeting flow",
		Steps: []*models.Step{
			{StepRef: "HELLO", StepName: "Hello", ModuleRef: "M_HELLO", IsEntryPoint: true},
		},
	})
	require.NoError(t, err)

	err = svc.modules.Delete(ctx, "M_HELLO")
	require.ErrorIs(t, err, ErrModuleReferenced)
	assert.True(t, IsConflictError(err))

	require.NoError(t, svc.workflows.Delete(ctx, saved.ID))
	require.NoError(t, svc.modules.Delete(ctx, "M_HELLO"))

	_, err = svc.modules.Get(ctx, "M_HELLO")
	assert.True(t, IsNotFoundError(err))
}

func TestWorkflowSaveRejectsDanglingModule(t *testing.T) {
	svc := newTestServices(t)

	_, err := svc.workflows.Save(context.Background(), &models.Workflow{
		Name: "Broken flow",
		Steps: []*models.Step{
			{StepRef: "HELLO", StepName: "Hello", ModuleRef: "M_MISSING"},
		},
	})
	require.ErrorIs(t, err, ErrStepModuleMissing)
	assert.True(t, IsValidationError(err))
}

func TestWorkflowSaveRejectsOutputFromUnknownStep(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.modules.Create(ctx, textModule("M_HELLO"))
	require.NoError(t, err)

	_, err = svc.workflows.Save(ctx, &models.Workflow{
		Name: "Broken flow",
		Steps: []*models.Step{
			{StepRef: "HELLO", StepName: "Hello", ModuleRef: "M_HELLO"},
		},
		Outputs: []*models.Output{
			{ID: "o1", FromStepRef: "GHOST", Category: models.CategorySuccess, DestinationType: models.DestinationEnd},
		},
	})
	require.ErrorIs(t, err, ErrOutputStepMissing)
}

func TestWorkflowSaveRejectsUnresolvedDestination(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.modules.Create(ctx, textModule("M_HELLO"))
	require.NoError(t, err)

	_, err = svc.workflows.Save(ctx, &models.Workflow{
		Name: "Broken flow",
		Steps: []*models.Step{
			{StepRef: "HELLO", StepName: "Hello", ModuleRef: "M_HELLO"},
		},
		Outputs: []*models.Output{
			{ID: "o1", FromStepRef: "HELLO", Category: models.CategorySuccess, DestinationType: models.DestinationStep, DestinationRef: "GHOST"},
		},
	})
	require.ErrorIs(t, err, ErrOutputDestinationMissing)

	_, err = svc.workflows.Save(ctx, &models.Workflow{
		Name: "Broken flow",
		Steps: []*models.Step{
			{StepRef: "HELLO", StepName: "Hello", ModuleRef: "M_HELLO"},
		},
		Outputs: []*models.Output{
			{ID: "o1", FromStepRef: "HELLO", Category: models.CategorySuccess, DestinationType: models.DestinationWorkflow, DestinationRef: "wf-ghost"},
		},
	})
	require.ErrorIs(t, err, ErrOutputDestinationMissing)
}

func TestWorkflowActivateRequiresSteps(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	saved, err := svc.workflows.Save(ctx, &models.Workflow{Name: "Empty draft"})
	require.NoError(t, err)

	err = svc.workflows.Activate(ctx, saved.ID)
	require.ErrorIs(t, err, ErrWorkflowHasNoSteps)
}

func TestWorkflowActivateSwitchesActiveAndPublishes(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.modules.Create(ctx, textModule("M_HELLO"))
	require.NoError(t, err)

	flow := func(name string) *models.Workflow {
		return &models.Workflow{
			Name: name,
			Steps: []*models.Step{
				{StepRef: "HELLO", StepName: "Hello", ModuleRef: "M_HELLO", IsEntryPoint: true},
			},
		}
	}

	first, err := svc.workflows.Save(ctx, flow("First flow"))
	require.NoError(t, err)
	second, err := svc.workflows.Save(ctx, flow("Second flow"))
	require.NoError(t, err)

	require.NoError(t, svc.workflows.Activate(ctx, first.ID))

	active, err := svc.workflows.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	require.NoError(t, svc.workflows.Activate(ctx, second.ID))

	active, err = svc.workflows.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	require.Len(t, svc.publisher.published, 2)
	activated, ok := svc.publisher.published[1].(events.WorkflowActivated)
	require.True(t, ok)
	assert.Equal(t, second.ID, activated.WorkflowID)
	assert.Equal(t, events.WorkflowActivatedEvent, activated.GetType())
}

func TestFormatSaveRejectsBrokenExpression(t *testing.T) {
	svc := newTestServices(t)

	_, err := svc.formats.Save(context.Background(), &models.ValidationFormat{
		FormatCode: "phone_fr",
		FormatName: "French phone",
		Regex:      `0[1-9](`,
	})
	require.ErrorIs(t, err, ErrInvalidRegex)
	assert.True(t, IsValidationError(err))
}

func TestFormatDeleteRefusedWhileBound(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.formats.Save(ctx, &models.ValidationFormat{
		FormatCode: "phone_fr",
		FormatName: "French phone",
		Regex:      `0[1-9][0-9]{8}`,
		Active:     true,
	})
	require.NoError(t, err)

	module := textModule("M_PHONE")
	module.Type = models.ModuleTypeCollect
	module.ValidationFormatCode = "phone_fr"
	_, err = svc.modules.Create(ctx, module)
	require.NoError(t, err)

	err = svc.formats.Delete(ctx, "phone_fr")
	require.ErrorIs(t, err, ErrFormatInUse)

	require.NoError(t, svc.modules.Delete(ctx, "M_PHONE"))
	require.NoError(t, svc.formats.Delete(ctx, "phone_fr"))
}

func TestFormatSaveKeepsIdentityOnUpdate(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	created, err := svc.formats.Save(ctx, &models.ValidationFormat{
		FormatCode: "phone_fr",
		FormatName: "French phone",
		Regex:      `0[1-9][0-9]{8}`,
	})
	require.NoError(t, err)

	updated, err := svc.formats.Save(ctx, &models.ValidationFormat{
		FormatCode: "phone_fr",
		FormatName: "French phone, renamed",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestFormatSaveUpdatesLiveRegistry(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.formatRegistry.Validate("phone_fr", "0612345678", models.LocaleEnglish)
	require.ErrorIs(t, err, validation.ErrUnknownFormat)

	_, err = svc.formats.Save(ctx, &models.ValidationFormat{
		FormatCode: "phone_fr",
		FormatName: "French phone",
		Regex:      `0[1-9][0-9]{8}`,
		Active:     true,
	})
	require.NoError(t, err)

	result, err := svc.formatRegistry.Validate("phone_fr", "0612345678", models.LocaleEnglish)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	_, err = svc.formats.Save(ctx, &models.ValidationFormat{
		FormatCode: "phone_fr",
		FormatName: "French phone, international",
		Regex:      `\+33[1-9][0-9]{8}`,
		Active:     true,
	})
	require.NoError(t, err)

	result, err = svc.formatRegistry.Validate("phone_fr", "0612345678", models.LocaleEnglish)
	require.NoError(t, err)
	assert.False(t, result.Valid)

	require.NoError(t, svc.formats.Delete(ctx, "phone_fr"))

	_, err = svc.formatRegistry.Validate("phone_fr", "0612345678", models.LocaleEnglish)
	require.ErrorIs(t, err, validation.ErrUnknownFormat)
}

func TestFormatSavePublishesCatalogEvent(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.formats.Save(ctx, &models.ValidationFormat{
		FormatCode: "phone_fr",
		FormatName: "French phone",
		Regex:      `0[1-9][0-9]{8}`,
		Active:     true,
	})
	require.NoError(t, err)

	require.Len(t, svc.publisher.published, 1)
	saved, ok := svc.publisher.published[0].(events.FormatSaved)
	require.True(t, ok)
	assert.Equal(t, "phone_fr", saved.FormatCode)
	assert.True(t, saved.Active)

	require.NoError(t, svc.formats.Delete(ctx, "phone_fr"))

	require.Len(t, svc.publisher.published, 2)
	deleted, ok := svc.publisher.published[1].(events.FormatDeleted)
	require.True(t, ok)
	assert.Equal(t, "phone_fr", deleted.FormatCode)
}

func TestFormatSaveInactiveRemovesFromRegistry(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	format := &models.ValidationFormat{
		FormatCode: "phone_fr",
		FormatName: "French phone",
		Regex:      `0[1-9][0-9]{8}`,
		Active:     true,
	}

	_, err := svc.formats.Save(ctx, format)
	require.NoError(t, err)

	format.Active = false
	_, err = svc.formats.Save(ctx, format)
	require.NoError(t, err)

	_, err = svc.formatRegistry.Validate("phone_fr", "0612345678", models.LocaleEnglish)
	require.ErrorIs(t, err, validation.ErrUnknownFormat)
}

func TestFAQSaveAssignsID(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	faq, err := svc.faqs.Save(ctx, &models.FAQ{
		Category: "hours",
		Question: english("When are you open?"),
		Answer:   english("Every day from 10:00 to 22:00."),
		Active:   true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, faq.ID)

	active, err := svc.faqs.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, faq.ID, active[0].ID)
}
