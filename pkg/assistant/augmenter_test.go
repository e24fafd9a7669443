package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/protocol"
)

type stubClient struct {
	reply protocol.AssistantReply
	err   error
	delay time.Duration
	seen  protocol.AssistantRequest
}

func (c *stubClient) Complete(ctx context.Context, req protocol.AssistantRequest) (protocol.AssistantReply, error) {
	c.seen = req

	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return protocol.AssistantReply{}, ctx.Err()
		}
	}

	return c.reply, c.err
}

type stubFAQs struct {
	faqs []*models.FAQ
	err  error
}

func (s *stubFAQs) ListActive(_ context.Context) ([]*models.FAQ, error) { return s.faqs, s.err }
func (s *stubFAQs) Save(_ context.Context, _ *models.FAQ) error         { return nil }
func (s *stubFAQs) Delete(_ context.Context, _ string) error            { return nil }

type stubMessages struct {
	messages []*models.Message
}

func (s *stubMessages) Append(_ context.Context, _ *models.Message) error { return nil }

func (s *stubMessages) ListBySession(_ context.Context, _ string) ([]*models.Message, error) {
	return s.messages, nil
}

type stubWorkflows struct {
	workflows []*models.Workflow
}

func (s *stubWorkflows) List(_ context.Context) ([]*models.Workflow, error) {
	return s.workflows, nil
}

func (s *stubWorkflows) GetByID(_ context.Context, _ string) (*models.Workflow, error) {
	return nil, errors.New("not implemented")
}

func (s *stubWorkflows) GetActive(_ context.Context) (*models.Workflow, error) {
	return nil, errors.New("not implemented")
}

func (s *stubWorkflows) Save(_ context.Context, _ *models.Workflow) error { return nil }
func (s *stubWorkflows) Delete(_ context.Context, _ string) error         { return nil }
func (s *stubWorkflows) Activate(_ context.Context, _ string) error       { return nil }

func newTestAugmenter(client *stubClient, faqs *stubFAQs, workflows *stubWorkflows) *Augmenter {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if faqs == nil {
		faqs = &stubFAQs{}
	}

	if workflows == nil {
		workflows = &stubWorkflows{}
	}

	return NewAugmenter(client, faqs, &stubMessages{}, workflows, logger)
}

func assistantModule(config models.AssistantConfig) *models.Module {
	config.Enabled = true

	return &models.Module{
		RefCode:   "CLARA",
		Type:      models.ModuleTypeAssistant,
		Assistant: &config,
	}
}

func testSession() *models.Session {
	return &models.Session{
		ID:           "sess-1",
		ConversantID: "conv-1",
		Locale:       models.LocaleEnglish,
		Variables:    map[string]string{},
		Status:       models.SessionStatusActive,
	}
}

func TestAugmenter_Handled(t *testing.T) {
	client := &stubClient{reply: protocol.AssistantReply{
		Text:            "We open at 10am.",
		Category:        models.Category("clara_continue"),
		VariableUpdates: map[string]string{"NAME": "Dana"},
	}}
	augmenter := newTestAugmenter(client, nil, nil)

	outcome := augmenter.Augment(context.Background(), testSession(),
		assistantModule(models.AssistantConfig{}), "when do you open?")

	assert.Equal(t, OutcomeHandled, outcome.Kind)
	assert.Equal(t, "We open at 10am.", outcome.Text)
	assert.Equal(t, "Dana", outcome.VariableUpdates["NAME"])
}

func TestAugmenter_DeadlineWinsOverSlowCall(t *testing.T) {
	client := &stubClient{
		reply: protocol.AssistantReply{Text: "too late"},
		delay: 5 * time.Second,
	}
	augmenter := newTestAugmenter(client, nil, nil)

	module := assistantModule(models.AssistantConfig{TimeoutMS: 100})

	start := time.Now()
	outcome := augmenter.Augment(context.Background(), testSession(), module, "hello")
	elapsed := time.Since(start)

	assert.Equal(t, OutcomeTimedOut, outcome.Kind)
	assert.Empty(t, outcome.Text)
	assert.Less(t, elapsed, 2*time.Second, "fallback must not wait for the slow call")
}

func TestAugmenter_Declined(t *testing.T) {
	client := &stubClient{reply: protocol.AssistantReply{Declined: true}}
	augmenter := newTestAugmenter(client, nil, nil)

	outcome := augmenter.Augment(context.Background(), testSession(),
		assistantModule(models.AssistantConfig{}), "1")

	assert.Equal(t, OutcomeDeclined, outcome.Kind)
}

func TestAugmenter_FailureReported(t *testing.T) {
	client := &stubClient{err: errors.New("model unavailable")}
	augmenter := newTestAugmenter(client, nil, nil)

	outcome := augmenter.Augment(context.Background(), testSession(),
		assistantModule(models.AssistantConfig{}), "hello")

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.Contains(t, outcome.Reason, "model unavailable")
}

func TestAugmenter_FAQContextInSystemPrompt(t *testing.T) {
	client := &stubClient{reply: protocol.AssistantReply{Text: "ok"}}
	faqs := &stubFAQs{faqs: []*models.FAQ{{
		Question: models.MultilingualText{models.LocaleEnglish: "What are your hours?"},
		Answer:   models.MultilingualText{models.LocaleEnglish: "10am to 10pm."},
		Active:   true,
	}}}
	augmenter := newTestAugmenter(client, faqs, nil)

	module := assistantModule(models.AssistantConfig{
		SystemPrompt:  "You are the booking assistant.",
		UseFAQContext: true,
	})

	outcome := augmenter.Augment(context.Background(), testSession(), module, "hours?")
	require.Equal(t, OutcomeHandled, outcome.Kind)

	assert.Contains(t, client.seen.SystemPrompt, "You are the booking assistant.")
	assert.Contains(t, client.seen.SystemPrompt, "What are your hours?")
	assert.Contains(t, client.seen.SystemPrompt, "10am to 10pm.")
}

func TestAugmenter_NavigationRequiresOptIn(t *testing.T) {
	client := &stubClient{reply: protocol.AssistantReply{NavigateWorkflowID: "wf-booking"}}
	augmenter := newTestAugmenter(client, nil, nil)

	outcome := augmenter.Augment(context.Background(), testSession(),
		assistantModule(models.AssistantConfig{}), "I want to book")

	require.Equal(t, OutcomeHandled, outcome.Kind)
	assert.Empty(t, outcome.NavigateWorkflowID, "navigation must be suppressed without opt-in")
}

func TestAugmenter_NavigationTargetsRestricted(t *testing.T) {
	client := &stubClient{reply: protocol.AssistantReply{NavigateWorkflowID: "wf-booking"}}
	workflows := &stubWorkflows{workflows: []*models.Workflow{
		{ID: "wf-booking", Name: "Booking"},
		{ID: "wf-support", Name: "Support"},
	}}
	augmenter := newTestAugmenter(client, nil, workflows)

	module := assistantModule(models.AssistantConfig{
		EnableWorkflowNavigation: true,
		AvailableWorkflows:       []string{"wf-booking"},
	})

	outcome := augmenter.Augment(context.Background(), testSession(), module, "I want to book")
	require.Equal(t, OutcomeHandled, outcome.Kind)
	assert.Equal(t, "wf-booking", outcome.NavigateWorkflowID)

	require.Len(t, client.seen.NavigationTargets, 1)
	assert.Equal(t, "wf-booking", client.seen.NavigationTargets[0].WorkflowID)
}
