package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/converso/converso/pkg/eventbus"
	"github.com/converso/converso/pkg/events"
	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/persistence"
	"github.com/converso/converso/pkg/validation"
)

// FormatService manages validation formats. Expressions are compiled on save
// so collect modules never meet a broken regex at runtime, and the live
// registry is updated in place so edits take effect without a restart.
type FormatService struct {
	persistence persistence.Persistence
	registry    *validation.Registry
	publisher   eventbus.EventPublisher
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewFormatService builds the service. Registry is the live compiled registry
// collect handlers validate against; publisher fans catalog changes out to
// other processes. Both may be nil.
func NewFormatService(
	logger *slog.Logger,
	p persistence.Persistence,
	registry *validation.Registry,
	publisher eventbus.EventPublisher,
) *FormatService {
	return &FormatService{
		persistence: p,
		registry:    registry,
		publisher:   publisher,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("service", "format"),
	}
}

func (s *FormatService) List(ctx context.Context) ([]*models.ValidationFormat, error) {
	return s.persistence.Formats().List(ctx)
}

func (s *FormatService) Get(ctx context.Context, code string) (*models.ValidationFormat, error) {
	return s.persistence.Formats().GetByCode(ctx, code)
}

func (s *FormatService) Save(ctx context.Context, format *models.ValidationFormat) (*models.ValidationFormat, error) {
	if err := s.validate.Struct(format); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	// Compile into a scratch registry first: a broken expression must not
	// reach storage or displace the live compiled format.
	if err := validation.NewRegistry().Register(format); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRegex, err.Error())
	}

	existing, err := s.persistence.Formats().GetByCode(ctx, format.FormatCode)

	switch {
	case err == nil:
		format.ID = existing.ID
		format.CreatedAt = existing.CreatedAt
	case persistence.IsFormatNotFound(err):
		if format.ID == "" {
			format.ID = uuid.New().String()
		}

		format.CreatedAt = time.Now().UTC()
	default:
		return nil, fmt.Errorf("load format %s: %w", format.FormatCode, err)
	}

	format.UpdatedAt = time.Now().UTC()

	if err := s.persistence.Formats().Save(ctx, format); err != nil {
		return nil, fmt.Errorf("save format %s: %w", format.FormatCode, err)
	}

	if s.registry != nil {
		if format.Active {
			if err := s.registry.Register(format); err != nil {
				return nil, fmt.Errorf("install format %s: %w", format.FormatCode, err)
			}
		} else {
			s.registry.Remove(format.FormatCode)
		}
	}

	s.logger.Info("Validation format saved", "format_code", format.FormatCode)

	s.publishFormatEvent(ctx, events.FormatSaved{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Type:      events.FormatSavedEvent,
			Timestamp: time.Now().UTC(),
		},
		FormatCode: format.FormatCode,
		Active:     format.Active,
	})

	return format, nil
}

// Delete removes a format. Collect modules still bound to it are checked
// first so saved conversations never lose their validator.
func (s *FormatService) Delete(ctx context.Context, code string) error {
	if _, err := s.persistence.Formats().GetByCode(ctx, code); err != nil {
		return err
	}

	modules, err := s.persistence.Modules().List(ctx)
	if err != nil {
		return fmt.Errorf("list modules: %w", err)
	}

	for _, module := range modules {
		if module.ValidationFormatCode == code {
			return fmt.Errorf("%w: format %s bound to module %s",
				ErrFormatInUse, code, module.RefCode)
		}
	}

	if err := s.persistence.Formats().Delete(ctx, code); err != nil {
		return fmt.Errorf("delete format %s: %w", code, err)
	}

	if s.registry != nil {
		s.registry.Remove(code)
	}

	s.logger.Info("Validation format deleted", "format_code", code)

	s.publishFormatEvent(ctx, events.FormatDeleted{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Type:      events.FormatDeletedEvent,
			Timestamp: time.Now().UTC(),
		},
		FormatCode: code,
	})

	return nil
}

func (s *FormatService) publishFormatEvent(ctx context.Context, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, "", event); err != nil {
		s.logger.Error("Failed to publish format change", "event_type", event.GetType(), "error", err)
	}
}
