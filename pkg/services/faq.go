package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/converso/converso/pkg/models"
	"github.com/converso/converso/pkg/persistence"
)

// FAQService manages the knowledge base the assistant draws on.
type FAQService struct {
	persistence persistence.Persistence
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewFAQService(logger *slog.Logger, p persistence.Persistence) *FAQService {
	return &FAQService{
		persistence: p,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("service", "faq"),
	}
}

func (s *FAQService) ListActive(ctx context.Context) ([]*models.FAQ, error) {
	return s.persistence.FAQs().ListActive(ctx)
}

func (s *FAQService) Save(ctx context.Context, faq *models.FAQ) (*models.FAQ, error) {
	if err := s.validate.Struct(faq); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	now := time.Now().UTC()

	if faq.ID == "" {
		faq.ID = uuid.New().String()
		faq.CreatedAt = now
	}

	faq.UpdatedAt = now

	if err := s.persistence.FAQs().Save(ctx, faq); err != nil {
		return nil, fmt.Errorf("save faq %s: %w", faq.ID, err)
	}

	s.logger.Info("FAQ saved", "faq_id", faq.ID, "category", faq.Category)

	return faq, nil
}

func (s *FAQService) Delete(ctx context.Context, id string) error {
	if err := s.persistence.FAQs().Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("FAQ deleted", "faq_id", id)

	return nil
}
