package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/repository"
)

// AnalyticsService reads back what the Ingester stored.
type AnalyticsService struct {
	store repository.MetricRepository
}

func NewAnalyticsService(store repository.MetricRepository) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// List returns the user's post metrics, most-seen first. Empty platform or
// category means no filter.
func (s *AnalyticsService) List(ctx context.Context, userID, platform, category string, limit, offset int) ([]model.MetricWithCategory, error) {
	filter := repository.MetricFilter{ListOptions: listOptions(limit, offset)}

	if platform != "" {
		p, err := parsePlatform(platform)
		if err != nil {
			return nil, err
		}
		filter.Platform = p
	}
	if category != "" {
		c := model.Category(strings.ToLower(strings.TrimSpace(category)))
		if !c.Valid() {
			return nil, apperror.ValidationFailed("category",
				fmt.Sprintf("category must be one of %s, %s or %s",
					model.CategoryBusiness, model.CategoryCulture, model.CategoryPolitics))
		}
		filter.Category = c
	}

	out, err := s.store.ListMetrics(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing metrics: %w", err)
	}
	return out, nil
}
