package service

import (
	"context"
	"fmt"
	"strings"

	"gymaccess/internal/domain"
	"gymaccess/internal/models"

	"github.com/rs/zerolog"
)

// DirectoryService exposes the provider directory used for selection.
type DirectoryService struct {
	directory domain.DirectoryStore
	logger    *zerolog.Logger
}

func NewDirectoryService(directory domain.DirectoryStore, logger *zerolog.Logger) *DirectoryService {
	return &DirectoryService{
		directory: directory,
		logger:    logger,
	}
}

func (s *DirectoryService) States(ctx context.Context) ([]string, error) {
	states, err := s.directory.GetStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrLookupFailure, err)
	}
	return states, nil
}

func (s *DirectoryService) Providers(ctx context.Context, state string) ([]string, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return nil, models.ErrSelectionMissing
	}
	providers, err := s.directory.GetProvidersByState(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrLookupFailure, err)
	}
	return providers, nil
}

// ValidateSelection checks that provider is listed under state.
func (s *DirectoryService) ValidateSelection(ctx context.Context, state, provider string) error {
	state = strings.TrimSpace(state)
	provider = strings.TrimSpace(provider)
	if state == "" || provider == "" {
		return models.ErrSelectionMissing
	}

	ok, err := s.directory.ProviderExists(ctx, state, provider)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrLookupFailure, err)
	}
	if !ok {
		s.logger.Info().Str("state", state).Str("provider", provider).Msg("unknown provider selected")
		return fmt.Errorf("%w: %s / %s", models.ErrUnknownProvider, state, provider)
	}
	return nil
}
