package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/chip-tournament-system/models"
	"github.com/Dosada05/chip-tournament-system/repositories"
)

type CreatePlatformInput struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type PlatformService struct {
	platformRepo repositories.PlatformRepository
}

func NewPlatformService(platformRepo repositories.PlatformRepository) *PlatformService {
	return &PlatformService{platformRepo: platformRepo}
}

func (s *PlatformService) Create(ctx context.Context, input CreatePlatformInput) (*models.Platform, error) {
	name := strings.TrimSpace(input.Name)
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if len(name) < MinNameLength || len(name) > MaxNameLength {
		return nil, fmt.Errorf("%w: platform name must be between %d and %d characters",
			ErrValidationFailed, MinNameLength, MaxNameLength)
	}
	if code == "" {
		return nil, fmt.Errorf("%w: platform code is required", ErrValidationFailed)
	}

	platform := &models.Platform{Name: name, Code: code}
	if err := s.platformRepo.Create(ctx, platform); err != nil {
		if errors.Is(err, repositories.ErrPlatformCodeConflict) {
			return nil, fmt.Errorf("%w: code %s", ErrValidationFailed, code)
		}
		return nil, err
	}
	return platform, nil
}

func (s *PlatformService) GetByID(ctx context.Context, id int) (*models.Platform, error) {
	platform, err := s.platformRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrPlatformNotFound) {
			return nil, ErrPlatformNotFound
		}
		return nil, err
	}
	return platform, nil
}

func (s *PlatformService) List(ctx context.Context) ([]models.Platform, error) {
	return s.platformRepo.List(ctx)
}
