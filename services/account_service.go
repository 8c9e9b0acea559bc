package services

import (
	"context"
	"errors"

	"github.com/Dosada05/chip-tournament-system/models"
	"github.com/Dosada05/chip-tournament-system/repositories"
)

type AccountService struct {
	accountRepo repositories.AccountRepository
}

func NewAccountService(accountRepo repositories.AccountRepository) *AccountService {
	return &AccountService{accountRepo: accountRepo}
}

func (s *AccountService) GetByID(ctx context.Context, id int) (*models.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (s *AccountService) ListByPlatform(ctx context.Context, platformID int) ([]models.Account, error) {
	return s.accountRepo.ListByPlatform(ctx, platformID)
}
