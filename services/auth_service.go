package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/chip-tournament-system/models"
	"github.com/Dosada05/chip-tournament-system/repositories"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

type RegisterInput struct {
	PlatformID *int   `json:"platform_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

type LoginInput struct {
	PlatformID *int   `json:"platform_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

type AuthService struct {
	accountRepo repositories.AccountRepository
	jwtSecret   []byte
	tokenTTL    time.Duration
	logger      *slog.Logger
}

func NewAuthService(accountRepo repositories.AccountRepository, jwtSecret string, tokenTTL time.Duration, logger *slog.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		accountRepo: accountRepo,
		jwtSecret:   []byte(jwtSecret),
		tokenTTL:    tokenTTL,
		logger:      logger,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.Account, error) {
	if len(input.Username) < MinNameLength || len(input.Username) > MaxNameLength {
		return nil, fmt.Errorf("%w: username must be between %d and %d characters",
			ErrValidationFailed, MinNameLength, MaxNameLength)
	}
	if len(input.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidationFailed)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &models.Account{
		PlatformID:   input.PlatformID,
		Username:     input.Username,
		PasswordHash: string(hash),
		Status:       models.AccountActive,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		if errors.Is(err, repositories.ErrAccountUsernameConflict) {
			return nil, ErrAuthUsernameTaken
		}
		return nil, err
	}

	s.logger.Info("account registered", slog.Int("account_id", account.ID), slog.String("username", account.Username))
	return account, nil
}

// Login проверяет пароль и выдаёт подписанный JWT. Несуществующий логин и
// неверный пароль неразличимы для вызывающего.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (string, *models.Account, error) {
	account, err := s.accountRepo.GetByUsername(ctx, input.PlatformID, input.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return "", nil, ErrAuthInvalidCredentials
		}
		return "", nil, err
	}
	if account.Status != models.AccountActive {
		return "", nil, ErrAuthInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
		return "", nil, ErrAuthInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": account.ID,
		"usr": account.Username,
		"iat": now.Unix(),
		"exp": now.Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, account, nil
}

// ParseToken валидирует JWT и возвращает идентификатор аккаунта из claims.
func (s *AuthService) ParseToken(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrAuthInvalidCredentials
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrAuthInvalidCredentials
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, ErrAuthInvalidCredentials
	}
	return int(sub), nil
}
