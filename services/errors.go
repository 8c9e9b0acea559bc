package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации при создании турнира
	ErrValidationFailed            = errors.New("validation failed")
	ErrTournamentNameRequired      = errors.New("tournament name must be between 3 and 100 characters")
	ErrTournamentInvalidChips      = errors.New("starting chips must be between 100 and 10000")
	ErrTournamentInvalidRounds     = errors.New("total rounds must be between 1 and 20")
	ErrTournamentInvalidCapacity   = errors.New("max players must be between 2 and 1000")
	ErrTournamentInvalidRegWindow  = errors.New("registration end must not be before registration start")
	ErrTournamentInvalidStartTime  = errors.New("tournament start must not be before registration end")
	ErrTournamentInvalidKind       = errors.New("tournament kind must be PVD or PVP")

	// Ошибки жизненного цикла
	ErrTournamentInvalidStatusTransition = errors.New("invalid tournament status transition")
	ErrRoundNotOpen                      = errors.New("round is not open")
	ErrRoundAlreadyClosed                = errors.New("round is already closed")
	ErrTournamentNotRunning              = errors.New("tournament is not running")

	// Ошибки регистрации
	ErrRegistrationNotOpen = errors.New("tournament registration is not open")
	ErrTournamentFull      = errors.New("tournament registration is full")

	// Ошибки расчёта раунда
	ErrInvalidOutcome      = errors.New("outcome must be WIN, LOSE or PUSH")
	ErrInvalidBet          = errors.New("bet chips must be a positive amount")
	ErrDuplicateSettlement = errors.New("round result already recorded for this player")
	ErrInsufficientChips   = errors.New("insufficient chips: balance cannot go negative")
	ErrPlayerNotJoined     = errors.New("player is not joined to this tournament")
	ErrResultAlreadyVoided = errors.New("round result is already voided")
	ErrCannotVoidVoid      = errors.New("a void entry cannot be voided")

	// Ошибки аутентификации
	ErrAuthInvalidCredentials = errors.New("invalid username or password")
	ErrAuthUsernameTaken      = errors.New("username is already taken")

	// Ошибки, специфичные для сущностей
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrRoundNotFound       = errors.New("tournament round not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrPlatformNotFound    = errors.New("platform not found")
	ErrRoundResultNotFound = errors.New("round result not found")
)
