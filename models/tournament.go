package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusCreated     TournamentStatus = "created"
	StatusRegistering TournamentStatus = "registering"
	StatusRunning     TournamentStatus = "running"
	StatusCompleted   TournamentStatus = "completed"
	StatusCancelled   TournamentStatus = "cancelled"
)

// IsTerminal сообщает, является ли статус конечным.
func (s TournamentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// TournamentKind определяет формат игры: игрок против дилера или игрок против игрока.
type TournamentKind string

const (
	KindPlayerVsDealer TournamentKind = "PVD"
	KindPlayerVsPlayer TournamentKind = "PVP"
)

// Tournament представляет фишечный турнир и его жизненный цикл.
type Tournament struct {
	ID                int              `json:"id" db:"id"`
	PlatformID        *int             `json:"platform_id,omitempty" db:"platform_id"`
	Kind              TournamentKind   `json:"kind" db:"kind"`
	Name              string           `json:"name" db:"name"`
	StartingChips     int              `json:"starting_chips" db:"starting_chips"`
	TotalRounds       *int             `json:"total_rounds,omitempty" db:"total_rounds"`
	MaxPlayers        *int             `json:"max_players,omitempty" db:"max_players"`
	RegistrationStart time.Time        `json:"registration_start" db:"registration_start"`
	RegistrationEnd   time.Time        `json:"registration_end" db:"registration_end"`
	StartTime         time.Time        `json:"start_time" db:"start_time"`
	Status            TournamentStatus `json:"status" db:"status"`
	CurrentRound      int              `json:"current_round" db:"current_round"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
	LogoKey           *string          `json:"-" db:"logo_key"`
	LogoURL           *string          `json:"logo_url,omitempty" db:"-"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Platform *Platform          `json:"platform,omitempty" db:"-"`
	Rounds   []TournamentRound  `json:"rounds,omitempty" db:"-"`
	Players  []TournamentPlayer `json:"players,omitempty" db:"-"`
}
