package models

import "time"

// RoundStatus — статус раунда внутри турнира.
type RoundStatus string

const (
	RoundClosed RoundStatus = "closed"
	RoundOpen   RoundStatus = "open"
)

// TournamentRound представляет один раунд турнира.
// Номер раунда уникален в пределах турнира (1..N).
type TournamentRound struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	Number       int         `json:"number" db:"round_number"`
	Status       RoundStatus `json:"status" db:"status"`
	OpenedAt     *time.Time  `json:"opened_at,omitempty" db:"opened_at"`
	ClosedAt     *time.Time  `json:"closed_at,omitempty" db:"closed_at"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}
