package models

import "time"

// TournamentPlayer — запись участия аккаунта в турнире и его фишечный баланс.
// Пара (tournament_id, account_id) уникальна; баланс никогда не уходит в минус.
type TournamentPlayer struct {
	ID            int        `json:"id" db:"id"`
	TournamentID  int        `json:"tournament_id" db:"tournament_id"`
	AccountID     int        `json:"account_id" db:"account_id"`
	ChipsStart    int        `json:"chips_start" db:"chips_start"`
	ChipsCurrent  int        `json:"chips_current" db:"chips_current"`
	ChipsReserved int        `json:"chips_reserved" db:"chips_reserved"`
	TotalWins     int        `json:"total_wins" db:"total_wins"`
	TotalLosses   int        `json:"total_losses" db:"total_losses"`
	TotalPushes   int        `json:"total_pushes" db:"total_pushes"`
	FinalRank     *int       `json:"final_rank,omitempty" db:"final_rank"`
	JoinedAt      time.Time  `json:"joined_at" db:"joined_at"`
	LastUpdated   time.Time  `json:"last_updated" db:"last_updated"`

	Account *Account `json:"account,omitempty" db:"-"`
}

// LeaderboardRow — строка таблицы лидеров, производная от TournamentPlayer.
type LeaderboardRow struct {
	AccountID    int    `json:"account_id"`
	Username     string `json:"username"`
	ChipsCurrent int    `json:"chips_current"`
	TotalWins    int    `json:"total_wins"`
	TotalLosses  int    `json:"total_losses"`
	FinalRank    *int   `json:"final_rank,omitempty"`
}
