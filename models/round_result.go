package models

import "time"

// RoundOutcome — исход раунда для игрока.
type RoundOutcome string

const (
	OutcomeWin  RoundOutcome = "WIN"
	OutcomeLose RoundOutcome = "LOSE"
	OutcomePush RoundOutcome = "PUSH"
	// OutcomeVoid используется только компенсирующими записями,
	// которые отменяют ранее записанный результат. Обычный расчёт
	// раунда никогда не создаёт VOID.
	OutcomeVoid RoundOutcome = "VOID"
)

// RoundResult — неизменяемая запись расчёта одного раунда для одного игрока.
// Среди записей WIN/LOSE/PUSH пара (round_id, account_id) уникальна —
// это и есть гарантия однократного расчёта. История никогда не изменяется
// и не удаляется: отмена оформляется отдельной записью VOID с обратной дельтой.
type RoundResult struct {
	ID           int          `json:"id" db:"id"`
	RoundID      int          `json:"round_id" db:"round_id"`
	AccountID    int          `json:"account_id" db:"account_id"`
	BetChips     int          `json:"bet_chips" db:"bet_chips"`
	Outcome      RoundOutcome `json:"outcome" db:"outcome"`
	ChipsDelta   int          `json:"chips_delta" db:"chips_delta"`
	ChipsAfter   int          `json:"chips_after" db:"chips_after"`
	ExternalRef  string       `json:"external_ref" db:"external_ref"`
	VoidOfID     *int         `json:"void_of_id,omitempty" db:"void_of_id"`
	RecordedAt   time.Time    `json:"recorded_at" db:"recorded_at"`
}

// PlayerTransaction — строка истории транзакций игрока для владельца/админа.
type PlayerTransaction struct {
	ResultID       int          `json:"result_id"`
	TournamentID   int          `json:"tournament_id"`
	TournamentName string       `json:"tournament_name"`
	RoundNumber    int          `json:"round_number"`
	BetChips       int          `json:"bet_chips"`
	Outcome        RoundOutcome `json:"outcome"`
	ChipsDelta     int          `json:"chips_delta"`
	ChipsAfter     int          `json:"chips_after"`
	VoidOfID       *int         `json:"void_of_id,omitempty"`
	RecordedAt     time.Time    `json:"recorded_at"`
}

// TransactionSummary — агрегированная статистика по всем расчётам игрока.
// Аннулированные результаты и их компенсирующие записи в агрегаты не входят:
// сводка отражает тот же итог, что и баланс со счётчиками игрока.
type TransactionSummary struct {
	AccountID       int     `json:"account_id"`
	Username        string  `json:"username"`
	TotalBets       int     `json:"total_bets"`
	TotalWins       int     `json:"total_wins"`
	TotalLosses     int     `json:"total_losses"`
	TotalPushes     int     `json:"total_pushes"`
	TotalBetAmount  int     `json:"total_bet_amount"`
	TotalWinnings   int     `json:"total_winnings"`
	TotalLossAmount int     `json:"total_loss_amount"`
	NetResult       int     `json:"net_result"`
	WinRate         float64 `json:"win_rate"`
}
