package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/chip-tournament-system/models"
	"github.com/Dosada05/chip-tournament-system/repositories"
	"github.com/google/uuid"
)

type SettleRoundInput struct {
	TournamentID int                 `json:"tournament_id"`
	RoundNumber  int                 `json:"round_number"`
	AccountID    int                 `json:"account_id"`
	BetChips     int                 `json:"bet_chips"`
	Outcome      models.RoundOutcome `json:"outcome"`

	// ExternalRef задаётся только внутренними вызовами (корректировки);
	// для обычной ставки генерируется автоматически.
	ExternalRef string `json:"-"`
}

type AdjustChipsInput struct {
	TournamentID int    `json:"tournament_id"`
	RoundNumber  int    `json:"round_number"`
	AccountID    int    `json:"account_id"`
	Delta        int    `json:"delta"`
	Reason       string `json:"reason"`
}

// SettlementService — фишечная бухгалтерия турнира. Единственный компонент,
// которому разрешено менять баланс игрока, и только через расчёт раунда.
// Каждый расчёт — одна транзакция: строка игрока блокируется, запись
// результата, новый баланс и счётчики фиксируются как единое целое.
type SettlementService struct {
	txManager      repositories.TxManager
	tournamentRepo repositories.TournamentRepository
	playerRepo     repositories.PlayerRepository
	resultRepo     repositories.RoundResultRepository
	accountRepo    repositories.AccountRepository
	roundService   *RoundService
	broadcaster    LeaderboardBroadcaster
	logger         *slog.Logger
}

func NewSettlementService(
	txManager repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	playerRepo repositories.PlayerRepository,
	resultRepo repositories.RoundResultRepository,
	accountRepo repositories.AccountRepository,
	roundService *RoundService,
	broadcaster LeaderboardBroadcaster,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		txManager:      txManager,
		tournamentRepo: tournamentRepo,
		playerRepo:     playerRepo,
		resultRepo:     resultRepo,
		accountRepo:    accountRepo,
		roundService:   roundService,
		broadcaster:    broadcaster,
		logger:         logger,
	}
}

// SettleRound применяет исход раунда к балансу игрока.
//
// Дубликат по паре (раунд, аккаунт) отбивается уникальным индексом при
// вставке записи, а не только предварительной проверкой: из двух
// конкурирующих вызовов ровно один фиксируется, второй получает
// ErrDuplicateSettlement.
func (s *SettlementService) SettleRound(ctx context.Context, input SettleRoundInput) (*models.RoundResult, error) {
	if input.BetChips <= 0 {
		return nil, ErrInvalidBet
	}
	delta, err := outcomeDelta(input.Outcome, input.BetChips)
	if err != nil {
		return nil, err
	}
	if input.RoundNumber < 1 {
		return nil, fmt.Errorf("%w: round number must be positive", ErrValidationFailed)
	}

	var result *models.RoundResult

	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, input.TournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if tournament.Status != models.StatusRunning {
			return fmt.Errorf("%w: tournament is %s", ErrTournamentNotRunning, tournament.Status)
		}

		player, err := s.playerRepo.FindByTournamentAndAccountForUpdate(ctx, exec, input.TournamentID, input.AccountID)
		if err != nil {
			if errors.Is(err, repositories.ErrPlayerNotFound) {
				return ErrPlayerNotJoined
			}
			return err
		}

		round, err := s.roundService.ensureRound(ctx, exec, input.TournamentID, input.RoundNumber)
		if err != nil {
			return err
		}
		if round.Status != models.RoundOpen {
			return fmt.Errorf("%w: round %d", ErrRoundNotOpen, input.RoundNumber)
		}

		chipsAfter := player.ChipsCurrent + delta
		if chipsAfter < 0 {
			return ErrInsufficientChips
		}

		externalRef := input.ExternalRef
		if externalRef == "" {
			externalRef = uuid.NewString()
		}
		result = &models.RoundResult{
			RoundID:     round.ID,
			AccountID:   input.AccountID,
			BetChips:    input.BetChips,
			Outcome:     input.Outcome,
			ChipsDelta:  delta,
			ChipsAfter:  chipsAfter,
			ExternalRef: externalRef,
		}
		if err := s.resultRepo.Create(ctx, exec, result); err != nil {
			if errors.Is(err, repositories.ErrRoundResultConflict) {
				return ErrDuplicateSettlement
			}
			return err
		}

		wins, losses, pushes := counterDeltas(input.Outcome, 1)
		if err := s.playerRepo.ApplySettlement(ctx, exec, player.ID, chipsAfter, wins, losses, pushes); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("round settled",
		slog.Int("tournament_id", input.TournamentID),
		slog.Int("round", input.RoundNumber),
		slog.Int("account_id", input.AccountID),
		slog.String("outcome", string(input.Outcome)),
		slog.Int("chips_after", result.ChipsAfter))

	s.broadcastLeaderboard(ctx, input.TournamentID)
	return result, nil
}

// VoidRoundResult аннулирует ранее записанный результат компенсирующей
// записью: история неизменяема, вместо правки вставляется VOID с обратной
// дельтой. Один результат аннулируется не более одного раза (уникальный
// индекс по void_of_id).
func (s *SettlementService) VoidRoundResult(ctx context.Context, resultID int) (*models.RoundResult, error) {
	var (
		compensation *models.RoundResult
		tournamentID int
	)

	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		original, err := s.resultRepo.GetByID(ctx, exec, resultID)
		if err != nil {
			if errors.Is(err, repositories.ErrRoundResultNotFound) {
				return ErrRoundResultNotFound
			}
			return err
		}
		if original.Outcome == models.OutcomeVoid {
			return ErrCannotVoidVoid
		}

		round, err := s.roundService.roundRepo.GetByID(ctx, exec, original.RoundID)
		if err != nil {
			return err
		}
		tournamentID = round.TournamentID

		player, err := s.playerRepo.FindByTournamentAndAccountForUpdate(ctx, exec, round.TournamentID, original.AccountID)
		if err != nil {
			if errors.Is(err, repositories.ErrPlayerNotFound) {
				return ErrPlayerNotJoined
			}
			return err
		}

		chipsAfter := player.ChipsCurrent - original.ChipsDelta
		if chipsAfter < 0 {
			return ErrInsufficientChips
		}

		compensation = &models.RoundResult{
			RoundID:     original.RoundID,
			AccountID:   original.AccountID,
			BetChips:    original.BetChips,
			Outcome:     models.OutcomeVoid,
			ChipsDelta:  -original.ChipsDelta,
			ChipsAfter:  chipsAfter,
			ExternalRef: uuid.NewString(),
			VoidOfID:    &original.ID,
		}
		if err := s.resultRepo.Create(ctx, exec, compensation); err != nil {
			if errors.Is(err, repositories.ErrRoundResultVoided) {
				return ErrResultAlreadyVoided
			}
			return err
		}

		wins, losses, pushes := counterDeltas(original.Outcome, -1)
		if err := s.playerRepo.ApplySettlement(ctx, exec, player.ID, chipsAfter, wins, losses, pushes); err != nil {
			return err
		}

		s.logger.Info("round result voided",
			slog.Int("result_id", original.ID),
			slog.Int("account_id", original.AccountID),
			slog.Int("chips_after", chipsAfter))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcastLeaderboard(ctx, tournamentID)
	return compensation, nil
}

// AdjustChips — административная корректировка баланса. Идёт тем же
// проверенным путём, что и расчёт раунда: типизированный вход, одна
// транзакция, контроль неотрицательности, след в истории. Причина
// корректировки сохраняется во внешней ссылке записи результата.
func (s *SettlementService) AdjustChips(ctx context.Context, input AdjustChipsInput) (*models.RoundResult, error) {
	if input.Delta == 0 {
		return nil, fmt.Errorf("%w: adjustment delta must be non-zero", ErrValidationFailed)
	}
	outcome := models.OutcomeWin
	bet := input.Delta
	if input.Delta < 0 {
		outcome = models.OutcomeLose
		bet = -input.Delta
	}
	externalRef := fmt.Sprintf("adjustment:%s", uuid.NewString())
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		externalRef = fmt.Sprintf("adjustment:%s:%s", uuid.NewString(), reason)
	}
	return s.SettleRound(ctx, SettleRoundInput{
		TournamentID: input.TournamentID,
		RoundNumber:  input.RoundNumber,
		AccountID:    input.AccountID,
		BetChips:     bet,
		Outcome:      outcome,
		ExternalRef:  externalRef,
	})
}

// TransactionHistory — история всех расчётов аккаунта, новые записи первыми.
func (s *SettlementService) TransactionHistory(ctx context.Context, accountID int) ([]models.PlayerTransaction, error) {
	if _, err := s.accountRepo.GetByID(ctx, accountID); err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return s.resultRepo.ListByAccount(ctx, accountID)
}

// TransactionSummary — агрегированная статистика по расчётам аккаунта.
// Аннулированный результат и его компенсирующая запись VOID взаимно
// погашаются и из агрегатов исключаются: сводка обязана сходиться
// с балансом и счётчиками игрока, которые откат уже учёл.
func (s *SettlementService) TransactionSummary(ctx context.Context, accountID int) (*models.TransactionSummary, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	transactions, err := s.resultRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	voided := make(map[int]bool)
	for _, tx := range transactions {
		if tx.Outcome == models.OutcomeVoid && tx.VoidOfID != nil {
			voided[*tx.VoidOfID] = true
		}
	}

	summary := &models.TransactionSummary{
		AccountID: accountID,
		Username:  account.Username,
	}
	for _, tx := range transactions {
		if voided[tx.ResultID] {
			continue
		}
		switch tx.Outcome {
		case models.OutcomeWin:
			summary.TotalBets++
			summary.TotalWins++
			summary.TotalBetAmount += tx.BetChips
			summary.TotalWinnings += tx.ChipsDelta
		case models.OutcomeLose:
			summary.TotalBets++
			summary.TotalLosses++
			summary.TotalBetAmount += tx.BetChips
			summary.TotalLossAmount += -tx.ChipsDelta
		case models.OutcomePush:
			summary.TotalBets++
			summary.TotalPushes++
			summary.TotalBetAmount += tx.BetChips
		}
	}
	summary.NetResult = summary.TotalWinnings - summary.TotalLossAmount
	if summary.TotalBets > 0 {
		summary.WinRate = float64(summary.TotalWins) / float64(summary.TotalBets) * 100
	}
	return summary, nil
}

func (s *SettlementService) broadcastLeaderboard(ctx context.Context, tournamentID int) {
	if s.broadcaster == nil || tournamentID == 0 {
		return
	}
	leaderboard, err := s.playerRepo.LeaderboardByTournament(ctx, nil, tournamentID)
	if err != nil {
		s.logger.Warn("failed to build leaderboard for broadcast",
			slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}
	s.broadcaster.BroadcastToRoom(fmt.Sprintf("tournament-%d", tournamentID), map[string]interface{}{
		"type":    "LEADERBOARD_UPDATED",
		"payload": leaderboard,
	})
}

// counterDeltas возвращает инкременты счётчиков побед/поражений/пушей для
// исхода; sign = -1 откатывает счётчик при аннулировании.
func counterDeltas(outcome models.RoundOutcome, sign int) (wins, losses, pushes int) {
	switch outcome {
	case models.OutcomeWin:
		return sign, 0, 0
	case models.OutcomeLose:
		return 0, sign, 0
	case models.OutcomePush:
		return 0, 0, sign
	}
	return 0, 0, 0
}
