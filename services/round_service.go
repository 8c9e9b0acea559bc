package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/chip-tournament-system/models"
	"github.com/Dosada05/chip-tournament-system/repositories"
	"github.com/coder/quartz"
)

// RoundService управляет под-машиной состояний раунда: closed → open → closed.
// Открытый однажды и закрытый раунд заново не открывается.
type RoundService struct {
	txManager         repositories.TxManager
	tournamentRepo    repositories.TournamentRepository
	roundRepo         repositories.RoundRepository
	tournamentService *TournamentService
	clock             quartz.Clock
	logger            *slog.Logger
}

func NewRoundService(
	txManager repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	roundRepo repositories.RoundRepository,
	tournamentService *TournamentService,
	clock quartz.Clock,
	logger *slog.Logger,
) *RoundService {
	return &RoundService{
		txManager:         txManager,
		tournamentRepo:    tournamentRepo,
		roundRepo:         roundRepo,
		tournamentService: tournamentService,
		clock:             clock,
		logger:            logger,
	}
}

// OpenRound открывает раунд и продвигает указатель текущего раунда турнира.
// Повторный вызов для уже открытого раунда — идемпотентный no-op: планировщик
// может сработать дважды по одному и тому же моменту времени.
func (s *RoundService) OpenRound(ctx context.Context, tournamentID, roundNumber int) error {
	return s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if tournament.Status != models.StatusRunning {
			return fmt.Errorf("%w: tournament is %s", ErrTournamentNotRunning, tournament.Status)
		}

		round, err := s.roundRepo.FindByTournamentAndNumberForUpdate(ctx, exec, tournamentID, roundNumber)
		if err != nil {
			if errors.Is(err, repositories.ErrRoundNotFound) {
				return ErrRoundNotFound
			}
			return err
		}

		if round.Status == models.RoundOpen {
			s.logger.Info("round already open, skipping",
				slog.Int("tournament_id", tournamentID), slog.Int("round", roundNumber))
			return nil
		}
		if round.ClosedAt != nil {
			// Раунд уже прошёл полный цикл, заново его не открываем.
			return fmt.Errorf("%w: round %d was already closed", ErrRoundAlreadyClosed, roundNumber)
		}

		openedAt := s.clock.Now()
		if err := s.roundRepo.UpdateStatus(ctx, exec, round.ID, models.RoundOpen, &openedAt, nil); err != nil {
			return err
		}
		if err := s.tournamentRepo.UpdateCurrentRound(ctx, exec, tournamentID, roundNumber); err != nil {
			return err
		}

		s.logger.Info("round opened",
			slog.Int("tournament_id", tournamentID), slog.Int("round", roundNumber))
		return nil
	})
}

// CloseRound закрывает открытый раунд. Закрытие последнего объявленного
// раунда в той же транзакции завершает турнир.
func (s *RoundService) CloseRound(ctx context.Context, tournamentID, roundNumber int) error {
	return s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}

		round, err := s.roundRepo.FindByTournamentAndNumberForUpdate(ctx, exec, tournamentID, roundNumber)
		if err != nil {
			if errors.Is(err, repositories.ErrRoundNotFound) {
				return ErrRoundNotFound
			}
			return err
		}

		if round.Status != models.RoundOpen {
			return fmt.Errorf("%w: round %d is %s", ErrRoundNotOpen, roundNumber, round.Status)
		}

		closedAt := s.clock.Now()
		if err := s.roundRepo.UpdateStatus(ctx, exec, round.ID, models.RoundClosed, nil, &closedAt); err != nil {
			return err
		}
		s.logger.Info("round closed",
			slog.Int("tournament_id", tournamentID), slog.Int("round", roundNumber))

		// Завершаем автоматически только по объявленному расписанию: турнир
		// без total_rounds закрывает оператор (или отмена), а не последний
		// лениво созданный раунд.
		if tournament.TotalRounds == nil {
			return nil
		}
		if roundNumber != *tournament.TotalRounds || tournament.Status != models.StatusRunning {
			return nil
		}

		if err := s.tournamentRepo.UpdateStatus(ctx, exec, tournamentID, models.StatusCompleted); err != nil {
			return err
		}
		if err := s.tournamentService.assignFinalRanks(ctx, exec, tournamentID); err != nil {
			return err
		}
		s.logger.Info("last round closed, tournament completed",
			slog.Int("tournament_id", tournamentID))
		return nil
	})
}

// ensureRound находит раунд по номеру или лениво создаёт его открытым —
// для турниров без заранее объявленного количества раундов. Вызывается
// только внутри транзакции расчёта.
func (s *RoundService) ensureRound(ctx context.Context, exec repositories.SQLExecutor, tournamentID, roundNumber int) (*models.TournamentRound, error) {
	round, err := s.roundRepo.FindByTournamentAndNumberForUpdate(ctx, exec, tournamentID, roundNumber)
	if err == nil {
		return round, nil
	}
	if !errors.Is(err, repositories.ErrRoundNotFound) {
		return nil, err
	}

	openedAt := s.clock.Now()
	round = &models.TournamentRound{
		TournamentID: tournamentID,
		Number:       roundNumber,
		Status:       models.RoundOpen,
		OpenedAt:     &openedAt,
	}
	if err := s.roundRepo.Create(ctx, exec, round); err != nil {
		// Гонка двух одновременных расчётов по новому раунду.
		if errors.Is(err, repositories.ErrRoundNumberConflict) {
			return s.roundRepo.FindByTournamentAndNumberForUpdate(ctx, exec, tournamentID, roundNumber)
		}
		return nil, err
	}
	return round, nil
}
