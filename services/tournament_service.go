package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Dosada05/chip-tournament-system/models"
	"github.com/Dosada05/chip-tournament-system/repositories"
	"github.com/Dosada05/chip-tournament-system/storage"
	"github.com/coder/quartz"
	"github.com/google/uuid"
)

// TournamentLifecycleScheduler — контракт планировщика жизненного цикла.
// Сервис турниров регистрирует расписание при создании и снимает его при
// отмене; сам планировщик живёт в SchedulerService.
type TournamentLifecycleScheduler interface {
	ScheduleTournament(t *models.Tournament) error
	DeregisterTournament(tournamentID int) error
}

// LeaderboardBroadcaster рассылает обновления таблицы лидеров подписчикам
// комнаты турнира (см. пакет live).
type LeaderboardBroadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
}

type CreateTournamentInput struct {
	PlatformID        *int                  `json:"platform_id"`
	Kind              models.TournamentKind `json:"kind"`
	Name              string                `json:"name"`
	StartingChips     int                   `json:"starting_chips"`
	TotalRounds       *int                  `json:"total_rounds"`
	MaxPlayers        *int                  `json:"max_players"`
	RegistrationStart time.Time             `json:"registration_start"`
	RegistrationEnd   time.Time             `json:"registration_end"`
	StartTime         time.Time             `json:"start_time"`
}

// LobbyTournament — представление турнира для лобби платформы.
type LobbyTournament struct {
	ID            int                     `json:"id"`
	Name          string                  `json:"name"`
	Kind          models.TournamentKind   `json:"kind"`
	StartingChips int                     `json:"starting_chips"`
	TotalRounds   *int                    `json:"total_rounds,omitempty"`
	MaxPlayers    *int                    `json:"max_players,omitempty"`
	Status        models.TournamentStatus `json:"status"`
	PlayerCount   int                     `json:"player_count"`
	StartTime     time.Time               `json:"start_time"`
}

// TournamentService управляет жизненным циклом турнира и регистрацией
// игроков. Все переходы статусов выполняются в одной транзакции под
// блокировкой строки турнира, поэтому конкурирующие вызовы (HTTP и
// планировщик) сериализуются на уровне БД.
type TournamentService struct {
	txManager      repositories.TxManager
	tournamentRepo repositories.TournamentRepository
	roundRepo      repositories.RoundRepository
	playerRepo     repositories.PlayerRepository
	platformRepo   repositories.PlatformRepository
	uploader       storage.FileUploader
	broadcaster    LeaderboardBroadcaster
	scheduler      TournamentLifecycleScheduler
	clock          quartz.Clock
	logger         *slog.Logger
}

func NewTournamentService(
	txManager repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	roundRepo repositories.RoundRepository,
	playerRepo repositories.PlayerRepository,
	platformRepo repositories.PlatformRepository,
	uploader storage.FileUploader,
	broadcaster LeaderboardBroadcaster,
	clock quartz.Clock,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		txManager:      txManager,
		tournamentRepo: tournamentRepo,
		roundRepo:      roundRepo,
		playerRepo:     playerRepo,
		platformRepo:   platformRepo,
		uploader:       uploader,
		broadcaster:    broadcaster,
		clock:          clock,
		logger:         logger,
	}
}

// AttachScheduler связывает сервис с планировщиком после того, как оба
// созданы (планировщику нужен этот сервис для выполнения переходов).
func (s *TournamentService) AttachScheduler(scheduler TournamentLifecycleScheduler) {
	s.scheduler = scheduler
}

func (s *TournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	tournament := &models.Tournament{
		PlatformID:        input.PlatformID,
		Kind:              input.Kind,
		Name:              input.Name,
		StartingChips:     input.StartingChips,
		TotalRounds:       input.TotalRounds,
		MaxPlayers:        input.MaxPlayers,
		RegistrationStart: input.RegistrationStart,
		RegistrationEnd:   input.RegistrationEnd,
		StartTime:         input.StartTime,
		Status:            models.StatusCreated,
	}
	if tournament.Kind == "" {
		tournament.Kind = models.KindPlayerVsDealer
	}

	if err := validateTournamentSpec(tournament); err != nil {
		return nil, err
	}

	if tournament.PlatformID != nil {
		if _, err := s.platformRepo.GetByID(ctx, *tournament.PlatformID); err != nil {
			if errors.Is(err, repositories.ErrPlatformNotFound) {
				return nil, ErrPlatformNotFound
			}
			return nil, fmt.Errorf("failed to check platform: %w", err)
		}
	}

	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		return nil, err
	}

	if s.scheduler != nil {
		if err := s.scheduler.ScheduleTournament(tournament); err != nil {
			// Турнир уже создан; пропущенные задания подберёт сверочный цикл.
			s.logger.Error("failed to schedule tournament lifecycle",
				slog.Int("tournament_id", tournament.ID), slog.Any("error", err))
		}
	}

	return tournament, nil
}

func (s *TournamentService) GetTournamentByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	s.populateLogoURL(tournament)
	return tournament, nil
}

func (s *TournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range tournaments {
		s.populateLogoURL(&tournaments[i])
	}
	return tournaments, nil
}

// Lobby возвращает турниры платформы с количеством уже вступивших игроков.
func (s *TournamentService) Lobby(ctx context.Context, platformID int) ([]LobbyTournament, error) {
	if _, err := s.platformRepo.GetByID(ctx, platformID); err != nil {
		if errors.Is(err, repositories.ErrPlatformNotFound) {
			return nil, ErrPlatformNotFound
		}
		return nil, err
	}

	tournaments, err := s.tournamentRepo.List(ctx, repositories.ListTournamentsFilter{PlatformID: &platformID})
	if err != nil {
		return nil, err
	}

	lobby := make([]LobbyTournament, 0, len(tournaments))
	for _, t := range tournaments {
		count, err := s.playerRepo.CountByTournament(ctx, nil, t.ID)
		if err != nil {
			return nil, err
		}
		lobby = append(lobby, LobbyTournament{
			ID:            t.ID,
			Name:          t.Name,
			Kind:          t.Kind,
			StartingChips: t.StartingChips,
			TotalRounds:   t.TotalRounds,
			MaxPlayers:    t.MaxPlayers,
			Status:        t.Status,
			PlayerCount:   count,
			StartTime:     t.StartTime,
		})
	}
	return lobby, nil
}

// OpenRegistration переводит турнир created → registering.
func (s *TournamentService) OpenRegistration(ctx context.Context, id int) error {
	return s.transition(ctx, id, models.StatusRegistering, nil)
}

// StartTournament переводит турнир registering → running и создаёт
// объявленные раунды со статусом closed в той же транзакции.
func (s *TournamentService) StartTournament(ctx context.Context, id int) error {
	return s.transition(ctx, id, models.StatusRunning, func(exec repositories.SQLExecutor, t *models.Tournament) error {
		if t.TotalRounds == nil || *t.TotalRounds <= 0 {
			return nil
		}
		rounds := make([]*models.TournamentRound, 0, *t.TotalRounds)
		for number := 1; number <= *t.TotalRounds; number++ {
			rounds = append(rounds, &models.TournamentRound{
				TournamentID: t.ID,
				Number:       number,
				Status:       models.RoundClosed,
			})
		}
		if err := s.roundRepo.CreateBatch(ctx, exec, rounds); err != nil {
			return fmt.Errorf("failed to create tournament rounds: %w", err)
		}
		return nil
	})
}

// CompleteTournament переводит турнир running → completed и фиксирует
// итоговые места по текущим балансам.
func (s *TournamentService) CompleteTournament(ctx context.Context, id int) error {
	return s.transition(ctx, id, models.StatusCompleted, func(exec repositories.SQLExecutor, t *models.Tournament) error {
		return s.assignFinalRanks(ctx, exec, t.ID)
	})
}

// CancelTournament переводит турнир в cancelled из любого неконечного
// статуса и снимает его задания из планировщика. Сбой снятия — не фатален:
// осиротевший колбэк упрётся в проверку статуса и станет no-op.
func (s *TournamentService) CancelTournament(ctx context.Context, id int) error {
	if err := s.transition(ctx, id, models.StatusCancelled, nil); err != nil {
		return err
	}
	if s.scheduler != nil {
		if err := s.scheduler.DeregisterTournament(id); err != nil {
			s.logger.Warn("failed to deregister cancelled tournament from scheduler",
				slog.Int("tournament_id", id), slog.Any("error", err))
		}
	}
	return nil
}

// TransitionTournament — диспетчер действий для HTTP-слоя.
func (s *TournamentService) TransitionTournament(ctx context.Context, id int, action string) error {
	switch action {
	case "open_registration":
		return s.OpenRegistration(ctx, id)
	case "start":
		return s.StartTournament(ctx, id)
	case "complete":
		return s.CompleteTournament(ctx, id)
	case "cancel":
		return s.CancelTournament(ctx, id)
	default:
		return fmt.Errorf("%w: unknown transition action %q", ErrValidationFailed, action)
	}
}

// transition выполняет один переход статуса под блокировкой строки турнира.
// Нарушенное предусловие всегда возвращается ошибкой, переход никогда не
// проглатывается молча.
func (s *TournamentService) transition(ctx context.Context, id int, next models.TournamentStatus, sideEffect func(repositories.SQLExecutor, *models.Tournament) error) error {
	return s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, id)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}

		if !isValidStatusTransition(tournament.Status, next) {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, tournament.Status, next)
		}

		if err := s.tournamentRepo.UpdateStatus(ctx, exec, id, next); err != nil {
			return err
		}

		if sideEffect != nil {
			if err := sideEffect(exec, tournament); err != nil {
				return err
			}
		}

		s.logger.Info("tournament status transition",
			slog.Int("tournament_id", id),
			slog.String("from", string(tournament.Status)),
			slog.String("to", string(next)))
		return nil
	})
}

func (s *TournamentService) assignFinalRanks(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	players, err := s.playerRepo.ListByTournamentRanked(ctx, exec, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to rank players: %w", err)
	}
	for i, p := range players {
		if err := s.playerRepo.SetFinalRank(ctx, exec, p.ID, i+1); err != nil {
			return fmt.Errorf("failed to set final rank for player %d: %w", p.ID, err)
		}
	}
	return nil
}

// Join регистрирует аккаунт в турнире. Политика намеренно строгая:
// вступить можно только в статусе registering. Повторный join того же
// аккаунта идемпотентен и возвращает существующую запись, не трогая баланс.
func (s *TournamentService) Join(ctx context.Context, tournamentID, accountID int) (*models.TournamentPlayer, error) {
	var player *models.TournamentPlayer

	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}

		existing, err := s.playerRepo.FindByTournamentAndAccount(ctx, exec, tournamentID, accountID)
		if err == nil {
			player = existing
			return nil
		}
		if !errors.Is(err, repositories.ErrPlayerNotFound) {
			return err
		}

		if tournament.Status != models.StatusRegistering {
			return ErrRegistrationNotOpen
		}

		if tournament.MaxPlayers != nil {
			count, err := s.playerRepo.CountByTournament(ctx, exec, tournamentID)
			if err != nil {
				return err
			}
			if count >= *tournament.MaxPlayers {
				return ErrTournamentFull
			}
		}

		player = &models.TournamentPlayer{
			TournamentID: tournamentID,
			AccountID:    accountID,
			ChipsStart:   tournament.StartingChips,
			ChipsCurrent: tournament.StartingChips,
		}
		if err := s.playerRepo.Create(ctx, exec, player); err != nil {
			// Гонка двух одновременных join: уникальный индекс победил раньше нас.
			if errors.Is(err, repositories.ErrPlayerConflict) {
				existing, findErr := s.playerRepo.FindByTournamentAndAccount(ctx, exec, tournamentID, accountID)
				if findErr != nil {
					return findErr
				}
				player = existing
				return nil
			}
			if errors.Is(err, repositories.ErrPlayerAccountInvalid) {
				return ErrAccountNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}

// Leaderboard пересчитывается по требованию из текущих балансов и никогда
// не кэшируется.
func (s *TournamentService) Leaderboard(ctx context.Context, tournamentID int) ([]models.LeaderboardRow, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return s.playerRepo.LeaderboardByTournament(ctx, nil, tournamentID)
}

// UploadLogo загружает логотип турнира в объектное хранилище и сохраняет ключ.
func (s *TournamentService) UploadLogo(ctx context.Context, tournamentID int, contentType string, reader io.Reader) (*models.Tournament, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: object storage is not configured", ErrValidationFailed)
	}
	tournament, err := s.GetTournamentByID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	ext, err := storage.ExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	key := fmt.Sprintf("tournaments/%d/logo-%s%s", tournamentID, uuid.NewString(), ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, reader); err != nil {
		return nil, fmt.Errorf("failed to upload tournament logo: %w", err)
	}

	oldKey := tournament.LogoKey
	if err := s.tournamentRepo.UpdateLogoKey(ctx, tournamentID, &key); err != nil {
		return nil, err
	}
	if oldKey != nil && *oldKey != "" {
		if err := s.uploader.Delete(ctx, *oldKey); err != nil {
			s.logger.Warn("failed to delete previous tournament logo",
				slog.String("key", *oldKey), slog.Any("error", err))
		}
	}

	tournament.LogoKey = &key
	s.populateLogoURL(tournament)
	return tournament, nil
}

func (s *TournamentService) populateLogoURL(t *models.Tournament) {
	if t == nil || t.LogoKey == nil || *t.LogoKey == "" || s.uploader == nil {
		return
	}
	if url := s.uploader.GetPublicURL(*t.LogoKey); url != "" {
		t.LogoURL = &url
	}
}
