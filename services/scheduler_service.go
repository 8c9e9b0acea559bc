package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/chip-tournament-system/models"
	"github.com/Dosada05/chip-tournament-system/repositories"
	"github.com/coder/quartz"
	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/singleflight"
)

// SchedulerService ведёт турниры по жизненному циклу без участия человека:
// открывает регистрацию, стартует турнир, открывает и закрывает раунды.
//
// Два механизма дополняют друг друга. Одноразовые задания gocron срабатывают
// точно в запланированный момент; периодическая сверка подбирает турниры,
// чьё время прошло, пока процесс не работал. Оба пути сходятся в одних и тех
// же переходах, защищённых блокировкой строки и таблицей допустимых
// переходов, поэтому повторное срабатывание безвредно.
type SchedulerService struct {
	scheduler         gocron.Scheduler
	tournamentService *TournamentService
	roundService      *RoundService
	tournamentRepo    repositories.TournamentRepository
	clock             quartz.Clock
	logger            *slog.Logger

	// Сериализует конкурирующие переходы по одному турниру: сверка и
	// таймер, сработавшие одновременно, выполнят работу один раз.
	group singleflight.Group

	roundDuration     time.Duration
	reconcileInterval time.Duration
}

func NewSchedulerService(
	tournamentService *TournamentService,
	roundService *RoundService,
	tournamentRepo repositories.TournamentRepository,
	clock quartz.Clock,
	roundDuration time.Duration,
	reconcileInterval time.Duration,
	logger *slog.Logger,
) (*SchedulerService, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	if roundDuration <= 0 {
		roundDuration = 30 * time.Minute
	}
	if reconcileInterval <= 0 {
		reconcileInterval = 30 * time.Second
	}
	return &SchedulerService{
		scheduler:         scheduler,
		tournamentService: tournamentService,
		roundService:      roundService,
		tournamentRepo:    tournamentRepo,
		clock:             clock,
		logger:            logger,
		roundDuration:     roundDuration,
		reconcileInterval: reconcileInterval,
	}, nil
}

// Start регистрирует периодическую сверку и запускает планировщик.
func (s *SchedulerService) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.reconcileInterval),
		gocron.NewTask(s.reconcile),
		gocron.WithName("tournament-reconcile"),
	)
	if err != nil {
		return fmt.Errorf("register reconcile job: %w", err)
	}
	s.scheduler.Start()
	s.logger.Info("tournament scheduler started",
		slog.Duration("reconcile_interval", s.reconcileInterval),
		slog.Duration("round_duration", s.roundDuration))
	return nil
}

// Shutdown останавливает планировщик, дождавшись выполняющихся заданий.
func (s *SchedulerService) Shutdown() error {
	return s.scheduler.Shutdown()
}

// ScheduleTournament регистрирует одноразовые задания на все будущие вехи
// турнира. Все задания помечаются тегом tournament-<id>, чтобы при отмене
// снять их одним вызовом. Вехи в прошлом не планируются: их подберёт сверка.
func (s *SchedulerService) ScheduleTournament(t *models.Tournament) error {
	tag := tournamentTag(t.ID)
	now := s.clock.Now()

	if t.RegistrationStart.After(now) {
		if err := s.scheduleAt(t.RegistrationStart, tag,
			fmt.Sprintf("tournament-%d-open-registration", t.ID),
			func() { s.runTransition(t.ID, "open_registration") },
		); err != nil {
			return err
		}
	}

	if t.StartTime.After(now) {
		if err := s.scheduleAt(t.StartTime, tag,
			fmt.Sprintf("tournament-%d-start", t.ID),
			func() { s.runTransition(t.ID, "start") },
		); err != nil {
			return err
		}
	}

	if !t.StartTime.IsZero() && t.TotalRounds != nil {
		if err := s.scheduleRounds(t, tag, now); err != nil {
			return err
		}
	}

	s.logger.Info("tournament scheduled", slog.Int("tournament_id", t.ID))
	return nil
}

// scheduleRounds размечает таймлайн раундов: раунд i открывается через
// (i-1) длительностей раунда после старта и закрывается ещё через одну.
// Закрытие последнего раунда автоматически завершает турнир (см. CloseRound).
func (s *SchedulerService) scheduleRounds(t *models.Tournament, tag string, now time.Time) error {
	for i := 1; i <= *t.TotalRounds; i++ {
		number := i
		openAt := t.StartTime.Add(time.Duration(i-1) * s.roundDuration)
		closeAt := openAt.Add(s.roundDuration)

		if openAt.After(now) {
			if err := s.scheduleAt(openAt, tag,
				fmt.Sprintf("tournament-%d-round-%d-open", t.ID, number),
				func() { s.runRoundTransition(t.ID, number, true) },
			); err != nil {
				return err
			}
		}
		if closeAt.After(now) {
			if err := s.scheduleAt(closeAt, tag,
				fmt.Sprintf("tournament-%d-round-%d-close", t.ID, number),
				func() { s.runRoundTransition(t.ID, number, false) },
			); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeregisterTournament снимает все запланированные задания турнира.
// Вызывается при отмене: отменённый турнир не должен стартовать по таймеру.
func (s *SchedulerService) DeregisterTournament(tournamentID int) error {
	s.scheduler.RemoveByTags(tournamentTag(tournamentID))
	s.logger.Info("tournament deregistered from scheduler", slog.Int("tournament_id", tournamentID))
	return nil
}

func (s *SchedulerService) scheduleAt(at time.Time, tag, name string, task func()) error {
	_, err := s.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
		gocron.NewTask(task),
		gocron.WithTags(tag),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// runTransition выполняет переход статуса турнира из задания планировщика.
// Ошибка одного турнира логируется и не затрагивает остальные задания.
func (s *SchedulerService) runTransition(tournamentID int, action string) {
	key := fmt.Sprintf("%d:%s", tournamentID, action)
	_, err, _ := s.group.Do(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return nil, s.tournamentService.TransitionTournament(ctx, tournamentID, action)
	})
	if err != nil {
		// Переход мог уже выполнить оператор вручную либо сверка.
		if errors.Is(err, ErrTournamentInvalidStatusTransition) {
			s.logger.Debug("scheduled transition already applied",
				slog.Int("tournament_id", tournamentID), slog.String("action", action))
			return
		}
		s.logger.Error("scheduled transition failed",
			slog.Int("tournament_id", tournamentID),
			slog.String("action", action),
			slog.Any("error", err))
	}
}

func (s *SchedulerService) runRoundTransition(tournamentID, roundNumber int, open bool) {
	action := "close"
	if open {
		action = "open"
	}
	key := fmt.Sprintf("%d:round-%d-%s", tournamentID, roundNumber, action)
	_, err, _ := s.group.Do(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if open {
			return nil, s.roundService.OpenRound(ctx, tournamentID, roundNumber)
		}
		return nil, s.roundService.CloseRound(ctx, tournamentID, roundNumber)
	})
	if err != nil {
		if errors.Is(err, ErrRoundAlreadyClosed) || errors.Is(err, ErrRoundNotOpen) || errors.Is(err, ErrTournamentNotRunning) {
			s.logger.Debug("scheduled round transition already applied",
				slog.Int("tournament_id", tournamentID),
				slog.Int("round", roundNumber),
				slog.String("action", action))
			return
		}
		s.logger.Error("scheduled round transition failed",
			slog.Int("tournament_id", tournamentID),
			slog.Int("round", roundNumber),
			slog.String("action", action),
			slog.Any("error", err))
	}
}

// reconcile подбирает турниры с просроченными вехами. Это страховка на
// случай рестарта процесса или задания, потерянного до срабатывания.
func (s *SchedulerService) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	due, err := s.tournamentRepo.ListDueForTransition(ctx, nil, s.clock.Now())
	if err != nil {
		s.logger.Error("reconcile: failed to list due tournaments", slog.Any("error", err))
		return
	}

	for _, t := range due {
		switch t.Status {
		case models.StatusCreated:
			s.runTransition(t.ID, "open_registration")
		case models.StatusRegistering:
			s.runTransition(t.ID, "start")
		case models.StatusRunning:
			s.reconcileRounds(ctx, t)
		}
	}
}

// reconcileRounds доводит таймлайн раундов идущего турнира до текущего
// момента. Одноразовые задания живут только в памяти процесса, поэтому
// после рестарта просроченные открытия и закрытия выполняет сверка;
// закрытие последнего объявленного раунда завершает турнир (см. CloseRound).
func (s *SchedulerService) reconcileRounds(ctx context.Context, t *models.Tournament) {
	if t.TotalRounds == nil || t.StartTime.IsZero() {
		// Без объявленного расписания раунды ведёт оператор и расчёты.
		return
	}

	rounds, err := s.roundService.roundRepo.ListByTournament(ctx, nil, t.ID)
	if err != nil {
		s.logger.Error("reconcile: failed to list rounds",
			slog.Int("tournament_id", t.ID), slog.Any("error", err))
		return
	}
	byNumber := make(map[int]*models.TournamentRound, len(rounds))
	for _, round := range rounds {
		byNumber[round.Number] = round
	}

	now := s.clock.Now()
	for i := 1; i <= *t.TotalRounds; i++ {
		openAt := t.StartTime.Add(time.Duration(i-1) * s.roundDuration)
		if openAt.After(now) {
			return
		}
		round := byNumber[i]
		closeAt := openAt.Add(s.roundDuration)

		if closeAt.After(now) {
			// Текущее окно: раунд должен быть открыт.
			if round == nil || round.Status != models.RoundOpen {
				s.runRoundTransition(t.ID, i, true)
			}
			return
		}

		// Окно прошло: раунд должен быть закрыт.
		if round != nil && round.ClosedAt != nil {
			continue
		}
		if round == nil || round.OpenedAt == nil {
			s.runRoundTransition(t.ID, i, true)
		}
		s.runRoundTransition(t.ID, i, false)
	}
}

func tournamentTag(tournamentID int) string {
	return fmt.Sprintf("tournament-%d", tournamentID)
}
