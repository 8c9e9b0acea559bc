package services

import (
	"github.com/Dosada05/chip-tournament-system/models"
)

// Границы из правил валидации турнира. Те же значения отдаются клиенту
// через GET /tournaments/validation-rules.
const (
	MinNameLength    = 3
	MaxNameLength    = 100
	MinStartingChips = 100
	MaxStartingChips = 10000
	MinTotalRounds   = 1
	MaxTotalRounds   = 20
	MinMaxPlayers    = 2
	MaxMaxPlayers    = 1000
)

// isValidStatusTransition проверяет допустимость перехода по графу состояний
// турнира. Переход в тот же статус не допускается: повторное срабатывание
// планировщика получает ErrTournamentInvalidStatusTransition, который
// вызывающая сторона распознаёт как уже выполненный переход.
func isValidStatusTransition(current, next models.TournamentStatus) bool {
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusCreated:     {models.StatusRegistering, models.StatusCancelled},
		models.StatusRegistering: {models.StatusRunning, models.StatusCancelled},
		models.StatusRunning:     {models.StatusCompleted, models.StatusCancelled},
		models.StatusCompleted:   {},
		models.StatusCancelled:   {},
	}
	for _, allowed := range allowedTransitions[current] {
		if next == allowed {
			return true
		}
	}
	return false
}

func validateTournamentSpec(t *models.Tournament) error {
	if len(t.Name) < MinNameLength || len(t.Name) > MaxNameLength {
		return ErrTournamentNameRequired
	}
	if t.StartingChips < MinStartingChips || t.StartingChips > MaxStartingChips {
		return ErrTournamentInvalidChips
	}
	if t.TotalRounds != nil && (*t.TotalRounds < MinTotalRounds || *t.TotalRounds > MaxTotalRounds) {
		return ErrTournamentInvalidRounds
	}
	if t.MaxPlayers != nil && (*t.MaxPlayers < MinMaxPlayers || *t.MaxPlayers > MaxMaxPlayers) {
		return ErrTournamentInvalidCapacity
	}
	if t.Kind != models.KindPlayerVsDealer && t.Kind != models.KindPlayerVsPlayer {
		return ErrTournamentInvalidKind
	}
	if t.RegistrationStart.IsZero() || t.RegistrationEnd.IsZero() || t.StartTime.IsZero() {
		return ErrValidationFailed
	}
	if t.RegistrationEnd.Before(t.RegistrationStart) {
		return ErrTournamentInvalidRegWindow
	}
	if t.StartTime.Before(t.RegistrationEnd) {
		return ErrTournamentInvalidStartTime
	}
	return nil
}

// outcomeDelta вычисляет знаковую дельту фишек для исхода раунда.
func outcomeDelta(outcome models.RoundOutcome, betChips int) (int, error) {
	switch outcome {
	case models.OutcomeWin:
		return betChips, nil
	case models.OutcomeLose:
		return -betChips, nil
	case models.OutcomePush:
		return 0, nil
	default:
		return 0, ErrInvalidOutcome
	}
}
