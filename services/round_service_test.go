package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/chip-tournament-system/models"
)

// startedTournament создаёт турнир, регистрирует игроков и запускает его.
func startedTournament(t *testing.T, env *testEnv, totalRounds int, accountIDs ...int) *models.Tournament {
	t.Helper()
	ctx := context.Background()

	input := validCreateInput()
	input.TotalRounds = intPtr(totalRounds)
	tournament, err := env.tournaments.CreateTournament(ctx, input)
	require.NoError(t, err)
	require.NoError(t, env.tournaments.OpenRegistration(ctx, tournament.ID))
	for _, accountID := range accountIDs {
		_, err = env.tournaments.Join(ctx, tournament.ID, accountID)
		require.NoError(t, err)
	}
	require.NoError(t, env.tournaments.StartTournament(ctx, tournament.ID))
	return tournament
}

func TestOpenRoundAdvancesCurrentRound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := startedTournament(t, env, 2, 1)

	require.NoError(t, env.rounds.OpenRound(ctx, tournament.ID, 1))

	round, err := env.store.FindByTournamentAndNumber(ctx, nil, tournament.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RoundOpen, round.Status)
	require.NotNil(t, round.OpenedAt)

	got, err := env.tournaments.GetTournamentByID(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentRound)
}

func TestOpenRoundIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := startedTournament(t, env, 2, 1)

	require.NoError(t, env.rounds.OpenRound(ctx, tournament.ID, 1))
	// планировщик и сверка могут сработать по одному моменту дважды
	require.NoError(t, env.rounds.OpenRound(ctx, tournament.ID, 1))

	round, err := env.store.FindByTournamentAndNumber(ctx, nil, tournament.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RoundOpen, round.Status)
}

func TestOpenRoundRequiresRunningTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tournament, err := env.tournaments.CreateTournament(ctx, validCreateInput())
	require.NoError(t, err)

	err = env.rounds.OpenRound(ctx, tournament.ID, 1)
	assert.ErrorIs(t, err, ErrTournamentNotRunning)
}

func TestReopenClosedRoundRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := startedTournament(t, env, 2, 1)

	require.NoError(t, env.rounds.OpenRound(ctx, tournament.ID, 1))
	require.NoError(t, env.rounds.CloseRound(ctx, tournament.ID, 1))

	err := env.rounds.OpenRound(ctx, tournament.ID, 1)
	assert.ErrorIs(t, err, ErrRoundAlreadyClosed)
}

func TestCloseRoundRequiresOpenRound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := startedTournament(t, env, 2, 1)

	err := env.rounds.CloseRound(ctx, tournament.ID, 1)
	assert.ErrorIs(t, err, ErrRoundNotOpen)
}

func TestCloseLastRoundCompletesTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := startedTournament(t, env, 2, 1, 2)

	require.NoError(t, env.rounds.OpenRound(ctx, tournament.ID, 1))

	// разводим балансы, чтобы итоговые места были детерминированы
	_, err := env.settlement.SettleRound(ctx, SettleRoundInput{
		TournamentID: tournament.ID, RoundNumber: 1, AccountID: 1,
		BetChips: 200, Outcome: models.OutcomeWin,
	})
	require.NoError(t, err)
	_, err = env.settlement.SettleRound(ctx, SettleRoundInput{
		TournamentID: tournament.ID, RoundNumber: 1, AccountID: 2,
		BetChips: 200, Outcome: models.OutcomeLose,
	})
	require.NoError(t, err)

	require.NoError(t, env.rounds.CloseRound(ctx, tournament.ID, 1))
	got, err := env.tournaments.GetTournamentByID(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, got.Status)

	require.NoError(t, env.rounds.OpenRound(ctx, tournament.ID, 2))
	require.NoError(t, env.rounds.CloseRound(ctx, tournament.ID, 2))

	got, err = env.tournaments.GetTournamentByID(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)

	winner, err := env.store.FindByTournamentAndAccount(ctx, nil, tournament.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, winner.FinalRank)
	assert.Equal(t, 1, *winner.FinalRank)

	loser, err := env.store.FindByTournamentAndAccount(ctx, nil, tournament.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, loser.FinalRank)
	assert.Equal(t, 2, *loser.FinalRank)
}

// Турнир без объявленного числа раундов автоматически не завершается:
// закрытие последнего лениво созданного раунда оставляет его идущим.
func TestCloseLazyRoundKeepsUndeclaredTournamentRunning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	input := validCreateInput()
	input.TotalRounds = nil
	tournament, err := env.tournaments.CreateTournament(ctx, input)
	require.NoError(t, err)
	require.NoError(t, env.tournaments.OpenRegistration(ctx, tournament.ID))
	_, err = env.tournaments.Join(ctx, tournament.ID, 1)
	require.NoError(t, err)
	require.NoError(t, env.tournaments.StartTournament(ctx, tournament.ID))

	settle(t, env, tournament.ID, 1, 1, 100, models.OutcomeWin)
	require.NoError(t, env.rounds.CloseRound(ctx, tournament.ID, 1))

	got, err := env.tournaments.GetTournamentByID(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, got.Status)

	player, err := env.store.FindByTournamentAndAccount(ctx, nil, tournament.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, player.FinalRank)
}
