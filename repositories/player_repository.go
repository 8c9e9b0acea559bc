package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/chip-tournament-system/models"
)

var (
	ErrPlayerNotFound          = errors.New("tournament player not found")
	ErrPlayerConflict          = errors.New("account is already joined to this tournament")
	ErrPlayerAccountInvalid    = errors.New("player account conflict or invalid")
	ErrPlayerTournamentInvalid = errors.New("player tournament conflict or invalid")
)

type PlayerRepository interface {
	Create(ctx context.Context, exec SQLExecutor, player *models.TournamentPlayer) error
	FindByTournamentAndAccount(ctx context.Context, exec SQLExecutor, tournamentID, accountID int) (*models.TournamentPlayer, error)
	// FindByTournamentAndAccountForUpdate блокирует строку игрока: расчёт раунда
	// изменяет баланс только под этой блокировкой.
	FindByTournamentAndAccountForUpdate(ctx context.Context, exec SQLExecutor, tournamentID, accountID int) (*models.TournamentPlayer, error)
	CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	// ListByTournamentRanked возвращает игроков турнира в порядке таблицы
	// лидеров: фишки по убыванию, затем победы по убыванию.
	ListByTournamentRanked(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentPlayer, error)
	// LeaderboardByTournament строит строки таблицы лидеров с именами аккаунтов.
	LeaderboardByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.LeaderboardRow, error)
	// ApplySettlement атомарно записывает новый баланс и инкременты счётчиков.
	ApplySettlement(ctx context.Context, exec SQLExecutor, playerID int, chipsCurrent, winsDelta, lossesDelta, pushesDelta int) error
	SetFinalRank(ctx context.Context, exec SQLExecutor, playerID int, rank int) error
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const playerColumns = `
	id, tournament_id, account_id, chips_start, chips_current, chips_reserved,
	total_wins, total_losses, total_pushes, final_rank, joined_at, last_updated`

func (r *postgresPlayerRepository) Create(ctx context.Context, exec SQLExecutor, p *models.TournamentPlayer) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_players
			(tournament_id, account_id, chips_start, chips_current, chips_reserved)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, joined_at, last_updated`

	err := executor.QueryRowContext(ctx, query,
		p.TournamentID, p.AccountID, p.ChipsStart, p.ChipsCurrent, p.ChipsReserved,
	).Scan(&p.ID, &p.JoinedAt, &p.LastUpdated)

	if err != nil {
		if isUniqueViolation(err, "tournament_players_tournament_id_account_id_key") {
			return ErrPlayerConflict
		}
		if isForeignKeyViolation(err, "tournament_players_account_id_fkey") {
			return ErrPlayerAccountInvalid
		}
		if isForeignKeyViolation(err, "tournament_players_tournament_id_fkey") {
			return ErrPlayerTournamentInvalid
		}
		return fmt.Errorf("failed to create tournament player: %w", err)
	}
	return nil
}

func (r *postgresPlayerRepository) scanPlayer(rowScanner interface{ Scan(...interface{}) error }) (*models.TournamentPlayer, error) {
	p := &models.TournamentPlayer{}
	err := rowScanner.Scan(
		&p.ID, &p.TournamentID, &p.AccountID, &p.ChipsStart, &p.ChipsCurrent, &p.ChipsReserved,
		&p.TotalWins, &p.TotalLosses, &p.TotalPushes, &p.FinalRank, &p.JoinedAt, &p.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresPlayerRepository) FindByTournamentAndAccount(ctx context.Context, exec SQLExecutor, tournamentID, accountID int) (*models.TournamentPlayer, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + playerColumns + ` FROM tournament_players WHERE tournament_id = $1 AND account_id = $2`
	return r.scanPlayer(executor.QueryRowContext(ctx, query, tournamentID, accountID))
}

func (r *postgresPlayerRepository) FindByTournamentAndAccountForUpdate(ctx context.Context, exec SQLExecutor, tournamentID, accountID int) (*models.TournamentPlayer, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + playerColumns + ` FROM tournament_players WHERE tournament_id = $1 AND account_id = $2 FOR UPDATE`
	return r.scanPlayer(executor.QueryRowContext(ctx, query, tournamentID, accountID))
}

func (r *postgresPlayerRepository) CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tournament_players WHERE tournament_id = $1`, tournamentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tournament players: %w", err)
	}
	return count, nil
}

func (r *postgresPlayerRepository) ListByTournamentRanked(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentPlayer, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + playerColumns + `
		FROM tournament_players
		WHERE tournament_id = $1
		ORDER BY chips_current DESC, total_wins DESC, id`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournament players: %w", err)
	}
	defer rows.Close()

	var players []*models.TournamentPlayer
	for rows.Next() {
		p, err := r.scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (r *postgresPlayerRepository) LeaderboardByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.LeaderboardRow, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT p.account_id, a.username, p.chips_current, p.total_wins, p.total_losses, p.final_rank
		FROM tournament_players p
		JOIN accounts a ON a.id = p.account_id
		WHERE p.tournament_id = $1
		ORDER BY p.chips_current DESC, p.total_wins DESC, a.username`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to build leaderboard: %w", err)
	}
	defer rows.Close()

	leaderboard := []models.LeaderboardRow{}
	for rows.Next() {
		var row models.LeaderboardRow
		err := rows.Scan(&row.AccountID, &row.Username, &row.ChipsCurrent, &row.TotalWins, &row.TotalLosses, &row.FinalRank)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		leaderboard = append(leaderboard, row)
	}
	return leaderboard, rows.Err()
}

func (r *postgresPlayerRepository) ApplySettlement(ctx context.Context, exec SQLExecutor, playerID int, chipsCurrent, winsDelta, lossesDelta, pushesDelta int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournament_players
		SET chips_current = $1,
		    total_wins = total_wins + $2,
		    total_losses = total_losses + $3,
		    total_pushes = total_pushes + $4,
		    last_updated = now()
		WHERE id = $5`
	result, err := executor.ExecContext(ctx, query, chipsCurrent, winsDelta, lossesDelta, pushesDelta, playerID)
	if err != nil {
		return fmt.Errorf("failed to apply settlement to player: %w", err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) SetFinalRank(ctx context.Context, exec SQLExecutor, playerID int, rank int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE tournament_players SET final_rank = $1, last_updated = now() WHERE id = $2`, rank, playerID)
	if err != nil {
		return fmt.Errorf("failed to set final rank: %w", err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}
