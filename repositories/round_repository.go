package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/chip-tournament-system/models"
)

var (
	ErrRoundNotFound       = errors.New("tournament round not found")
	ErrRoundNumberConflict = errors.New("round number already exists for this tournament")
)

type RoundRepository interface {
	Create(ctx context.Context, exec SQLExecutor, round *models.TournamentRound) error
	CreateBatch(ctx context.Context, exec SQLExecutor, rounds []*models.TournamentRound) error
	FindByTournamentAndNumber(ctx context.Context, exec SQLExecutor, tournamentID, number int) (*models.TournamentRound, error)
	// FindByTournamentAndNumberForUpdate блокирует строку раунда на время транзакции.
	FindByTournamentAndNumberForUpdate(ctx context.Context, exec SQLExecutor, tournamentID, number int) (*models.TournamentRound, error)
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentRound, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentRound, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.RoundStatus, openedAt, closedAt *time.Time) error
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

func (r *postgresRoundRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const roundColumns = `id, tournament_id, round_number, status, opened_at, closed_at, created_at`

func (r *postgresRoundRepository) Create(ctx context.Context, exec SQLExecutor, round *models.TournamentRound) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_rounds (tournament_id, round_number, status, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		round.TournamentID, round.Number, round.Status, round.OpenedAt, round.ClosedAt,
	).Scan(&round.ID, &round.CreatedAt)

	if err != nil {
		if isUniqueViolation(err, "tournament_rounds_tournament_id_round_number_key") {
			return ErrRoundNumberConflict
		}
		return fmt.Errorf("failed to create tournament round: %w", err)
	}
	return nil
}

func (r *postgresRoundRepository) CreateBatch(ctx context.Context, exec SQLExecutor, rounds []*models.TournamentRound) error {
	if len(rounds) == 0 {
		return nil
	}
	for _, round := range rounds {
		if err := r.Create(ctx, exec, round); err != nil {
			return fmt.Errorf("failed to create round %d: %w", round.Number, err)
		}
	}
	return nil
}

func (r *postgresRoundRepository) scanRound(rowScanner interface{ Scan(...interface{}) error }) (*models.TournamentRound, error) {
	round := &models.TournamentRound{}
	err := rowScanner.Scan(
		&round.ID, &round.TournamentID, &round.Number, &round.Status,
		&round.OpenedAt, &round.ClosedAt, &round.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return round, nil
}

func (r *postgresRoundRepository) FindByTournamentAndNumber(ctx context.Context, exec SQLExecutor, tournamentID, number int) (*models.TournamentRound, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + roundColumns + ` FROM tournament_rounds WHERE tournament_id = $1 AND round_number = $2`
	return r.scanRound(executor.QueryRowContext(ctx, query, tournamentID, number))
}

func (r *postgresRoundRepository) FindByTournamentAndNumberForUpdate(ctx context.Context, exec SQLExecutor, tournamentID, number int) (*models.TournamentRound, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + roundColumns + ` FROM tournament_rounds WHERE tournament_id = $1 AND round_number = $2 FOR UPDATE`
	return r.scanRound(executor.QueryRowContext(ctx, query, tournamentID, number))
}

func (r *postgresRoundRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentRound, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + roundColumns + ` FROM tournament_rounds WHERE id = $1`
	return r.scanRound(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresRoundRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentRound, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + roundColumns + ` FROM tournament_rounds WHERE tournament_id = $1 ORDER BY round_number`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournament rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*models.TournamentRound
	for rows.Next() {
		round, err := r.scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", err)
		}
		rounds = append(rounds, round)
	}
	return rounds, rows.Err()
}

func (r *postgresRoundRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.RoundStatus, openedAt, closedAt *time.Time) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournament_rounds
		SET status = $1,
		    opened_at = COALESCE($2, opened_at),
		    closed_at = COALESCE($3, closed_at)
		WHERE id = $4`
	result, err := executor.ExecContext(ctx, query, status, openedAt, closedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update round status: %w", err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}
