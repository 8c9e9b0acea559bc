package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/chip-tournament-system/models"
)

var (
	ErrRoundResultNotFound = errors.New("round result not found")
	// ErrRoundResultConflict — попытка повторного расчёта той же пары
	// (раунд, аккаунт). Гарантируется частичным уникальным индексом по
	// записям WIN/LOSE/PUSH, а не только предварительной проверкой.
	ErrRoundResultConflict = errors.New("round result already recorded for this player")
	ErrRoundResultVoided   = errors.New("round result already voided")
)

type RoundResultRepository interface {
	Create(ctx context.Context, exec SQLExecutor, result *models.RoundResult) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.RoundResult, error)
	FindByRoundAndAccount(ctx context.Context, exec SQLExecutor, roundID, accountID int) (*models.RoundResult, error)
	FindVoidOf(ctx context.Context, exec SQLExecutor, resultID int) (*models.RoundResult, error)
	// ListByAccount возвращает все расчёты аккаунта по всем турнирам,
	// новые записи первыми, с данными турнира и раунда.
	ListByAccount(ctx context.Context, accountID int) ([]models.PlayerTransaction, error)
}

type postgresRoundResultRepository struct {
	db *sql.DB
}

func NewPostgresRoundResultRepository(db *sql.DB) RoundResultRepository {
	return &postgresRoundResultRepository{db: db}
}

func (r *postgresRoundResultRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const roundResultColumns = `
	id, round_id, account_id, bet_chips, outcome, chips_delta, chips_after,
	external_ref, void_of_id, recorded_at`

func (r *postgresRoundResultRepository) Create(ctx context.Context, exec SQLExecutor, res *models.RoundResult) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO round_results
			(round_id, account_id, bet_chips, outcome, chips_delta, chips_after, external_ref, void_of_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, recorded_at`

	err := executor.QueryRowContext(ctx, query,
		res.RoundID, res.AccountID, res.BetChips, res.Outcome,
		res.ChipsDelta, res.ChipsAfter, res.ExternalRef, res.VoidOfID,
	).Scan(&res.ID, &res.RecordedAt)

	if err != nil {
		// round_results_round_id_account_id_settled_key — частичный уникальный
		// индекс WHERE outcome IN ('WIN','LOSE','PUSH').
		if isUniqueViolation(err, "round_results_round_id_account_id_settled_key") {
			return ErrRoundResultConflict
		}
		// round_results_void_of_id_key — результат можно аннулировать не более
		// одного раза.
		if isUniqueViolation(err, "round_results_void_of_id_key") {
			return ErrRoundResultVoided
		}
		return fmt.Errorf("failed to create round result: %w", err)
	}
	return nil
}

func (r *postgresRoundResultRepository) scanResult(rowScanner interface{ Scan(...interface{}) error }) (*models.RoundResult, error) {
	res := &models.RoundResult{}
	err := rowScanner.Scan(
		&res.ID, &res.RoundID, &res.AccountID, &res.BetChips, &res.Outcome,
		&res.ChipsDelta, &res.ChipsAfter, &res.ExternalRef, &res.VoidOfID, &res.RecordedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundResultNotFound
		}
		return nil, err
	}
	return res, nil
}

func (r *postgresRoundResultRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.RoundResult, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + roundResultColumns + ` FROM round_results WHERE id = $1`
	return r.scanResult(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresRoundResultRepository) FindByRoundAndAccount(ctx context.Context, exec SQLExecutor, roundID, accountID int) (*models.RoundResult, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + roundResultColumns + `
		FROM round_results
		WHERE round_id = $1 AND account_id = $2 AND outcome IN ('WIN', 'LOSE', 'PUSH')`
	return r.scanResult(executor.QueryRowContext(ctx, query, roundID, accountID))
}

func (r *postgresRoundResultRepository) FindVoidOf(ctx context.Context, exec SQLExecutor, resultID int) (*models.RoundResult, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + roundResultColumns + ` FROM round_results WHERE void_of_id = $1`
	return r.scanResult(executor.QueryRowContext(ctx, query, resultID))
}

func (r *postgresRoundResultRepository) ListByAccount(ctx context.Context, accountID int) ([]models.PlayerTransaction, error) {
	query := `
		SELECT rr.id, t.id, t.name, tr.round_number, rr.bet_chips, rr.outcome,
		       rr.chips_delta, rr.chips_after, rr.void_of_id, rr.recorded_at
		FROM round_results rr
		JOIN tournament_rounds tr ON tr.id = rr.round_id
		JOIN tournaments t ON t.id = tr.tournament_id
		WHERE rr.account_id = $1
		ORDER BY rr.recorded_at DESC, rr.id DESC`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list round results for account: %w", err)
	}
	defer rows.Close()

	transactions := []models.PlayerTransaction{}
	for rows.Next() {
		var tx models.PlayerTransaction
		err := rows.Scan(
			&tx.ResultID, &tx.TournamentID, &tx.TournamentName, &tx.RoundNumber,
			&tx.BetChips, &tx.Outcome, &tx.ChipsDelta, &tx.ChipsAfter, &tx.VoidOfID, &tx.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round result row: %w", err)
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}
