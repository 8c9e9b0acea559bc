package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/chip-tournament-system/models"
)

var (
	ErrAccountNotFound         = errors.New("account not found")
	ErrAccountUsernameConflict = errors.New("username is already taken on this platform")
	ErrAccountInvalidPlatform  = errors.New("invalid platform reference")
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id int) (*models.Account, error)
	GetByUsername(ctx context.Context, platformID *int, username string) (*models.Account, error)
	ListByPlatform(ctx context.Context, platformID int) ([]models.Account, error)
}

type postgresAccountRepository struct {
	db *sql.DB
}

func NewPostgresAccountRepository(db *sql.DB) AccountRepository {
	return &postgresAccountRepository{db: db}
}

const accountColumns = `id, platform_id, username, password_hash, status, created_at`

func (r *postgresAccountRepository) Create(ctx context.Context, a *models.Account) error {
	query := `
		INSERT INTO accounts (platform_id, username, password_hash, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		a.PlatformID, a.Username, a.PasswordHash, a.Status,
	).Scan(&a.ID, &a.CreatedAt)

	if err != nil {
		if isUniqueViolation(err, "accounts_platform_id_username_key") {
			return ErrAccountUsernameConflict
		}
		if isForeignKeyViolation(err, "accounts_platform_id_fkey") {
			return ErrAccountInvalidPlatform
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *postgresAccountRepository) scanAccount(rowScanner interface{ Scan(...interface{}) error }) (*models.Account, error) {
	a := &models.Account{}
	err := rowScanner.Scan(&a.ID, &a.PlatformID, &a.Username, &a.PasswordHash, &a.Status, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *postgresAccountRepository) GetByID(ctx context.Context, id int) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresAccountRepository) GetByUsername(ctx context.Context, platformID *int, username string) (*models.Account, error) {
	if platformID != nil {
		query := `SELECT ` + accountColumns + ` FROM accounts WHERE platform_id = $1 AND username = $2`
		return r.scanAccount(r.db.QueryRowContext(ctx, query, *platformID, username))
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE platform_id IS NULL AND username = $1`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, username))
}

func (r *postgresAccountRepository) ListByPlatform(ctx context.Context, platformID int) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE platform_id = $1 ORDER BY username`

	rows, err := r.db.QueryContext(ctx, query, platformID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		a, err := r.scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}
