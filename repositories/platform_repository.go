package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/chip-tournament-system/models"
)

var (
	ErrPlatformNotFound     = errors.New("platform not found")
	ErrPlatformCodeConflict = errors.New("platform code is already in use")
)

type PlatformRepository interface {
	Create(ctx context.Context, platform *models.Platform) error
	GetByID(ctx context.Context, id int) (*models.Platform, error)
	List(ctx context.Context) ([]models.Platform, error)
}

type postgresPlatformRepository struct {
	db *sql.DB
}

func NewPostgresPlatformRepository(db *sql.DB) PlatformRepository {
	return &postgresPlatformRepository{db: db}
}

func (r *postgresPlatformRepository) Create(ctx context.Context, p *models.Platform) error {
	query := `INSERT INTO platforms (name, code) VALUES ($1, $2) RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, p.Name, p.Code).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "platforms_code_key") {
			return ErrPlatformCodeConflict
		}
		return fmt.Errorf("failed to create platform: %w", err)
	}
	return nil
}

func (r *postgresPlatformRepository) GetByID(ctx context.Context, id int) (*models.Platform, error) {
	p := &models.Platform{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, code, created_at FROM platforms WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Code, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlatformNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresPlatformRepository) List(ctx context.Context) ([]models.Platform, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, code, created_at FROM platforms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}
	defer rows.Close()

	platforms := []models.Platform{}
	for rows.Next() {
		var p models.Platform
		if err := rows.Scan(&p.ID, &p.Name, &p.Code, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan platform row: %w", err)
		}
		platforms = append(platforms, p)
	}
	return platforms, rows.Err()
}
