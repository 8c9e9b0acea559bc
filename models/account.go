package models

import "time"

// AccountStatus — статус игрового аккаунта.
type AccountStatus string

const (
	AccountActive  AccountStatus = "active"
	AccountBlocked AccountStatus = "blocked"
)

// Account — игровой аккаунт на платформе. Имя уникально в пределах платформы.
type Account struct {
	ID           int           `json:"id" db:"id"`
	PlatformID   *int          `json:"platform_id,omitempty" db:"platform_id"`
	Username     string        `json:"username" db:"username"`
	PasswordHash string        `json:"-" db:"password_hash"`
	Status       AccountStatus `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`

	Platform *Platform `json:"platform,omitempty" db:"-"`
}
