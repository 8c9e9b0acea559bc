package models

import "time"

// Platform — внешняя площадка (сайт/оператор), от имени которой заводятся
// аккаунты и турниры.
type Platform struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Code      string    `json:"code" db:"code"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
