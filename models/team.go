package models

import "time"

type Team struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	EditionID int       `json:"edition_id" db:"edition_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
