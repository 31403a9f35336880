// File: models/roster.go
package models

import "time"

// RosterEntry — игрок, допущенный к матчу за команду в рамках эдишена.
// Eventual помечает игрока вне официального состава, играющего по
// квотируемому исключению.
type RosterEntry struct {
	ID        int       `json:"id" db:"id"`
	PlayerID  int       `json:"player_id" db:"player_id"`
	TeamID    int       `json:"team_id" db:"team_id"`
	EditionID int       `json:"edition_id" db:"edition_id"`
	Eventual  bool      `json:"eventual" db:"eventual"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Player *Player `json:"player,omitempty" db:"-"`
}

type Player struct {
	ID        int    `json:"id" db:"id"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Number    *int   `json:"number,omitempty" db:"number"`
}

// Roster is the eligible-player set for one side of a match.
type Roster struct {
	TeamID    int
	EditionID int
	Entries   []RosterEntry
}

// Entry returns the roster entry for the given player, if present.
func (r *Roster) Entry(playerID int) (*RosterEntry, bool) {
	for i := range r.Entries {
		if r.Entries[i].PlayerID == playerID {
			return &r.Entries[i], true
		}
	}
	return nil, false
}
