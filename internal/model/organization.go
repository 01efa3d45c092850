package model

import "time"

// Organization is the owning tenant; only OwnerID takes part in authorization.
type Organization struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	OwnerID   string    `db:"owner_id"`
	CreatedAt time.Time `db:"created_at"`
}
