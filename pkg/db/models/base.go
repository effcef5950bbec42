package models

import "github.com/google/uuid"

// ensureID assigns a v4 UUID when the caller left the primary key empty.
// IDs are generated in Go so the same models work on Postgres and SQLite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
