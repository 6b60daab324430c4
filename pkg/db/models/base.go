package models

import "github.com/google/uuid"

// assignID gives new rows a primary key on the client so inserts do not
// depend on a database-side uuid default.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
