package domain

import "time"

// User is an authenticated principal. HashedPassword is a bcrypt digest and
// never leaves the persistence boundary.
type User struct {
	ID             string
	Email          string
	HashedPassword string
	IsAdmin        bool
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
