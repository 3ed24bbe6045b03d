package models

import "time"

// User is an identity. PasswordHash is an argon2id PHC string with the salt
// embedded.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	DisplayName  string
	Roles        RoleNames
	Theme        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
