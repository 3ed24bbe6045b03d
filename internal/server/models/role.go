package models

import "time"

// Role is a named permission bundle. System roles are seeded at startup and
// cannot be changed through the API.
type Role struct {
	Name        string
	Description string
	Permissions PermissionList
	IsSystem    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
