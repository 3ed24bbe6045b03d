package models

import (
	"time"

	"github.com/dmitrijs2005/homedock/internal/cryptox"
)

// Credential is an encrypted third-party secret owned by one user.
type Credential struct {
	ID          string
	UserID      string
	Name        string
	ServiceType string
	Secret      cryptox.Envelope
	Metadata    Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
