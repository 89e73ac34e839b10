package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the identity service's record of a user. PasswordHash never
// leaves the server.
type Account struct {
	ID           string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName,omitempty"`
	PhotoURL     string    `json:"photoURL,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewAccount creates an account with a generated id
func NewAccount(email string) *Account {
	now := time.Now()
	return &Account{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GetDisplayName returns the display name if set, otherwise the email
func (a *Account) GetDisplayName() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Email
}

// SetProfile updates the display name and photo
func (a *Account) SetProfile(displayName, photoURL string) {
	a.DisplayName = displayName
	a.PhotoURL = photoURL
	a.UpdatedAt = time.Now()
}

// UserRecord is the user directory's entry for an account, keyed by the
// account id.
type UserRecord struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}
