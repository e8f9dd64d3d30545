package user

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no user matches the lookup
var ErrNotFound = errors.New("user not found")

// User is the local account linked to an Azure AD object id
type User struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"azure_id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Roles      []string  `json:"roles"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (u *User) clone() *User {
	c := *u
	c.Roles = append([]string{}, u.Roles...)
	return &c
}
