package nonce

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a nonce does not exist or was already consumed
var ErrNotFound = errors.New("nonce not found")

// Nonce binds one authorization request to the ID token issued for it
type Nonce struct {
	Value     string
	CreatedAt time.Time
}
