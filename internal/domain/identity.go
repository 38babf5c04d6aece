// Package domain contains entities without logic, just meta-data.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

const MaxDisplayNameLen = 64

type UserID string

// Identity is the resolved or provisional user behind a connection.
// Provisional identities live only as long as the connection that
// produced them and are never persisted.
type Identity struct {
	ID          UserID `json:"id"`
	Name        string `json:"name"`
	Provisional bool   `json:"-"`
}

// NewProvisionalIdentity mints an anonymous identity for permissive-mode
// connections.
func NewProvisionalIdentity() Identity {
	id := uuid.NewString()
	return Identity{
		ID:          UserID("anon-" + id),
		Name:        fmt.Sprintf("guest-%.8s", id),
		Provisional: true,
	}
}

// ConnID identifies a single transport connection. One identity may hold
// several connections at once.
type ConnID string

func NewConnID() ConnID { return ConnID(uuid.NewString()) }
