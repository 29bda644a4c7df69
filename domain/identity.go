// Package domain contains core concepts of the chat system.
// This file defines identities and live connections.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"strings"
	"time"
)

// UserID is the opaque, stable identity of a user.
type UserID string

// GroupID identifies a durable chat group.
type GroupID string

// ConnectionID identifies one live transport channel.
type ConnectionID string

// Connection is a live transport channel owned by a single identity.
type Connection struct {
	ID          ConnectionID
	UserID      UserID
	ConnectedAt time.Time
	LastSeen    time.Time
}

// ValidIdentifier reports whether s can be used as a user or group id.
// Room names and storage keys use ':' as a separator, so it is forbidden.
func ValidIdentifier(s string) bool {
	return strings.TrimSpace(s) != "" && !strings.ContainsAny(s, ": \t\n")
}
