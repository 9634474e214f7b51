// Package domain contains core concepts of the collaboration system.
// This file defines the Session handle and its liveness rules.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Session is a live, authenticated participant handle. It is independent
// of the underlying transport connection: a session may outlive a dropped
// connection until the liveness timeout closes it.
type Session struct {
	ID              string
	UserID          string
	EstablishmentID string
	CreatedAt       time.Time
	LastSeenAt      time.Time
}

// Expired reports whether the session missed its heartbeat window.
func (s Session) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastSeenAt) > timeout
}
