package domain

import "time"

// SessionCreatedEvent is emitted after a login establishes a new session.
type SessionCreatedEvent struct {
	EventID    string
	SessionID  string
	UserID     string
	IPAddress  string
	DeviceType DeviceType
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// SessionEvictedEvent is emitted when the concurrent-session budget forces
// the oldest active session out to make room for a new login.
type SessionEvictedEvent struct {
	EventID          string
	SessionID        string
	UserID           string
	EvictedAt        time.Time
	ReplacedBy       string
	SessionCreatedAt time.Time
}

// SessionRevokedEvent is emitted on logout or administrative termination.
type SessionRevokedEvent struct {
	EventID   string
	SessionID string
	UserID    string
	State     SessionState
	RevokedAt time.Time
	Reason    string
}

// SessionSuspiciousEvent is emitted when an advisory security heuristic
// flags a still-valid session. It never implies the session was blocked.
type SessionSuspiciousEvent struct {
	EventID   string
	SessionID string
	UserID    string
	Reason    string
	IPAddress string
	FlaggedAt time.Time
}
