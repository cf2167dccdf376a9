package domain

import "time"

// SessionState is the closed set of lifecycle states a session moves through.
// A session leaves Active exactly once and never returns.
type SessionState string

const (
	SessionStateActive    SessionState = "active"
	SessionStateExpired   SessionState = "expired"
	SessionStateLoggedOut SessionState = "logged_out"
	SessionStateEvicted   SessionState = "evicted"
)

// DeviceType is a coarse classification derived from the User-Agent header.
type DeviceType string

const (
	DeviceTypeDesktop DeviceType = "desktop"
	DeviceTypeMobile  DeviceType = "mobile"
	DeviceTypeTablet  DeviceType = "tablet"
)

// Suspicion reasons recorded when advisory hijack/abuse heuristics fire.
const (
	SuspicionReasonFingerprintMismatch = "fingerprint_mismatch"
	SuspicionReasonAbnormalRequestRate = "abnormal_request_rate"
)

// SessionMetadata captures the request signals a session was established from.
type SessionMetadata struct {
	IPAddress   string
	UserAgent   string
	DeviceType  DeviceType
	Browser     string
	OS          string
	Fingerprint string
}

// Session represents a persisted login session for an authenticated user.
// Sessions are soft-deactivated (state change), never deleted on termination;
// the only hard-delete path is the expired-session cleanup sweep.
type Session struct {
	ID                string
	CSRFToken         string
	UserID            string
	ExternalSessionID string
	Metadata          SessionMetadata
	CreatedAt         time.Time
	LastActivity      time.Time
	ExpiresAt         time.Time
	State             SessionState
	Suspicious        bool
	SuspicionReasons  []string
	RequestCount      int64
}

// IsActive reports whether the session is usable at the supplied moment.
// An Active session whose expiry has passed counts as inactive even before
// any store update happens (lazy expiry).
func (s Session) IsActive(at time.Time) bool {
	if s.State != SessionStateActive {
		return false
	}
	return s.ExpiresAt.After(at)
}

// IdleDuration returns how long the session has been without activity.
func (s Session) IdleDuration(at time.Time) time.Duration {
	idle := at.Sub(s.LastActivity)
	if idle < 0 {
		return 0
	}
	return idle
}

// RequestsPerMinute computes the average request rate since creation,
// used by the abnormal-rate heuristic. Sessions younger than a minute are
// normalized to a one-minute age so a burst right after login does not
// produce an absurd rate.
func (s Session) RequestsPerMinute(at time.Time) float64 {
	age := at.Sub(s.CreatedAt)
	if age < time.Minute {
		age = time.Minute
	}
	return float64(s.RequestCount) / age.Minutes()
}

// MarkSuspicious sets the suspicion flag with the supplied reason. The flag
// is monotonic for the session's lifetime; repeated reasons are deduplicated.
// Returns true when the reason was newly recorded.
func (s *Session) MarkSuspicious(reason string) bool {
	for _, existing := range s.SuspicionReasons {
		if existing == reason {
			return false
		}
	}
	s.Suspicious = true
	s.SuspicionReasons = append(s.SuspicionReasons, reason)
	return true
}

// SessionStatus is a derived, read-only projection of a session's timing
// state. Computing it never mutates the session.
type SessionStatus struct {
	SessionID    string
	UserID       string
	State        SessionState
	Suspicious   bool
	IdleSeconds  int64
	ExpiresIn    time.Duration
	IdleWarning  bool
	LastActivity time.Time
	ExpiresAt    time.Time
}
