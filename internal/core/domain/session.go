package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type SessionState struct {
	UserID           string     `json:"user_id"`
	PhoneNumber      string     `json:"phone_number,omitempty"`
	CurrentMode      Mode       `json:"current_mode"`
	ModeActivatedAt  *time.Time `json:"mode_activated_at,omitempty"`
	LastQuery        *string    `json:"last_query,omitempty"`
	LastMessage      string     `json:"last_message,omitempty"`
	MessageCount     int        `json:"message_count"`
	FirstInteraction time.Time  `json:"first_interaction"`
	LastInteraction  time.Time  `json:"last_interaction"`
	IsBlocked        bool       `json:"is_blocked"`
}

// IdleExpired reports whether a lookup mode has been active longer than idle.
func (s *SessionState) IdleExpired(now time.Time, idle time.Duration) bool {
	if s == nil || s.CurrentMode == ModeNatural || s.ModeActivatedAt == nil {
		return false
	}
	return now.Sub(*s.ModeActivatedAt) > idle
}

// SessionPatch carries the profile fields refreshed on every inbound message.
type SessionPatch struct {
	PhoneNumber string
	LastMessage string
}

type ModeCount struct {
	Mode  Mode `json:"mode"`
	Count int  `json:"count"`
}

type StoreStats struct {
	KBLI             int         `json:"kbli"`
	KBJI             int         `json:"kbji"`
	Documents        int         `json:"documents"`
	Sessions         int         `json:"sessions"`
	ActiveUsers24h   int         `json:"active_users_24h"`
	TotalMessages    int         `json:"total_messages"`
	ModeDistribution []ModeCount `json:"mode_distribution"`
}
