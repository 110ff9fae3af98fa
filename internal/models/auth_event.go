package models

import "time"

// Auth event types.
const (
	EventRegister          = "REGISTER"
	EventRegisterFailed    = "REGISTER_FAILED"
	EventLogin             = "LOGIN"
	EventLoginFailed       = "LOGIN_FAILED"
	EventGoogleLogin       = "GOOGLE_LOGIN"
	EventGoogleLoginFailed = "GOOGLE_LOGIN_FAILED"
	EventLogout            = "LOGOUT"
)

// AuthEvent is a single entry of the authentication activity log.
// UserID owns the event and is zero for attempts that resolved no user;
// Username is a display label only.
type AuthEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	UserID      int       `json:"user_id,omitempty"`
	Username    string    `json:"username"`
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
