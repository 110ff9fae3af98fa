package models

// User is a persisted identity record. Local users carry Username and
// PasswordHash; Google users carry GoogleID, Email and DisplayName.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username,omitempty"`
	PasswordHash string `json:"-"` // don’t expose hash
	GoogleID     string `json:"google_id,omitempty"`
	Email        string `json:"email,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
}

// SessionUser is the projection of a User kept in the session.
type SessionUser struct {
	ID          int    `json:"id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Ref returns the session projection of u.
func (u User) Ref() SessionUser {
	name := u.DisplayName
	if name == "" {
		name = u.Username
	}
	return SessionUser{ID: u.ID, Username: u.Username, DisplayName: name}
}

// Label is the name shown to the user and written to the activity log.
func (s SessionUser) Label() string {
	if s.Username != "" {
		return s.Username
	}
	return s.DisplayName
}

// GoogleProfile is the verified subset of the Google userinfo response.
type GoogleProfile struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}
