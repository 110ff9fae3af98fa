package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"secrets_app/internal/models"
)

var errInvalidPayload = errors.New("invalid session payload")

// Serialize encodes the minimal user projection stored in a session.
func Serialize(u models.SessionUser) (string, error) {
	if u.ID <= 0 {
		return "", fmt.Errorf("%w: user id %d", errInvalidPayload, u.ID)
	}
	b, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("marshal session user: %w", err)
	}
	return string(b), nil
}

// Deserialize is the inverse of Serialize.
func Deserialize(payload string) (models.SessionUser, error) {
	var u models.SessionUser
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		return models.SessionUser{}, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	if u.ID <= 0 {
		return models.SessionUser{}, fmt.Errorf("%w: user id %d", errInvalidPayload, u.ID)
	}
	return u, nil
}
