package service

import "secrets_app/internal/models"

// Credential is one of the supported authentication strategies:
// LocalCredential or GoogleFederated.
type Credential interface {
	strategy() string
}

// LocalCredential is a username/password pair checked against the stored hash.
type LocalCredential struct {
	Username string
	Password string
}

// GoogleFederated is a profile already verified by the OAuth exchange.
type GoogleFederated struct {
	Profile models.GoogleProfile
}

func (LocalCredential) strategy() string { return "local" }
func (GoogleFederated) strategy() string { return "google" }
