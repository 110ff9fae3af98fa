package oauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const stateTTL = 10 * time.Minute

// ErrInvalidState is returned when the callback state is forged, expired or
// does not belong to the browser that started the flow.
var ErrInvalidState = errors.New("invalid oauth state")

// stateClaims binds a login attempt to the nonce kept in the browser cookie.
type stateClaims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce"`
}

type stateSigner struct {
	key []byte
	now func() time.Time
}

func (s stateSigner) issue(nonce string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Nonce: nonce,
	})
	return token.SignedString(s.key)
}

// parse returns the nonce carried by a valid state token.
func (s stateSigner) parse(state string) (string, error) {
	token, err := jwt.ParseWithClaims(state, &stateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	claims, ok := token.Claims.(*stateClaims)
	if !ok || !token.Valid || claims.Nonce == "" {
		return "", ErrInvalidState
	}
	return claims.Nonce, nil
}
