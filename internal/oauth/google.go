// Package oauth implements the Google authorization-code handshake.
package oauth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"secrets_app/internal/config"
	"secrets_app/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

var errMissingSubject = errors.New("userinfo response has no subject")

// Google drives the consent redirect and the callback exchange.
type Google struct {
	conf        *oauth2.Config
	userInfoURL string
	state       stateSigner
}

// NewGoogle builds the provider. secret signs the state parameter.
func NewGoogle(cfg config.GoogleConfig, secret string) *Google {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	userInfo := cfg.UserInfoURL
	if userInfo == "" {
		userInfo = defaultUserInfoURL
	}

	return &Google{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"profile", "email"},
		},
		userInfoURL: userInfo,
		state:       stateSigner{key: []byte(secret), now: time.Now},
	}
}

// Begin returns the consent screen URL and the nonce the caller must keep
// in the browser until the callback arrives.
func (g *Google) Begin() (string, string, error) {
	nonce, err := newNonce()
	if err != nil {
		return "", "", err
	}
	state, err := g.state.issue(nonce)
	if err != nil {
		return "", "", fmt.Errorf("sign state: %w", err)
	}
	return g.conf.AuthCodeURL(state), nonce, nil
}

// Complete validates state against nonce, exchanges code and returns the
// verified profile.
func (g *Google) Complete(ctx context.Context, code, state, nonce string) (models.GoogleProfile, error) {
	got, err := g.state.parse(state)
	if err != nil {
		return models.GoogleProfile{}, err
	}
	if nonce == "" || subtle.ConstantTimeCompare([]byte(got), []byte(nonce)) != 1 {
		return models.GoogleProfile{}, fmt.Errorf("%w: nonce mismatch", ErrInvalidState)
	}

	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return models.GoogleProfile{}, fmt.Errorf("exchange code: %w", err)
	}
	return g.fetchProfile(ctx, tok)
}

func (g *Google) fetchProfile(ctx context.Context, tok *oauth2.Token) (models.GoogleProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return models.GoogleProfile{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return models.GoogleProfile{}, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.GoogleProfile{}, fmt.Errorf("userinfo request: status %d", resp.StatusCode)
	}

	var p models.GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return models.GoogleProfile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if p.Subject == "" {
		return models.GoogleProfile{}, errMissingSubject
	}
	return p, nil
}

func newNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
