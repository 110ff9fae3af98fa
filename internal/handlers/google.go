package handlers

import (
	"errors"
	"net/http"

	"secrets_app/internal/models"
	"secrets_app/internal/oauth"
	"secrets_app/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	nonceCookie     = "oauth_nonce"
	nonceCookiePath = "/auth/google"
	nonceMaxAge     = 600 // matches the state token lifetime
)

// googleStart redirects to the Google consent screen.
func (h *Handler) googleStart(c *gin.Context) {
	if h.google == nil {
		h.fail(c, "/login", msgGoogleOff)
		return
	}

	authURL, nonce, err := h.google.Begin()
	if err != nil {
		if h.log != nil {
			h.log.Errorw("google_begin_failed", "err", err)
		}
		h.fail(c, "/login", msgGoogleFail)
		return
	}

	h.setNonce(c, nonce, nonceMaxAge)
	c.Redirect(http.StatusFound, authURL)
}

// googleCallback completes the handshake and signs the user in.
func (h *Handler) googleCallback(c *gin.Context) {
	if h.google == nil {
		h.fail(c, "/login", msgGoogleOff)
		return
	}

	nonce, _ := c.Cookie(nonceCookie)
	h.setNonce(c, "", -1)

	if reason := c.Query("error"); reason != "" {
		h.googleFailed(c, "consent denied", errors.New(reason))
		return
	}

	profile, err := h.google.Complete(c.Request.Context(), c.Query("code"), c.Query("state"), nonce)
	if err != nil {
		desc := "provider exchange failed"
		if errors.Is(err, oauth.ErrInvalidState) {
			desc = failureReason(err)
		}
		h.googleFailed(c, desc, err)
		return
	}

	u, err := h.services.Authenticate(c.Request.Context(), service.GoogleFederated{Profile: profile})
	if err != nil {
		h.googleFailed(c, failureReason(err), err)
		return
	}

	if h.log != nil {
		h.log.Infow("auth_google_resolved", "user_id", u.ID, "subject", profile.Subject)
	}
	h.signIn(c, u, "/login", models.EventGoogleLogin)
}

// googleFailed records desc as the event description; err is logged only.
func (h *Handler) googleFailed(c *gin.Context, desc string, err error) {
	if h.log != nil {
		h.log.Infow("auth_google_failed", "reason", desc, "err", err)
	}
	h.record(c, models.EventGoogleLoginFailed, 0, "", desc)
	h.fail(c, "/login", msgGoogleFail)
}

func (h *Handler) setNonce(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(nonceCookie, value, maxAge, nonceCookiePath, "", h.sessions.CookieOptions().Secure, true)
}
