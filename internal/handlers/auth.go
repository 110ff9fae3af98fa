package handlers

import (
	"errors"
	"net/http"

	"secrets_app/internal/models"
	"secrets_app/internal/oauth"
	"secrets_app/internal/service"

	"github.com/gin-gonic/gin"
)

// Single, shared credentials payload for both registration and login.
type authCredentials struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

const (
	msgBadForm       = "Username and password are required."
	msgRegisterTaken = "That username is already taken."
	msgRegisterFail  = "Registration failed, please try again."
	msgLoginFail     = "Invalid username or password."
	msgGoogleFail    = "Google sign-in failed, please try again."
	msgGoogleOff     = "Google sign-in is not configured."
	msgSessionFail   = "Could not start your session, please try again."
)

// bindFormOrRedirect binds the posted form into dst. On failure it flashes
// a message, redirects to back and returns false.
func (h *Handler) bindFormOrRedirect(c *gin.Context, dst any, back string) bool {
	if err := c.ShouldBind(dst); err != nil {
		if h.log != nil {
			h.log.Infow("auth_bad_request_body", "path", c.Request.URL.Path, "err", err)
		}
		h.fail(c, back, msgBadForm)
		return false
	}
	return true
}

// fail flashes msg and redirects to the fallback page.
func (h *Handler) fail(c *gin.Context, back, msg string) {
	h.sessions.Flash(c, msg)
	c.Redirect(http.StatusFound, back)
}

// signIn moves the client into the authenticated state. The credential must
// already have been verified.
func (h *Handler) signIn(c *gin.Context, u models.SessionUser, back, eventType string) {
	if err := h.sessions.Establish(c, u); err != nil {
		if h.log != nil {
			h.log.Errorw("session_establish_failed", "user_id", u.ID, "err", err)
		}
		h.fail(c, back, msgSessionFail)
		return
	}
	h.record(c, eventType, u.ID, u.Label(), "signed in")
	c.Redirect(http.StatusFound, "/secrets")
}

// record appends an activity event owned by userID, zero for attempts that
// resolved no user. Failures are logged, never surfaced.
func (h *Handler) record(c *gin.Context, eventType string, userID int, label, description string) {
	err := h.services.EventLog.Record(c.Request.Context(), models.AuthEvent{
		Type:        eventType,
		UserID:      userID,
		Username:    label,
		Description: description,
	})
	if err != nil && h.log != nil {
		h.log.Errorw("auth_event_record_failed", "type", eventType, "err", err)
	}
}

func (h *Handler) register(c *gin.Context) {
	var input authCredentials
	if ok := h.bindFormOrRedirect(c, &input, "/register"); !ok {
		return
	}

	u, err := h.services.Register(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		if h.log != nil {
			h.log.Infow("auth_register_failed", "username", input.Username, "err", err)
		}
		h.record(c, models.EventRegisterFailed, 0, input.Username, failureReason(err))
		msg := msgRegisterFail
		switch {
		case errors.Is(err, service.ErrDuplicateUser):
			msg = msgRegisterTaken
		case errors.Is(err, service.ErrInvalidInput):
			msg = msgBadForm
		}
		h.fail(c, "/register", msg)
		return
	}

	if h.log != nil {
		h.log.Infow("auth_registered", "user_id", u.ID, "username", u.Username)
	}
	h.record(c, models.EventRegister, u.ID, u.Label(), "account created")
	h.signIn(c, u, "/register", models.EventLogin)
}

func (h *Handler) login(c *gin.Context) {
	var input authCredentials
	if ok := h.bindFormOrRedirect(c, &input, "/login"); !ok {
		return
	}

	u, err := h.services.Authenticate(c.Request.Context(), service.LocalCredential{
		Username: input.Username,
		Password: input.Password,
	})
	if err != nil {
		if h.log != nil {
			h.log.Infow("auth_login_failed", "username", input.Username, "err", err)
		}
		h.record(c, models.EventLoginFailed, 0, input.Username, failureReason(err))
		h.fail(c, "/login", msgLoginFail)
		return
	}

	h.signIn(c, u, "/login", models.EventLogin)
}

func (h *Handler) logout(c *gin.Context) {
	u, wasSignedIn := currentUser(c)
	if err := h.sessions.Invalidate(c); err != nil {
		if h.log != nil {
			h.log.Errorw("auth_logout_failed", "err", err)
		}
	}
	if wasSignedIn {
		h.record(c, models.EventLogout, u.ID, u.Label(), "signed out")
	}
	c.Redirect(http.StatusFound, "/")
}

// failureReason is the stored description of a failed attempt. The error
// itself only goes to the application log.
func failureReason(err error) string {
	switch {
	case errors.Is(err, service.ErrDuplicateUser):
		return "username taken"
	case errors.Is(err, service.ErrInvalidInput):
		return "invalid input"
	case errors.Is(err, service.ErrNoSuchUser), errors.Is(err, service.ErrBadCredential):
		return "wrong username or password"
	case errors.Is(err, service.ErrStoreUnavailable):
		return "store unavailable"
	case errors.Is(err, service.ErrFederation):
		return "account not resolved"
	case errors.Is(err, oauth.ErrInvalidState):
		return "invalid state"
	default:
		return "sign-in failed"
	}
}
