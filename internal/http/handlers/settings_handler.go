// Settings HTTP handlers.
//
// Endpoints:
//   - GET    /settings             (current configuration, secrets redacted)
//   - PATCH  /settings             (partial update with validation)
//   - PUT    /settings/credentials (install a SteamGifts session cookie)
//   - DELETE /settings/credentials (clear the session, disable automation)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gifter-backend/internal/domain"
	"github.com/tbourn/go-gifter-backend/internal/services"
)

// SettingsResponse is the transport view of the settings row. The embedded
// struct excludes the session cookie and XSRF token via its JSON tags; only
// the presence of a session is reported.
type SettingsResponse struct {
	domain.Settings
	HasSession bool `json:"has_session"`
}

// CredentialsRequest is the JSON payload for installing a session.
type CredentialsRequest struct {
	PHPSessID string `json:"phpsessid" binding:"required,min=8"`
	UserAgent string `json:"user_agent"`
}

// settingsView redacts a settings row for transport.
func settingsView(st *domain.Settings) SettingsResponse {
	return SettingsResponse{Settings: *st, HasSession: st.Authenticated()}
}

// GetSettings returns the current configuration with secrets redacted.
func (h *Handlers) GetSettings(c *gin.Context) {
	st, err := h.settings.Get(c.Request.Context())
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, settingsView(st))
}

// UpdateSettings applies a partial configuration update. Nothing is written
// when any field is invalid.
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var u services.SettingsUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid settings payload: "+err.Error())
		return
	}
	st, err := h.settings.Update(c.Request.Context(), u)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, settingsView(st))
}

// SetCredentials installs a SteamGifts session cookie and optional browser
// user agent.
func (h *Handlers) SetCredentials(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phpsessid required")
		return
	}
	st, err := h.settings.SetCredentials(c.Request.Context(), req.PHPSessID, req.UserAgent)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, settingsView(st))
}

// ClearCredentials drops the stored session and disables automation.
func (h *Handlers) ClearCredentials(c *gin.Context) {
	st, err := h.settings.ClearCredentials(c.Request.Context())
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, settingsView(st))
}
