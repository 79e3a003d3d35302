// Gmail HTTP handlers.
//
// This file exposes the OAuth connection lifecycle and manual draft creation:
//   - GET  /gmail/status
//   - GET  /gmail/auth-url
//   - GET  /gmail/callback
//   - POST /gmail/disconnect
//   - POST /gmail/create-draft
//
// All endpoints degrade cleanly when the integration is disabled; nothing in
// the agent pipeline depends on a connected mailbox.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-support-agent/internal/gmail"
)

//
// DTOs
//

// AuthURLResponse carries the consent URL the client should redirect to.
type AuthURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// CallbackResponse reports a completed OAuth exchange.
type CallbackResponse struct {
	Connected bool   `json:"connected"`
	Email     string `json:"email"`
}

// DisconnectResponse reports how many stored tokens were removed.
type DisconnectResponse struct {
	Disconnected bool  `json:"disconnected"`
	Deleted      int64 `json:"deleted"`
}

// CreateDraftRequest is the JSON payload for drafting an email by hand.
type CreateDraftRequest struct {
	To      string `json:"to" binding:"required,email"`
	Subject string `json:"subject" binding:"required,min=1"`
	Body    string `json:"body" binding:"required,min=1"`
}

//
// Handlers
//

// GmailStatus godoc
// @ID          gmailStatus
// @Summary     Gmail connection status
// @Tags        Gmail
// @Produce     json
//
// @Success     200  {object}  gmail.Status
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /gmail/status [get]
func (h *Handlers) GmailStatus(c *gin.Context) {
	st, err := h.gmailSvc.CurrentStatus(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// GmailAuthURL godoc
// @ID          gmailAuthURL
// @Summary     Start the Gmail OAuth flow
// @Description Returns the Google consent URL with a signed, time-limited state parameter.
// @Tags        Gmail
// @Produce     json
//
// @Success     200  {object}  handlers.AuthURLResponse
// @Failure     400  {object}  handlers.ErrorResponse "Integration disabled"
// @Router      /gmail/auth-url [get]
func (h *Handlers) GmailAuthURL(c *gin.Context) {
	url, state, err := h.gmailSvc.AuthURL()
	if err != nil {
		if errors.Is(err, gmail.ErrNotEnabled) {
			fail(c, http.StatusBadRequest, ErrCodeGmailNotEnabled, "gmail integration is not enabled")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, AuthURLResponse{URL: url, State: state})
}

// GmailCallback godoc
// @ID          gmailCallback
// @Summary     Complete the Gmail OAuth flow
// @Description Exchanges the authorization code, verifies the state signature, and stores the token.
// @Tags        Gmail
// @Produce     json
//
// @Param       code   query  string  true  "Authorization code from Google"
// @Param       state  query  string  true  "State issued by /gmail/auth-url"
//
// @Success     200  {object}  handlers.CallbackResponse
// @Failure     400  {object}  handlers.ErrorResponse "Missing code or bad state"
// @Failure     500  {object}  handlers.ErrorResponse "Exchange failed"
// @Router      /gmail/callback [get]
func (h *Handlers) GmailCallback(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	state := strings.TrimSpace(c.Query("state"))
	if code == "" || state == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code and state required")
		return
	}

	email, err := h.gmailSvc.Exchange(c.Request.Context(), code, state)
	if err != nil {
		switch {
		case errors.Is(err, gmail.ErrNotEnabled):
			fail(c, http.StatusBadRequest, ErrCodeGmailNotEnabled, "gmail integration is not enabled")
		case errors.Is(err, gmail.ErrBadState):
			fail(c, http.StatusBadRequest, ErrCodeBadOAuthState, "invalid or expired oauth state")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, CallbackResponse{Connected: true, Email: email})
}

// GmailDisconnect godoc
// @ID          gmailDisconnect
// @Summary     Disconnect Gmail
// @Description Deletes all stored OAuth tokens.
// @Tags        Gmail
// @Produce     json
//
// @Success     200  {object}  handlers.DisconnectResponse
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /gmail/disconnect [post]
func (h *Handlers) GmailDisconnect(c *gin.Context) {
	n, err := h.gmailSvc.Disconnect(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, DisconnectResponse{Disconnected: true, Deleted: n})
}

// GmailCreateDraft godoc
// @ID          gmailCreateDraft
// @Summary     Create a Gmail draft
// @Tags        Gmail
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateDraftRequest  true  "Draft payload"
//
// @Success     200  {object}  gmail.DraftResult
// @Failure     400  {object}  handlers.ErrorResponse "Bad request / disabled"
// @Failure     409  {object}  handlers.ErrorResponse "Not connected"
// @Failure     500  {object}  handlers.ErrorResponse "Draft creation failed"
// @Router      /gmail/create-draft [post]
func (h *Handlers) GmailCreateDraft(c *gin.Context) {
	var req CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "to, subject and body required")
		return
	}

	res, err := h.gmailSvc.CreateDraft(c.Request.Context(), req.To, req.Subject, req.Body)
	if err != nil {
		switch {
		case errors.Is(err, gmail.ErrNotEnabled):
			fail(c, http.StatusBadRequest, ErrCodeGmailNotEnabled, "gmail integration is not enabled")
		case errors.Is(err, gmail.ErrNotConnected):
			fail(c, http.StatusConflict, ErrCodeGmailDisconnect, "gmail is not connected")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, res)
}
