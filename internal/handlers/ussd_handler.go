package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kulapay/kulapay-backend/internal/ussd"
	"github.com/kulapay/kulapay-backend/pkg/smsgateway"
	"golang.org/x/exp/slog"
)

// ussdFailure is the screen shown for any fault the state machine did not handle itself.
var ussdFailure = ussd.Response{Text: "An error occurred. Please try again later."}

// SessionHandler answers one USSD gateway callback.
type SessionHandler interface {
	Handle(ctx context.Context, req ussd.Request) ussd.Response
}

// USSDHandler handles USSD gateway callbacks
type USSDHandler struct {
	sessions SessionHandler
}

// NewUSSDHandler creates a new USSDHandler
func NewUSSDHandler(sessions SessionHandler) *USSDHandler {
	return &USSDHandler{sessions: sessions}
}

// Callback handles POST /ussd. The gateway always gets a CON/END body, even on a panic.
func (h *USSDHandler) Callback(c *gin.Context) {
	req := ussd.Request{
		SessionID:   c.PostForm("sessionId"),
		ServiceCode: c.PostForm("serviceCode"),
		PhoneNumber: c.PostForm("phoneNumber"),
		Text:        c.PostForm("text"),
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("USSD handler panic", "panic", r, "sessionId", req.SessionID)
			c.String(http.StatusOK, ussdFailure.String())
		}
	}()

	if req.PhoneNumber == "" {
		c.String(http.StatusBadRequest, ussd.Response{Text: "Missing phone number."}.String())
		return
	}

	slog.Debug("USSD callback", "sessionId", req.SessionID, "serviceCode", req.ServiceCode,
		"phone", smsgateway.MaskPhone(req.PhoneNumber))
	resp := h.sessions.Handle(c.Request.Context(), req)
	c.String(http.StatusOK, resp.String())
}
