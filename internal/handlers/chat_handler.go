package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kulapay/kulapay-backend/internal/chat"
	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/services"
	"github.com/kulapay/kulapay-backend/pkg/smsgateway"
	"golang.org/x/exp/slog"
)

const msgMissingFields = "Invalid Format: Missing 'from' or 'text' field"

// ChatHandler handles the WhatsApp chat webhook and the unified SMS/WhatsApp callback
type ChatHandler struct {
	router   *chat.Router
	notifier services.Notifier
}

// NewChatHandler creates a new ChatHandler. Replies to the unified callback go out through notifier.
func NewChatHandler(router *chat.Router, notifier services.Notifier) *ChatHandler {
	return &ChatHandler{router: router, notifier: notifier}
}

type whatsAppRequest struct {
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	Message     string `json:"message" binding:"required"`
	MessageID   string `json:"messageId"`
}

// WhatsApp handles POST /whatsapp. The reply is returned as plain text.
func (h *ChatHandler) WhatsApp(c *gin.Context) {
	var req whatsAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Invalid request: phoneNumber and message are required.")
		return
	}

	reply := h.router.Handle(c.Request.Context(), chat.Message{
		From:      req.PhoneNumber,
		Text:      req.Message,
		Channel:   models.ChannelWhatsApp,
		MessageID: req.MessageID,
	})
	c.String(http.StatusOK, reply.Text)
}

// CallbackAck acknowledges a unified callback.
type CallbackAck struct {
	Processed bool           `json:"processed"`
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Channel   models.Channel `json:"channel,omitempty"`
}

type callbackPayload struct {
	From    string `json:"from" form:"from"`
	To      string `json:"to" form:"to"`
	Text    string `json:"text" form:"text"`
	Message string `json:"message" form:"message"`
	ID      string `json:"id" form:"id"`
}

func (p callbackPayload) body() string {
	if strings.TrimSpace(p.Text) != "" {
		return p.Text
	}
	return p.Message
}

// Callback handles POST /messaging/callback. JSON bodies come from WhatsApp; anything else is
// read as an SMS form post.
func (h *ChatHandler) Callback(c *gin.Context) {
	var (
		payload callbackPayload
		channel models.Channel
		err     error
	)
	if c.ContentType() == gin.MIMEJSON {
		channel = models.ChannelWhatsApp
		err = c.ShouldBindJSON(&payload)
	} else {
		channel = models.ChannelSMS
		err = c.ShouldBind(&payload)
	}
	if err != nil {
		slog.Warn("Unreadable messaging callback", "error", err, "contentType", c.ContentType())
		c.JSON(http.StatusBadRequest, CallbackAck{Message: "Invalid request format", Channel: channel})
		return
	}

	sender := strings.TrimSpace(payload.From)
	text := payload.body()
	if sender == "" || strings.TrimSpace(text) == "" {
		h.reply(sender, channel, msgMissingFields)
		c.JSON(http.StatusBadRequest, CallbackAck{Message: msgMissingFields, Channel: channel})
		return
	}

	cmd, err := chat.ParseKulaCommand(text)
	if err != nil {
		if !errors.Is(err, chat.ErrInvalidKulaCommand) {
			slog.Error("Unexpected KULA parse failure", "error", err)
		}
		h.reply(sender, channel, chat.KulaUsage)
		c.JSON(http.StatusBadRequest, CallbackAck{Message: chat.KulaUsage, Channel: channel})
		return
	}

	var reference string
	if payload.ID != "" {
		reference = string(channel) + ":" + payload.ID
	}
	outcome := h.router.RecordKula(c.Request.Context(), sender, channel, reference, cmd)
	h.reply(sender, channel, outcome.Message)

	slog.Info("Messaging callback processed", "channel", channel, "vendor", smsgateway.MaskPhone(sender),
		"success", outcome.Success)
	c.JSON(http.StatusOK, CallbackAck{
		Processed: true,
		Success:   outcome.Success,
		Message:   outcome.Message,
		Channel:   channel,
	})
}

func (h *ChatHandler) reply(phone string, channel models.Channel, text string) {
	if phone == "" || h.notifier == nil {
		return
	}
	h.notifier.Dispatch(services.Message{
		Phone:   phone,
		Channel: channel,
		Content: text,
		Type:    models.NotificationTypeReply,
	})
}
