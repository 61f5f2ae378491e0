package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/services"
)

// MessageSender delivers a message synchronously.
type MessageSender interface {
	Send(ctx context.Context, msg services.Message) services.Delivery
}

// NotificationHandler handles operator-initiated messages
type NotificationHandler struct {
	sender MessageSender
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(sender MessageSender) *NotificationHandler {
	return &NotificationHandler{sender: sender}
}

type sendNotificationRequest struct {
	PhoneNumber string         `json:"phoneNumber" binding:"required"`
	Message     string         `json:"message" binding:"required"`
	Channel     models.Channel `json:"channel"`
}

// SendNotification handles POST /api/v1/notifications
func (h *NotificationHandler) SendNotification(c *gin.Context) {
	var req sendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Channel {
	case "":
		req.Channel = models.ChannelSMS
	case models.ChannelSMS, models.ChannelWhatsApp:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel must be sms or whatsapp"})
		return
	}

	delivery := h.sender.Send(c.Request.Context(), services.Message{
		Phone:   req.PhoneNumber,
		Channel: req.Channel,
		Content: req.Message,
		Type:    models.NotificationTypeReply,
	})
	if !delivery.Success {
		c.JSON(http.StatusBadGateway, delivery)
		return
	}
	c.JSON(http.StatusOK, delivery)
}
