package services

import (
	"context"
	"sync"
	"time"

	"github.com/kulapay/kulapay-backend/internal/metrics"
	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/repositories"
	"github.com/kulapay/kulapay-backend/pkg/smsgateway"
	"golang.org/x/exp/slog"
)

// Message is an outbound notification request.
type Message struct {
	Phone   string
	Channel models.Channel
	Content string
	Type    string
}

// Delivery is the outcome of a send. A failed delivery never undoes the ledger change that caused it.
type Delivery struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Gateway   string `json:"gateway,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Notifier queues a message for background delivery.
type Notifier interface {
	Dispatch(msg Message)
}

// NotificationService sends messages through a gateway and records each attempt.
// WhatsApp messages that fail are retried once over SMS.
type NotificationService struct {
	repo    repositories.NotificationRepository
	gateway smsgateway.Gateway
	metrics *metrics.Collector
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	wg     sync.WaitGroup
}

var _ Notifier = (*NotificationService)(nil)

// NewNotificationService starts workers goroutines draining a queue of queueSize messages.
func NewNotificationService(repo repositories.NotificationRepository, gateway smsgateway.Gateway, collector *metrics.Collector, workers, queueSize int) *NotificationService {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	s := &NotificationService{
		repo:    repo,
		gateway: gateway,
		metrics: collector,
		timeout: 30 * time.Second,
		queue:   make(chan Message, queueSize),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

func (s *NotificationService) worker() {
	defer s.wg.Done()
	for msg := range s.queue {
		s.metrics.QueueDepth(len(s.queue))
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		s.Send(ctx, msg)
		cancel()
	}
}

// Dispatch queues msg without blocking. Messages are dropped when the queue is full or closed.
func (s *NotificationService) Dispatch(msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		slog.Warn("Notification dropped after shutdown", "phone", smsgateway.MaskPhone(msg.Phone), "type", msg.Type)
		return
	}
	select {
	case s.queue <- msg:
		s.metrics.QueueDepth(len(s.queue))
	default:
		slog.Warn("Notification queue full, dropping message", "phone", smsgateway.MaskPhone(msg.Phone), "type", msg.Type)
		s.metrics.Notification(string(msg.Channel), "DROPPED")
	}
}

// Send delivers msg synchronously and records the outcome.
func (s *NotificationService) Send(ctx context.Context, msg Message) Delivery {
	if msg.Channel == "" {
		msg.Channel = models.ChannelSMS
	}
	notification := &models.Notification{
		PhoneNumber: msg.Phone,
		Channel:     msg.Channel,
		Content:     msg.Content,
		Type:        msg.Type,
		Status:      models.NotificationStatusPending,
		Gateway:     s.gateway.Name(),
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		slog.Error("Failed to record notification", "error", err, "phone", smsgateway.MaskPhone(msg.Phone))
	}

	channel := deliveryChannel(msg.Channel)
	messageID, err := s.gateway.Send(ctx, channel, msg.Phone, msg.Content)
	if err != nil && channel == smsgateway.ChannelWhatsApp {
		slog.Warn("WhatsApp delivery failed, falling back to SMS", "error", err, "phone", smsgateway.MaskPhone(msg.Phone))
		channel = smsgateway.ChannelSMS
		messageID, err = s.gateway.Send(ctx, channel, msg.Phone, msg.Content)
	}

	delivery := Delivery{Success: err == nil, MessageID: messageID, Gateway: s.gateway.Name()}
	status := models.NotificationStatusSent
	statusMessage := ""
	if err != nil {
		delivery.Error = err.Error()
		status = models.NotificationStatusFailed
		statusMessage = err.Error()
		slog.Error("Failed to deliver notification", "error", err, "phone", smsgateway.MaskPhone(msg.Phone), "type", msg.Type)
	}
	s.metrics.Notification(string(channel), status)

	if !notification.ID.IsZero() {
		if err := s.repo.UpdateStatus(ctx, notification.ID, status, messageID, statusMessage); err != nil {
			slog.Error("Failed to update notification status", "error", err, "notificationId", notification.ID.Hex())
		}
	}
	return delivery
}

// Close stops accepting messages and waits for queued ones to be delivered or ctx to expire.
func (s *NotificationService) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func deliveryChannel(ch models.Channel) smsgateway.Channel {
	if ch == models.ChannelWhatsApp {
		return smsgateway.ChannelWhatsApp
	}
	return smsgateway.ChannelSMS
}
