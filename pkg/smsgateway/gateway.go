// Package smsgateway delivers outbound SMS and WhatsApp messages.
package smsgateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Channel is the outbound delivery channel.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// ErrNotConfigured is returned when gateway credentials are missing.
var ErrNotConfigured = errors.New("messaging credentials not configured")

// Gateway sends a message to a phone number over a channel and returns the provider message id.
type Gateway interface {
	Send(ctx context.Context, channel Channel, phone, message string) (string, error)
	Name() string
}

// SentMessage is a message captured by MockGateway.
type SentMessage struct {
	Channel   Channel
	Phone     string
	Message   string
	MessageID string
}

// MockGateway records messages instead of delivering them.
type MockGateway struct {
	mu   sync.Mutex
	sent []SentMessage
	// Err, when set, fails every send.
	Err error
	// CountryCode normalizes recorded phone numbers the same way the live gateway would.
	CountryCode string
}

// NewMockGateway creates a new mock gateway
func NewMockGateway(countryCode string) *MockGateway {
	return &MockGateway{CountryCode: countryCode}
}

// Name returns the gateway name recorded on notifications.
func (g *MockGateway) Name() string { return "mock" }

// Send records the message.
func (g *MockGateway) Send(ctx context.Context, channel Channel, phone, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.Err != nil {
		return "", g.Err
	}
	if channel != ChannelSMS && channel != ChannelWhatsApp {
		return "", fmt.Errorf("unsupported channel %q", channel)
	}

	id := "MOCK-" + uuid.NewString()
	g.mu.Lock()
	g.sent = append(g.sent, SentMessage{
		Channel:   channel,
		Phone:     NormalizePhone(phone, g.CountryCode),
		Message:   message,
		MessageID: id,
	})
	g.mu.Unlock()
	return id, nil
}

// Sent returns a copy of the recorded messages.
func (g *MockGateway) Sent() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]SentMessage, len(g.sent))
	copy(out, g.sent)
	return out
}
