package smsgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"golang.org/x/exp/slog"
)

const (
	DefaultSMSURL      = "https://api.africastalking.com/version1/messaging"
	DefaultWhatsAppURL = "https://api.africastalking.com/version1/whatsapp/message"
)

// Config holds Africa's Talking credentials and delivery settings.
type Config struct {
	Username    string
	APIKey      string
	SMSURL      string
	WhatsAppURL string
	SenderID    string
	CountryCode string
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
}

// AfricasTalkingGateway sends SMS and WhatsApp messages through the Africa's Talking REST API.
type AfricasTalkingGateway struct {
	cfg        Config
	httpClient *http.Client
	executor   failsafe.Executor[*apiResponse]
}

// apiResponse is a fully read HTTP response, so retried attempts never leak bodies.
type apiResponse struct {
	StatusCode int
	Body       []byte
}

// NewAfricasTalkingGateway creates a gateway. A nil client gets one with cfg.Timeout.
func NewAfricasTalkingGateway(cfg Config, client *http.Client) *AfricasTalkingGateway {
	if cfg.SMSURL == "" {
		cfg.SMSURL = DefaultSMSURL
	}
	if cfg.WhatsAppURL == "" {
		cfg.WhatsAppURL = DefaultWhatsAppURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	retry := retrypolicy.NewBuilder[*apiResponse]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(resp *apiResponse, err error) bool {
			if err != nil || resp == nil {
				return true
			}
			return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		}).
		Build()

	return &AfricasTalkingGateway{
		cfg:        cfg,
		httpClient: client,
		executor:   failsafe.With[*apiResponse](retry),
	}
}

// Name returns the gateway name recorded on notifications.
func (g *AfricasTalkingGateway) Name() string { return "africastalking" }

// Send delivers a message and returns the provider message id.
func (g *AfricasTalkingGateway) Send(ctx context.Context, channel Channel, phone, message string) (string, error) {
	if g.cfg.Username == "" || g.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}
	to := NormalizePhone(phone, g.cfg.CountryCode)

	var build func() (*http.Request, error)
	switch channel {
	case ChannelSMS:
		build = func() (*http.Request, error) { return g.smsRequest(ctx, to, message) }
	case ChannelWhatsApp:
		build = func() (*http.Request, error) { return g.whatsAppRequest(ctx, to, message) }
	default:
		return "", fmt.Errorf("unsupported channel %q", channel)
	}

	resp, err := g.executor.WithContext(ctx).Get(func() (*apiResponse, error) {
		req, err := build()
		if err != nil {
			return nil, err
		}
		return g.do(req)
	})
	if err != nil {
		return "", fmt.Errorf("%s send to %s failed: %w", channel, MaskPhone(to), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s send to %s failed with status %d: %s", channel, MaskPhone(to), resp.StatusCode, truncate(resp.Body))
	}

	if channel == ChannelSMS {
		return parseSMSResponse(resp.Body)
	}
	return parseWhatsAppResponse(resp.Body), nil
}

func (g *AfricasTalkingGateway) smsRequest(ctx context.Context, to, message string) (*http.Request, error) {
	form := url.Values{}
	form.Set("username", g.cfg.Username)
	form.Set("to", to)
	form.Set("message", message)
	if g.cfg.SenderID != "" {
		form.Set("from", g.cfg.SenderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.SMSURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("ApiKey", g.cfg.APIKey)
	return req, nil
}

func (g *AfricasTalkingGateway) whatsAppRequest(ctx context.Context, to, message string) (*http.Request, error) {
	body, err := json.Marshal(map[string]string{
		"username": g.cfg.Username,
		"to":       to,
		"message":  message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.WhatsAppURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("ApiKey", g.cfg.APIKey)
	return req, nil
}

func (g *AfricasTalkingGateway) do(req *http.Request) (*apiResponse, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		slog.Warn("Messaging request failed", "url", req.URL.Host, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &apiResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

type smsResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			StatusCode int    `json:"statusCode"`
			Number     string `json:"number"`
			Status     string `json:"status"`
			MessageID  string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

// parseSMSResponse extracts the message id of the single recipient. Status codes 100 to 102
// mean processed, sent or queued.
func parseSMSResponse(body []byte) (string, error) {
	var parsed smsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.SMSMessageData.Recipients) == 0 {
		return "", fmt.Errorf("message rejected: %s", parsed.SMSMessageData.Message)
	}
	r := parsed.SMSMessageData.Recipients[0]
	if r.StatusCode < 100 || r.StatusCode > 102 {
		return "", fmt.Errorf("message rejected with status %d: %s", r.StatusCode, r.Status)
	}
	return r.MessageID, nil
}

func parseWhatsAppResponse(body []byte) string {
	var parsed struct {
		MessageID string `json:"messageId"`
		ID        string `json:"id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.MessageID != "" {
		return parsed.MessageID
	}
	return parsed.ID
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
