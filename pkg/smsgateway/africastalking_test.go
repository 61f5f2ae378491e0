package smsgateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(server *httptest.Server) Config {
	return Config{
		Username:    "sandbox",
		APIKey:      "test-key",
		SMSURL:      server.URL + "/version1/messaging",
		WhatsAppURL: server.URL + "/version1/whatsapp/message",
		CountryCode: "254",
		MaxRetries:  2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestSendSMS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/version1/messaging", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("ApiKey"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "sandbox", r.PostForm.Get("username"))
		assert.Equal(t, "+254712345678", r.PostForm.Get("to"))
		assert.Equal(t, "hello", r.PostForm.Get("message"))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"SMSMessageData":{"Message":"Sent to 1/1","Recipients":[{"statusCode":101,"number":"+254712345678","status":"Success","messageId":"ATXid_123"}]}}`))
	}))
	defer server.Close()

	gw := NewAfricasTalkingGateway(testConfig(server), server.Client())
	id, err := gw.Send(context.Background(), ChannelSMS, "0712345678", "hello")
	require.NoError(t, err)
	assert.Equal(t, "ATXid_123", id)
}

func TestSendWhatsApp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/version1/whatsapp/message", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "+254712345678", body["to"])
		assert.Equal(t, "hi there", body["message"])

		_, _ = w.Write([]byte(`{"messageId":"wa-1"}`))
	}))
	defer server.Close()

	gw := NewAfricasTalkingGateway(testConfig(server), server.Client())
	id, err := gw.Send(context.Background(), ChannelWhatsApp, "254712345678", "hi there")
	require.NoError(t, err)
	assert.Equal(t, "wa-1", id)
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"SMSMessageData":{"Recipients":[{"statusCode":102,"status":"Queued","messageId":"ATXid_9"}]}}`))
	}))
	defer server.Close()

	gw := NewAfricasTalkingGateway(testConfig(server), server.Client())
	id, err := gw.Send(context.Background(), ChannelSMS, "0712345678", "retry me")
	require.NoError(t, err)
	assert.Equal(t, "ATXid_9", id)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("The supplied authentication is invalid"))
	}))
	defer server.Close()

	gw := NewAfricasTalkingGateway(testConfig(server), server.Client())
	_, err := gw.Send(context.Background(), ChannelSMS, "0712345678", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendRejectedRecipient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"SMSMessageData":{"Recipients":[{"statusCode":403,"status":"InvalidPhoneNumber"}]}}`))
	}))
	defer server.Close()

	gw := NewAfricasTalkingGateway(testConfig(server), server.Client())
	_, err := gw.Send(context.Background(), ChannelSMS, "0712345678", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidPhoneNumber")
}

func TestSendWithoutCredentials(t *testing.T) {
	gw := NewAfricasTalkingGateway(Config{}, nil)
	_, err := gw.Send(context.Background(), ChannelSMS, "0712345678", "hello")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestMockGateway(t *testing.T) {
	gw := NewMockGateway("254")
	id, err := gw.Send(context.Background(), ChannelSMS, "0712345678", "receipt")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	sent := gw.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "+254712345678", sent[0].Phone)
	assert.Equal(t, "receipt", sent[0].Message)

	gw.Err = errors.New("network down")
	_, err = gw.Send(context.Background(), ChannelWhatsApp, "0712345678", "x")
	assert.EqualError(t, err, "network down")
	assert.Len(t, gw.Sent(), 1)
}
