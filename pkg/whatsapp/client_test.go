package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertPhoneNumber(t *testing.T) {
	assert.Equal(t, "6281234", convertPhoneNumber("081234"))
	assert.Equal(t, "6281234", convertPhoneNumber("+6281234"))
	assert.Equal(t, "15550100", convertPhoneNumber(" 15550100 "))
}

func TestSendTextMessage(t *testing.T) {
	var got SendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/device-1/send/message", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true,"message":"sent","data":{"message_id":"m1","status":"queued"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", "bot", "secret", "/device-1/")
	err := c.SendTextMessage(context.Background(), "0812", "hello")

	require.NoError(t, err)
	assert.Equal(t, "62812@s.whatsapp.net", got.Phone)
	assert.Equal(t, "hello", got.Message)
}

func TestSendMessageGatewayErrors(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := NewClient(server.URL, "u", "p", "d").SendMessage(context.Background(), "1", "x")
		assert.ErrorContains(t, err, "502")
	})

	t.Run("rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":false,"message":"not registered"}`))
		}))
		defer server.Close()

		_, err := NewClient(server.URL, "u", "p", "d").SendMessage(context.Background(), "1", "x")
		assert.ErrorContains(t, err, "not registered")
	})
}
