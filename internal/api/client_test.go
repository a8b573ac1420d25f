package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana", body["username"])
		json.NewEncoder(w).Encode(LoginResponse{Token: "tok-1", UserID: "u-1", UserName: "ana"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Login(context.Background(), "ana", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u-1", res.UserID)
	assert.Equal(t, "tok-1", c.Token())
}

func TestBearerTokenAndErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "missing token"})
			return
		}
		json.NewEncoder(w).Encode([]models.Conversation{{ID: "c-1"}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.ListConversations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing token")

	c.SetToken("tok-1")
	convs, err := c.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "c-1", convs[0].ID)
}

func TestSendMessageFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/conversations/c-1/messages", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(models.Message{ID: "m-102", ConversationID: "c-1", Body: body["body"]})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetToken("tok-1")
	msg, err := c.SendMessage(context.Background(), "c-1", "hola")
	require.NoError(t, err)
	assert.Equal(t, "m-102", msg.ID)
	assert.Equal(t, "hola", msg.Body)
}
