// Package api is the REST collaborator consumed by the sync core: the
// initial fetches that seed the engine and inbox, and the send fallback used
// while the push channel is down.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chatsync/internal/models"
)

// Client is a thin JSON client over the backend API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken sets the bearer credential used on subsequent requests.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current bearer credential.
func (c *Client) Token() string { return c.token }

type LoginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var res LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/login", map[string]string{
		"username": username,
		"password": password,
	}, &res)
	if err != nil {
		return LoginResponse{}, err
	}
	c.token = res.Token
	return res, nil
}

type UserInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// ListUsers fetches the directory of other users with their live presence.
func (c *Client) ListUsers(ctx context.Context) ([]UserInfo, error) {
	var out []UserInfo
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListConversations fetches the signed-in user's conversation list.
func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var out []models.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversation fetches a single conversation, used to resolve
// newConversation push events.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	var out models.Conversation
	err := c.do(ctx, http.MethodGet, "/api/conversations/"+conversationID, nil, &out)
	return out, err
}

type CreateConversationRequest struct {
	Kind      models.ConversationKind `json:"kind"`
	Subject   string                  `json:"subject,omitempty"`
	MemberIDs []string                `json:"member_ids"`
}

func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) (models.Conversation, error) {
	var out models.Conversation
	err := c.do(ctx, http.MethodPost, "/api/conversations", req, &out)
	return out, err
}

// ListMessages fetches the ordered message page that seeds the engine.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var out []models.Message
	err := c.do(ctx, http.MethodGet, "/api/conversations/"+conversationID+"/messages", nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage is the REST fallback send path; it returns the confirmed
// message for reconciliation.
func (c *Client) SendMessage(ctx context.Context, conversationID, body string) (models.Message, error) {
	var out models.Message
	err := c.do(ctx, http.MethodPost, "/api/conversations/"+conversationID+"/messages",
		map[string]string{"body": body}, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("api: %s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("api: %s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
