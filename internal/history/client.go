// Package history is the client for the message history store and the
// admin customers list, both plain request/response HTTP.
package history

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/Vovarama1992/shop-chat/internal/chat"
)

// Client talks to the chat backend's REST surface.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a client for the given API base URL. The bearer token
// may be empty for guest-scoped access.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Messages fetches the canonical ordered history of one conversation.
func (c *Client) Messages(ctx context.Context, chatID string) ([]chat.Message, error) {
	var out struct {
		Messages []chat.Message `json:"messages"`
	}
	if err := c.get(ctx, "/chat/"+chatID+"/messages", &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Customers fetches the known customers for the admin directory.
func (c *Client) Customers(ctx context.Context) ([]chat.Customer, error) {
	var out struct {
		Customers []chat.Customer `json:"customers"`
	}
	if err := c.get(ctx, "/user/customers", &out); err != nil {
		return nil, err
	}
	return out.Customers, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return errors.New("history api error: " + resp.Status + " body=" + string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
