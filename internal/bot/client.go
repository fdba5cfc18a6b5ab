// Package bot is the client for the scripted-assistant variant: plain
// request/reply over HTTP instead of the socket, usable by anonymous
// visitors. The server answers with the full updated message list, which
// replaces local state wholesale so ordering has one source of truth.
package bot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/Vovarama1992/shop-chat/internal/chat"
)

// Client talks to the chatbot endpoints.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a bot client. Token may be empty; guests are allowed.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// History fetches the bot conversation so far.
func (c *Client) History(ctx context.Context, chatID string) ([]chat.Message, error) {
	return c.do(ctx, http.MethodGet, chatID, nil)
}

// Send submits the user's text and returns the full updated conversation,
// bot reply included. Empty text after trimming is a no-op: no request is
// made and a nil list is returned.
func (c *Client) Send(ctx context.Context, chatID, text string) ([]chat.Message, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil, nil
	}

	body, err := json.Marshal(map[string]string{"text": t})
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, chatID, bytes.NewReader(body))
}

func (c *Client) do(ctx context.Context, method, chatID string, body io.Reader) ([]chat.Message, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/chatbot/"+chatID, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, errors.New("chatbot api error: " + resp.Status + " body=" + string(respBody))
	}

	var out struct {
		Messages []chat.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}
