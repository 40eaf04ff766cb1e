// Package backend talks to the external REST collaborators: the chat history
// store, the message persistence endpoint and the notify data API. All calls
// are pure request/response; failures degrade (empty history, skipped
// persistence) and are never surfaced to a connection.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleanmate/chat-relay/internal/monitoring"
)

// MessageRecord is the persistence shape for one delivered single message.
type MessageRecord struct {
	UserID    string          `json:"user_id"`
	ChannelID string          `json:"chat_channel_id"`
	Message   string          `json:"message,omitempty"`
	Seed      json.RawMessage `json:"seed,omitempty"`
	Kind      string          `json:"type"`
	FileURL   string          `json:"file_url,omitempty"`
	GroupID   string          `json:"group_id,omitempty"`
}

// BatchRecord is the persistence shape for one delivered batch.
type BatchRecord struct {
	UserID    string          `json:"user_id"`
	ChannelID string          `json:"chat_channel_id"`
	Seed      json.RawMessage `json:"seed,omitempty"`
	GroupID   string          `json:"group_id"`
	Items     []MessageRecord `json:"items"`
}

// Client wraps the backend REST API.
type Client struct {
	http      *http.Client
	baseURL   string
	notifyURL string
	log       zerolog.Logger
}

func NewClient(baseURL, notifyURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		notifyURL: notifyURL,
		log:       log.With().Str("component", "backend").Logger(),
	}
}

// History fetches past messages for a channel. Any failure degrades to an
// empty list; joining a channel never fails because history is unavailable.
func (c *Client) History(ctx context.Context, channelID string) []json.RawMessage {
	url := fmt.Sprintf("%s/chat/ChannelById/%s", c.baseURL, channelID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.historyFailed(channelID, err)
		return nil
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.historyFailed(channelID, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.historyFailed(channelID, fmt.Errorf("unexpected status %d", resp.StatusCode))
		return nil
	}

	// The API has shipped both `messages` and `message` as the array key;
	// accept either.
	var body struct {
		Messages []json.RawMessage `json:"messages"`
		Message  []json.RawMessage `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.historyFailed(channelID, err)
		return nil
	}

	if body.Messages != nil {
		return body.Messages
	}
	return body.Message
}

// SaveMessage persists one delivered single message. Fire-and-forget:
// delivery has already happened and is not rolled back on failure.
func (c *Client) SaveMessage(ctx context.Context, rec MessageRecord) {
	if err := c.post(ctx, c.baseURL+"/chat/sendMessage", rec); err != nil {
		monitoring.CollaboratorFailures.WithLabelValues("save_message").Inc()
		c.log.Warn().
			Err(err).
			Str("channel_id", rec.ChannelID).
			Str("user_id", rec.UserID).
			Msg("Failed to persist message")
	}
}

// SaveBatch persists one delivered batch in a single call.
func (c *Client) SaveBatch(ctx context.Context, rec BatchRecord) {
	if err := c.post(ctx, c.baseURL+"/chat/sendMessage", rec); err != nil {
		monitoring.CollaboratorFailures.WithLabelValues("save_batch").Inc()
		c.log.Warn().
			Err(err).
			Str("channel_id", rec.ChannelID).
			Str("group_id", rec.GroupID).
			Msg("Failed to persist batch")
	}
}

// FetchUserData retrieves backend data for an admin-triggered push.
func (c *Client) FetchUserData(ctx context.Context, userID string) (json.RawMessage, error) {
	payload := map[string]any{
		"sessions": 0,
		"usersId":  userID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.notifyURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		monitoring.CollaboratorFailures.WithLabelValues("fetch_user_data").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		monitoring.CollaboratorFailures.WithLabelValues("fetch_user_data").Inc()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		monitoring.CollaboratorFailures.WithLabelValues("fetch_user_data").Inc()
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return data, nil
}

func (c *Client) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) historyFailed(channelID string, err error) {
	monitoring.CollaboratorFailures.WithLabelValues("history").Inc()
	c.log.Warn().
		Err(err).
		Str("channel_id", channelID).
		Msg("Failed to fetch chat history, degrading to empty")
}
