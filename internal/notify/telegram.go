package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
)

// Telegram sends messages through the Bot API.
type Telegram struct {
	token   string
	baseURL string
	client  *retryablehttp.Client
}

func NewTelegram(token string) *Telegram {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &Telegram{token: token, baseURL: "https://api.telegram.org", client: client}
}

var _ Notifier = (*Telegram)(nil)

func (t *Telegram) Notify(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram sendMessage: unexpected status %d", resp.StatusCode)
	}
	return nil
}
