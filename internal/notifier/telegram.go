package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// TelegramChannel sends messages via the Telegram Bot API, adapted from
// the pack's TelegramNotifier into the Channel interface so the
// dispatcher can route to it alongside other channels.
type TelegramChannel struct {
	BotToken string
	Client   *http.Client
}

func NewTelegramChannel(botToken, proxyURL string) *TelegramChannel {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramChannel{
		BotToken: botToken,
		Client:   &http.Client{Timeout: 30 * time.Second, Transport: transport},
	}
}

func (t *TelegramChannel) Name() string { return "telegram" }

// SendText sends text to the chat ID given in destination.
func (t *TelegramChannel) SendText(ctx context.Context, destination, text string) error {
	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.BotToken)
	payload := map[string]string{"chat_id": destination, "text": text, "parse_mode": "HTML"}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram: api error status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
