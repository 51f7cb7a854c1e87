// Package notify delivers availability alerts to a Telegram chat.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samsarahq/go/oops"
)

const DefaultAPIURL = "https://api.telegram.org"

// ErrNotConfigured is returned when the bot token or chat id is missing.
var ErrNotConfigured = errors.New("telegram bot token or chat id not configured")

// Notifier sends one plain-text message.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Telegram posts messages through the Bot API sendMessage method.
type Telegram struct {
	APIURL  string
	Token   string
	ChatID  string
	Preview bool

	httpClient *http.Client
	logger     zerolog.Logger
}

func NewTelegram(apiURL, token, chatID string, httpClient *http.Client, logger zerolog.Logger) *Telegram {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Telegram{
		APIURL:     strings.TrimRight(apiURL, "/"),
		Token:      token,
		ChatID:     chatID,
		httpClient: httpClient,
		logger:     logger.With().Str("module", "telegram").Logger(),
	}
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	if t.Token == "" || t.ChatID == "" {
		return ErrNotConfigured
	}
	if err := t.sendMessage(ctx, t.ChatID, text); err != nil {
		return err
	}
	t.logger.Debug().Int("length", len(text)).Msg("telegram message sent")
	return nil
}

func (t *Telegram) sendMessage(ctx context.Context, chatID, text string) error {
	return t.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: !t.Preview,
	}, nil)
}

// call posts payload as JSON to a Bot API method and decodes the result field
// into result when it is non-nil.
func (t *Telegram) call(ctx context.Context, method string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return oops.Wrapf(err, "marshal telegram %s request", method)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", t.APIURL, t.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return oops.Wrapf(err, "build telegram %s request", method)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// The request URL carries the bot token; keep it out of the error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return oops.Wrapf(err, "telegram %s", method)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return oops.Wrapf(err, "read telegram %s response", method)
	}
	var apiResp apiResponse
	decodeErr := json.Unmarshal(respBody, &apiResp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		description := strings.TrimSpace(string(respBody))
		if decodeErr == nil && apiResp.Description != "" {
			description = apiResp.Description
		}
		return oops.Errorf("telegram %s failed with status %d: %s", method, resp.StatusCode, description)
	}
	if result == nil {
		return nil
	}
	if decodeErr != nil {
		return oops.Wrapf(decodeErr, "decode telegram %s response", method)
	}
	if err := json.Unmarshal(apiResp.Result, result); err != nil {
		return oops.Wrapf(err, "decode telegram %s result", method)
	}
	return nil
}
