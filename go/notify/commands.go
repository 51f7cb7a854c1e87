package notify

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// StartReply answers /start so a chat member can confirm the watcher is alive.
const StartReply = "Housing availability checker is running. You will be notified when housing becomes available."

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

// Updates long-polls getUpdates for messages with an id of at least offset.
func (t *Telegram) Updates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	if t.Token == "" {
		return nil, ErrNotConfigured
	}
	var updates []Update
	err := t.call(ctx, "getUpdates", getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout.Seconds()),
		AllowedUpdates: []string{"message"},
	}, &updates)
	if err != nil {
		return nil, err
	}
	return updates, nil
}

// Reply sends text to the chat a command came from.
func (t *Telegram) Reply(ctx context.Context, chatID int64, text string) error {
	if t.Token == "" {
		return ErrNotConfigured
	}
	return t.sendMessage(ctx, strconv.FormatInt(chatID, 10), text)
}

// Commands answers bot commands while the watcher is running.
type Commands struct {
	Telegram    *Telegram
	PollTimeout time.Duration
	RetryDelay  time.Duration
	Replies     map[string]string
}

func NewCommands(t *Telegram) *Commands {
	return &Commands{
		Telegram:    t,
		PollTimeout: 25 * time.Second,
		RetryDelay:  5 * time.Second,
		Replies:     map[string]string{"start": StartReply},
	}
}

// Run polls for commands until ctx is done. Polling and reply failures are
// logged and retried after RetryDelay; Run only returns ctx's error.
func (c *Commands) Run(ctx context.Context) error {
	logger := c.Telegram.logger.With().Str("component", "commands").Logger()
	var offset int64
	for {
		updates, err := c.Telegram.Updates(ctx, offset, c.PollTimeout)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logger.Warn().Err(err).Dur("retry_in", c.RetryDelay).Msg("failed to poll telegram updates")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.RetryDelay):
			}
			continue
		}
		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			c.handle(ctx, update)
		}
	}
}

func (c *Commands) handle(ctx context.Context, update Update) {
	if update.Message == nil {
		return
	}
	reply, ok := c.Replies[command(update.Message.Text)]
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID
	if err := c.Telegram.Reply(ctx, chatID, reply); err != nil {
		c.Telegram.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to answer command")
		return
	}
	c.Telegram.logger.Info().Int64("chat_id", chatID).Msg("answered command")
}

// command extracts "start" from "/start", "/start@SomeBot" or "/start now".
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	name, _, _ := strings.Cut(fields[0][1:], "@")
	return strings.ToLower(name)
}
