package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type botServer struct {
	mu      sync.Mutex
	polls   []getUpdatesRequest
	replies []sendMessageRequest
}

func TestCommands_AnswersStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bot := &botServer{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bot.mu.Lock()
		defer bot.mu.Unlock()
		switch r.URL.Path {
		case "/bot123:abc/getUpdates":
			var req getUpdatesRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			bot.polls = append(bot.polls, req)
			switch len(bot.polls) {
			case 1:
				w.Write([]byte(`{"ok":true,"result":[
					{"update_id":7,"message":{"message_id":1,"chat":{"id":42},"text":"/start@HousingBot"}},
					{"update_id":8,"message":{"message_id":2,"chat":{"id":42},"text":"hello"}},
					{"update_id":9}
				]}`))
			case 2:
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte(`{"ok":false,"description":"Bad Gateway"}`))
			default:
				cancel()
				w.Write([]byte(`{"ok":true,"result":[]}`))
			}
		case "/bot123:abc/sendMessage":
			var req sendMessageRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			bot.replies = append(bot.replies, req)
			w.Write([]byte(`{"ok":true,"result":{}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	commands := NewCommands(NewTelegram(server.URL, "123:abc", "-1001", server.Client(), zerolog.Nop()))
	commands.PollTimeout = time.Second
	commands.RetryDelay = 10 * time.Millisecond

	err := commands.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	bot.mu.Lock()
	defer bot.mu.Unlock()
	require.Len(t, bot.replies, 1)
	assert.Equal(t, "42", bot.replies[0].ChatID)
	assert.Equal(t, StartReply, bot.replies[0].Text)

	require.Len(t, bot.polls, 3)
	assert.Equal(t, int64(0), bot.polls[0].Offset)
	assert.Equal(t, 1, bot.polls[0].Timeout)
	assert.Equal(t, int64(10), bot.polls[1].Offset)
	// A failed poll is retried from the same offset.
	assert.Equal(t, int64(10), bot.polls[2].Offset)
}

func TestTelegram_UpdatesNotConfigured(t *testing.T) {
	tg := NewTelegram("", "", "", nil, zerolog.Nop())
	_, err := tg.Updates(context.Background(), 0, time.Second)
	assert.Equal(t, ErrNotConfigured, err)
	assert.Equal(t, ErrNotConfigured, tg.Reply(context.Background(), 42, "hi"))
}

func TestCommand(t *testing.T) {
	tests := map[string]string{
		"/start":              "start",
		"/Start@HousingBot":   "start",
		"  /start now please": "start",
		"start":               "",
		"":                    "",
		"/":                   "",
		"hello /start":        "",
	}
	for text, want := range tests {
		assert.Equal(t, want, command(text), "text %q", text)
	}
}
