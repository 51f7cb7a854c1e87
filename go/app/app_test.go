package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KevinXing/housing-alert/go/config"
	"github.com/KevinXing/housing-alert/go/crawler"
	"github.com/KevinXing/housing-alert/go/listing"
	"github.com/KevinXing/housing-alert/go/state"
)

func TestRunOnce_EndToEnd(t *testing.T) {
	var messages []string
	telegram := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ChatID string `json:"chat_id"`
			Text   string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "-1001", body.ChatID)
		messages = append(messages, body.Text)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer telegram.Close()

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/logement/1":
			w.Write([]byte(`<button class="svelte-eq6rxe fr-btn" title="Ajouter à ma sélection"></button>`))
		case "/logement/2":
			w.Write([]byte(`<p>rien</p>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer site.Close()

	dir := t.TempDir()
	addresses := filepath.Join(dir, "addresses.txt")
	content := fmt.Sprintf("Fetched address for %[1]s/logement/1: 1 rue A, Paris\nnoise\nFetched address for %[1]s/logement/2: 2 rue B, Ivry\nFetched address for %[1]s/logement/3: 3 rue C, Pantin\n", site.URL)
	require.NoError(t, os.WriteFile(addresses, []byte(content), 0o644))

	cfg := &config.Config{
		TelegramToken:    "123:abc",
		TelegramChatID:   "-1001",
		TelegramAPIURL:   telegram.URL,
		AddressesFile:    addresses,
		StateBackend:     "file",
		StateFile:        filepath.Join(dir, "state.json"),
		Fetcher:          "colly",
		FetchTimeout:     5 * time.Second,
		FetchConcurrency: 2,
	}
	a, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, a.Commands)
	assert.Equal(t, telegram.URL, a.Commands.Telegram.APIURL)

	result, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, listing.NewlyAvailable, result.Events[0].Kind)
	assert.True(t, result.Notified)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "1 rue A, Paris")

	saved, err := state.NewFileStore(cfg.StateFile).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, saved, 3)
	assert.True(t, *saved[site.URL+"/logement/1"])
	assert.Nil(t, saved[site.URL+"/logement/2"])

	result, err = a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Events)
	assert.Len(t, messages, 1)
}

func TestRunOnce_MissingAddressFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		AddressesFile: filepath.Join(dir, "missing.txt"),
		StateBackend:  "file",
		StateFile:     filepath.Join(dir, "state.json"),
		FetchTimeout:  time.Second,
	}
	a, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	_, err = a.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestFactories(t *testing.T) {
	store, err := NewStore(&config.Config{StateBackend: "file", StateFile: "s.json"})
	require.NoError(t, err)
	assert.IsType(t, &state.FileStore{}, store)

	store, err = NewStore(&config.Config{StateBackend: "s3", S3Bucket: "b", S3Key: "k", AWSRegion: "us-west-2"})
	require.NoError(t, err)
	assert.IsType(t, &state.S3Store{}, store)

	store, err = NewStore(&config.Config{StateBackend: "dynamodb", DynamoDBTable: "t", AWSRegion: "us-west-2"})
	require.NoError(t, err)
	assert.IsType(t, &state.DynamoStore{}, store)

	_, err = NewStore(&config.Config{StateBackend: "redis"})
	assert.Error(t, err)

	fetcher, err := NewFetcher(&config.Config{Fetcher: "colly", FetchTimeout: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &crawler.CollyFetcher{}, fetcher)

	_, err = NewFetcher(&config.Config{Fetcher: "curl"})
	assert.Error(t, err)
}
