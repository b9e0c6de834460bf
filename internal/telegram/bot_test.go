package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{BotToken: "t"}.Enabled())

	assert.Error(t, Config{ChatID: "42"}.Validate())
	assert.Error(t, Config{BotToken: "t"}.Validate())
	assert.Error(t, Config{BotToken: "t", ChatID: "42", Cooldown: -1}.Validate())
	assert.NoError(t, Config{BotToken: "t", ChatID: "42"}.Validate())
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottoken/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	bot, err := NewBot(Config{BotToken: "token", ChatID: "42", APIURL: srv.URL + "/"})
	require.NoError(t, err)

	require.NoError(t, bot.SendMessage(context.Background(), "<b>hi</b>"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "<b>hi</b>", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendPhoto(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottoken/sendPhoto", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "42", r.FormValue("chat_id"))
		assert.Equal(t, "caption", r.FormValue("caption"))

		f, hdr, err := r.FormFile("photo")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		assert.NoError(t, err)
		assert.Equal(t, "motion_frame.jpg", hdr.Filename)
		assert.Equal(t, []byte{0xff, 0xd8}, data)

		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	bot, err := NewBot(Config{BotToken: "token", ChatID: "42", APIURL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, bot.SendPhoto(context.Background(), []byte{0xff, 0xd8}, "caption"))
}

func TestAPIErrorIsReturned(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	t.Cleanup(srv.Close)

	bot, err := NewBot(Config{BotToken: "token", ChatID: "42", APIURL: srv.URL})
	require.NoError(t, err)

	err = bot.SendMessage(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}
