package transcribe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suykerbuyk/focusbot/internal/config"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_GROQ_KEY", "gsk-test")
	return New(config.TranscriptionConfig{
		BaseURL:        srv.URL + "/openai/v1/",
		APIKeyEnv:      "TEST_GROQ_KEY",
		Model:          "whisper-large-v3-turbo",
		TimeoutSeconds: 5,
	}, srv.Client())
}

func TestTranscribe(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))

		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-large-v3-turbo", r.FormValue("model"))
		f, hdr, err := r.FormFile("file")
		if assert.NoError(t, err) {
			defer f.Close()
			data, _ := io.ReadAll(f)
			assert.Equal(t, "OggS-bytes", string(data))
			assert.Equal(t, "voice.ogg", hdr.Filename)
			assert.Equal(t, "audio/ogg", hdr.Header.Get("Content-Type"))
		}
		w.Write([]byte(`{"text":"  take a new note about gardens \n"}`))
	})

	got, err := c.Transcribe(context.Background(), []byte("OggS-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "take a new note about gardens", got)
}

func TestTranscribe_Empty(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"   "}`))
	})
	_, err := c.Transcribe(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrEmptyTranscript)
}

func TestTranscribe_APIError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad audio"}`, http.StatusBadRequest)
	})
	_, err := c.Transcribe(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "bad audio")
}
