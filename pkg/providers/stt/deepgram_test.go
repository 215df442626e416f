package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepgramSTT(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"deepgram text"}]}]}}`))
	}))
	defer server.Close()

	s := &DeepgramSTT{apiKey: "test-key", url: server.URL}
	result, err := s.Transcribe(context.Background(), []byte{0, 1, 2}, 16000, "en")
	require.NoError(t, err)
	assert.Equal(t, "deepgram text", result)
	assert.Equal(t, "deepgram-stt", s.Name())
}

func TestDeepgramSTTEmptyResultIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":{"channels":[]}}`))
	}))
	defer server.Close()

	s := &DeepgramSTT{apiKey: "test-key", url: server.URL}
	result, err := s.Transcribe(context.Background(), []byte{0}, 16000, "")
	require.NoError(t, err)
	assert.Empty(t, result)
}
