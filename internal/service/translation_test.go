package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "chitchat/internal/errors"
	"chitchat/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanguageCode(t *testing.T) {
	assert.Equal(t, "es", LanguageCode("Spanish"))
	assert.Equal(t, "ja", LanguageCode("  japanese "))
	assert.Equal(t, "en", LanguageCode("Klingon"))
}

func TestFallbackTranslate(t *testing.T) {
	tests := []struct {
		text string
		code string
		want string
	}{
		{"Hello", "es", "hola"},
		{"how are you", "fr", "comment ça va?"},
		{"well hello there", "de", "hallo"},
		{"Thank you so much", "it", "grazie"},
		{"good morning", "fr", "bonjour"},
		{"see you later", "es", "see you later"},
		{"hello", "en", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.text+"/"+tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackTranslate(tt.text, tt.code))
		})
	}
}

func TestCleanTranslation(t *testing.T) {
	assert.Equal(t, "hola", cleanTranslation(`  "hola" `))
	assert.Equal(t, "bonjour", cleanTranslation("Translation: bonjour"))
	assert.Equal(t, "ciao", cleanTranslation("'ciao'"))
}

func geminiReply(text string) string {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	})
	return string(body)
}

func TestTranslator_UsesAPI(t *testing.T) {
	var gotKey, gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			gotPrompt = req.Contents[0].Parts[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(geminiReply(`"¿Dónde está la biblioteca?"`)))
	}))
	defer server.Close()

	registry := metrics.NewRegistry()
	tr := NewTranslator(TranslatorConfig{Endpoint: server.URL, APIKey: "k-123"}, registry, quietLogger())

	out, err := tr.Translate(context.Background(), "Where is the library?", "Spanish")
	require.NoError(t, err)
	assert.Equal(t, "¿Dónde está la biblioteca?", out)
	assert.Equal(t, "k-123", gotKey)
	assert.Contains(t, gotPrompt, "to Spanish")
	assert.Contains(t, gotPrompt, `"Where is the library?"`)
	assert.Equal(t, float64(1), registry.CounterValue(metrics.TranslationsTotal, map[string]string{"source": "api"}))
}

func TestTranslator_FallsBackOnFailureAndOpensBreaker(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	registry := metrics.NewRegistry()
	tr := NewTranslator(TranslatorConfig{
		Endpoint:        server.URL,
		APIKey:          "k",
		BreakerFailures: 1,
		BreakerTimeout:  time.Hour,
	}, registry, quietLogger())

	for i := 0; i < 3; i++ {
		out, err := tr.Translate(context.Background(), "hello", "French")
		require.NoError(t, err)
		assert.Equal(t, "bonjour", out)
	}
	assert.Equal(t, int32(1), hits.Load(), "an open breaker stops calling the API")
	assert.Equal(t, float64(3), registry.CounterValue(metrics.TranslationsTotal, map[string]string{"source": "fallback"}))
	open, ok := registry.GaugeValue(metrics.TranslationBreaker, map[string]string{"breaker": "translation"})
	require.True(t, ok)
	assert.Equal(t, float64(1), open)
}

func TestTranslator_FallsBackOnEchoOrEmptyReply(t *testing.T) {
	replies := []string{geminiReply("thank you"), `{"candidates":[]}`}
	for _, reply := range replies {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(reply))
		}))

		tr := NewTranslator(TranslatorConfig{Endpoint: server.URL, APIKey: "k"}, metrics.NewRegistry(), quietLogger())
		out, err := tr.Translate(context.Background(), "thank you", "German")
		require.NoError(t, err)
		assert.Equal(t, "danke", out)
		server.Close()
	}
}

func TestTranslator_WithoutAPIKeyUsesDictionary(t *testing.T) {
	tr := NewTranslator(TranslatorConfig{Endpoint: "http://127.0.0.1:1"}, metrics.NewRegistry(), quietLogger())

	out, err := tr.Translate(context.Background(), "Good morning", "Russian")
	require.NoError(t, err)
	assert.Equal(t, "доброе утро", out)
}

func TestTranslator_RequiresInput(t *testing.T) {
	tr := NewTranslator(TranslatorConfig{}, metrics.NewRegistry(), quietLogger())

	_, err := tr.Translate(context.Background(), " ", "Spanish")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))

	_, err = tr.Translate(context.Background(), "hello", strings.Repeat(" ", 3))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
}
