package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chitchat/internal/constants"
	apperrors "chitchat/internal/errors"
	"chitchat/internal/metrics"
	"chitchat/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
)

// DefaultTranslationEndpoint is a generateContent-style model endpoint.
const DefaultTranslationEndpoint = "https://generativelanguage.googleapis.com/v1/models/gemini-1.5-flash:generateContent"

var languageCodes = map[string]string{
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"russian":    "ru",
	"chinese":    "zh",
	"japanese":   "ja",
	"korean":     "ko",
	"arabic":     "ar",
	"hindi":      "hi",
	"english":    "en",
}

// LanguageCode maps a language name to its ISO 639-1 code. Unknown names
// map to English.
func LanguageCode(language string) string {
	if code, ok := languageCodes[strings.ToLower(strings.TrimSpace(language))]; ok {
		return code
	}
	return "en"
}

type phrase struct {
	text         string
	translations map[string]string
}

// fallbackPhrases is searched in order; the first phrase contained in the
// text wins.
var fallbackPhrases = []phrase{
	{"hello", map[string]string{
		"es": "hola", "fr": "bonjour", "de": "hallo", "it": "ciao", "zh": "你好", "ja": "こんにちは",
		"ko": "안녕하세요", "ar": "مرحبا", "hi": "नमस्ते", "ru": "привет", "pt": "olá",
	}},
	{"how are you", map[string]string{
		"es": "¿cómo estás?", "fr": "comment ça va?", "de": "wie geht es dir?", "it": "come stai?",
		"zh": "你好吗", "ja": "お元気ですか", "ko": "어떻게 지내세요?", "ar": "كيف حالك؟",
		"hi": "आप कैसे हैं?", "ru": "как дела?", "pt": "como você está?",
	}},
	{"thank you", map[string]string{
		"es": "gracias", "fr": "merci", "de": "danke", "it": "grazie", "zh": "谢谢", "ja": "ありがとう",
		"ko": "감사합니다", "ar": "شكرا لك", "hi": "धन्यवाद", "ru": "спасибо", "pt": "obrigado",
	}},
	{"good morning", map[string]string{
		"es": "buenos días", "fr": "bonjour", "de": "guten morgen", "it": "buongiorno", "zh": "早上好",
		"ja": "おはようございます", "ko": "좋은 아침", "ar": "صباح الخير", "hi": "सुप्रभात",
		"ru": "доброе утро", "pt": "bom dia",
	}},
}

// FallbackTranslate looks text up in the built-in phrase dictionary: first
// as a whole phrase, then as a contained phrase. Text with no match is
// returned unchanged.
func FallbackTranslate(text, langCode string) string {
	lower := strings.ToLower(strings.TrimSpace(text))

	for _, p := range fallbackPhrases {
		if p.text == lower {
			if t, ok := p.translations[langCode]; ok {
				return t
			}
		}
	}
	for _, p := range fallbackPhrases {
		if strings.Contains(lower, p.text) {
			if t, ok := p.translations[langCode]; ok {
				return t
			}
		}
	}
	return text
}

// TranslatorConfig configures the external translation endpoint.
type TranslatorConfig struct {
	Endpoint        string
	APIKey          string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Translator calls an external text-generation endpoint through a circuit
// breaker and falls back to the phrase dictionary whenever that call fails
// or returns nothing useful.
type Translator struct {
	config   TranslatorConfig
	client   *http.Client
	breaker  *circuitbreaker.CircuitBreaker
	registry *metrics.Registry
	logger   *logrus.Logger
}

func NewTranslator(config TranslatorConfig, registry *metrics.Registry, logger *logrus.Logger) *Translator {
	if config.Endpoint == "" {
		config.Endpoint = DefaultTranslationEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = constants.DefaultTranslationTimeoutSec * time.Second
	}
	return &Translator{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		breaker: circuitbreaker.New("translation", circuitbreaker.Config{
			MaxFailures:      config.BreakerFailures,
			Timeout:          config.BreakerTimeout,
			HalfOpenMaxCalls: constants.CBHalfOpenMaxCalls,
		}, logger),
		registry: metrics.OrGlobal(registry),
		logger:   logger,
	}
}

// Translate returns content translated into targetLanguage. It never fails
// because of the external service; only missing input is an error.
func (t *Translator) Translate(ctx context.Context, content, targetLanguage string) (string, error) {
	if strings.TrimSpace(content) == "" || strings.TrimSpace(targetLanguage) == "" {
		return "", apperrors.NewValidationError("content", "", "Content and target language are required")
	}
	code := LanguageCode(targetLanguage)

	if t.config.APIKey == "" {
		t.registry.IncrementCounter(metrics.TranslationsTotal, map[string]string{"source": "fallback"}, "Translations served by source")
		return FallbackTranslate(content, code), nil
	}

	var translated string
	err := t.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		translated, err = t.callAPI(ctx, content, targetLanguage)
		return err
	})
	t.publishBreaker()

	source := "api"
	switch {
	case err != nil:
		source = "fallback"
		apperrors.Entry(t.logger, err).WithField(LogFieldLanguage, code).Warn("Translation API failed, using fallback dictionary")
		translated = FallbackTranslate(content, code)
	case strings.TrimSpace(translated) == "" || translated == content:
		source = "fallback"
		t.logger.WithField(LogFieldLanguage, code).Debug("Translation API returned nothing useful, using fallback dictionary")
		translated = FallbackTranslate(content, code)
	}

	t.registry.IncrementCounter(metrics.TranslationsTotal, map[string]string{"source": source}, "Translations served by source")
	return translated, nil
}

func (t *Translator) publishBreaker() {
	stats := t.breaker.GetStats()
	open := 0.0
	if stats.State == circuitbreaker.StateOpen {
		open = 1
	}
	labels := map[string]string{"breaker": stats.Name}
	t.registry.SetGauge(metrics.TranslationBreaker, open, labels, "1 while the translation breaker rejects calls")
	t.registry.SetGauge(metrics.TranslationFailures, float64(stats.Failures), labels, "Consecutive translation API failures")
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig generationConfig  `json:"generationConfig"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content generateContent `json:"content"`
	} `json:"candidates"`
}

func (t *Translator) callAPI(ctx context.Context, content, targetLanguage string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []generateContent{{Parts: []generatePart{{
			Text: fmt.Sprintf("Translate the following text to %s. Return ONLY the translated text without any additional context, explanation or quotes: %q", targetLanguage, content),
		}}}},
		GenerationConfig: generationConfig{Temperature: 0.1, MaxOutputTokens: 800},
	})
	if err != nil {
		return "", err
	}

	endpoint, err := url.Parse(t.config.Endpoint)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeTranslationAPI, "invalid translation endpoint")
	}
	q := endpoint.Query()
	q.Set("key", t.config.APIKey)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeTranslationAPI, "translation request failed").AsRetryable()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", apperrors.New(apperrors.ErrCodeTranslationAPI, fmt.Sprintf("translation API returned status %d", resp.StatusCode)).
			WithContext(LogFieldStatusCode, resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeTranslationAPI, "failed to decode translation response")
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return cleanTranslation(parsed.Candidates[0].Content.Parts[0].Text), nil
}

// cleanTranslation strips one pair of surrounding quotes and anything up to
// a "Translation:" label.
func cleanTranslation(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(strings.TrimPrefix(text, `"`), `'`)
	text = strings.TrimSuffix(strings.TrimSuffix(text, `"`), `'`)
	if _, after, found := strings.Cut(text, "Translation:"); found {
		text = after
	}
	return strings.TrimSpace(text)
}
