// Package translate adapts a LibreTranslate-compatible HTTP API to core.Translator.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/lingorelay/internal/core"
)

// Config configures the translation endpoint.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client calls POST {URL}/translate.
type Client struct {
	endpoint string
	apiKey   string
	httpc    *http.Client
	log      *zerolog.Logger
}

var _ core.Translator = (*Client)(nil)

// New returns a client bound to cfg.URL.
func New(cfg Config, logger *zerolog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("translate: url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		endpoint: base + "/translate",
		apiKey:   cfg.APIKey,
		httpc:    &http.Client{Timeout: timeout},
		log:      logger,
	}, nil
}

type request struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type response struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

// Translate renders text in targetLang. Errors wrap core.ErrTranslationUnavailable.
func (c *Client) Translate(ctx context.Context, text, targetLang string) (string, error) {
	body, err := json.Marshal(request{
		Q:      text,
		Source: DetectSource(text),
		Target: targetLang,
		Format: "text",
		APIKey: c.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", core.ErrTranslationUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrTranslationUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrTranslationUnavailable, err)
	}
	defer resp.Body.Close()

	var out response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("%w: decode response: %v", core.ErrTranslationUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Debug().Int("status", resp.StatusCode).Str("upstream_error", out.Error).Msg("translation rejected")
		return "", fmt.Errorf("%w: status %d %s", core.ErrTranslationUnavailable, resp.StatusCode, out.Error)
	}
	if out.TranslatedText == "" && strings.TrimSpace(text) != "" {
		return "", fmt.Errorf("%w: empty translation", core.ErrTranslationUnavailable)
	}
	return out.TranslatedText, nil
}

// DetectSource guesses the ISO 639-1 code of text, or "auto" when unsure.
func DetectSource(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return "auto"
	}
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return "auto"
}
