// Package suggest adapts an OpenAI-compatible chat completion API to core.Suggester.
package suggest

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

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/lingorelay/internal/core"
	"github.com/vovakirdan/lingorelay/internal/store"
)

const defaultMaxSuggestions = 3

// Config configures the completion endpoint.
type Config struct {
	URL            string
	APIKey         string
	Model          string
	MaxSuggestions int
	Timeout        time.Duration
}

// Client calls POST {URL}/chat/completions.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	max      int
	httpc    *http.Client
	log      *zerolog.Logger
}

var _ core.Suggester = (*Client)(nil)

// New returns a client bound to cfg.URL.
func New(cfg Config, logger *zerolog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("suggest: url is required")
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = defaultMaxSuggestions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		endpoint: base + "/chat/completions",
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		max:      cfg.MaxSuggestions,
		httpc:    &http.Client{Timeout: cfg.Timeout},
		log:      logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []chatMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Suggest asks the model for short agent replies to text, grounded in corpus.
func (c *Client) Suggest(ctx context.Context, text string, corpus []store.KnowledgeEntry) ([]string, error) {
	if len(corpus) == 0 {
		return nil, core.ErrEmptyKnowledgeBase
	}

	body, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: BuildPrompt(corpus, c.max)},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", core.ErrAnalysisFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrAnalysisFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrAnalysisFailed, err)
	}
	defer resp.Body.Close()

	var out completionResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out)
	if resp.StatusCode != http.StatusOK {
		msg := ""
		if out.Error != nil {
			msg = out.Error.Message
		}
		c.log.Debug().Int("status", resp.StatusCode).Str("upstream_error", msg).Msg("completion rejected")
		return nil, fmt.Errorf("%w: status %d %s", core.ErrAnalysisFailed, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode response: %v", core.ErrAnalysisFailed, decodeErr)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", core.ErrAnalysisFailed)
	}
	return ParseSuggestions(out.Choices[0].Message.Content, c.max), nil
}

// BuildPrompt renders the system prompt carrying the knowledge corpus.
func BuildPrompt(corpus []store.KnowledgeEntry, limit int) string {
	var b strings.Builder
	b.WriteString("You assist customer support agents. Using only the knowledge base below, ")
	fmt.Fprintf(&b, "propose at most %d short replies the agent could send to the customer's last message. ", limit)
	b.WriteString("Write one reply per line with no numbering or commentary.\n\nKnowledge base:\n")
	for _, e := range corpus {
		fmt.Fprintf(&b, "- %s: %s\n", e.Topic, strings.TrimSpace(e.Content))
	}
	return b.String()
}

// ParseSuggestions splits a completion into at most limit trimmed lines,
// dropping list markers and blanks.
func ParseSuggestions(content string, limit int) []string {
	if limit <= 0 {
		limit = defaultMaxSuggestions
	}
	lines := lo.FilterMap(strings.Split(content, "\n"), func(line string, _ int) (string, bool) {
		line = stripMarker(strings.TrimSpace(line))
		return line, line != ""
	})
	if len(lines) > limit {
		lines = lines[:limit]
	}
	return lines
}

func stripMarker(line string) string {
	for _, p := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, p) {
			return strings.TrimSpace(line[len(p):])
		}
	}
	// "1. " / "2) " style numbering; "10.30 ..." is text, not a marker.
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(line) && (line[i] == '.' || line[i] == ')') && line[i+1] == ' ' {
		return strings.TrimSpace(line[i+2:])
	}
	return line
}
