package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/lingorelay/internal/core"
	"github.com/vovakirdan/lingorelay/internal/store"
)

// Analyzer produces suggestions for free text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) ([]string, error)
}

// KBHandlers serves the knowledge base and the standalone analysis endpoint.
type KBHandlers struct {
	kb       core.KnowledgeBase
	analyzer Analyzer
	log      *zerolog.Logger
}

// NewKBHandlers creates a new knowledge base handlers instance.
func NewKBHandlers(kb core.KnowledgeBase, analyzer Analyzer, logger *zerolog.Logger) *KBHandlers {
	return &KBHandlers{kb: kb, analyzer: analyzer, log: logger}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AnalyzeRequest represents the analyze request body.
type AnalyzeRequest struct {
	Text string `json:"text" binding:"required"`
}

// AnalyzeResponse carries suggestions for the analyzed text.
type AnalyzeResponse struct {
	Suggestions []string `json:"suggestions"`
}

// ListKnowledge returns every knowledge entry.
// GET /kb
func (h *KBHandlers) ListKnowledge(c *gin.Context) {
	entries, err := h.kb.ListKnowledge(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list knowledge base")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load knowledge base"})
		return
	}
	if entries == nil {
		entries = []store.KnowledgeEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// Analyze returns suggestions for the posted text.
// POST /analyze
func (h *KBHandlers) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text is required"})
		return
	}

	suggestions, err := h.analyzer.Analyze(c.Request.Context(), req.Text)
	if err != nil {
		msg := "analysis failed"
		if errors.Is(err, core.ErrEmptyKnowledgeBase) {
			msg = "knowledge base is empty"
		}
		h.log.Error().Err(err).Msg("analyze request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msg})
		return
	}
	if len(suggestions) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no suggestions"})
		return
	}
	c.JSON(http.StatusOK, AnalyzeResponse{Suggestions: suggestions})
}
