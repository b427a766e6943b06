package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/lingorelay/internal/config"
	"github.com/vovakirdan/lingorelay/internal/core"
	"github.com/vovakirdan/lingorelay/internal/metrics"
)

// Deps are the collaborators served over HTTP.
type Deps struct {
	Hub      core.Hub
	KB       core.KnowledgeBase
	Analyzer Analyzer
	Gatherer prometheus.Gatherer // nil disables /metrics
}

// NewServer builds the HTTP server: REST routes, /metrics and the /ws upgrade.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) (*stdhttp.Server, error) {
	readLimit, err := cfg.ReadLimitBytes()
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/health", healthHandler)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	kb := NewKBHandlers(deps.KB, deps.Analyzer, logger)
	router.GET("/kb", kb.ListKnowledge)
	router.POST("/analyze", kb.Analyze)

	ws := NewWSHandler(deps.Hub, WSOptions{
		ReadLimit:      readLimit,
		EventBuffer:    cfg.WS.EventBuffer,
		RatePerSecond:  cfg.WS.RatePerSecond,
		RateBurst:      cfg.WS.RateBurst,
		AllowedOrigins: cfg.AllowedOrigins,
	}, logger)

	// The upgrade bypasses gin: its writer would emit a status line onto the hijacked conn.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", ws)
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}, nil
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
