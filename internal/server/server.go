// Package server exposes the analysis relay over HTTP. Handlers only extract
// request fields, call into prompt/pdftext/nvidia/report, and translate the
// outcome to JSON.
package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/KiranTejz20005/masika/internal/config"
)

// Completer is the completion client surface handlers depend on; tests swap
// in a stub.
type Completer interface {
	Configured() bool
	CompleteJSON(ctx context.Context, userPrompt string) (map[string]any, error)
	CompleteText(ctx context.Context, system, user string, temperature, topP float64, maxTokens int) (string, error)
}

// Pinger is the optional database handle checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the process-wide, read-only dependencies shared by handlers.
type Server struct {
	cfg        *config.Config
	llm        Completer
	db         Pinger
	staticRoot string
}

// New wires a server. db may be nil when ENABLE_DB is off.
func New(cfg *config.Config, llm Completer, db Pinger) *Server {
	return &Server{
		cfg:        cfg,
		llm:        llm,
		db:         db,
		staticRoot: detectStaticRoot(),
	}
}

// Router builds the gin engine with the full middleware stack and routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(
		requestLogger(),
		gin.Recovery(),
		limitBodySize(10<<20), // room for PDF uploads
		cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
	)

	router.GET("/", s.handleIndex)
	router.GET("/health", s.handleHealth)
	router.GET("/readyz", s.handleReady)
	router.POST("/predict", s.handlePredict)
	router.POST("/analyze_diagnosis", s.handleAnalyzeDiagnosis)
	router.POST("/wellness_report", s.handleWellnessReport)

	return router
}

// requestLogger tags every request with an id and logs it on completion.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := uuid.NewString()
		c.Writer.Header().Set("X-Request-ID", id)
		c.Set("request_id", id)

		c.Next()

		log.Info().
			Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// detectStaticRoot locates the directory holding web/index.html, walking up
// from the working directory so the binary runs from the repo root or cmd/.
func detectStaticRoot() string {
	startDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	candidates := []string{
		startDir,
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}

	for _, dir := range candidates {
		if fileExists(filepath.Join(dir, "web", "index.html")) {
			return filepath.Join(dir, "web")
		}
	}

	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
