// Package httpapi exposes the RAG service over JSON HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ragqa/internal/domain"
)

// Service is the part of the RAG service the API serves.
type Service interface {
	domain.RAGService
	DocumentCount() int
}

type Server struct {
	e      *echo.Echo
	svc    Service
	logger *zap.Logger
}

// New builds the router. gatherer may be nil, in which case /metrics is not mounted.
func New(svc Service, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))

	s := &Server{e: e, svc: svc, logger: logger}
	e.GET("/health", s.health)
	e.POST("/documents", s.ingest)
	e.POST("/search", s.search)
	e.POST("/ask", s.ask)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- s.e.Start(addr)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return s.e.Shutdown(shutdownCtx)
	}
}

type documentIn struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type ingestRequest struct {
	Documents []documentIn `json:"documents"`
	Texts     []string     `json:"texts"`
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type resultOut struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Title      string  `json:"title,omitempty"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	Distance   float64 `json:"distance"`
}

type askResponse struct {
	Query   string      `json:"query"`
	Answer  string      `json:"answer"`
	Prompt  string      `json:"prompt"`
	Sources []resultOut `json:"sources"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "documents": s.svc.DocumentCount()})
}

func (s *Server) ingest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
	}
	docs := make([]domain.Document, 0, len(req.Documents)+len(req.Texts))
	for _, d := range req.Documents {
		docs = append(docs, domain.Document{ID: d.ID, Title: d.Title, Content: d.Content, Metadata: d.Metadata})
	}
	for _, t := range req.Texts {
		docs = append(docs, domain.Document{Content: t})
	}
	summary, err := s.svc.IngestDocuments(c.Request().Context(), docs)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"summary": summary, "documents": s.svc.DocumentCount()})
}

func (s *Server) search(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
	}
	res, err := s.svc.Query(c.Request().Context(), req.Query, req.TopK)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"results": toResults(res)})
}

func (s *Server) ask(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
	}
	ans, err := s.svc.Ask(c.Request().Context(), req.Query, req.TopK)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, askResponse{
		Query:   ans.Query,
		Answer:  ans.Text,
		Prompt:  ans.Prompt,
		Sources: toResults(ans.Sources),
	})
}

func toResults(res []domain.SearchResult) []resultOut {
	out := make([]resultOut, len(res))
	for i, r := range res {
		out[i] = resultOut{
			DocumentID: r.Chunk.DocumentID,
			ChunkID:    r.Chunk.ChunkID,
			Title:      r.Chunk.Title,
			Text:       r.Chunk.Text,
			Score:      r.Score,
			Distance:   r.Distance,
		}
	}
	return out
}

func (s *Server) fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("uri", c.Request().RequestURI), zap.Error(err))
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, domain.ErrDimensionMismatch),
		errors.Is(err, domain.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoDocuments), errors.Is(err, domain.ErrNoContext):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyCompletion),
		errors.Is(err, domain.ErrUnavailable),
		errors.Is(err, domain.ErrMissingAPIKey):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
