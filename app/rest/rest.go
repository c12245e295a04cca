// Package rest provides the HTTP API of the service.
package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Semior001/intercede/app/news"
	"github.com/Semior001/intercede/app/prayer"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

//go:generate moq -out mock_fetcher.go . Fetcher
//go:generate moq -out mock_generator.go . Generator

// Fetcher provides top headlines.
type Fetcher interface {
	Top(ctx context.Context, count int) ([]news.Headline, error)
}

// Generator makes prayer records for headlines.
type Generator interface {
	Generate(ctx context.Context, headlines []news.Headline) ([]prayer.Record, error)
}

// DefaultHeadlineCount is the number of headlines to pray for.
const DefaultHeadlineCount = 3

const shutdownTimeout = 5 * time.Second

// Server serves the HTTP API.
type Server struct {
	Addr           string
	Logger         *slog.Logger
	Fetcher        Fetcher
	Generator      Generator
	HeadlineCount  int
	AllowedOrigins []string
}

// HTTPError is an error that is rendered to the client as is.
type HTTPError struct {
	Status int
	Detail string
}

// Error returns the detail of the error.
func (e *HTTPError) Error() string { return fmt.Sprintf("%d: %s", e.Status, e.Detail) }

// Run starts the server and blocks until the context is canceled,
// then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr, err)
	}

	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	h, err := s.routes()
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("build routes: %w", err)
	}

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.Logger.Handler(), slog.LevelWarn),
	}

	ewg, ctx := errgroup.WithContext(ctx)
	ewg.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.Logger.Info("shutting down http server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	ewg.Go(func() error {
		s.Logger.Info("starting http server", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	return ewg.Wait()
}

func (s *Server) routes() (http.Handler, error) {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.HeadlineCount == 0 {
		s.HeadlineCount = DefaultHeadlineCount
	}

	rtr := gin.New()
	rtr.Use(
		requestID(),
		logger(s.Logger),
		recoverer(s.Logger),
	)

	if len(s.AllowedOrigins) > 0 {
		mw, err := corsMiddleware(s.AllowedOrigins)
		if err != nil {
			return nil, fmt.Errorf("cors: %w", err)
		}
		rtr.Use(mw)
	}

	rtr.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Detail: "Not Found"})
	})

	api := rtr.Group("/api")
	api.GET("/health", s.health)
	api.GET("/prayers", s.handle("Error generating prayers", s.prayers))

	return rtr, nil
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type prayersResponse struct {
	Prayers []prayer.Record `json:"prayers"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "healthy", Message: "Intercede API is running"})
}

func (s *Server) prayers(c *gin.Context) (any, error) {
	ctx := c.Request.Context()

	headlines, err := s.Fetcher.Top(ctx, s.HeadlineCount)
	if err != nil {
		s.Logger.WarnContext(ctx, "failed to fetch headlines", slog.Any("err", err))
	}

	if len(headlines) == 0 {
		return nil, &HTTPError{Status: http.StatusServiceUnavailable, Detail: "Could not fetch news headlines."}
	}

	records, err := s.Generator.Generate(ctx, headlines)
	if err != nil {
		return nil, err
	}

	if records == nil {
		records = []prayer.Record{}
	}

	return prayersResponse{Prayers: records}, nil
}

// handle renders the result of h as JSON. HTTPError is rendered as is,
// any other error becomes an internal error with its text prefixed by failMsg.
func (s *Server) handle(failMsg string, h func(*gin.Context) (any, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := h(c)
		if err == nil {
			c.JSON(http.StatusOK, resp)
			return
		}

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			s.Logger.ErrorContext(c.Request.Context(), "request failed", slog.Any("err", err))
			httpErr = &HTTPError{
				Status: http.StatusInternalServerError,
				Detail: fmt.Sprintf("%s: %v", failMsg, err),
			}
		}

		_ = c.Error(err)
		c.AbortWithStatusJSON(httpErr.Status, errorResponse{Detail: httpErr.Detail})
	}
}
