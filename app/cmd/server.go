// Package cmd contains commands for the application.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Semior001/intercede/app/news"
	"github.com/Semior001/intercede/app/prayer"
	"github.com/Semior001/intercede/app/rest"
	"github.com/Semior001/intercede/pkg/logx"
	"github.com/go-pkgz/requester"
	"github.com/go-pkgz/requester/middleware"
	"golang.org/x/sync/errgroup"
)

// Server is a command to run the HTTP API.
type Server struct {
	Listen      string   `long:"listen" env:"LISTEN" default:"0.0.0.0:8000" description:"address to listen on"`
	CORSOrigins []string `long:"cors-origins" env:"CORS_ORIGINS" env-delim:"," default:"http://localhost:5173" default:"http://localhost:3000" description:"allowed CORS origins, * to allow any"`
	Headlines   int      `long:"headlines" env:"HEADLINES" default:"3" description:"number of headlines to pray for"`

	Feed struct {
		URL           string        `long:"url" env:"URL" default:"https://news.google.com/rss?hl=en-US&gl=US&ceid=US:en" description:"RSS feed with top stories"`
		DefaultSource string        `long:"default-source" env:"DEFAULT_SOURCE" default:"Google News" description:"source name for items without one"`
		Timeout       time.Duration `long:"timeout" env:"TIMEOUT" default:"10s" description:"timeout for feed requests"`
	} `group:"feed" namespace:"feed" env-namespace:"FEED"`

	OpenAI struct {
		Token       string        `long:"token" env:"API_KEY" required:"true" description:"OpenAI token"`
		Model       string        `long:"model" env:"MODEL" default:"gpt-4o-mini" description:"model to use"`
		BaseURL     string        `long:"base-url" env:"BASE_URL" description:"OpenAI-compatible API base URL"`
		MaxTokens   int           `long:"max-tokens" env:"MAX_TOKENS" default:"8192" description:"max tokens in response"`
		Temperature float32       `long:"temperature" env:"TEMPERATURE" default:"0.75" description:"sampling temperature"`
		Timeout     time.Duration `long:"timeout" env:"TIMEOUT" default:"5m" description:"timeout for OpenAI calls"`
		PromptFile  string        `long:"prompt-file" env:"PROMPT_FILE" description:"file with the system prompt, embedded one is used if empty"`
	} `group:"openai" namespace:"openai" env-namespace:"OPENAI"`

	Version string `no-flag:"true"`
}

// Execute runs the command.
func (s Server) Execute(_ []string) error {
	lg := slog.Default()

	systemPrompt, err := s.systemPrompt()
	if err != nil {
		return fmt.Errorf("load system prompt: %w", err)
	}

	fetcher := news.NewFetcher(
		lg.With(slog.String("prefix", "news")),
		s.httpClient(lg.With(slog.String("prefix", "feed-client")), s.Feed.Timeout),
		news.Options{URL: s.Feed.URL, DefaultSource: s.Feed.DefaultSource},
	)

	generator := prayer.NewGenerator(
		lg.With(slog.String("prefix", "prayer")),
		s.httpClient(lg.With(slog.String("prefix", "openai-client")), s.OpenAI.Timeout),
		s.OpenAI.Token,
		prayer.Options{
			BaseURL:      s.OpenAI.BaseURL,
			Model:        s.OpenAI.Model,
			MaxTokens:    s.OpenAI.MaxTokens,
			Temperature:  s.OpenAI.Temperature,
			SystemPrompt: systemPrompt,
		},
	)

	srv := &rest.Server{
		Addr:           s.Listen,
		Logger:         lg.With(slog.String("prefix", "rest")),
		Fetcher:        fetcher,
		Generator:      generator,
		HeadlineCount:  s.Headlines,
		AllowedOrigins: s.CORSOrigins,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	ewg, ctx := errgroup.WithContext(ctx)
	ewg.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)

		select {
		case sig := <-sig:
			lg.Warn("caught signal, stopping", slog.String("signal", sig.String()))
			stop()
			return ctx.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	ewg.Go(func() error {
		lg.Info("starting server", slog.String("version", s.Version), slog.String("model", s.OpenAI.Model))
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("run server: %w", err)
		}
		lg.Warn("server stopped")
		return nil
	})

	if err := ewg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (s Server) systemPrompt() (string, error) {
	if s.OpenAI.PromptFile == "" {
		return prayer.DefaultSystemPrompt(), nil
	}

	bts, err := os.ReadFile(s.OpenAI.PromptFile)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.OpenAI.PromptFile, err)
	}

	return string(bts), nil
}

func (s Server) httpClient(lg *slog.Logger, timeout time.Duration) *http.Client {
	ua := "intercede"
	if s.Version != "" {
		ua += "/" + s.Version
	}

	return requester.New(
		http.Client{Timeout: timeout},
		middleware.Header("User-Agent", ua),
		logx.LoggingRoundTripper(lg, logx.RoundTripperOpts{
			Level:         slog.LevelDebug,
			SecretHeaders: []string{"Authorization"},
		}),
	).Client()
}
