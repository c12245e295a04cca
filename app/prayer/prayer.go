// Package prayer composes devotional records for news headlines
// with the help of OpenAI chat completions.
package prayer

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"text/template"

	"github.com/Semior001/intercede/app/news"
	"github.com/Semior001/intercede/pkg/logx"
	"github.com/samber/lo"
	"github.com/sashabaranov/go-openai"
)

//go:embed data/system_prompt.txt
var defaultSystemPrompt string

//go:embed data/request.tmpl
var request string

var requestTmpl = template.Must(template.New("request").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(request))

// DefaultSystemPrompt returns the built-in instruction template.
func DefaultSystemPrompt() string { return defaultSystemPrompt }

// Defaults for the completion request.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 8192
	DefaultTemperature = 0.75
)

var (
	// ErrNoChoices is returned when the completion has no choices.
	ErrNoChoices = errors.New("no choices in response")
	// ErrMalformedResponse is returned when the completion content can't be interpreted.
	ErrMalformedResponse = errors.New("malformed response")
)

//go:generate moq -out mock_openai_client.go . OpenAIClient

// OpenAIClient is interface for OpenAI client with the possibility to mock it
type OpenAIClient interface {
	CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options defines parameters of the completion request.
type Options struct {
	BaseURL      string
	Model        string
	MaxTokens    int
	Temperature  float32
	SystemPrompt string
}

// Generator asks the model for a prayer per headline.
type Generator struct {
	log  *slog.Logger
	cl   OpenAIClient
	opts Options
}

// NewGenerator makes a new Generator with OpenAI client behind.
func NewGenerator(lg *slog.Logger, cl *http.Client, token string, opts Options) *Generator {
	if lg == nil {
		lg = slog.New(logx.NoOp())
	}

	config := openai.DefaultConfig(token)
	config.HTTPClient = cl
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}

	client := openai.NewClientWithConfig(config)

	return &Generator{
		log:  lg,
		cl:   &loggingClient{log: lg, cl: client},
		opts: opts.withDefaults(),
	}
}

func (o Options) withDefaults() Options {
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if strings.TrimSpace(o.SystemPrompt) == "" {
		o.SystemPrompt = defaultSystemPrompt
	}
	return o
}

// Generate makes a prayer record for each headline. Generated entries are
// paired with headlines by position only: the model is asked to keep the order.
func (g *Generator) Generate(ctx context.Context, headlines []news.Headline) ([]Record, error) {
	if len(headlines) == 0 {
		return []Record{}, nil
	}

	buf := &strings.Builder{}
	if err := requestTmpl.Execute(buf, headlines); err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model:       g.opts.Model,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.opts.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: strings.TrimRight(buf.String(), "\n")},
		},
	}

	resp, err := g.cl.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	generated, err := extract(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if len(generated) != len(headlines) {
		g.log.WarnContext(ctx, "model returned unexpected number of prayers",
			slog.Int("headlines", len(headlines)),
			slog.Int("prayers", len(generated)))
	}

	records := merge(headlines, generated)
	g.inspect(ctx, records)

	return records, nil
}

// inspect reports entries the model got wrong. Such entries are still returned.
func (g *Generator) inspect(ctx context.Context, records []Record) {
	for i, rec := range records {
		if missing := rec.missing(); len(missing) > 0 {
			g.log.WarnContext(ctx, "generated entry is incomplete",
				slog.Int("index", i),
				slog.Any("missing", missing))
		}

		if rec.Headline() != "" && rec.Title() != "" && rec.Headline() != rec.Title() {
			g.log.WarnContext(ctx, "generated entry may be out of order",
				slog.Int("index", i),
				slog.String("title", rec.Title()),
				slog.String("headline", rec.Headline()))
		}

		g.log.DebugContext(ctx, "prayer composed",
			slog.Int("index", i),
			slog.String("title", rec.Title()),
			slog.String("source", rec.Source()),
			slog.String("link", rec.Link()),
			slog.String("published", rec.Published()),
			slog.String("verse", rec.ESVVerse()))
	}
}

// merge overlays generated fields on the metadata of the headline at the
// same index. Extra headlines are dropped, extra generated entries are kept
// without metadata.
func merge(headlines []news.Headline, generated []map[string]any) []Record {
	return lo.Map(generated, func(gen map[string]any, i int) Record {
		meta := map[string]any{}
		if i < len(headlines) {
			meta = headlineFields(headlines[i])
		}
		return Record(lo.Assign(meta, gen))
	})
}

type loggingClient struct {
	log *slog.Logger
	cl  OpenAIClient
}

func (l *loggingClient) CreateChatCompletion(
	ctx context.Context,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	l.log.DebugContext(ctx, "sending request to chatGPT", slog.String("model", req.Model))
	resp, err := l.cl.CreateChatCompletion(ctx, req)
	l.log.DebugContext(ctx, "response received from chatGPT",
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
		slog.Any("err", err))
	return resp, err
}
