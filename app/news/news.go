// Package news retrieves top headlines from a syndication feed.
package news

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Semior001/intercede/pkg/logx"
	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"
	"github.com/samber/lo"
)

// DefaultURL is the Google News top stories feed.
const DefaultURL = "https://news.google.com/rss?hl=en-US&gl=US&ceid=US:en"

// DefaultSource is used when a feed item's source is missing or empty.
const DefaultSource = "Google News"

// Headline is a normalized feed entry.
type Headline struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Source    string `json:"source"`
	Published string `json:"published"`
}

// Options defines parameters of the feed to fetch.
type Options struct {
	URL           string
	DefaultSource string
}

// Fetcher retrieves headlines from a single feed.
type Fetcher struct {
	log    *slog.Logger
	cl     *http.Client
	parser *gofeed.Parser
	opts   Options
}

// NewFetcher makes a new Fetcher.
func NewFetcher(lg *slog.Logger, cl *http.Client, opts Options) *Fetcher {
	if lg == nil {
		lg = slog.New(logx.NoOp())
	}
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.DefaultSource == "" {
		opts.DefaultSource = DefaultSource
	}

	parser := gofeed.NewParser()
	parser.RSSTranslator = &sourceTranslator{}

	return &Fetcher{log: lg, cl: cl, parser: parser, opts: opts}
}

// Top returns at most count first entries of the feed, in feed order.
func (f *Fetcher) Top(ctx context.Context, count int) ([]Headline, error) {
	if count <= 0 {
		return []Headline{}, nil
	}

	f.log.DebugContext(ctx, "fetching feed", slog.String("url", f.opts.URL), slog.Int("count", count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.opts.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.cl.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.log.WarnContext(ctx, "failed to close response body", slog.Any("err", err))
		}
	}()

	ok := resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
	if !ok {
		return nil, fmt.Errorf("bad status code: %d", resp.StatusCode)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := feed.Items
	if len(items) > count {
		items = items[:count]
	}

	return lo.Map(items, func(item *gofeed.Item, _ int) Headline {
		return f.headline(item)
	}), nil
}

func (f *Fetcher) headline(item *gofeed.Item) Headline {
	src, ok := item.Custom[sourceKey]
	if !ok || src == "" {
		src = f.opts.DefaultSource
	}

	return Headline{
		Title:     item.Title,
		Link:      item.Link,
		Source:    src,
		Published: item.Published,
	}
}

const sourceKey = "source"

// sourceTranslator keeps the title of the RSS <source> element,
// which the default translator drops, in the item's custom fields.
type sourceTranslator struct {
	gofeed.DefaultRSSTranslator
}

// Translate implements gofeed.Translator.
func (t *sourceTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	result, err := t.DefaultRSSTranslator.Translate(feed)
	if err != nil {
		return nil, err
	}

	orig, ok := feed.(*rss.Feed)
	if !ok || len(orig.Items) != len(result.Items) {
		return result, nil
	}

	for i, item := range orig.Items {
		if item.Source == nil || item.Source.Title == "" {
			continue
		}
		if result.Items[i].Custom == nil {
			result.Items[i].Custom = map[string]string{}
		}
		result.Items[i].Custom[sourceKey] = item.Source.Title
	}

	return result, nil
}
