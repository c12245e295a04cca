package rest

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/Semior001/intercede/app/news"
	"github.com/Semior001/intercede/app/prayer"
	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var headlines = []news.Headline{
	{Title: "A", Link: "https://example.com/a", Source: "Reuters", Published: "Fri, 16 Oct 2026 07:00:00 GMT"},
	{Title: "B", Link: "https://example.com/b", Source: "AP News", Published: "Fri, 16 Oct 2026 06:30:00 GMT"},
	{Title: "C", Link: "https://example.com/c", Source: "Google News", Published: "Fri, 16 Oct 2026 06:00:00 GMT"},
}

func newServer(t *testing.T, f Fetcher, g Generator) http.Handler {
	s := &Server{Logger: slog.Default(), Fetcher: f, Generator: g}
	h, err := s.routes()
	require.NoError(t, err)
	return h
}

func do(h http.Handler, method, path string, hdrs map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, http.NoBody)
	for k, v := range hdrs {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	f := &FetcherMock{}
	g := &GeneratorMock{}

	w := do(newServer(t, f, g), http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","message":"Intercede API is running"}`, w.Body.String())
	assert.Empty(t, f.TopCalls())
	assert.Empty(t, g.GenerateCalls())
}

func TestServer_Prayers(t *testing.T) {
	f := &FetcherMock{TopFunc: func(ctx context.Context, count int) ([]news.Headline, error) {
		assert.Equal(t, 3, count)
		return headlines, nil
	}}
	g := &GeneratorMock{GenerateFunc: func(ctx context.Context, hs []news.Headline) ([]prayer.Record, error) {
		assert.Equal(t, headlines, hs)
		res := make([]prayer.Record, 0, len(hs))
		for _, h := range hs {
			res = append(res, prayer.Record{
				"title":      h.Title,
				"link":       h.Link,
				"source":     h.Source,
				"published":  h.Published,
				"headline":   h.Title,
				"esv_verse":  "verse",
				"reflection": "reflection",
				"prayer":     "Lord, you ordain all things for your glory... Amen.",
			})
		}
		return res, nil
	}}

	w := do(newServer(t, f, g), http.MethodGet, "/api/prayers", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Prayers []map[string]string `json:"prayers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Prayers, 3)

	for i, p := range resp.Prayers {
		assert.Equal(t, headlines[i].Title, p["title"])
		assert.Equal(t, headlines[i].Link, p["link"])
		assert.Equal(t, headlines[i].Source, p["source"])
		assert.Equal(t, headlines[i].Published, p["published"])
		assert.Equal(t, "verse", p["esv_verse"])
		assert.Equal(t, "reflection", p["reflection"])
		assert.Equal(t, "Lord, you ordain all things for your glory... Amen.", p["prayer"])
	}

	assert.Len(t, f.TopCalls(), 1)
	assert.Len(t, g.GenerateCalls(), 1)
}

func TestServer_Prayers_EmptyGenerated(t *testing.T) {
	f := &FetcherMock{TopFunc: func(context.Context, int) ([]news.Headline, error) { return headlines, nil }}
	g := &GeneratorMock{GenerateFunc: func(context.Context, []news.Headline) ([]prayer.Record, error) {
		return nil, nil
	}}

	w := do(newServer(t, f, g), http.MethodGet, "/api/prayers", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"prayers":[]}`, w.Body.String())
}

func TestServer_Prayers_NoHeadlines(t *testing.T) {
	tbl := []struct {
		name string
		err  error
	}{
		{name: "empty feed"},
		{name: "fetch error", err: errors.New("do request: connection refused")},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			f := &FetcherMock{TopFunc: func(context.Context, int) ([]news.Headline, error) {
				return nil, tt.err
			}}
			g := &GeneratorMock{}

			w := do(newServer(t, f, g), http.MethodGet, "/api/prayers", nil)
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.JSONEq(t, `{"detail":"Could not fetch news headlines."}`, w.Body.String())
			assert.Empty(t, g.GenerateCalls())
		})
	}
}

func TestServer_Prayers_GenerateFailed(t *testing.T) {
	f := &FetcherMock{TopFunc: func(context.Context, int) ([]news.Headline, error) { return headlines, nil }}

	t.Run("internal error", func(t *testing.T) {
		g := &GeneratorMock{GenerateFunc: func(context.Context, []news.Headline) ([]prayer.Record, error) {
			return nil, errors.New("parse response: malformed response: content is not a valid json")
		}}

		w := do(newServer(t, f, g), http.MethodGet, "/api/prayers", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"detail":"Error generating prayers: parse response: malformed response: content is not a valid json"}`,
			w.Body.String())
	})

	t.Run("structured error passes through", func(t *testing.T) {
		g := &GeneratorMock{GenerateFunc: func(context.Context, []news.Headline) ([]prayer.Record, error) {
			return nil, &HTTPError{Status: http.StatusBadGateway, Detail: "upstream is down"}
		}}

		w := do(newServer(t, f, g), http.MethodGet, "/api/prayers", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.JSONEq(t, `{"detail":"upstream is down"}`, w.Body.String())
	})

	t.Run("panic", func(t *testing.T) {
		g := &GeneratorMock{GenerateFunc: func(context.Context, []news.Headline) ([]prayer.Record, error) {
			panic("boom")
		}}

		w := do(newServer(t, f, g), http.MethodGet, "/api/prayers", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"detail":"Internal Server Error"}`, w.Body.String())
	})
}

//go:embed testdata/feed.xml
var feedXML []byte

func TestServer_Prayers_EndToEnd(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, err := w.Write(feedXML)
		require.NoError(t, err)
	}))
	defer feed.Close()

	tbl := []struct {
		name       string
		content    string
		wantStatus int
		check      func(t *testing.T, body []byte)
	}{
		{
			name: "prayers",
			content: `{"prayers":[
				{"headline":"A","esv_verse":"Psalm 46:1","reflection":"r1","prayer":"Lord, you ordain all things for your glory... Amen."},
				{"headline":"B","esv_verse":"Psalm 46:2","reflection":"r2","prayer":"Lord, you ordain all things for your glory... Amen."},
				{"headline":"C","esv_verse":"Psalm 46:3","reflection":"r3","prayer":"Lord, you ordain all things for your glory... Amen."}
			]}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp struct {
					Prayers []map[string]string `json:"prayers"`
				}
				require.NoError(t, json.Unmarshal(body, &resp))
				require.Len(t, resp.Prayers, 3)

				for i, p := range resp.Prayers {
					assert.Equal(t, headlines[i].Title, p["title"])
					assert.Equal(t, headlines[i].Title, p["headline"])
					assert.Equal(t, headlines[i].Link, p["link"])
					assert.Equal(t, headlines[i].Source, p["source"])
					assert.Equal(t, headlines[i].Published, p["published"])
					assert.NotEmpty(t, p["esv_verse"])
					assert.NotEmpty(t, p["reflection"])
					assert.Equal(t, "Lord, you ordain all things for your glory... Amen.", p["prayer"])
				}
			},
		},
		{
			name:       "not a json",
			content:    "Here are your prayers: Lord, have mercy.",
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, body []byte) {
				var resp struct {
					Detail string `json:"detail"`
				}
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.True(t, strings.HasPrefix(resp.Detail, "Error generating prayers:"), resp.Detail)
				assert.Contains(t, resp.Detail, prayer.ErrMalformedResponse.Error())
			},
		},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			ai := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/chat/completions", r.URL.Path)

				var req openai.ChatCompletionRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				require.Len(t, req.Messages, 2)
				assert.True(t, strings.HasSuffix(req.Messages[1].Content, "\n1. A\n2. B\n3. C"), req.Messages[1].Content)

				w.Header().Set("Content-Type", "application/json")
				require.NoError(t, json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
					Choices: []openai.ChatCompletionChoice{{
						Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: tt.content},
					}},
				}))
			}))
			defer ai.Close()

			f := news.NewFetcher(nil, feed.Client(), news.Options{URL: feed.URL, DefaultSource: "Google News"})
			g := prayer.NewGenerator(nil, ai.Client(), "secret-token", prayer.Options{BaseURL: ai.URL + "/v1"})

			w := do(newServer(t, f, g), http.MethodGet, "/api/prayers", nil)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			tt.check(t, w.Body.Bytes())
		})
	}
}

func TestServer_RequestID(t *testing.T) {
	h := newServer(t, &FetcherMock{}, &GeneratorMock{})

	w := do(h, http.MethodGet, "/api/health", nil)
	assert.Len(t, w.Header().Get(requestIDHeader), 36)

	w = do(h, http.MethodGet, "/api/health", map[string]string{requestIDHeader: "my-id"})
	assert.Equal(t, "my-id", w.Header().Get(requestIDHeader))
}

func TestServer_NotFound(t *testing.T) {
	w := do(newServer(t, &FetcherMock{}, &GeneratorMock{}), http.MethodGet, "/api/nothing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"detail":"Not Found"}`, w.Body.String())
}

func TestServer_CORS(t *testing.T) {
	s := &Server{
		Fetcher: &FetcherMock{TopFunc: func(context.Context, int) ([]news.Headline, error) {
			return nil, nil
		}},
		Generator:      &GeneratorMock{},
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
	}
	h, err := s.routes()
	require.NoError(t, err)

	w := do(h, http.MethodGet, "/api/health", map[string]string{"Origin": "http://localhost:5173"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = do(h, http.MethodOptions, "/api/prayers", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": http.MethodGet,
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(h, http.MethodOptions, "/api/prayers", map[string]string{
		"Origin":                         "http://localhost:5173",
		"Access-Control-Request-Method":  http.MethodGet,
		"Access-Control-Request-Headers": "Cache-Control, X-Custom",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "Cache-Control, X-Custom", w.Header().Get("Access-Control-Allow-Headers"))

	// foreign origins are served, just without cors headers
	w = do(h, http.MethodGet, "/api/health", map[string]string{"Origin": "http://other.example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","message":"Intercede API is running"}`, w.Body.String())
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = do(h, http.MethodGet, "/api/prayers", map[string]string{"Origin": "http://other.example.com"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"detail":"Could not fetch news headlines."}`, w.Body.String())
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_CORS_BadOrigin(t *testing.T) {
	s := &Server{AllowedOrigins: []string{"localhost:5173"}}
	_, err := s.routes()
	assert.ErrorContains(t, err, "cors")

	s = &Server{AllowedOrigins: []string{"*"}}
	h, err := s.routes()
	require.NoError(t, err)

	w := do(h, http.MethodGet, "/api/health", map[string]string{"Origin": "http://anything.example.com"})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Run(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &Server{Logger: slog.Default(), Fetcher: &FetcherMock{}, Generator: &GeneratorMock{}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.serve(ctx, ln) }()

	cl := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := cl.Get("http://" + ln.Addr().String() + "/api/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy","message":"Intercede API is running"}`, string(body))

	cancel()
	assert.NoError(t, <-errCh)
	cl.CloseIdleConnections()
}

func TestServer_Run_BadAddr(t *testing.T) {
	s := &Server{Addr: "definitely-not-an-address"}
	err := s.Run(context.Background())
	assert.ErrorContains(t, err, "listen definitely-not-an-address")
}
