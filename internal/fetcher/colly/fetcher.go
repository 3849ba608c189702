// Package collyfetcher implements quote.Transport using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/quote-harvester/internal/quote"
)

const maxRedirects = 10

// Config controls collector behavior.
type Config struct {
	// BaseURL is the collection's landing page, e.g. https://bash.im.
	BaseURL string
	// QuotePath is a fmt pattern appended to BaseURL, e.g. /quote/%d.
	QuotePath string
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements quote.Transport using the Colly collector.
type Fetcher struct {
	cfg       Config
	landing   *url.URL
	transport http.RoundTripper
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// visitState collects what the hooks observed for one visit.
type visitState struct {
	landing    *url.URL
	redirected bool
	responded  bool
	statusCode int
	finalURL   string
	body       []byte
	err        error
}

// New builds a Fetcher.
func New(cfg Config) (*Fetcher, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base url is required")
	}
	landing, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if landing.Scheme == "" || landing.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if cfg.QuotePath == "" {
		cfg.QuotePath = "/quote/%d"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Fetcher{
		cfg:       cfg,
		landing:   landing,
		transport: newHTTPTransport(),
	}, nil
}

// QuoteURL returns the per-identifier document URL.
func (f *Fetcher) QuoteURL(id int64) string {
	return f.landing.String() + fmt.Sprintf(f.cfg.QuotePath, id)
}

// Fetch retrieves one identifier. A redirect to the landing page means the
// identifier does not exist and is reported as quote.StatusRedirected.
func (f *Fetcher) Fetch(ctx context.Context, id int64) (quote.FetchResult, error) {
	target := f.QuoteURL(id)
	state, err := f.visit(ctx, target)
	if err == nil && state.redirected {
		return quote.FetchResult{Status: quote.StatusRedirected, URL: target}, nil
	}
	if err != nil {
		return quote.FetchResult{}, &quote.TransportError{ID: id, StatusCode: state.statusCode, Err: err}
	}
	return quote.FetchResult{Status: quote.StatusOK, URL: state.finalURL, Content: state.body}, nil
}

// FetchLanding retrieves the collection's landing page.
func (f *Fetcher) FetchLanding(ctx context.Context) ([]byte, error) {
	state, err := f.visit(ctx, f.landing.String()+"/")
	if err != nil {
		return nil, fmt.Errorf("fetch landing page: %w", err)
	}
	if state.redirected {
		return nil, errors.New("fetch landing page: redirected to itself")
	}
	return state.body, nil
}

func (f *Fetcher) visit(ctx context.Context, target string) (*visitState, error) {
	state := &visitState{landing: f.landing}
	collector := f.buildCollector(ctx, state)
	err := f.runCollector(ctx, collector, target, state)
	return state, err
}

func (f *Fetcher) buildCollector(ctx context.Context, state *visitState) *colly.Collector {
	collector := colly.NewCollector(colly.Async(false), colly.StdlibContext(ctx))
	// A fresh collector per visit keeps redirect state isolated between workers;
	// the shared transport keeps connection pooling.
	collector.AllowURLRevisit = true
	collector.WithTransport(f.transport)
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.SetRedirectHandler(state.checkRedirect)

	f.configureCollectorHooks(collector, state)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, state *visitState) {
	hooks.OnResponse(func(r *colly.Response) {
		state.responded = true
		state.statusCode = r.StatusCode
		state.finalURL = r.Request.URL.String()
		state.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			state.statusCode = r.StatusCode
		}
		state.err = err
	})
}

// checkRedirect stops at a redirect aimed at the landing page and follows any other.
func (s *visitState) checkRedirect(req *http.Request, via []*http.Request) error {
	if isLanding(s.landing, req.URL) {
		s.redirected = true
		return http.ErrUseLastResponse
	}
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, target string, state *visitState) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		// The request shares ctx, so Visit unwinds promptly; wait so state is not read concurrently.
		<-done
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if state.redirected {
			return nil
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if state.err != nil {
			return fmt.Errorf("colly response failed: %w", state.err)
		}
		if !state.responded {
			return errors.New("colly returned no response")
		}
		return nil
	}
}

func isLanding(landing, target *url.URL) bool {
	if target == nil {
		return false
	}
	if target.Host != "" && normalizeHost(target.Host) != normalizeHost(landing.Host) {
		return false
	}
	landingPath := strings.TrimRight(landing.Path, "/")
	return strings.TrimRight(target.Path, "/") == landingPath
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
	}
}
