package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-recipes/config"
)

// Request phases used as metric labels.
const (
	PhaseListing = "listing"
	PhaseDetail  = "detail"
)

var errNoResponse = errors.New("no response received")

// Fetcher downloads single pages through a shared colly collector. Rate
// limits and the HTTP transport are shared by every fetch.
type Fetcher struct {
	collector *colly.Collector
	metrics   *Metrics
}

// NewFetcher builds a fetcher configured from cfg. A nil transport selects
// the default pooled transport.
func NewFetcher(cfg *config.Config, metrics *Metrics, transport http.RoundTripper) (*Fetcher, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.ParseHTTPErrorResponse = true
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt

	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	collector.WithTransport(transport)

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Fetcher{
		collector: collector,
		metrics:   metrics,
	}, nil
}

// Fetch downloads url and returns the response body. Any non-2xx response
// or transport failure is returned as a *FetchError. Cancelling ctx aborts
// an in-flight request and returns ctx.Err().
func (f *Fetcher) Fetch(ctx context.Context, phase, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := f.collector.Clone()
	c.Context = ctx

	var (
		body   []byte
		status int
	)
	c.OnRequest(func(r *colly.Request) {
		f.metrics.IncRequest(phase)
		slog.Debug("fetching page",
			slog.String("phase", phase),
			slog.String("url", r.URL.String()),
		)
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	start := time.Now()
	err := c.Visit(url)
	f.metrics.ObserveDuration(time.Since(start))

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &FetchError{URL: url, StatusCode: status, Err: classifyError(err, status)}
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		cause := classifyError(nil, status)
		if cause == nil {
			cause = errNoResponse
		}
		return nil, &FetchError{URL: url, StatusCode: status, Err: cause}
	}
	return body, nil
}
