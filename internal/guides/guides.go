// Package guides assembles readable gov.uk guidance for a visa route.
package guides

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/visa-navigator/internal/fetch"
	"github.com/jonathan/visa-navigator/internal/metrics"
	"github.com/jonathan/visa-navigator/internal/tracing"
	"github.com/jonathan/visa-navigator/internal/types"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel page fetches per guide.
const DefaultConcurrency = 4

// ErrNoPages is returned when no reference page of a route could be fetched.
var ErrNoPages = errors.New("no guidance pages could be fetched")

// Fetcher retrieves one page. *fetch.CachedFetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url, routeID string) (*fetch.CachedResult, error)
}

// Discoverer finds guidance pages beyond a route's reference URLs.
// *research.Researcher implements it.
type Discoverer interface {
	DiscoverGuidance(ctx context.Context, route *types.VisaRoute) ([]string, error)
}

// Section is the guidance taken from one reference URL.
type Section struct {
	URL         string       `json:"url"`
	Title       string       `json:"title,omitempty"`
	Text        string       `json:"text,omitempty"`
	Source      fetch.Source `json:"source"`
	FromCache   bool         `json:"fromCache"`
	UsedBrowser bool         `json:"usedBrowser,omitempty"`
	Discovered  bool         `json:"discovered,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Guide is the assembled guidance for a route, sections in reference order.
type Guide struct {
	RouteID            string    `json:"routeId"`
	RouteName          string    `json:"routeName"`
	UKVIApplicationURL string    `json:"ukviApplicationUrl,omitempty"`
	Sections           []Section `json:"sections"`
	FetchedAt          time.Time `json:"fetchedAt"`
}

// Failed returns the number of sections that could not be fetched.
func (g *Guide) Failed() int {
	n := 0
	for _, s := range g.Sections {
		if s.Error != "" {
			n++
		}
	}
	return n
}

// Service builds guides.
type Service struct {
	fetcher     Fetcher
	discoverer  Discoverer
	concurrency int
	tracer      tracing.Tracer
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithConcurrency sets the number of parallel fetches.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithDiscoverer appends discovered pages after the reference URLs.
func WithDiscoverer(d Discoverer) Option {
	return func(s *Service) { s.discoverer = d }
}

// WithTracer sets the tracer.
func WithTracer(t tracing.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a guide service.
func NewService(fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		fetcher:     fetcher,
		concurrency: DefaultConcurrency,
		tracer:      tracing.NewNoop(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build fetches every reference URL of route concurrently, followed by any
// pages the discoverer finds. A page that fails is reported in its section;
// Build only fails when every page does.
func (s *Service) Build(ctx context.Context, route *types.VisaRoute) (*Guide, error) {
	if route == nil {
		return nil, fmt.Errorf("route is required")
	}

	guide := &Guide{
		RouteID:            route.ID,
		RouteName:          route.Name,
		UKVIApplicationURL: route.UKVIApplicationURL,
		FetchedAt:          time.Now().UTC(),
	}

	urls := route.ReferenceURLs
	discovered := s.discover(ctx, route)
	if len(discovered) > 0 {
		urls = append(append([]string{}, urls...), discovered...)
	}
	if len(urls) == 0 {
		guide.Sections = []Section{}
		return guide, nil
	}
	guide.Sections = make([]Section, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, url := range urls {
		g.Go(func() error {
			guide.Sections[i] = s.fetchSection(gctx, route.ID, url)
			guide.Sections[i].Discovered = i >= len(route.ReferenceURLs)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if guide.Failed() == len(guide.Sections) {
		return guide, ErrNoPages
	}
	return guide, nil
}

// discover returns extra pages not already referenced by route. Discovery
// errors are logged and never fail the guide.
func (s *Service) discover(ctx context.Context, route *types.VisaRoute) []string {
	if s.discoverer == nil {
		return nil
	}
	found, err := s.discoverer.DiscoverGuidance(ctx, route)
	if err != nil {
		s.logger.Warn("guidance discovery failed", "route", route.ID, "error", err)
		return nil
	}

	seen := make(map[string]bool, len(route.ReferenceURLs))
	for _, u := range route.ReferenceURLs {
		seen[u] = true
	}
	var extra []string
	for _, u := range found {
		if !seen[u] {
			seen[u] = true
			extra = append(extra, u)
		}
	}
	return extra
}

func (s *Service) fetchSection(ctx context.Context, routeID, url string) Section {
	source := fetch.DetectSource(url)
	section := Section{URL: url, Source: source}

	ctx, span := s.tracer.Start(ctx, tracing.SpanGuideFetch,
		tracing.String(tracing.AttrRouteID, routeID),
		tracing.String(tracing.AttrURL, url),
	)

	res, err := s.fetcher.Fetch(ctx, url, routeID)
	if err != nil {
		s.logger.Warn("guide page fetch failed", "route", routeID, "url", url, "error", err)
		metrics.ObserveGuideFetch(string(source), metrics.OutcomeFailure)
		span.End(err)
		section.Error = err.Error()
		return section
	}

	metrics.ObserveGuideFetch(string(source), metrics.OutcomeSuccess)
	span.SetAttributes(tracing.Bool(tracing.AttrCacheHit, res.FromCache))
	span.End(nil)

	section.Title = res.Title
	section.Text = res.Text
	section.FromCache = res.FromCache
	section.UsedBrowser = res.UsedBrowser
	return section
}
