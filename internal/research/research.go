// Package research discovers official guidance pages for a visa route with
// Google Programmable Search.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jonathan/visa-navigator/internal/types"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// GuidanceDomain is the only domain discovered pages may come from.
const GuidanceDomain = "gov.uk"

// DefaultResultsPerQuery is the number of search results requested per query.
const DefaultResultsPerQuery = 3

// Researcher finds gov.uk guidance pages for visa routes.
type Researcher struct {
	svc    *customsearch.Service
	cx     string
	num    int64
	logger *slog.Logger
}

// NewResearcher creates a new Researcher instance. Extra client options are
// applied after the API key.
func NewResearcher(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*Researcher, error) {
	if apiKey == "" || cx == "" {
		return nil, fmt.Errorf("search API key and engine id are required")
	}
	svc, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &Researcher{
		svc:    svc,
		cx:     cx,
		num:    DefaultResultsPerQuery,
		logger: slog.Default(),
	}, nil
}

// SetLogger sets the logger.
func (r *Researcher) SetLogger(l *slog.Logger) {
	r.logger = l
}

// DiscoverGuidance searches gov.uk for pages about route. Failed queries are
// skipped; an error is returned only when every query fails.
func (r *Researcher) DiscoverGuidance(ctx context.Context, route *types.VisaRoute) ([]string, error) {
	if route == nil {
		return nil, fmt.Errorf("route is required")
	}

	queries := Queries(route)
	var (
		links []string
		errs  []error
	)
	for _, q := range queries {
		resp, err := r.svc.Cse.List().Cx(r.cx).Q(q).Num(r.num).Context(ctx).Do()
		if err != nil {
			r.logger.Debug("guidance search failed", "route", route.ID, "query", q, "error", err)
			errs = append(errs, err)
			continue
		}
		for _, item := range resp.Items {
			links = append(links, item.Link)
		}
	}
	if len(errs) == len(queries) {
		return nil, fmt.Errorf("guidance search failed: %w", errors.Join(errs...))
	}

	return FilterGuidance(links), nil
}

// Queries returns the search queries used for route.
func Queries(route *types.VisaRoute) []string {
	name := strings.TrimSpace(route.Name)
	return []string{
		fmt.Sprintf("site:%s %s eligibility", GuidanceDomain, name),
		fmt.Sprintf("site:%s %s documents you'll need", GuidanceDomain, name),
	}
}

// FilterGuidance keeps https gov.uk links, in order and without duplicates.
func FilterGuidance(links []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, link := range links {
		u, err := url.Parse(strings.TrimSpace(link))
		if err != nil || u.Scheme != "https" || !isGuidanceHost(u.Hostname()) {
			continue
		}
		u.Fragment = ""
		key := u.String()
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

func isGuidanceHost(host string) bool {
	host = strings.ToLower(host)
	return host == GuidanceDomain || strings.HasSuffix(host, "."+GuidanceDomain)
}
