package fetch

import (
	"net/url"
	"strings"
)

// Source identifies the kind of site a guidance URL points at.
type Source string

const (
	// SourceGovUKGuide is mainstream gov.uk guidance (www.gov.uk/<slug>)
	SourceGovUKGuide Source = "govuk-guide"
	// SourceGovUKPublication is a gov.uk publication or immigration rules page
	SourceGovUKPublication Source = "govuk-publication"
	// SourceGovUKService is a gov.uk transactional service (apply flows)
	SourceGovUKService Source = "govuk-service"
	// SourceOther is any other site
	SourceOther Source = "other"
)

// DetectSource classifies a URL.
func DetectSource(urlStr string) Source {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return SourceOther
	}

	host := strings.ToLower(parsed.Host)
	switch {
	case host == "www.gov.uk" || host == "gov.uk":
		if strings.HasPrefix(parsed.Path, "/government/") || strings.HasPrefix(parsed.Path, "/guidance/") {
			return SourceGovUKPublication
		}
		return SourceGovUKGuide
	case strings.HasSuffix(host, ".service.gov.uk"):
		return SourceGovUKService
	default:
		return SourceOther
	}
}

// ContentSelectors returns content selectors for a source, most specific first.
func ContentSelectors(source Source) []string {
	switch source {
	case SourceGovUKGuide:
		return []string{
			".gem-c-govspeak",
			"#guide-contents",
			".govuk-grid-column-two-thirds",
			"main",
		}
	case SourceGovUKPublication:
		return []string{
			".govspeak",
			".gem-c-govspeak",
			"#contents",
			"main",
		}
	case SourceGovUKService:
		return []string{
			"#main-content",
			".govuk-main-wrapper",
			"main",
		}
	default:
		return genericSelectors
	}
}

// NoiseSelectors returns elements stripped before text extraction.
func NoiseSelectors(source Source) []string {
	common := []string{
		".govuk-skip-link",
		".govuk-breadcrumbs",
		".gem-c-cookie-banner",
		".govuk-phase-banner",
		".gem-c-feedback",
		".gem-c-print-link",
		".gem-c-related-navigation",
		".govuk-back-link",
	}

	switch source {
	case SourceGovUKGuide:
		return append(common,
			".part-navigation-container",
			".gem-c-pagination",
			".gem-c-contents-list",
		)
	case SourceGovUKPublication:
		return append(common,
			".gem-c-contents-list",
			".gem-c-metadata",
			".gem-c-single-page-notification-button",
		)
	case SourceGovUKService:
		return append(common, "form")
	default:
		return common
	}
}

var genericSelectors = []string{"main", "article", ".content", "#content", ".main-content", "#main-content"}
