package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	var gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>Visit visa</h1></body></html>"))
	}))
	defer server.Close()

	result, err := Get(context.Background(), server.URL, &Options{Headers: map[string]string{"Accept": "text/html"}})
	require.NoError(t, err)
	assert.Equal(t, server.URL, result.URL)
	assert.Contains(t, result.HTML, "<h1>Visit visa</h1>")
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "text/html", result.ContentType)
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, "text/html", gotAccept)
}

func TestGet_Failures(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRetryable bool
	}{
		{"not found", http.StatusNotFound, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"unavailable", http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			result, err := Get(context.Background(), server.URL, nil)
			var fetchErr *Error
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.wantRetryable, fetchErr.Retryable)
			require.NotNil(t, result)
			assert.Equal(t, tt.status, result.StatusCode)
		})
	}
}

func TestGet_InvalidURL(t *testing.T) {
	_, err := Get(context.Background(), "not-a-valid-url", nil)
	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.False(t, fetchErr.Retryable)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestGet_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	_, err := Get(context.Background(), addr, nil)
	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, fetchErr.Retryable)
	assert.NotNil(t, fetchErr.Unwrap())
}

const govukGuideHTML = `
<html>
	<head><title>Skilled Worker visa: Your job - GOV.UK</title></head>
	<body>
		<a class="govuk-skip-link" href="#main-content">Skip to main content</a>
		<div class="gem-c-cookie-banner">Cookies on GOV.UK</div>
		<nav class="govuk-breadcrumbs">Home &gt; Visas</nav>
		<main id="main-content">
			<h1>Skilled Worker visa</h1>
			<div class="gem-c-contents-list">Contents: Overview, Your job</div>
			<div class="gem-c-govspeak">
				<h2>Your job</h2>
				<p>You must have a confirmed job offer before you apply.</p>
			</div>
			<div class="gem-c-pagination">Next: Your salary</div>
		</main>
	</body>
</html>`

func TestExtract(t *testing.T) {
	tests := []struct {
		name        string
		html        string
		source      Source
		wantTitle   string
		contains    []string
		notContains []string
	}{
		{
			name:        "gov.uk guide",
			html:        govukGuideHTML,
			source:      DetectSource("https://www.gov.uk/skilled-worker-visa/your-job"),
			wantTitle:   "Skilled Worker visa",
			contains:    []string{"confirmed job offer"},
			notContains: []string{"Cookies on GOV.UK", "Skip to main content", "Next: Your salary", "Contents:"},
		},
		{
			name:        "generic main element",
			html:        `<html><body><nav>Navigation</nav><main><p>Important text.</p></main><footer>Footer</footer></body></html>`,
			source:      SourceOther,
			contains:    []string{"Important text."},
			notContains: []string{"Navigation", "Footer"},
		},
		{
			name:      "title tag without h1",
			html:      `<html><head><title>Student visa - GOV.UK</title></head><body><article><p>Study in the UK.</p></article></body></html>`,
			source:    SourceOther,
			wantTitle: "Student visa",
			contains:  []string{"Study in the UK."},
		},
		{
			name:     "body fallback",
			html:     `<html><body><div>Some content here.</div></body></html>`,
			source:   SourceOther,
			contains: []string{"Some content here."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := Extract(tt.html, tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, page.Title)
			for _, s := range tt.contains {
				assert.Contains(t, page.Text, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, page.Text, s)
			}
		})
	}
}

func TestExtract_DropsBlankLines(t *testing.T) {
	page, err := Extract("<html><body><main>\n  one  \n\n\n two \n</main></body></html>", SourceOther)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo", page.Text)
}
