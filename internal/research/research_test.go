package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jonathan/visa-navigator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func searchServer(t *testing.T, handler func(q string) (int, []string)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "engine-1", r.URL.Query().Get("cx"))
		status, links := handler(r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		items := make([]map[string]string, 0, len(links))
		for _, l := range links {
			items = append(items, map[string]string{"link": l})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestResearcher(t *testing.T, srv *httptest.Server) *Researcher {
	t.Helper()
	r, err := NewResearcher(context.Background(), "key", "engine-1",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return r
}

func TestNewResearcher_RequiresCredentials(t *testing.T) {
	_, err := NewResearcher(context.Background(), "", "engine-1")
	assert.Error(t, err)
	_, err = NewResearcher(context.Background(), "key", "")
	assert.Error(t, err)
}

func TestDiscoverGuidance(t *testing.T) {
	srv, calls := searchServer(t, func(q string) (int, []string) {
		assert.True(t, strings.HasPrefix(q, "site:gov.uk Student Visa"), q)
		return http.StatusOK, []string{
			"https://www.gov.uk/student-visa/eligibility",
			"https://www.example.com/student-visa-tips",
			"https://www.gov.uk/student-visa/eligibility#funds",
			"http://www.gov.uk/insecure",
		}
	})

	links, err := newTestResearcher(t, srv).DiscoverGuidance(context.Background(), &types.VisaRoute{ID: "student", Name: "Student Visa"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.gov.uk/student-visa/eligibility"}, links)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDiscoverGuidance_PartialFailure(t *testing.T) {
	srv, _ := searchServer(t, func(q string) (int, []string) {
		if strings.Contains(q, "documents") {
			return http.StatusTooManyRequests, nil
		}
		return http.StatusOK, []string{"https://www.gov.uk/skilled-worker-visa"}
	})

	links, err := newTestResearcher(t, srv).DiscoverGuidance(context.Background(), &types.VisaRoute{ID: "skilled-worker", Name: "Skilled Worker Visa"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.gov.uk/skilled-worker-visa"}, links)
}

func TestDiscoverGuidance_AllQueriesFail(t *testing.T) {
	srv, _ := searchServer(t, func(string) (int, []string) { return http.StatusForbidden, nil })

	_, err := newTestResearcher(t, srv).DiscoverGuidance(context.Background(), &types.VisaRoute{ID: "student", Name: "Student Visa"})
	assert.ErrorContains(t, err, "guidance search failed")
}

func TestFilterGuidance(t *testing.T) {
	got := FilterGuidance([]string{
		"https://www.gov.uk/a",
		" https://assets.publishing.service.gov.uk/b.pdf ",
		"https://notgov.uk/c",
		"https://gov.uk.example.com/d",
		"://bad",
		"https://www.gov.uk/a",
	})
	assert.Equal(t, []string{"https://www.gov.uk/a", "https://assets.publishing.service.gov.uk/b.pdf"}, got)
}
