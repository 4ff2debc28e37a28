package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestLimiter returns a limiter whose clock only moves when advance is called.
func newTestLimiter(config *Config) (*Limiter, func(time.Duration)) {
	config.CleanupInterval = 0
	l := NewLimiter(config)
	now := epoch
	var mu sync.Mutex
	l.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	return l, func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}
}

func TestLimiter_Allow(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/v1/routes", "GET")
		if !allowed {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
		if info.Limit != 10 {
			t.Errorf("Expected limit 10, got %d", info.Limit)
		}
		if info.Remaining != 9-i {
			t.Errorf("Expected remaining %d, got %d", 9-i, info.Remaining)
		}
	}

	allowed, info := limiter.Allow("127.0.0.1", "/v1/routes", "GET")
	if allowed {
		t.Error("Expected 11th request to be denied")
	}
	if info.Remaining != 0 {
		t.Errorf("Expected remaining 0, got %d", info.Remaining)
	}
	if info.RetryAfter != 6*time.Second {
		t.Errorf("Expected retry after 6s, got %v", info.RetryAfter)
	}
	if !info.ResetTime.Equal(epoch.Add(time.Minute)) {
		t.Errorf("Expected reset at %v, got %v", epoch.Add(time.Minute), info.ResetTime)
	}
}

func TestLimiter_Refill(t *testing.T) {
	limiter, advance := newTestLimiter(&Config{Enabled: true, DefaultLimit: 60, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 60; i++ {
		limiter.Allow("c", "/x", "GET")
	}
	if allowed, _ := limiter.Allow("c", "/x", "GET"); allowed {
		t.Fatal("Expected bucket to be empty")
	}

	advance(time.Second)
	if allowed, _ := limiter.Allow("c", "/x", "GET"); !allowed {
		t.Error("Expected one token after a second")
	}
	if allowed, _ := limiter.Allow("c", "/x", "GET"); allowed {
		t.Error("Expected refilled token to be consumed")
	}
}

func TestLimiter_Whitelist(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"10.0.0.1": true},
	})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		if allowed, _ := limiter.Allow("10.0.0.1", "/v1/routes", "GET"); !allowed {
			t.Errorf("Expected whitelisted request %d to be allowed", i+1)
		}
	}
}

func TestLimiter_Blacklist(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		Blacklist:     map[string]bool{"10.0.0.2": true},
	})
	defer limiter.Stop()

	if allowed, _ := limiter.Allow("10.0.0.2", "/v1/routes", "GET"); allowed {
		t.Error("Expected blacklisted client to be denied")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: false})
	defer limiter.Stop()

	for i := 0; i < 100; i++ {
		if allowed, _ := limiter.Allow("c", "/functions/v1/ai-visa-assessment", "POST"); !allowed {
			t.Fatalf("Expected request %d to be allowed when disabled", i+1)
		}
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(),
	})
	defer limiter.Stop()

	// Assessment burst is 3.
	for i := 0; i < 3; i++ {
		if allowed, _ := limiter.Allow("c", "/functions/v1/ai-visa-assessment", "POST"); !allowed {
			t.Errorf("Expected assessment %d to be allowed", i+1)
		}
	}
	allowed, info := limiter.Allow("c", "/functions/v1/ai-visa-assessment", "POST")
	if allowed {
		t.Error("Expected 4th assessment to be denied")
	}
	if info.Limit != 20 {
		t.Errorf("Expected limit 20, got %d", info.Limit)
	}
	if info.Class != "POST /functions/v1/ai-visa-assessment" {
		t.Errorf("Unexpected class %q", info.Class)
	}

	// Other endpoints are unaffected.
	if allowed, _ := limiter.Allow("c", "/v1/routes", "GET"); !allowed {
		t.Error("Expected read endpoint to be allowed")
	}
}

func TestLimiter_PrefixSharesBucket(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/v1/guides/", Method: "GET", Limit: 2, Window: time.Hour},
		},
	})
	defer limiter.Stop()

	limiter.Allow("c", "/v1/guides/student", "GET")
	limiter.Allow("c", "/v1/guides/skilled-worker", "GET")
	if allowed, _ := limiter.Allow("c", "/v1/guides/global-talent", "GET"); allowed {
		t.Error("Expected guide requests for different routes to share a bucket")
	}
	if limiter.Len() != 1 {
		t.Errorf("Expected 1 bucket, got %d", limiter.Len())
	}
}

func TestLimiter_SeparateClients(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute})
	defer limiter.Stop()

	if allowed, _ := limiter.Allow("a", "/x", "GET"); !allowed {
		t.Error("Expected first client to be allowed")
	}
	if allowed, _ := limiter.Allow("b", "/x", "GET"); !allowed {
		t.Error("Expected second client to have its own bucket")
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 100, DefaultWindow: time.Minute})
	defer limiter.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := limiter.Allow("c", "/x", "GET"); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 100 {
		t.Errorf("Expected exactly 100 allowed requests, got %d", allowedCount)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	limiter, advance := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
		IdleTimeout:   time.Hour,
	})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		limiter.Allow(fmt.Sprintf("client-%d", i), "/x", "GET")
	}
	advance(30 * time.Minute)
	limiter.Allow("client-0", "/x", "GET")

	advance(31 * time.Minute)
	limiter.cleanupBuckets()

	if limiter.Len() != 1 {
		t.Errorf("Expected only the recently used bucket to survive, got %d", limiter.Len())
	}
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	tests := []struct {
		path, method string
		wantPath     string
		wantLimit    int
	}{
		{"/health", "GET", "", 0},
		{"/metrics", "GET", "", 0},
		{"/v1/sessions", "POST", "/v1/sessions", 30},
		{"/v1/sessions/abc/next", "POST", "/v1/sessions/", 240},
		{"/v1/auth/login", "POST", "/v1/auth/login", 10},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if got == nil {
				t.Fatal("Expected a match")
			}
			if got.Path != tt.wantPath || got.Limit != tt.wantLimit {
				t.Errorf("Expected %q/%d, got %q/%d", tt.wantPath, tt.wantLimit, got.Path, got.Limit)
			}
		})
	}

	if MatchEndpoint("/v1/routes", "GET", configs) != nil {
		t.Error("Expected no match for default-limited endpoint")
	}
}

func TestNewLimiter_NilConfig(t *testing.T) {
	limiter := NewLimiter(nil)
	defer limiter.Stop()
	limiter.Stop()

	if allowed, _ := limiter.Allow("c", "/x", "GET"); !allowed {
		t.Error("Expected default limiter to allow requests")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "")
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "120")
	t.Setenv("RATE_LIMIT_DEFAULT_WINDOW", "not-a-duration")
	t.Setenv("RATE_LIMIT_WHITELIST", " 10.0.0.1, ,10.0.0.2")

	cfg := LoadConfig()
	if !cfg.Enabled {
		t.Fatal("Expected rate limiting to be enabled by default")
	}
	if cfg.DefaultLimit != 120 {
		t.Errorf("Expected default limit 120, got %d", cfg.DefaultLimit)
	}
	if cfg.DefaultWindow != time.Minute {
		t.Errorf("Expected bad window to fall back to 1m, got %s", cfg.DefaultWindow)
	}
	if len(cfg.Whitelist) != 2 || !cfg.Whitelist["10.0.0.2"] {
		t.Errorf("Unexpected whitelist %v", cfg.Whitelist)
	}

	t.Setenv("RATE_LIMIT_ENABLED", "false")
	if LoadConfig().Enabled {
		t.Error("Expected RATE_LIMIT_ENABLED=false to disable limiting")
	}
}
