package tibia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logx "github.com/SoloWolfStudios/BoostBotTracker/pkg/logx"
)

func intPtr(v int) *int { return &v }

func newTestClient(t *testing.T, srv *httptest.Server, retryMax int) *Client {
	t.Helper()
	return New(Config{
		BaseURL:     srv.URL,
		World:       "Antica",
		RetryMax:    intPtr(retryMax),
		BackoffBase: time.Millisecond,
		HTTPClient:  srv.Client(),
		Logger:      logx.Nop(),
	})
}

func TestRequestRetriesThrough429(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 3)
	var out struct {
		OK bool `json:"ok"`
	}
	if !c.request(context.Background(), "anything", &out) {
		t.Fatal("expected success on third attempt")
	}
	if !out.OK {
		t.Fatal("body not decoded")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestRequestExhaustsOnServerError(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 2)
	var out map[string]any
	if c.request(context.Background(), "anything", &out) {
		t.Fatal("expected failure")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3 (retry_max=2)", got)
	}
}

func TestRequestMalformedBodyDoesNotRetry(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"boostable_bosses": `)) // truncated
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 3)
	var out map[string]any
	if c.request(context.Background(), "anything", &out) {
		t.Fatal("expected failure for malformed body")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1 (shape mismatch must not retry)", got)
	}
}

func TestRequestCanceledContextStopsRetrying(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(t, srv, 3)
	var out map[string]any
	if c.request(ctx, "anything", &out) {
		t.Fatal("expected failure with canceled context")
	}
}

func TestBoostedPartialSummary(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/world/Antica", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/boostablebosses", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"boostable_bosses": {"boosted": {"name": "Gnomevil"}}, "information": {"timestamp": "2025-08-25T10:00:05Z"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	s := c.Boosted(context.Background())
	if s == nil {
		t.Fatal("expected partial summary when one endpoint succeeds")
	}
	if s.HasCreature() {
		t.Fatalf("creature should be absent, got %q", s.Creature)
	}
	if !s.HasBoss() || s.Boss != "Gnomevil" {
		t.Fatalf("Boss = %q, want Gnomevil", s.Boss)
	}
}

func TestBoostedFullSummary(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/world/Antica", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"world": {"world_information": {"boosted_creature": "Dragon Lord"}},
			"information": {"timestamp": "2025-08-25T10:00:05Z"}
		}`))
	})
	mux.HandleFunc("/boostablebosses", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"boostable_bosses": {"boosted": {"name": "Gnomevil"}}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	s := c.Boosted(context.Background())
	if s == nil {
		t.Fatal("expected summary")
	}
	if s.Creature != "Dragon Lord" || s.Boss != "Gnomevil" {
		t.Fatalf("summary = %+v", s)
	}
	want := time.Date(2025, 8, 25, 10, 0, 5, 0, time.UTC)
	if !s.ObservedAt.Equal(want) {
		t.Fatalf("ObservedAt = %v, want %v", s.ObservedAt, want)
	}
}

func TestBoostedBothUnobtainable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	if s := c.Boosted(context.Background()); s != nil {
		t.Fatalf("expected nil summary, got %+v", s)
	}
}

func TestDetailsNormalizesName(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	paths := make([]string, 0, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"creature": {"name": "Fire Elemental", "hitpoints": 280, "experience_points": 220}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	a := c.Details(context.Background(), "Fire Elemental")
	b := c.Details(context.Background(), "fire_elemental")
	if a == nil || b == nil {
		t.Fatal("expected details for both spellings")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}
	if paths[0] != "/creature/fire_elemental" || paths[0] != paths[1] {
		t.Fatalf("normalization diverged: %v", paths)
	}
}

func TestDetailsEmptyNameSkipsRequest(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	if d := c.Details(context.Background(), "   "); d != nil {
		t.Fatalf("expected nil for blank name, got %+v", d)
	}
	if calls.Load() != 0 {
		t.Fatal("blank name must not hit the API")
	}
}

func TestDetailsMissingWrapper(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"information": {"timestamp": "2025-08-25T10:00:05Z"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	if d := c.Details(context.Background(), "Wolf"); d != nil {
		t.Fatalf("expected nil when creature wrapper is missing, got %+v", d)
	}
}

func TestAllCreatures(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/creatures" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"creatures": {"boosted": {"name": "Wolf"}, "creature_list": [{"name": "Wolf"}, {"name": "Bear"}]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	idx := c.AllCreatures(context.Background())
	if idx == nil {
		t.Fatal("expected index")
	}
	if idx.Boosted.Name != "Wolf" || len(idx.CreatureList) != 2 {
		t.Fatalf("index = %+v", idx)
	}
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"Fire Elemental", "fire_elemental"},
		{"fire_elemental", "fire_elemental"},
		{"  Dragon Lord  ", "dragon_lord"},
		{"Wolf", "wolf"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := normalizeName(tt.in); got != tt.want {
			t.Fatalf("normalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   int64
		want string
	}{
		{1955, "1,955"},
		{280, "280"},
		{6000000, "6,000,000"},
		{0, "Unknown"},
		{-1, "Unknown"},
	}
	for _, tt := range tests {
		if got := FormatCount(tt.in); got != tt.want {
			t.Fatalf("FormatCount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
