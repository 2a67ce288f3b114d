package species

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/pokedex/cache"
	"github.com/jonwraymond/pokedex/resilience"
	"github.com/jonwraymond/pokedex/upstream"
)

const mewtwoJSON = `{
	"name": "mewtwo",
	"is_legendary": true,
	"habitat": {"name": "rare"},
	"flavor_text_entries": [
		{"flavor_text": "It was created by\na scientist after\fyears of horrific\ngene splicing.", "language": {"name": "en"}},
		{"flavor_text": "Second English entry.", "language": {"name": "en"}}
	]
}`

// fakePokeAPI serves /pokemon-species/{name} from a map and counts requests.
type fakePokeAPI struct {
	bodies map[string]string
	status atomic.Int32
	calls  atomic.Int32
	paths  chan string
}

func (f *fakePokeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if f.paths != nil {
		f.paths <- r.URL.Path
	}
	if code := f.status.Load(); code != 0 {
		w.WriteHeader(int(code))
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/pokemon-species/")
	body, ok := f.bodies[name]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func newTestClient(t *testing.T, api http.Handler) (*Client, *cache.MemoryCache, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	endpoint, err := upstream.NewEndpoint(upstream.EndpointConfig{
		Name:    ServiceName,
		BaseURL: srv.URL,
		Client:  srv.Client(),
		Guard:   resilience.NewGuard(resilience.GuardConfig{Name: ServiceName, Timeout: time.Second}),
	})
	if err != nil {
		t.Fatal(err)
	}

	store := cache.NewMemoryCache()
	c, err := NewClient(Config{Endpoint: endpoint, Cache: store})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c, store, srv
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(Config{Cache: cache.NewMemoryCache()}); !errors.Is(err, upstream.ErrNilEndpoint) {
		t.Errorf("missing endpoint: err = %v", err)
	}

	endpoint, _ := upstream.NewEndpoint(upstream.EndpointConfig{Guard: resilience.NewGuard(resilience.GuardConfig{})})
	if _, err := NewClient(Config{Endpoint: endpoint}); !errors.Is(err, cache.ErrNilCache) {
		t.Errorf("missing cache: err = %v", err)
	}
}

func TestFetch_ParsesSpecies(t *testing.T) {
	api := &fakePokeAPI{bodies: map[string]string{"mewtwo": mewtwoJSON}}
	c, _, _ := newTestClient(t, api)

	got, err := c.Fetch(context.Background(), "mewtwo")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	want := Species{
		Name:        "mewtwo",
		Description: "It was created by a scientist after years of horrific gene splicing.",
		Habitat:     "rare",
		IsLegendary: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fetch() mismatch (-want +got):\n%s", diff)
	}
}

func TestFetch_CaseInsensitiveSharesCacheEntry(t *testing.T) {
	api := &fakePokeAPI{bodies: map[string]string{"mewtwo": mewtwoJSON}, paths: make(chan string, 4)}
	c, store, _ := newTestClient(t, api)
	ctx := context.Background()

	var results []Species
	for _, name := range []string{"Mewtwo", "MEWTWO", "mewtwo", "  mewtwo "} {
		s, err := c.Fetch(ctx, name)
		if err != nil {
			t.Fatalf("Fetch(%q) error = %v", name, err)
		}
		results = append(results, s)
	}

	if api.calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", api.calls.Load())
	}
	if path := <-api.paths; path != "/pokemon-species/mewtwo" {
		t.Errorf("upstream path = %q, want lower-cased name", path)
	}
	for i := 1; i < len(results); i++ {
		if diff := cmp.Diff(results[0], results[i]); diff != "" {
			t.Errorf("result %d differs (-first +got):\n%s", i, diff)
		}
	}
	if store.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", store.Len())
	}
	if _, ok := store.Get(ctx, "pokedex:species:mewtwo"); !ok {
		t.Error("expected entry under pokedex:species:mewtwo")
	}
}

func TestFetch_EnglishDescriptionSelected(t *testing.T) {
	body := `{
		"name": "ditto",
		"is_legendary": false,
		"habitat": {"name": "urban"},
		"flavor_text_entries": [
			{"flavor_text": "Il peut modifier sa structure.", "language": {"name": "fr"}},
			{"flavor_text": "It can freely recombine\nits own cellular structure.", "language": {"name": "en"}},
			{"flavor_text": "Puede alterar su estructura.", "language": {"name": "es"}}
		]
	}`
	api := &fakePokeAPI{bodies: map[string]string{"ditto": body}}
	c, _, _ := newTestClient(t, api)

	got, err := c.Fetch(context.Background(), "ditto")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got.Description != "It can freely recombine its own cellular structure." {
		t.Errorf("Description = %q", got.Description)
	}
}

func TestFetch_ParseEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Species
	}{
		{
			name: "null habitat",
			body: `{"name":"rayquaza","is_legendary":true,"habitat":null,"flavor_text_entries":[{"flavor_text":"Sky.","language":{"name":"en"}}]}`,
			want: Species{Name: "rayquaza", Description: "Sky.", IsLegendary: true},
		},
		{
			name: "absent habitat",
			body: `{"name":"rayquaza","is_legendary":true,"flavor_text_entries":[]}`,
			want: Species{Name: "rayquaza", Description: DescriptionUnavailable, IsLegendary: true},
		},
		{
			name: "no english entry",
			body: `{"name":"rayquaza","is_legendary":false,"habitat":{"name":"cave"},"flavor_text_entries":[{"flavor_text":"Ciel.","language":{"name":"fr"}}]}`,
			want: Species{Name: "rayquaza", Description: DescriptionUnavailable, Habitat: "cave"},
		},
		{
			name: "missing name falls back to request",
			body: `{"is_legendary":false}`,
			want: Species{Name: "rayquaza", Description: DescriptionUnavailable},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakePokeAPI{bodies: map[string]string{"rayquaza": tc.body}}
			c, _, _ := newTestClient(t, api)

			got, err := c.Fetch(context.Background(), "Rayquaza")
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetch_Failures(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		notFound    bool
		wantMessage string
	}{
		{
			name:        "not found",
			status:      http.StatusNotFound,
			notFound:    true,
			wantMessage: "Pokemon 'missingno' not found.",
		},
		{
			name:        "server error",
			status:      http.StatusInternalServerError,
			wantMessage: "PokeAPI failed with status 500",
		},
		{
			name:        "rate limited upstream",
			status:      http.StatusTooManyRequests,
			wantMessage: "PokeAPI failed with status 429",
		},
		{
			name:        "malformed json",
			body:        `{"name": "missingno", `,
			wantMessage: "PokeAPI returned an unexpected response format.",
		},
		{
			name:        "missing is_legendary",
			body:        `{"name": "missingno"}`,
			wantMessage: "PokeAPI returned an unexpected response format.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakePokeAPI{bodies: map[string]string{"missingno": tc.body}}
			api.status.Store(int32(tc.status))
			c, store, _ := newTestClient(t, api)

			_, err := c.Fetch(context.Background(), "missingno")
			if err == nil {
				t.Fatal("expected error")
			}
			if upstream.IsNotFound(err) != tc.notFound {
				t.Errorf("IsNotFound = %v, want %v", upstream.IsNotFound(err), tc.notFound)
			}
			if upstream.IsUnavailable(err) == tc.notFound {
				t.Errorf("IsUnavailable = %v, want %v", upstream.IsUnavailable(err), !tc.notFound)
			}
			if err.Error() != tc.wantMessage {
				t.Errorf("message = %q, want %q", err.Error(), tc.wantMessage)
			}
			if store.Len() != 0 {
				t.Errorf("failed fetch populated the cache")
			}
		})
	}
}

func TestFetch_NetworkError(t *testing.T) {
	c, _, srv := newTestClient(t, &fakePokeAPI{})
	srv.Close()

	_, err := c.Fetch(context.Background(), "mewtwo")
	if !upstream.IsUnavailable(err) {
		t.Fatalf("error = %v, want ServiceUnavailable", err)
	}
	if !strings.HasPrefix(err.Error(), "PokeAPI network error: ") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestFetch_FailureNotCached(t *testing.T) {
	api := &fakePokeAPI{bodies: map[string]string{"mewtwo": mewtwoJSON}}
	api.status.Store(http.StatusServiceUnavailable)
	c, _, _ := newTestClient(t, api)
	ctx := context.Background()

	if _, err := c.Fetch(ctx, "mewtwo"); !upstream.IsUnavailable(err) {
		t.Fatalf("first Fetch error = %v, want ServiceUnavailable", err)
	}

	api.status.Store(0)
	got, err := c.Fetch(ctx, "mewtwo")
	if err != nil {
		t.Fatalf("second Fetch error = %v", err)
	}
	if got.Name != "mewtwo" {
		t.Errorf("Name = %q", got.Name)
	}
	if api.calls.Load() != 2 {
		t.Errorf("upstream calls = %d, want 2", api.calls.Load())
	}
}

func TestFetch_EmptyNameIsNotFound(t *testing.T) {
	api := &fakePokeAPI{}
	c, _, _ := newTestClient(t, api)

	if _, err := c.Fetch(context.Background(), "   "); !upstream.IsNotFound(err) {
		t.Fatalf("error = %v, want NotFound", err)
	}
	if api.calls.Load() != 0 {
		t.Errorf("upstream calls = %d, want 0", api.calls.Load())
	}
}

func TestFetch_PathEscaped(t *testing.T) {
	api := &fakePokeAPI{paths: make(chan string, 1)}
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.paths <- r.URL.RawPath
		http.NotFound(w, r)
	}))

	_, _ = c.Fetch(context.Background(), "mr/mime")
	if got := <-api.paths; got != "/pokemon-species/mr%2Fmime" {
		t.Errorf("escaped path = %q", got)
	}
}
