package nuget

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// feed is a minimal NuGet v3 server. Handlers are keyed by path.
type feed struct {
	srv      *httptest.Server
	routes   map[string]string
	requests atomic.Int32
}

func newFeed(t *testing.T, resources func(base string) string, routes map[string]string) *feed {
	t.Helper()
	f := &feed{routes: routes}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		if r.URL.Path == "/v3/index.json" {
			fmt.Fprint(w, resources(f.srv.URL))
			return
		}
		body, ok := f.routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if body == "500" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, strings.ReplaceAll(body, "{base}", f.srv.URL))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *feed) service(opts ...Option) *Service {
	return NewService(Source{Name: "test", URL: f.srv.URL + "/v3/index.json"}, opts...)
}

func flatAndReg(base string) string {
	return `{"resources":[
		{"@id":"` + base + `/flat","@type":"PackageBaseAddress/3.0.0"},
		{"@id":"` + base + `/reg/","@type":"RegistrationsBaseUrl"},
		{"@id":"` + base + `/reg-semver2/","@type":"RegistrationsBaseUrl/3.6.0"}
	]}`
}

func regOnly(base string) string {
	return `{"resources":[{"@id":"` + base + `/reg/","@type":"RegistrationsBaseUrl/3.6.0"}]}`
}

func TestVersions_FlatContainer(t *testing.T) {
	f := newFeed(t, flatAndReg, map[string]string{
		"/flat/newtonsoft.json/index.json": `{"versions":["11.0.2","12.0.0","13.0.1","13.0.3"]}`,
	})
	got, err := f.service().Versions(context.Background(), "Newtonsoft.Json")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if strings.Join(got, ",") != "11.0.2,12.0.0,13.0.1,13.0.3" {
		t.Errorf("Versions = %v", got)
	}
}

func TestVersions_NotFound(t *testing.T) {
	f := newFeed(t, flatAndReg, nil)
	_, err := f.service().Versions(context.Background(), "Does.Not.Exist")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestVersions_FlatFailureFallsBackToRegistration(t *testing.T) {
	f := newFeed(t, flatAndReg, map[string]string{
		"/flat/serilog/index.json": "500",
		"/reg-semver2/serilog/index.json": `{"items":[{"@id":"p1","items":[
			{"catalogEntry":{"version":"2.0.0"}},
			{"catalogEntry":{"version":"3.0.0"}}
		]}]}`,
	})
	got, err := f.service().Versions(context.Background(), "Serilog")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if strings.Join(got, ",") != "2.0.0,3.0.0" {
		t.Errorf("Versions = %v (expected the newest registration resource to be used)", got)
	}
}

func TestVersions_RegistrationPagedAndUnlisted(t *testing.T) {
	f := newFeed(t, regOnly, map[string]string{
		"/reg/pkg/index.json": `{"items":[
			{"@id":"{base}/reg/pkg/page/1.json"},
			{"@id":"inline","items":[
				{"catalogEntry":{"version":"2.0.0","listed":false}},
				{"catalogEntry":{"version":"2.1.0","listed":true}}
			]}
		]}`,
		"/reg/pkg/page/1.json": `{"items":[{"catalogEntry":{"version":"1.0.0"}}]}`,
	})
	got, err := f.service().Versions(context.Background(), "Pkg")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if strings.Join(got, ",") != "1.0.0,2.1.0" {
		t.Errorf("Versions = %v", got)
	}
}

func TestVersions_MalformedJSON(t *testing.T) {
	f := newFeed(t, flatAndReg, map[string]string{
		"/flat/broken/index.json": `{"versions":[`,
		"/reg-semver2/broken/index.json": `not json`,
	})
	if _, err := f.service().Versions(context.Background(), "Broken"); err == nil {
		t.Fatal("expected an error for malformed responses")
	}
}

func TestResolveEndpoints_MissingResources(t *testing.T) {
	f := newFeed(t, func(string) string { return `{"resources":[]}` }, nil)
	if _, err := f.service().Versions(context.Background(), "Any"); err == nil {
		t.Fatal("expected an error when the index has no usable resources")
	}
}

func TestResolveEndpoints_ResolvedOnce(t *testing.T) {
	f := newFeed(t, flatAndReg, map[string]string{
		"/flat/a/index.json": `{"versions":["1.0.0"]}`,
	})
	svc := f.service()
	for i := 0; i < 3; i++ {
		if _, err := svc.Versions(context.Background(), "A"); err != nil {
			t.Fatalf("Versions: %v", err)
		}
	}
	// one index fetch + three listings
	if n := f.requests.Load(); n != 4 {
		t.Errorf("requests = %d, want 4", n)
	}
	if !strings.HasSuffix(svc.flatBase, "/") {
		t.Errorf("flatBase should end with '/', got %q", svc.flatBase)
	}
}

func TestResolveEndpoints_WaitersHonourTheirContext(t *testing.T) {
	release := make(chan struct{})
	var indexFetches atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/index.json":
			indexFetches.Add(1)
			<-release
			fmt.Fprint(w, flatAndReg(srv.URL))
		case "/flat/a/index.json":
			fmt.Fprint(w, `{"versions":["1.0.0"]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})
	svc := NewService(Source{Name: "slow", URL: srv.URL + "/v3/index.json"})

	first := make(chan error, 1)
	go func() {
		_, err := svc.Versions(context.Background(), "A")
		first <- err
	}()
	for indexFetches.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := svc.Versions(ctx, "A"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second caller err = %v, want deadline exceeded", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Errorf("second caller waited %s for the index fetch", waited)
	}

	close(release)
	if err := <-first; err != nil {
		t.Fatalf("first caller: %v", err)
	}
	if _, err := svc.Versions(context.Background(), "A"); err != nil {
		t.Fatalf("after resolution: %v", err)
	}
	if n := indexFetches.Load(); n != 1 {
		t.Errorf("index fetched %d times, want 1", n)
	}
}

func TestVersions_CancelledContext(t *testing.T) {
	f := newFeed(t, flatAndReg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.service(WithRateLimit(1, 1)).Versions(ctx, "A"); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}

func TestHTTPStatusError(t *testing.T) {
	var err error = fmt.Errorf("wrapped: %w", &HTTPStatusError{Code: 404, URL: "u"})
	if !isNotFound(err) {
		t.Error("isNotFound should see through wrapping")
	}
	if isNotFound(&HTTPStatusError{Code: 500}) {
		t.Error("500 is not a not-found")
	}
}

func TestResourceTypeVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"RegistrationsBaseUrl/3.6.0", "3.6.0"},
		{"PackageBaseAddress/3.0.0", "3.0.0"},
		{"RegistrationsBaseUrl", ""},
	}
	for _, tt := range tests {
		if got := resourceTypeVersion(tt.in).Raw; got != tt.want {
			t.Errorf("resourceTypeVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
