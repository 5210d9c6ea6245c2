package nuget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/nulifyer/nuglyph/logger"
)

const (
	DefaultSourceURL  = "https://api.nuget.org/v3/index.json"
	DefaultSourceName = "nuget.org"

	userAgent = "nuglyph (+https://github.com/nulifyer/nuglyph)"
)

// ErrNotFound is returned when a feed has no listing for a package id.
var ErrNotFound = errors.New("package not found")

// Source is a named NuGet v3 feed.
type Source struct {
	Name string
	URL  string
}

type serviceIndex struct {
	Resources []struct {
		ID   string `json:"@id"`
		Type string `json:"@type"`
	} `json:"resources"`
}

// flatContainerIndex is returned by {PackageBaseAddress}/{id}/index.json.
type flatContainerIndex struct {
	Versions []string `json:"versions"`
}

// registrationIndex is returned by the RegistrationsBaseUrl endpoint.
type registrationIndex struct {
	Items []registrationPage `json:"items"`
}

type registrationPage struct {
	ID    string                    `json:"@id"`
	Items []registrationLeafWrapper `json:"items"` // nil if not inlined, must fetch page URL
}

type registrationLeafWrapper struct {
	CatalogEntry struct {
		Version string `json:"version"`
		Listed  *bool  `json:"listed"`
	} `json:"catalogEntry"`
}

// HTTPStatusError is returned for non-200 responses so callers can inspect
// the status code.
type HTTPStatusError struct {
	Code int
	URL  string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.Code, e.URL)
}

// Service talks to a single NuGet v3 feed. Endpoints are resolved from the
// service index on first use; a failed resolution is retried on the next call.
type Service struct {
	source  Source
	client  *http.Client
	limiter *rate.Limiter
	index   singleflight.Group

	mu       sync.Mutex
	resolved bool
	flatBase string // PackageBaseAddress
	regBase  string // RegistrationsBaseUrl
}

type Option func(*Service)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// WithRateLimit caps outgoing requests to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Service) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			c := *s.client
			c.Timeout = d
			s.client = &c
		}
	}
}

func NewService(source Source, opts ...Option) *Service {
	s := &Service{
		source: source,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Name() string { return s.source.Name }
func (s *Service) URL() string  { return s.source.URL }

// Versions lists every published version string of packageID. It prefers the
// flat container, which is what restore uses, and falls back to the
// registration index when the feed does not advertise one.
func (s *Service) Versions(ctx context.Context, packageID string) ([]string, error) {
	if err := s.resolveEndpoints(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	flatBase, regBase := s.flatBase, s.regBase
	s.mu.Unlock()

	id := strings.ToLower(packageID)
	if flatBase != "" {
		logger.Trace("[%s] listing %q via flat container", s.source.Name, packageID)
		var idx flatContainerIndex
		err := s.getJSON(ctx, flatBase+id+"/index.json", &idx)
		if err == nil {
			return idx.Versions, nil
		}
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, packageID)
		}
		if regBase == "" {
			return nil, err
		}
		logger.Debug("[%s] flat container failed for %q, trying registration: %v", s.source.Name, packageID, err)
	}
	return s.registrationVersions(ctx, regBase, id)
}

func (s *Service) registrationVersions(ctx context.Context, regBase, id string) ([]string, error) {
	logger.Trace("[%s] listing %q via registration index", s.source.Name, id)
	var regIdx registrationIndex
	if err := s.getJSON(ctx, regBase+id+"/index.json", &regIdx); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	var versions []string
	for _, page := range regIdx.Items {
		items := page.Items
		if len(items) == 0 {
			// Page not inlined, fetch it separately.
			var fullPage registrationPage
			if err := s.getJSON(ctx, page.ID, &fullPage); err != nil {
				return nil, fmt.Errorf("fetching page %s: %w", page.ID, err)
			}
			items = fullPage.Items
		}
		for _, it := range items {
			ce := it.CatalogEntry
			if ce.Listed != nil && !*ce.Listed {
				continue
			}
			versions = append(versions, ce.Version)
		}
	}
	return versions, nil
}

// resolveEndpoints fetches the service index once. Concurrent callers share
// one fetch, and each stops waiting when its own ctx is done.
func (s *Service) resolveEndpoints(ctx context.Context) error {
	s.mu.Lock()
	resolved := s.resolved
	s.mu.Unlock()
	if resolved {
		return nil
	}

	ch := s.index.DoChan("index", func() (any, error) {
		return nil, s.fetchIndex(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) fetchIndex(ctx context.Context) error {
	s.mu.Lock()
	resolved := s.resolved
	s.mu.Unlock()
	if resolved {
		return nil
	}

	var idx serviceIndex
	if err := s.getJSON(ctx, s.source.URL, &idx); err != nil {
		return fmt.Errorf("fetching service index: %w", err)
	}
	var flatVer, regVer Version
	flat, reg := "", ""
	for _, r := range idx.Resources {
		logger.Trace("[%s] service index resource: type=%q id=%q", s.source.Name, r.Type, r.ID)
		switch {
		case strings.HasPrefix(r.Type, "PackageBaseAddress"):
			if v := resourceTypeVersion(r.Type); flat == "" || v.IsNewerThan(flatVer) {
				flat, flatVer = r.ID, v
			}
		case strings.HasPrefix(r.Type, "RegistrationsBaseUrl"):
			if v := resourceTypeVersion(r.Type); reg == "" || v.IsNewerThan(regVer) {
				reg, regVer = r.ID, v
			}
		}
	}
	if flat == "" && reg == "" {
		return fmt.Errorf("neither PackageBaseAddress nor RegistrationsBaseUrl found in service index of %s", s.source.URL)
	}

	s.mu.Lock()
	s.flatBase = withTrailingSlash(flat)
	s.regBase = withTrailingSlash(reg)
	s.resolved = true
	s.mu.Unlock()
	logger.Debug("[%s] endpoints resolved: flat=%s reg=%s", s.source.Name, withTrailingSlash(flat), withTrailingSlash(reg))
	return nil
}

func (s *Service) getJSON(ctx context.Context, u string, dst any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &HTTPStatusError{Code: resp.StatusCode, URL: u}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding %s: %w", u, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var he *HTTPStatusError
	return errors.As(err, &he) && he.Code == http.StatusNotFound
}

func withTrailingSlash(u string) string {
	if u != "" && !strings.HasSuffix(u, "/") {
		return u + "/"
	}
	return u
}

// resourceTypeVersion parses the version suffix from a service index resource type,
// e.g. "RegistrationsBaseUrl/3.6.0" → 3.6.0. Unversioned types return a zero Version.
func resourceTypeVersion(resourceType string) Version {
	if idx := strings.IndexByte(resourceType, '/'); idx >= 0 {
		return ParseVersion(resourceType[idx+1:])
	}
	return Version{}
}
