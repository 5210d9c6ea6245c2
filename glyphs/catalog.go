package glyphs

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/nulifyer/nuglyph/logger"
	"github.com/nulifyer/nuglyph/metrics"
	"github.com/nulifyer/nuglyph/nuget"
)

// Window sizes used when the caller has no preference.
const (
	DefaultAbove = 5
	DefaultBelow = 5
)

// Registry lists the published version strings of a package.
// nuget.Service and nuget.Sources satisfy it.
type Registry interface {
	Versions(ctx context.Context, packageID string) ([]string, error)
}

// Catalog turns a Registry into sorted version lists. Every failure
// degrades to an empty result; nothing is cached between calls.
type Catalog struct {
	registry Registry
	group    singleflight.Group
}

func NewCatalog(registry Registry) *Catalog {
	return &Catalog{registry: registry}
}

// ListVersions returns every valid version of packageID, newest first.
// Concurrent calls for the same id share one registry request.
func (c *Catalog) ListVersions(ctx context.Context, packageID string) []nuget.Version {
	ctx, span := metrics.Tracer.Start(ctx, "catalog.ListVersions",
		trace.WithAttributes(attribute.String("package.id", packageID)))
	defer span.End()
	start := time.Now()

	raw, err := c.query(ctx, packageID)
	metrics.CatalogQueryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Debug("Listing versions of %s failed: %v", packageID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.CatalogQueries.WithLabelValues(metrics.OutcomeError).Inc()
		return nil
	}

	versions := make([]nuget.Version, 0, len(raw))
	for _, s := range raw {
		v, ok := nuget.TryParseVersion(s)
		if !ok {
			logger.Trace("Skipping unparseable version %q of %s", s, packageID)
			continue
		}
		versions = append(versions, v)
	}
	versions = nuget.SortDescending(versions)

	outcome := metrics.OutcomeOK
	if len(versions) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.CatalogQueries.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.Int("versions", len(versions)))
	return versions
}

// query runs the registry call, sharing it with concurrent callers. A shared
// call runs under its first caller's context; when that caller went away the
// others retry rather than inherit its cancellation.
func (c *Catalog) query(ctx context.Context, packageID string) ([]string, error) {
	key := strings.ToLower(packageID)
	for attempt := 0; ; attempt++ {
		ch := c.group.DoChan(key, func() (any, error) {
			return c.registry.Versions(ctx, packageID)
		})
		select {
		case res := <-ch:
			if res.Err != nil {
				if res.Shared && ctx.Err() == nil && attempt < 2 &&
					(errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded)) {
					continue
				}
				return nil, res.Err
			}
			raw, _ := res.Val.([]string)
			return raw, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// LatestVersion returns the newest version of packageID, if any.
func (c *Catalog) LatestVersion(ctx context.Context, packageID string) (nuget.Version, bool) {
	versions := c.ListVersions(ctx, packageID)
	if len(versions) == 0 {
		return nuget.Version{}, false
	}
	return versions[0], true
}

// VersionsAround returns at most above+below+1 versions centred on
// reference. When reference does not parse or is not published, the most
// recent window is returned instead. Negative counts are treated as zero.
func (c *Catalog) VersionsAround(ctx context.Context, packageID, reference string, above, below int) []nuget.Version {
	return window(c.ListVersions(ctx, packageID), reference, above, below)
}

func window(versions []nuget.Version, reference string, above, below int) []nuget.Version {
	if len(versions) == 0 {
		return nil
	}
	above, below = max(above, 0), max(below, 0)

	idx := -1
	if ref, ok := nuget.TryParseVersion(reference); ok {
		for i, v := range versions {
			if v.Equal(ref) {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return versions[:min(above+below+1, len(versions))]
	}
	lo := max(0, idx-above)
	hi := min(len(versions)-1, idx+below)
	return versions[lo : hi+1]
}

// VersionStrings renders versions without build metadata.
func VersionStrings(versions []nuget.Version) []string {
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.String()
	}
	return out
}
