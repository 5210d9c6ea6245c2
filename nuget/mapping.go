package nuget

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/nulifyer/nuglyph/logger"
)

// ─────────────────────────────────────────────
// XML types for <packageSourceMapping>
// ─────────────────────────────────────────────

type packageSourceMappingXML struct {
	Sources []mappedSourceXML `xml:"packageSource"`
	Clear   []struct{}        `xml:"clear"`
}

type mappedSourceXML struct {
	Key      string             `xml:"key,attr"`
	Patterns []mappedPatternXML `xml:"package"`
}

type mappedPatternXML struct {
	Pattern string `xml:"pattern,attr"`
}

// ─────────────────────────────────────────────
// SourceMapping
// ─────────────────────────────────────────────

// SourceMapping holds the accumulated <packageSourceMapping> rules from one or
// more NuGet.Config files: source key → patterns it serves. Patterns are
// NuGet's "*", "Prefix.*" and exact ids, all case-insensitive.
type SourceMapping struct {
	entries map[string][]glob.Glob
}

// Add registers pattern for sourceKey.
func (m *SourceMapping) Add(sourceKey, pattern string) error {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return fmt.Errorf("empty pattern for source %q", sourceKey)
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return fmt.Errorf("source %q pattern %q: %w", sourceKey, pattern, err)
	}
	if m.entries == nil {
		m.entries = make(map[string][]glob.Glob)
	}
	m.entries[sourceKey] = append(m.entries[sourceKey], g)
	return nil
}

// IsConfigured returns true when at least one mapping entry exists.
// When false, all sources are tried.
func (m *SourceMapping) IsConfigured() bool {
	return m != nil && len(m.entries) > 0
}

// SourcesForPackage returns the sorted source keys allowed to serve
// packageID, or nil when the mapping is not configured.
func (m *SourceMapping) SourcesForPackage(packageID string) []string {
	if !m.IsConfigured() {
		return nil
	}
	id := strings.ToLower(packageID)
	var matched []string
	for sourceKey, patterns := range m.entries {
		for _, g := range patterns {
			if g.Match(id) {
				matched = append(matched, sourceKey)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}

// Filter returns the services allowed for packageID. If the mapping is not
// configured, or filtering would leave nothing, all services are returned.
func (m *SourceMapping) Filter(services []*Service, packageID string) []*Service {
	if !m.IsConfigured() {
		return services
	}
	allowed := m.SourcesForPackage(packageID)
	if len(allowed) == 0 {
		logger.Debug("Package %q matches no source mapping patterns; trying all sources", packageID)
		return services
	}
	var filtered []*Service
	for _, svc := range services {
		for _, k := range allowed {
			if strings.EqualFold(k, svc.Name()) {
				filtered = append(filtered, svc)
				break
			}
		}
	}
	if len(filtered) == 0 {
		logger.Debug("Package %q mapped to sources %v but none are available; trying all sources", packageID, allowed)
		return services
	}
	return filtered
}

func (m *SourceMapping) merge(x packageSourceMappingXML) {
	for _, src := range x.Sources {
		for _, p := range src.Patterns {
			if err := m.Add(src.Key, p.Pattern); err != nil {
				logger.Debug("ignoring package source mapping: %v", err)
			}
		}
	}
}
