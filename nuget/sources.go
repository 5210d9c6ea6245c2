package nuget

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/nulifyer/nuglyph/logger"
)

// ─────────────────────────────────────────────
// NuGet.config XML types
// ─────────────────────────────────────────────

type nugetConfig struct {
	XMLName              xml.Name                  `xml:"configuration"`
	PackageSources       []packageSource           `xml:"packageSources>add"`
	PackageSourcesClear  []struct{}                `xml:"packageSources>clear"` // <clear /> stops inheritance
	DisabledSources      []packageSource           `xml:"disabledPackageSources>add"`
	PackageSourceMapping []packageSourceMappingXML `xml:"packageSourceMapping"`
}

type packageSource struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

// ─────────────────────────────────────────────
// Detection
// ─────────────────────────────────────────────

// DetectSources finds the NuGet feeds relevant to a manifest directory.
// Sources are collected in priority order: directory and parents → user →
// machine. A <clear /> inside <packageSources> stops inheritance. Duplicates
// (by URL) are removed. Falls back to nuget.org if nothing is found.
// Credentials in the configs are ignored.
func DetectSources(dir string) ([]Source, *SourceMapping) {
	seen := make(map[string]struct{})
	var sources []Source
	mapping := &SourceMapping{}
	mappingCleared := false

	add := func(s Source) {
		key := strings.ToLower(strings.TrimRight(s.URL, "/"))
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		sources = append(sources, s)
	}

	// addConfig reports whether the file declared <clear/> in packageSources.
	addConfig := func(path string) bool {
		srcs, m, cleared := sourcesFromNugetConfig(path)
		for _, s := range srcs {
			add(s)
		}
		if !mappingCleared {
			for _, x := range m {
				mapping.merge(x)
				if len(x.Clear) > 0 {
					mappingCleared = true
				}
			}
		}
		return cleared
	}

	cleared := false
	for d := dir; ; {
		for _, name := range []string{"nuget.config", "NuGet.Config", filepath.Join(".nuget", "NuGet.Config")} {
			if addConfig(filepath.Join(d, name)) {
				cleared = true
			}
		}
		for _, s := range sourcesFromBuildProps(filepath.Join(d, "Directory.Build.props")) {
			add(s)
		}
		if cleared {
			break
		}
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}

	if !cleared {
		cleared = addConfig(userNugetConfigPath())
	}
	if !cleared {
		addConfig(machineNugetConfigPath())
	}

	if len(sources) == 0 {
		add(Source{Name: DefaultSourceName, URL: DefaultSourceURL})
	}
	return sources, mapping
}

// sourcesFromNugetConfig parses a NuGet.Config file. The bool is true when a
// <clear /> element was found inside <packageSources>.
func sourcesFromNugetConfig(path string) ([]Source, []packageSourceMappingXML, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, false
	}
	logger.Trace("sourcesFromNugetConfig: reading %q", path)

	var cfg nugetConfig
	if err := xml.Unmarshal(data, &cfg); err != nil {
		logger.Debug("sourcesFromNugetConfig: %q is not valid XML: %v", path, err)
		return nil, nil, false
	}

	disabled := make(map[string]struct{}, len(cfg.DisabledSources))
	for _, d := range cfg.DisabledSources {
		disabled[strings.ToLower(d.Key)] = struct{}{}
	}

	var sources []Source
	for _, ps := range cfg.PackageSources {
		if _, off := disabled[strings.ToLower(ps.Key)]; off {
			logger.Trace("sourcesFromNugetConfig: [%s] skipped (disabled)", ps.Key)
			continue
		}
		// Only http/https sources; local folder feeds are not queried.
		if !isHTTP(ps.Value) {
			logger.Trace("sourcesFromNugetConfig: [%s] skipped (not http/https: %q)", ps.Key, ps.Value)
			continue
		}
		sources = append(sources, Source{Name: ps.Key, URL: ps.Value})
	}
	return sources, cfg.PackageSourceMapping, len(cfg.PackageSourcesClear) > 0
}

func sourcesFromBuildProps(path string) []Source {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	type propertyGroup struct {
		RestoreSources string `xml:"RestoreSources"`
	}
	type msbuild struct {
		PropertyGroups []propertyGroup `xml:"PropertyGroup"`
	}

	var props msbuild
	if err := xml.Unmarshal(data, &props); err != nil {
		return nil
	}

	var sources []Source
	for _, pg := range props.PropertyGroups {
		for _, raw := range strings.Split(pg.RestoreSources, ";") {
			raw = strings.TrimSpace(raw)
			if isHTTP(raw) {
				sources = append(sources, Source{Name: raw, URL: raw})
			}
		}
	}
	return sources
}

func isHTTP(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// ─────────────────────────────────────────────
// OS-specific config paths
// ─────────────────────────────────────────────

func userNugetConfigPath() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "NuGet", "NuGet.Config")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nuget", "NuGet", "NuGet.Config")
}

func machineNugetConfigPath() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("ProgramData"), "NuGet", "NuGet.Config")
	}
	return "/etc/opt/nuget/NuGet.Config"
}

// ─────────────────────────────────────────────
// Multi-source registry
// ─────────────────────────────────────────────

// Sources queries several feeds in order and returns the first non-empty
// listing, honouring the package source mapping.
type Sources struct {
	services []*Service
	mapping  *SourceMapping
}

func NewSources(services []*Service, mapping *SourceMapping) *Sources {
	return &Sources{services: services, mapping: mapping}
}

func (s *Sources) Services() []*Service { return s.services }

func (s *Sources) Versions(ctx context.Context, packageID string) ([]string, error) {
	candidates := s.mapping.Filter(s.services, packageID)
	if len(candidates) == 0 {
		return nil, errors.New("no package sources configured")
	}
	var errs []error
	for _, svc := range candidates {
		versions, err := svc.Versions(ctx, packageID)
		if err == nil && len(versions) > 0 {
			return versions, nil
		}
		if err == nil {
			err = fmt.Errorf("%w: %s", ErrNotFound, packageID)
		}
		logger.Debug("Source [%s] failed for %s: %v", svc.Name(), packageID, err)
		errs = append(errs, fmt.Errorf("[%s] %w", svc.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}
