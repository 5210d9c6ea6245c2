package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulifyer/nuglyph/config"
	"github.com/nulifyer/nuglyph/editor"
	"github.com/nulifyer/nuglyph/glyphs"
)

const checkProject = `<Project Sdk="Microsoft.NET.Sdk">
  <ItemGroup>
    <PackageReference Include="Serilog" Version="3.1.1" />
    <PackageReference Include="Newtonsoft.Json" Version="12.0.0" />
    <PackageReference Include="Internal.Tools" Version="1.0.0" />
    <PackageReference Include="Gone.Package" Version="0.1.0" />
  </ItemGroup>
</Project>`

type staticRegistry map[string][]string

func (r staticRegistry) Versions(_ context.Context, id string) ([]string, error) {
	vs, ok := r[strings.ToLower(id)]
	if !ok {
		return nil, errors.New("not found")
	}
	return vs, nil
}

func TestFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want BuiltFlags
	}{
		{
			name: "defaults",
			args: []string{"App.csproj"},
			want: BuiltFlags{Project: "App.csproj", Verbosity: "warn", Theme: "auto"},
		},
		{
			name: "everything",
			args: []string{"-p", "x.fsproj", "-c", "cfg.yaml", "-v", "debug", "-nc", "-t", "nord", "--check", "--metrics-addr", ":9464", "--no-watch"},
			want: BuiltFlags{
				Project: "x.fsproj", Config: "cfg.yaml", Verbosity: "debug", NoColor: true,
				Theme: "nord", Check: true, MetricsAddr: ":9464", NoWatch: true,
				themeSet: true, metricsAddrSet: true,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := newFlagRegistry().Parse(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, BuildFlags(parsed))
		})
	}

	_, err := newFlagRegistry().Parse([]string{"-t", "neon"})
	assert.Error(t, err, "unknown theme")
}

func TestResolveManifest(t *testing.T) {
	dir := t.TempDir()
	_, err := resolveManifest(dir)
	assert.ErrorContains(t, err, "no project file")

	app := filepath.Join(dir, "App.csproj")
	require.NoError(t, os.WriteFile(app, []byte(checkProject), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))
	got, err := resolveManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, app, got)

	got, err = resolveManifest(app)
	require.NoError(t, err)
	assert.Equal(t, app, got)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Directory.Build.props"), nil, 0o644))
	_, err = resolveManifest(dir)
	assert.ErrorContains(t, err, "several project files")

	_, err = resolveManifest(filepath.Join(dir, "missing.csproj"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildRegistry_ConfiguredSources(t *testing.T) {
	cfg := config.Default()
	cfg.Sources = []string{"https://pkgs.example/v3/index.json", "https://other.example/nuget/v3/index.json"}

	services := buildRegistry(cfg, t.TempDir()).Services()
	require.Len(t, services, 2)
	assert.Equal(t, "pkgs.example", services[0].Name())
	assert.Equal(t, "https://other.example/nuget/v3/index.json", services[1].URL())
}

func TestRunCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "App.csproj")
	require.NoError(t, os.WriteFile(path, []byte(checkProject), 0o644))
	buf, err := editor.Open(path)
	require.NoError(t, err)

	catalog := glyphs.NewCatalog(staticRegistry{
		"serilog":         {"2.12.0", "3.1.1"},
		"newtonsoft.json": {"12.0.0", "13.0.3"},
		"internal.tools":  {"1.0.0", "2.0.0"},
	})
	ignore, err := glyphs.CompileIgnore([]string{"Internal.*"})
	require.NoError(t, err)

	var out strings.Builder
	updates, err := runCheck(context.Background(), &out, buf, catalog, ignore,
		[]glyphs.Option{glyphs.WithIgnore(ignore)})
	require.NoError(t, err)
	assert.Equal(t, 1, updates)

	report := out.String()
	assert.Contains(t, report, path)
	for _, want := range []string{"✅ up to date", "⬆  update available", "ignored", "❌ not found", "13.0.3"} {
		assert.Contains(t, report, want)
	}
	for _, line := range strings.Split(report, "\n") {
		if strings.Contains(line, "Internal.Tools") {
			assert.Contains(t, line, "latest: - ", "ignored packages are not resolved")
		}
	}
}

func TestRunCheck_Cancelled(t *testing.T) {
	buf := editor.NewBuffer("App.csproj", checkProject)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runCheck(ctx, &strings.Builder{}, buf, glyphs.NewCatalog(staticRegistry{}), nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteReport_Empty(t *testing.T) {
	var out strings.Builder
	writeReport(&out, "App.csproj", nil, 0)
	assert.Contains(t, out.String(), "no package references")
}

func TestFitWidth(t *testing.T) {
	assert.Equal(t, "Serilog", fitWidth("Serilog", 10))
	assert.Equal(t, "Micros…", fitWidth("Microsoft.Extensions", 7))
}
