package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"time"

	bubble_tea "github.com/charmbracelet/bubbletea"

	"github.com/nulifyer/nuglyph/arger"
	"github.com/nulifyer/nuglyph/config"
	"github.com/nulifyer/nuglyph/editor"
	"github.com/nulifyer/nuglyph/glyphs"
	"github.com/nulifyer/nuglyph/logger"
	"github.com/nulifyer/nuglyph/metrics"
	"github.com/nulifyer/nuglyph/nuget"
)

// -------------------------------
// Setup & CLI Flags
// --------------------------------
const (
	Flag_Project     = "project"
	Flag_Config      = "config"
	Flag_Verbosity   = "verbosity"
	Flag_NoColor     = "no-color"
	Flag_Theme       = "theme"
	Flag_Check       = "check"
	Flag_MetricsAddr = "metrics-addr"
	Flag_NoWatch     = "no-watch"
)

var manifestExts = []string{".csproj", ".fsproj", ".vbproj", ".props", ".targets"}

type BuiltFlags struct {
	Project     string
	Config      string
	Verbosity   string
	NoColor     bool
	Theme       string
	Check       bool
	MetricsAddr string
	NoWatch     bool

	themeSet       bool
	metricsAddrSet bool
}

func BuildFlags(flags map[string]arger.IParsedFlag) BuiltFlags {
	return BuiltFlags{
		Project:        arger.Get[string](flags, Flag_Project),
		Config:         arger.Get[string](flags, Flag_Config),
		Verbosity:      arger.Get[string](flags, Flag_Verbosity),
		NoColor:        arger.Get[bool](flags, Flag_NoColor),
		Theme:          arger.Get[string](flags, Flag_Theme),
		Check:          arger.Get[bool](flags, Flag_Check),
		MetricsAddr:    arger.Get[string](flags, Flag_MetricsAddr),
		NoWatch:        arger.Get[bool](flags, Flag_NoWatch),
		themeSet:       arger.IsSet(flags, Flag_Theme),
		metricsAddrSet: arger.IsSet(flags, Flag_MetricsAddr),
	}
}

func newFlagRegistry() *arger.Registry {
	r := arger.New("nuglyph")
	r.MustRegister(arger.Flag[string]{
		Name:        Flag_Project,
		Aliases:     []string{"-p", "--project"},
		Positional:  true,
		Description: "Manifest file to open, or a directory holding exactly one (defaults to the current directory)",
		DefaultFunc: func() string {
			dir, err := os.Getwd()
			if err != nil {
				logger.Fatal("Couldn't get current working directory")
			}
			return dir
		},
	})
	r.MustRegister(arger.Flag[string]{
		Name:        Flag_Config,
		Aliases:     []string{"-c", "--config"},
		Default:     arger.Optional(""),
		Description: "Path to a " + config.FileName + " file (defaults to the nearest one above the manifest)",
	})
	r.MustRegister(arger.Flag[string]{
		Name:           Flag_Verbosity,
		Aliases:        []string{"-v", "--verbosity"},
		Default:        arger.Optional("warn"),
		Description:    "Set the logging verbosity level",
		ExpectedValues: []string{"", "none", "error", "err", "warn", "warning", "info", "debug", "dbg", "trace", "trc"},
	})
	r.MustRegister(arger.Flag[bool]{
		Name:        Flag_NoColor,
		Aliases:     []string{"-nc", "--no-color"},
		Default:     arger.Optional(false),
		Switch:      true,
		Description: "Disable colored output in the terminal",
	})
	r.MustRegister(arger.Flag[string]{
		Name:           Flag_Theme,
		Aliases:        []string{"-t", "--theme"},
		Default:        arger.Optional("auto"),
		Description:    "Color theme for the editor",
		ExpectedValues: editor.ThemeNames(),
	})
	r.MustRegister(arger.Flag[bool]{
		Name:        Flag_Check,
		Aliases:     []string{"--check"},
		Default:     arger.Optional(false),
		Switch:      true,
		Description: "Print a report of every package reference and exit; exits 1 when updates are available",
	})
	r.MustRegister(arger.Flag[string]{
		Name:        Flag_MetricsAddr,
		Aliases:     []string{"--metrics-addr"},
		Default:     arger.Optional(""),
		Description: "Serve Prometheus metrics and /health on this address, e.g. 127.0.0.1:9464",
	})
	r.MustRegister(arger.Flag[bool]{
		Name:        Flag_NoWatch,
		Aliases:     []string{"--no-watch"},
		Default:     arger.Optional(false),
		Switch:      true,
		Description: "Do not reload the manifest when it changes on disk",
	})
	return r
}

func Init() BuiltFlags {
	logger.SetColor(false)

	registry := newFlagRegistry()
	parsedFlags, err := registry.Parse(os.Args[1:])
	if errors.Is(err, arger.ErrHelp) {
		registry.PrintUsage(os.Stdout)
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		registry.PrintUsage(os.Stderr)
		os.Exit(2)
	}
	builtFlags := BuildFlags(parsedFlags)

	// flag > LOG_LEVEL > default
	levelStr := builtFlags.Verbosity
	if env := os.Getenv("LOG_LEVEL"); env != "" && !arger.IsSet(parsedFlags, Flag_Verbosity) {
		levelStr = env
	}
	logger.SetLevel(logger.ParseLevel(levelStr))
	logger.SetColor(!builtFlags.NoColor)

	return builtFlags
}

// -------------------------------
// Main
// --------------------------------
func main() {
	os.Exit(run(Init()))
}

func run(builtFlags BuiltFlags) int {
	manifest, err := resolveManifest(builtFlags.Project)
	if err != nil {
		logger.Fatal("%v", err)
	}
	logger.Info("Opening %s", manifest)

	cfg := loadConfig(builtFlags.Config, filepath.Dir(manifest))
	if builtFlags.themeSet {
		cfg.Theme = builtFlags.Theme
	}
	if builtFlags.metricsAddrSet {
		cfg.MetricsAddr = builtFlags.MetricsAddr
	}
	if builtFlags.NoWatch {
		cfg.Watch = false
	}
	editor.InitTheme(cfg.Theme, builtFlags.NoColor)

	ignore, err := glyphs.CompileIgnore(cfg.Ignore)
	if err != nil {
		logger.Fatal("%v", err)
	}

	registry := buildRegistry(cfg, filepath.Dir(manifest))
	catalog := glyphs.NewCatalog(registry)
	opts := []glyphs.Option{
		glyphs.WithConcurrency(cfg.Concurrency),
		glyphs.WithWindow(cfg.Window.Above, cfg.Window.Below),
		glyphs.WithIgnore(ignore),
	}

	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr)
		if err := srv.Start(); err != nil {
			logger.Fatal("Starting metrics server: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Stop(ctx)
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	buf, err := editor.Open(manifest)
	if err != nil {
		logger.Fatal("%v", err)
	}

	if builtFlags.Check {
		updates, err := runCheck(ctx, os.Stdout, buf, catalog, ignore, opts)
		if err != nil {
			logger.Fatal("%v", err)
		}
		if updates > 0 {
			return 1
		}
		return 0
	}

	if err := runEditor(ctx, buf, catalog, opts, cfg.Watch, builtFlags.NoColor); err != nil {
		logger.Error("%v", err)
		return 1
	}
	logger.Trace("done")
	return 0
}

func runEditor(ctx context.Context, buf *editor.Buffer, catalog *glyphs.Catalog, opts []glyphs.Option, watch, noColor bool) error {
	host := editor.NewHost()
	ctrl := glyphs.NewController(buf, host, host, catalog, opts...)
	sink := editor.NewLogSink()

	model := editor.NewModel(ctx, buf, ctrl, host, sink, noColor)
	p := bubble_tea.NewProgram(model, bubble_tea.WithAltScreen(), bubble_tea.WithContext(ctx))
	host.Attach(p.Send)

	logger.SetOutput(sink)
	defer logger.SetOutput(nil)

	if watch {
		w, err := editor.NewWatcher(buf.Path(), 0, func() { p.Send(editor.FileChangedMsg{}) })
		if err != nil {
			logger.Warn("Not watching %s: %v", buf.Path(), err)
		} else {
			defer w.Close()
		}
	}

	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	_, err := p.Run()
	// Run has returned, so posts from a pass still in flight no longer block.
	ctrl.Close()
	if errors.Is(err, bubble_tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// -------------------------------
// Helper Functions
// --------------------------------

// resolveManifest accepts a manifest file or a directory holding exactly one.
func resolveManifest(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("couldn't get absolute path for %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return abs, nil
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return "", err
	}
	var found []string
	for _, e := range entries {
		if !e.IsDir() && slices.Contains(manifestExts, strings.ToLower(filepath.Ext(e.Name()))) {
			found = append(found, filepath.Join(abs, e.Name()))
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("no project file (%s) in %s", strings.Join(manifestExts, ", "), abs)
	case 1:
		return found[0], nil
	default:
		names := make([]string, len(found))
		for i, f := range found {
			names[i] = filepath.Base(f)
		}
		return "", fmt.Errorf("%s holds several project files (%s); pass one explicitly", abs, strings.Join(names, ", "))
	}
}

func loadConfig(explicit, dir string) *config.Config {
	path := explicit
	if path == "" {
		path = config.Find(dir)
	}
	if path == "" {
		logger.Debug("No %s found; using defaults", config.FileName)
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatal("%v", err)
	}
	logger.Info("Loaded config %s", path)
	return cfg
}

func buildRegistry(cfg *config.Config, dir string) *nuget.Sources {
	var (
		sources []nuget.Source
		mapping *nuget.SourceMapping
	)
	if len(cfg.Sources) > 0 {
		for _, s := range cfg.Sources {
			name := s
			if u, err := url.Parse(s); err == nil && u.Host != "" {
				name = u.Host
			}
			sources = append(sources, nuget.Source{Name: name, URL: s})
		}
	} else {
		sources, mapping = nuget.DetectSources(dir)
	}

	logger.Info("Using %d NuGet source(s):", len(sources))
	services := make([]*nuget.Service, 0, len(sources))
	for _, src := range sources {
		logger.Info("  [%s] %s", src.Name, src.URL)
		services = append(services, nuget.NewService(src,
			nuget.WithRateLimit(cfg.RequestsPerSecond, cfg.Burst),
			nuget.WithTimeout(cfg.Timeout),
		))
	}
	return nuget.NewSources(services, mapping)
}
