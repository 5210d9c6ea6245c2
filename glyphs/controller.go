package glyphs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nulifyer/nuglyph/logger"
	"github.com/nulifyer/nuglyph/metrics"
	"github.com/nulifyer/nuglyph/nuget"
)

var (
	// ErrTargetNotFound means the line no longer holds the declaration that
	// was resolved, so nothing was written.
	ErrTargetNotFound = errors.New("version declaration not found on line")
	ErrInvalidVersion = errors.New("invalid version")
	ErrStarted        = errors.New("controller already started")
	ErrClosed         = errors.New("controller closed")
)

type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseResolving
	PhaseReady
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseResolving:
		return "resolving"
	case PhaseReady:
		return "ready"
	case PhaseClosed:
		return "closed"
	}
	return fmt.Sprintf("Phase(%d)", int32(p))
}

// VersionChoice is one entry of the version picker.
type VersionChoice struct {
	Version    string
	Current    bool
	PreRelease bool
}

const defaultConcurrency = 8

type Option func(*Controller)

// WithConcurrency bounds the number of catalog queries a pass runs at once.
func WithConcurrency(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithWindow sets how many versions above and below the declared one the
// picker shows.
func WithWindow(above, below int) Option {
	return func(c *Controller) {
		c.above, c.below = max(above, 0), max(below, 0)
	}
}

// WithIgnore drops references whose lowercased id matches any of the globs.
func WithIgnore(globs []glob.Glob) Option {
	return func(c *Controller) { c.ignore = globs }
}

// WithPublishHook is called with every state a pass publishes, before the
// render is posted.
func WithPublishHook(fn func(*State)) Option {
	return func(c *Controller) { c.onPublish = fn }
}

// CompileIgnore compiles package id patterns such as "Microsoft.*".
func CompileIgnore(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(strings.TrimSpace(p)))
		if err != nil {
			return nil, fmt.Errorf("ignore pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Controller keeps decorations in step with one document. A pass parses the
// document, resolves every reference and publishes a new State; content
// changes throw the state away and start another pass.
type Controller struct {
	doc     Document
	view    View
	surface Surface
	catalog *Catalog
	store   *StateStore

	concurrency  int
	above, below int
	ignore       []glob.Glob
	onPublish    func(*State)

	phase atomic.Int32

	mu          sync.Mutex
	started     bool
	closed      bool
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	generation  uint64
	cancelPass  context.CancelFunc
	invalidated uint64
	decorations map[int]DecorationHandle

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewController(doc Document, view View, surface Surface, catalog *Catalog, opts ...Option) *Controller {
	c := &Controller{
		doc:         doc,
		view:        view,
		surface:     surface,
		catalog:     catalog,
		store:       NewStateStore(),
		concurrency: defaultConcurrency,
		above:       DefaultAbove,
		below:       DefaultBelow,
		decorations: make(map[int]DecorationHandle),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Phase() Phase { return Phase(c.phase.Load()) }

// State returns the published state.
func (c *Controller) State() *State { return c.store.Current() }

// Start subscribes to the document and begins the first pass. Queries run
// under ctx until Close.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.started:
		c.mu.Unlock()
		return ErrStarted
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.invalidated = c.doc.Revision()
	c.store.Clear(c.invalidated)
	c.mu.Unlock()

	unsubscribe := c.doc.Subscribe(c.handleChange)
	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	c.startPass()
	return nil
}

// Close stops listening, cancels outstanding queries, removes every
// decoration and waits for running passes. Safe to call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		if c.cancel != nil {
			c.cancel()
		}
		unsubscribe := c.unsubscribe
		c.unsubscribe = nil
		c.removeDecorationsLocked()
		c.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		c.wg.Wait()
		c.phase.Store(int32(PhaseClosed))
	})
}

func (c *Controller) handleChange(ev ChangeEvent) {
	switch ev.Kind {
	case ContentChanged:
		c.invalidate(ev.Revision)
	case Reflowed:
		c.OnLayout(c.view.VisibleLines())
	}
}

// invalidate drops the state and decorations of an older revision and
// starts a pass for revision. Repeated calls for one revision are ignored.
func (c *Controller) invalidate(revision uint64) {
	c.mu.Lock()
	if c.closed || !c.started || revision == c.invalidated {
		c.mu.Unlock()
		return
	}
	c.invalidated = revision
	c.removeDecorationsLocked()
	c.store.Clear(revision)
	launch := c.supersedeLocked()
	c.mu.Unlock()

	logger.Trace("Document changed (revision %d); re-resolving", revision)
	launch()
}

func (c *Controller) startPass() {
	c.mu.Lock()
	launch := c.supersedeLocked()
	c.mu.Unlock()
	launch()
}

// supersedeLocked cancels the running pass and claims the next generation,
// so a pass that finishes after this can no longer publish. The returned
// func starts the new pass and must be called without c.mu held.
func (c *Controller) supersedeLocked() func() {
	if c.closed {
		return func() {}
	}
	if c.cancelPass != nil {
		c.cancelPass()
	}
	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelPass = cancel
	c.wg.Add(1)

	return func() {
		c.phase.Store(int32(PhaseResolving))
		text, revision := c.doc.Text()

		go func() {
			defer c.wg.Done()
			defer cancel()
			c.runPass(ctx, gen, text, revision)
		}()
	}
}

func (c *Controller) runPass(ctx context.Context, gen uint64, text string, revision uint64) {
	ctx, span := metrics.Tracer.Start(ctx, "glyphs.pass",
		trace.WithAttributes(attribute.Int64("revision", int64(revision))))
	defer span.End()
	start := time.Now()

	refs := c.filterIgnored(ParseReferences(text))
	resolved := make([]PackageReference, len(refs))
	found := make([]bool, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			latest, ok := c.catalog.LatestVersion(gctx, ref.PackageID)
			if !ok {
				logger.Debug("No versions found for %s; skipping line %d", ref.PackageID, ref.Line+1)
				return nil
			}
			ref.LatestVersion = latest.String()
			ref.Resolved = true
			resolved[i], found[i] = ref, true
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		logger.Trace("Pass %d for revision %d abandoned", gen, revision)
		return
	}

	kept := make([]PackageReference, 0, len(refs))
	for i, ok := range found {
		if ok {
			kept = append(kept, resolved[i])
		}
	}
	state := NewState(revision, kept)

	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		logger.Trace("Pass %d superseded; discarding", gen)
		return
	}
	c.removeDecorationsLocked()
	c.store.Replace(state)
	c.phase.Store(int32(PhaseReady))
	c.mu.Unlock()

	metrics.PassDuration.Observe(time.Since(start).Seconds())
	metrics.PassReferences.Set(float64(state.Len()))
	span.SetAttributes(attribute.Int("references", len(refs)), attribute.Int("resolved", state.Len()))
	logger.Debug("Resolved %d of %d references in %s", state.Len(), len(refs), time.Since(start).Round(time.Millisecond))

	if c.onPublish != nil {
		c.onPublish(state)
	}
	c.view.Post(func() { c.OnLayout(c.view.VisibleLines()) })
}

func (c *Controller) filterIgnored(refs []PackageReference) []PackageReference {
	if len(c.ignore) == 0 {
		return refs
	}
	kept := make([]PackageReference, 0, len(refs))
	for _, r := range refs {
		if Ignored(c.ignore, r.PackageID) {
			logger.Trace("Ignoring %s", r.PackageID)
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// Ignored reports whether packageID matches one of globs, ignoring case.
func Ignored(globs []glob.Glob, packageID string) bool {
	id := strings.ToLower(packageID)
	for _, g := range globs {
		if g.Match(id) {
			return true
		}
	}
	return false
}

// OnLayout places one decoration for each of lines that has a resolved
// reference and none yet. It does nothing while the published state
// belongs to an older revision. Hosts call it on their UI sequence.
func (c *Controller) OnLayout(lines []int) {
	state := c.store.Current()
	if state.Revision != c.doc.Revision() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.store.Current() != state {
		return
	}
	for _, line := range lines {
		ref, ok := state.Lookup(line)
		if !ok {
			continue
		}
		if _, placed := c.decorations[line]; placed {
			continue
		}
		c.decorations[line] = c.surface.PlaceDecoration(line, ref.Kind(), ref.Tooltip())
	}
}

func (c *Controller) removeDecorationsLocked() {
	for line, h := range c.decorations {
		c.surface.RemoveDecoration(h)
		delete(c.decorations, line)
	}
}

// Decorated reports whether line currently has a decoration.
func (c *Controller) Decorated(line int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.decorations[line]
	return ok
}

// VersionChoices lists the versions around the declared version of the
// reference on line. The bool is false when line has no resolved
// reference; an empty list means no versions are available.
func (c *Controller) VersionChoices(ctx context.Context, line int) ([]VersionChoice, bool) {
	ref, ok := c.store.Lookup(line)
	if !ok {
		return nil, false
	}
	declared, declaredOK := nuget.TryParseVersion(ref.DeclaredVersion)
	versions := c.catalog.VersionsAround(ctx, ref.PackageID, ref.DeclaredVersion, c.above, c.below)

	choices := make([]VersionChoice, 0, len(versions))
	for _, v := range versions {
		choices = append(choices, VersionChoice{
			Version:    v.String(),
			Current:    declaredOK && v.Equal(declared),
			PreRelease: v.IsPreRelease(),
		})
	}
	return choices, true
}

// SelectVersion rewrites the declared version of the reference on line to
// version as one whole-line edit, then starts a new pass. The document is
// left untouched when the line no longer carries the resolved declaration.
func (c *Controller) SelectVersion(line int, version string) error {
	if version == "" || strings.ContainsAny(version, "\"<>\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}
	ref, ok := c.store.Lookup(line)
	if !ok {
		metrics.Replacements.WithLabelValues(metrics.ReplaceNotFound).Inc()
		return fmt.Errorf("%w: no reference on line %d", ErrTargetNotFound, line+1)
	}

	current, err := c.doc.LineText(line)
	if err != nil {
		metrics.Replacements.WithLabelValues(metrics.ReplaceNotFound).Inc()
		return fmt.Errorf("%w: %v", ErrTargetNotFound, err)
	}
	updated, ok := replaceDeclaredVersion(current, ref, version)
	if !ok {
		metrics.Replacements.WithLabelValues(metrics.ReplaceNotFound).Inc()
		return fmt.Errorf("%w: %s %s on line %d", ErrTargetNotFound, ref.PackageID, ref.DeclaredVersion, line+1)
	}
	if updated == current {
		return nil
	}

	if err := c.doc.ReplaceLine(line, updated); err != nil {
		metrics.Replacements.WithLabelValues(metrics.ReplaceError).Inc()
		return fmt.Errorf("replacing line %d: %w", line+1, err)
	}
	metrics.Replacements.WithLabelValues(metrics.ReplaceOK).Inc()
	logger.Info("%s: %s → %s", ref.PackageID, ref.DeclaredVersion, version)

	c.invalidate(c.doc.Revision())
	return nil
}
