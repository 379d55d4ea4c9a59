// Package builder drives the compile pipeline: it walks the source tree,
// runs parse/expand/compose per page, resolves and copies linked assets, and
// maintains the dependency graph that watch mode consults for minimal
// rebuilds.
package builder

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/hpy/internal/compositor"
	"github.com/conneroisu/hpy/internal/config"
	hpyerrors "github.com/conneroisu/hpy/internal/errors"
	"github.com/conneroisu/hpy/internal/expander"
	"github.com/conneroisu/hpy/internal/logging"
	"github.com/conneroisu/hpy/internal/parser"
	"github.com/conneroisu/hpy/internal/registry"
)

// Builder compiles an hpy project directory.
type Builder struct {
	cfg *config.Config
	log logging.Logger

	parser     *parser.Parser
	registry   *registry.ComponentRegistry
	expander   *expander.Expander
	compositor *compositor.Compositor
	graph      *DependencyGraph

	inputRoot  string // absolute
	staticRoot string // absolute, "" when static handling is disabled

	layout *parser.SourceDocument
	shell  string
}

// New creates a builder rooted at the configured input directory.
func New(cfg *config.Config, log logging.Logger) (*Builder, error) {
	if log == nil {
		log = logging.NopLogger()
	}
	inputRoot, err := filepath.Abs(cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("resolving input dir: %w", err)
	}

	p := parser.New(log)
	componentsDir := ""
	if cfg.ComponentsDirName != "" {
		componentsDir = filepath.Join(inputRoot, cfg.ComponentsDirName)
	}
	reg := registry.New(componentsDir, log)

	staticRoot := ""
	if cfg.StaticDirName != "" {
		staticRoot = filepath.Join(inputRoot, cfg.StaticDirName)
	}

	return &Builder{
		cfg:        cfg,
		log:        log.WithComponent("builder"),
		parser:     p,
		registry:   reg,
		expander:   expander.New(p, reg, log),
		compositor: compositor.New(log),
		graph:      NewDependencyGraph(),
		inputRoot:  inputRoot,
		staticRoot: staticRoot,
	}, nil
}

// Graph exposes the dependency graph for the watch loop.
func (b *Builder) Graph() *DependencyGraph {
	return b.graph
}

// InputRoot returns the absolute source root.
func (b *Builder) InputRoot() string {
	return b.inputRoot
}

// CompileDirectory performs a full build of the project into the effective
// output directory for the mode. Per-page failures are collected and logged;
// the returned error summarizes them so callers can exit nonzero without a
// single bad page aborting the batch. A broken layout fails the whole build;
// the watch loop uses the lenient variant instead.
func (b *Builder) CompileDirectory(ctx context.Context, devWatch bool) error {
	return b.compileDirectory(ctx, devWatch, false)
}

func (b *Builder) compileDirectory(ctx context.Context, devWatch, lenientLayout bool) error {
	start := time.Now()
	outputRoot := b.cfg.EffectiveOutputDir(devWatch)

	if err := b.prepare(ctx, lenientLayout); err != nil {
		return err
	}
	b.graph.Clear()

	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return hpyerrors.Resource(outputRoot, err, "could not create output directory")
	}

	pages, err := b.collectPages()
	if err != nil {
		return err
	}

	collector := hpyerrors.NewErrorCollector()
	compiled := 0
	for _, page := range pages {
		if err := b.compilePage(ctx, page, outputRoot, devWatch); err != nil {
			b.log.Error(ctx, err, "page failed", "file", b.relName(page))
			collector.Add(err)
			continue
		}
		compiled++
	}

	if err := b.copyStaticTree(ctx, outputRoot); err != nil {
		collector.Add(err)
	}

	b.log.Info(ctx, "build finished",
		"pages", compiled,
		"errors", collector.Count(),
		"output", outputRoot,
		"duration", time.Since(start).Round(time.Millisecond).String())

	if collector.HasErrors() {
		return fmt.Errorf("build completed with %d error(s)", collector.Count())
	}
	return nil
}

// CompileFile builds a single page. The path must resolve inside the input
// root and must not be the layout or app shell.
func (b *Builder) CompileFile(ctx context.Context, pagePath string, devWatch bool) error {
	abs, err := filepath.Abs(pagePath)
	if err != nil {
		return hpyerrors.Resource(pagePath, err, "could not resolve path")
	}
	if !b.inside(b.inputRoot, abs) {
		return hpyerrors.Reference(filepath.Base(abs), "file is outside the source directory %s", b.cfg.InputDir)
	}
	base := filepath.Base(abs)
	if base == config.LayoutFilename || base == config.AppShellFilename {
		return hpyerrors.Structural(base, "not a page; layouts and app shells are not compiled directly")
	}

	if err := b.prepare(ctx, false); err != nil {
		return err
	}
	outputRoot := b.cfg.EffectiveOutputDir(devWatch)
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return hpyerrors.Resource(outputRoot, err, "could not create output directory")
	}
	return b.compilePage(ctx, abs, outputRoot, devWatch)
}

// prepare reloads the cached layout, app shell, and component registry. With
// lenientLayout, an unparsable layout degrades to "no layout" with a warning
// instead of failing, so a watch batch still rebuilds the other edits.
func (b *Builder) prepare(ctx context.Context, lenientLayout bool) error {
	if err := b.registry.Scan(); err != nil {
		return err
	}

	b.layout = nil
	layoutPath := filepath.Join(b.inputRoot, config.LayoutFilename)
	if _, err := os.Stat(layoutPath); err == nil {
		doc, err := b.parser.ParseFile(layoutPath, true)
		switch {
		case err == nil:
			b.layout = doc
			b.log.Debug(ctx, "layout loaded", "file", config.LayoutFilename)
		case lenientLayout:
			b.log.Warn(ctx, err, "layout failed to parse; building without it",
				"file", config.LayoutFilename)
		default:
			return err
		}
	}

	b.shell = ""
	shellPath := filepath.Join(b.inputRoot, config.AppShellFilename)
	if raw, err := os.ReadFile(shellPath); err == nil {
		b.shell = string(raw)
		b.log.Debug(ctx, "app shell loaded", "file", config.AppShellFilename)
	}
	return nil
}

// collectPages walks the input tree for compilable .hpy pages, honoring the
// ignore globs and skipping the static and components subtrees.
func (b *Builder) collectPages() ([]string, error) {
	var pages []string
	err := filepath.WalkDir(b.inputRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if b.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if b.isPage(path) && !b.ignored(path) {
			pages = append(pages, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, hpyerrors.Resource(b.cfg.InputDir, err, "source directory not found")
		}
		return nil, hpyerrors.Resource(b.cfg.InputDir, err, "could not walk source directory")
	}
	return pages, nil
}

func (b *Builder) skipDir(path string) bool {
	if path == b.inputRoot {
		return false
	}
	if b.staticRoot != "" && path == b.staticRoot {
		return true
	}
	if b.cfg.ComponentsDirName != "" && path == filepath.Join(b.inputRoot, b.cfg.ComponentsDirName) {
		return true
	}
	return b.ignored(path)
}

// isPage reports whether path is a compilable page source.
func (b *Builder) isPage(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), parser.Extension) {
		return false
	}
	base := filepath.Base(path)
	return base != config.LayoutFilename && !strings.HasPrefix(base, "_")
}

// ignored matches the input-relative path against the configured globs.
func (b *Builder) ignored(path string) bool {
	rel, err := filepath.Rel(b.inputRoot, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range b.cfg.Build.Ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// compilePage runs the full parse/expand/compose pipeline for one page and
// writes the resulting HTML plus any copied assets under outputRoot.
func (b *Builder) compilePage(ctx context.Context, page, outputRoot string, devWatch bool) error {
	name := b.relName(page)
	b.log.Debug(ctx, "compiling page", "file", name)

	doc, err := b.parser.ParseFile(page, false)
	if err != nil {
		return err
	}

	body, scopedStyles := b.expander.Expand(doc.BodyMarkup, doc.Components)

	rel, err := filepath.Rel(b.inputRoot, page)
	if err != nil {
		return hpyerrors.Resource(name, err, "could not relativize page path")
	}
	outPath := filepath.Join(outputRoot, strings.TrimSuffix(rel, parser.Extension)+".html")
	outDir := filepath.Dir(outPath)

	scriptSrc, scriptAbs, err := b.resolveScript(ctx, doc, page, outputRoot, outDir)
	if err != nil {
		return err
	}

	cssLinks, cssAbs, err := b.resolveStyles(doc, page, outputRoot, outDir)
	if err != nil {
		return err
	}

	inputs := compositor.PageInputs{
		SourceName:        name,
		OutputStem:        strings.TrimSuffix(filepath.Base(page), parser.Extension),
		PageHead:          doc.HeadFragment,
		PageBody:          body,
		PageStyle:         doc.StyleText,
		PageInlineScript:  doc.InlineScript,
		ExternalScriptSrc: scriptSrc,
		Layout:            b.layout,
		ShellTemplate:     b.shell,
		CSSLinks:          cssLinks,
		ScopedStyles:      scopedStyles,
	}
	mode := compositor.Mode{DevWatch: devWatch, Production: b.cfg.Production}

	html, err := b.compositor.Compose(inputs, mode)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return hpyerrors.Resource(name, err, "could not create output directory %s", outDir)
	}
	if err := os.WriteFile(outPath, []byte(html), 0o644); err != nil {
		return hpyerrors.Resource(name, err, "could not write %s", outPath)
	}

	b.graph.SetPage(page, scriptAbs, cssAbs)
	b.log.Info(ctx, "compiled", "file", name, "output", outPath)
	return nil
}

// resolveScript determines the page's external script. An explicit src must
// name an existing file inside the source root and outside the static tree;
// absent an explicit src, a same-stem .py sibling is picked up by convention.
// The script is copied into the output mirror with the helper prelude
// prepended, and the returned src is relative to the page's output directory.
func (b *Builder) resolveScript(ctx context.Context, doc *parser.SourceDocument, page, outputRoot, outDir string) (src, abs string, err error) {
	name := b.relName(page)

	var scriptPath string
	if doc.ExternalScriptRef != "" {
		scriptPath = filepath.Join(filepath.Dir(page), doc.ExternalScriptRef)
		if !b.inside(b.inputRoot, scriptPath) {
			return "", "", hpyerrors.Reference(name, "script %q resolves outside the source directory", doc.ExternalScriptRef)
		}
		if b.staticRoot != "" && b.inside(b.staticRoot, scriptPath) {
			return "", "", hpyerrors.Reference(name, "script %q resolves inside the static directory; static files are copied verbatim", doc.ExternalScriptRef)
		}
		if _, statErr := os.Stat(scriptPath); statErr != nil {
			return "", "", hpyerrors.Reference(name, "script %q not found", doc.ExternalScriptRef)
		}
	} else {
		// Conventional sibling: page.hpy -> page.py.
		conventional := strings.TrimSuffix(page, parser.Extension) + ".py"
		if _, statErr := os.Stat(conventional); statErr == nil {
			if doc.InlineScript != "" {
				b.log.Debug(ctx, "inline python ignored; conventional script present",
					"file", name, "script", filepath.Base(conventional))
			}
			scriptPath = conventional
		}
	}
	if scriptPath == "" {
		return "", "", nil
	}

	rel, relErr := filepath.Rel(b.inputRoot, scriptPath)
	if relErr != nil {
		return "", "", hpyerrors.Resource(name, relErr, "could not relativize script path")
	}
	outScript := filepath.Join(outputRoot, rel)

	raw, readErr := os.ReadFile(scriptPath)
	if readErr != nil {
		return "", "", hpyerrors.Resource(name, readErr, "could not read script %s", rel)
	}
	if mkErr := os.MkdirAll(filepath.Dir(outScript), 0o755); mkErr != nil {
		return "", "", hpyerrors.Resource(name, mkErr, "could not create script output directory")
	}
	content := compositor.HelperCode + "\n" + string(raw)
	if writeErr := os.WriteFile(outScript, []byte(content), 0o644); writeErr != nil {
		return "", "", hpyerrors.Resource(name, writeErr, "could not write script %s", outScript)
	}

	htmlRel, relErr := filepath.Rel(outDir, outScript)
	if relErr != nil {
		return "", "", hpyerrors.Resource(name, relErr, "could not relativize script for output")
	}
	return filepath.ToSlash(htmlRel), scriptPath, nil
}

// resolveStyles validates and copies the external stylesheets linked by the
// cached layout and by the page, in that order, deduplicating by absolute
// source path while preserving first-seen order. Layout refs resolve relative
// to the layout file, page refs relative to the page; like scripts, every ref
// must land inside the source root and outside the static tree. Returned
// hrefs are relative to the page's output directory, and the absolute paths
// feed the dependency graph so stylesheet edits rebuild their pages.
func (b *Builder) resolveStyles(doc *parser.SourceDocument, page, outputRoot, outDir string) (links []string, abs []string, err error) {
	name := b.relName(page)
	seen := make(map[string]struct{})

	type styleRef struct {
		baseDir string
		ref     string
	}
	var refs []styleRef
	if b.layout != nil {
		layoutDir := filepath.Dir(b.layout.Path)
		for _, ref := range b.layout.ExternalStyleRefs {
			refs = append(refs, styleRef{layoutDir, ref})
		}
	}
	pageDir := filepath.Dir(page)
	for _, ref := range doc.ExternalStyleRefs {
		refs = append(refs, styleRef{pageDir, ref})
	}

	for _, r := range refs {
		cssPath := filepath.Join(r.baseDir, r.ref)
		if !b.inside(b.inputRoot, cssPath) {
			return nil, nil, hpyerrors.Reference(name, "stylesheet %q resolves outside the source directory", r.ref)
		}
		if b.staticRoot != "" && b.inside(b.staticRoot, cssPath) {
			return nil, nil, hpyerrors.Reference(name, "stylesheet %q resolves inside the static directory; static files are copied verbatim", r.ref)
		}
		if _, statErr := os.Stat(cssPath); statErr != nil {
			return nil, nil, hpyerrors.Reference(name, "stylesheet %q not found", r.ref)
		}
		if _, dup := seen[cssPath]; dup {
			continue
		}
		seen[cssPath] = struct{}{}

		rel, relErr := filepath.Rel(b.inputRoot, cssPath)
		if relErr != nil {
			return nil, nil, hpyerrors.Resource(name, relErr, "could not relativize stylesheet path")
		}
		outCSS := filepath.Join(outputRoot, rel)
		if copyErr := copyFile(cssPath, outCSS); copyErr != nil {
			return nil, nil, hpyerrors.Resource(name, copyErr, "could not copy stylesheet %s", rel)
		}

		htmlRel, relErr := filepath.Rel(outDir, outCSS)
		if relErr != nil {
			return nil, nil, hpyerrors.Resource(name, relErr, "could not relativize stylesheet for output")
		}
		links = append(links, filepath.ToSlash(htmlRel))
		abs = append(abs, cssPath)
	}
	return links, abs, nil
}

// copyStaticTree mirrors the static directory into the output root.
func (b *Builder) copyStaticTree(ctx context.Context, outputRoot string) error {
	if b.staticRoot == "" {
		return nil
	}
	if _, err := os.Stat(b.staticRoot); os.IsNotExist(err) {
		return nil
	}

	dst := filepath.Join(outputRoot, b.cfg.StaticDirName)
	count := 0
	err := filepath.WalkDir(b.staticRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(b.staticRoot, path)
		if relErr != nil {
			return relErr
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		count++
		return copyFile(path, target)
	})
	if err != nil {
		return hpyerrors.Resource(b.cfg.StaticDirName, err, "could not copy static assets")
	}
	b.log.Debug(ctx, "static assets copied", "files", count, "to", dst)
	return nil
}

// TouchReloadTrigger creates or re-times the reload marker under outputRoot.
// Watch-mode clients poll this file's Last-Modified header.
func (b *Builder) TouchReloadTrigger(ctx context.Context, outputRoot string) error {
	path := filepath.Join(outputRoot, config.ReloadTriggerName)
	now := time.Now()
	if err := os.Chtimes(path, now, now); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(now.Format(time.RFC3339Nano)+"\n"), 0o644); err != nil {
		return hpyerrors.Resource(config.ReloadTriggerName, err, "could not touch reload trigger")
	}
	b.log.Debug(ctx, "reload trigger touched", "path", path)
	return nil
}

// inside reports whether path sits at or under root. Both are cleaned; no
// symlink resolution is attempted.
func (b *Builder) inside(root, path string) bool {
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// relName returns the input-relative path for diagnostics.
func (b *Builder) relName(path string) string {
	if rel, err := filepath.Rel(b.inputRoot, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.Base(path)
}

func copyFile(src, dst string) error {
	raw, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, raw, 0o644)
}
