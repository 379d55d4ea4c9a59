package builder

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/hpy/internal/config"
	"github.com/conneroisu/hpy/internal/parser"
)

// HandleChanges processes one debounced batch of changed paths from the
// watcher and rebuilds the minimal set of pages. Structural changes (layout,
// app shell, components) force a full rebuild; everything else routes through
// the dependency graph. The reload trigger is touched once per batch that
// produced output.
func (b *Builder) HandleChanges(ctx context.Context, changed []string, devWatch bool) error {
	outputRoot := b.cfg.EffectiveOutputDir(devWatch)

	full := false
	pages := make(map[string]struct{})
	removed := make(map[string]struct{})
	var staticPaths []string

	for _, raw := range changed {
		path, err := filepath.Abs(raw)
		if err != nil {
			continue
		}
		path = filepath.Clean(path)
		if b.ignored(path) {
			continue
		}

		switch b.classify(path) {
		case changeStructural:
			full = true
		case changeStatic:
			staticPaths = append(staticPaths, path)
		case changePage:
			if _, err := os.Stat(path); err == nil {
				pages[path] = struct{}{}
			} else {
				removed[path] = struct{}{}
			}
		case changeTrackedAsset:
			for _, dep := range b.graph.DependentsOf(path) {
				pages[dep] = struct{}{}
			}
			// A deleted asset never reaches SetPage again (its dependents
			// fail to compile), so drop its edges here to keep the graph
			// consistent.
			if _, err := os.Stat(path); err != nil {
				b.graph.RemoveAsset(path)
			}
		case changeNewScript:
			// A conventional sibling script appeared for a page built
			// without one; the page must pick it up.
			pages[strings.TrimSuffix(path, ".py")+parser.Extension] = struct{}{}
		case changeIrrelevant:
		}
	}

	if full {
		b.log.Info(ctx, "structural change; full rebuild")
		if err := b.compileDirectory(ctx, devWatch, true); err != nil {
			return err
		}
		return b.TouchReloadTrigger(ctx, outputRoot)
	}

	built := 0
	if err := b.prepareIfNeeded(ctx, len(pages) > 0); err != nil {
		return err
	}
	for page := range pages {
		if _, gone := removed[page]; gone {
			continue
		}
		if err := b.compilePage(ctx, page, outputRoot, devWatch); err != nil {
			b.log.Error(ctx, err, "rebuild failed", "file", b.relName(page))
			continue
		}
		built++
	}

	for page := range removed {
		b.removePageOutput(ctx, page, outputRoot)
		built++
	}

	for _, path := range staticPaths {
		if b.syncStaticPath(ctx, path, outputRoot) {
			built++
		}
	}

	if built > 0 {
		return b.TouchReloadTrigger(ctx, outputRoot)
	}
	return nil
}

type changeClass int

const (
	changeIrrelevant changeClass = iota
	changeStructural
	changeStatic
	changePage
	changeTrackedAsset
	changeNewScript
)

// classify buckets a changed path. Order matters: static and components
// subtrees are checked before extensions so a .hpy file under components/
// still forces the full rebuild.
func (b *Builder) classify(path string) changeClass {
	base := filepath.Base(path)

	if base == config.LayoutFilename || base == config.AppShellFilename {
		return changeStructural
	}
	if b.cfg.ComponentsDirName != "" &&
		b.inside(filepath.Join(b.inputRoot, b.cfg.ComponentsDirName), path) {
		return changeStructural
	}
	if b.staticRoot != "" && b.inside(b.staticRoot, path) {
		return changeStatic
	}
	if !b.inside(b.inputRoot, path) {
		return changeIrrelevant
	}

	if strings.EqualFold(filepath.Ext(path), parser.Extension) {
		if strings.HasPrefix(base, "_") {
			return changeIrrelevant
		}
		return changePage
	}

	if b.graph.IsTrackedAsset(path) {
		return changeTrackedAsset
	}

	// An untracked .py next to an existing page: the conventional lookup
	// only fires at page compile time, so nudge the page here.
	if strings.EqualFold(filepath.Ext(path), ".py") {
		sibling := strings.TrimSuffix(path, ".py") + parser.Extension
		if _, err := os.Stat(sibling); err == nil && b.graph.HasPage(sibling) {
			return changeNewScript
		}
	}

	return changeIrrelevant
}

// prepareIfNeeded reloads layout/shell/registry state only when the batch
// actually rebuilds pages. Watch batches tolerate a broken layout.
func (b *Builder) prepareIfNeeded(ctx context.Context, needed bool) error {
	if !needed {
		return nil
	}
	return b.prepare(ctx, true)
}

// syncStaticPath mirrors one changed static path into the output tree:
// deletions remove the mirrored file or subtree, everything else is
// re-copied. Reports whether the mirror changed.
func (b *Builder) syncStaticPath(ctx context.Context, path, outputRoot string) bool {
	rel, err := filepath.Rel(b.staticRoot, path)
	if err != nil {
		return false
	}
	target := filepath.Join(outputRoot, b.cfg.StaticDirName, rel)

	info, statErr := os.Stat(path)
	switch {
	case statErr != nil:
		if err := os.RemoveAll(target); err != nil {
			b.log.Error(ctx, err, "could not remove stale static output", "path", target)
			return false
		}
		b.log.Info(ctx, "static asset removed", "output", target)
		return true
	case info.IsDir():
		if err := b.copyStaticTree(ctx, outputRoot); err != nil {
			b.log.Error(ctx, err, "static copy failed")
			return false
		}
		return true
	default:
		if err := copyFile(path, target); err != nil {
			b.log.Error(ctx, err, "static copy failed", "path", path)
			return false
		}
		b.log.Debug(ctx, "static asset copied", "output", target)
		return true
	}
}

// removePageOutput deletes the compiled artifact for a deleted source page
// and forgets its graph entry. Copied assets stay: other pages may share
// them, and a full rebuild reconciles the output tree.
func (b *Builder) removePageOutput(ctx context.Context, page, outputRoot string) {
	b.graph.RemovePage(page)

	rel, err := filepath.Rel(b.inputRoot, page)
	if err != nil {
		return
	}
	outPath := filepath.Join(outputRoot, strings.TrimSuffix(rel, parser.Extension)+".html")
	if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
		b.log.Warn(ctx, err, "could not remove stale output", "path", outPath)
		return
	}

	// Prune now-empty parent dirs up to the output root; Remove refuses
	// non-empty directories, which ends the walk.
	outputRoot = filepath.Clean(outputRoot)
	for dir := filepath.Dir(outPath); dir != outputRoot; dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break
		}
	}
	b.log.Info(ctx, "removed", "file", b.relName(page), "output", outPath)
}
