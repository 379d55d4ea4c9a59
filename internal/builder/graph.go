package builder

import (
	"sync"
)

// DependencyGraph tracks which pages depend on which external scripts and
// stylesheets, in both directions, so watch-mode rebuilds touch only the
// pages an asset change can affect. All paths are absolute and cleaned.
type DependencyGraph struct {
	mutex sync.RWMutex

	pages map[string]struct{}

	pageToScript map[string]string
	scriptToPage map[string]map[string]struct{}

	pageToStyles map[string]map[string]struct{}
	styleToPages map[string]map[string]struct{}
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		pages:        make(map[string]struct{}),
		pageToScript: make(map[string]string),
		scriptToPage: make(map[string]map[string]struct{}),
		pageToStyles: make(map[string]map[string]struct{}),
		styleToPages: make(map[string]map[string]struct{}),
	}
}

// SetPage records a page's dependencies, replacing any previous entry. An
// empty script means the page has no external script; an empty styles slice
// means no external stylesheets.
func (g *DependencyGraph) SetPage(page, script string, styles []string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.removeLocked(page)
	g.pages[page] = struct{}{}

	if script != "" {
		g.pageToScript[page] = script
		if g.scriptToPage[script] == nil {
			g.scriptToPage[script] = make(map[string]struct{})
		}
		g.scriptToPage[script][page] = struct{}{}
	}

	if len(styles) > 0 {
		set := make(map[string]struct{}, len(styles))
		for _, s := range styles {
			set[s] = struct{}{}
			if g.styleToPages[s] == nil {
				g.styleToPages[s] = make(map[string]struct{})
			}
			g.styleToPages[s][page] = struct{}{}
		}
		g.pageToStyles[page] = set
	}
}

// RemovePage drops a page and unlinks it from every reverse index.
func (g *DependencyGraph) RemovePage(page string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.removeLocked(page)
}

func (g *DependencyGraph) removeLocked(page string) {
	delete(g.pages, page)

	if script, ok := g.pageToScript[page]; ok {
		delete(g.pageToScript, page)
		if set := g.scriptToPage[script]; set != nil {
			delete(set, page)
			if len(set) == 0 {
				delete(g.scriptToPage, script)
			}
		}
	}

	for style := range g.pageToStyles[page] {
		if set := g.styleToPages[style]; set != nil {
			delete(set, page)
			if len(set) == 0 {
				delete(g.styleToPages, style)
			}
		}
	}
	delete(g.pageToStyles, page)
}

// HasPage reports whether the page is tracked.
func (g *DependencyGraph) HasPage(page string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.pages[page]
	return ok
}

// Pages returns every tracked page.
func (g *DependencyGraph) Pages() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	out := make([]string, 0, len(g.pages))
	for p := range g.pages {
		out = append(out, p)
	}
	return out
}

// ScriptFor returns the page's external script, or "".
func (g *DependencyGraph) ScriptFor(page string) string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.pageToScript[page]
}

// StylesFor returns the page's external stylesheets.
func (g *DependencyGraph) StylesFor(page string) []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	out := make([]string, 0, len(g.pageToStyles[page]))
	for s := range g.pageToStyles[page] {
		out = append(out, s)
	}
	return out
}

// DependentsOf returns every page that depends on the given asset path,
// whether it is tracked as a script or a stylesheet.
func (g *DependencyGraph) DependentsOf(asset string) []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	set := make(map[string]struct{})
	for p := range g.scriptToPage[asset] {
		set[p] = struct{}{}
	}
	for p := range g.styleToPages[asset] {
		set[p] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// RemoveAsset drops an asset from both directions of the graph. Pages that
// referenced it stay tracked; only their edges to this asset go away. Used
// when a tracked script or stylesheet is deleted, since the failing rebuilds
// of its dependents never reach SetPage to reconcile the entry.
func (g *DependencyGraph) RemoveAsset(asset string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	for page := range g.scriptToPage[asset] {
		delete(g.pageToScript, page)
	}
	delete(g.scriptToPage, asset)

	for page := range g.styleToPages[asset] {
		if set := g.pageToStyles[page]; set != nil {
			delete(set, asset)
			if len(set) == 0 {
				delete(g.pageToStyles, page)
			}
		}
	}
	delete(g.styleToPages, asset)
}

// IsTrackedAsset reports whether any page depends on the path.
func (g *DependencyGraph) IsTrackedAsset(asset string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.scriptToPage[asset]) > 0 || len(g.styleToPages[asset]) > 0
}

// Clear resets the graph before a full rebuild.
func (g *DependencyGraph) Clear() {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.pages = make(map[string]struct{})
	g.pageToScript = make(map[string]string)
	g.scriptToPage = make(map[string]map[string]struct{})
	g.pageToStyles = make(map[string]map[string]struct{})
	g.styleToPages = make(map[string]map[string]struct{})
}
