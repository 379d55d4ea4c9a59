package expander

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hpy/internal/logging"
	"github.com/conneroisu/hpy/internal/parser"
	"github.com/conneroisu/hpy/internal/registry"
)

type fixture struct {
	dir      string
	parser   *parser.Parser
	registry *registry.ComponentRegistry
	expander *Expander
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	p := parser.New(logging.NopLogger())
	r := registry.New(dir, logging.NopLogger())
	return &fixture{
		dir:      dir,
		parser:   p,
		registry: r,
		expander: New(p, r, logging.NopLogger()),
	}
}

func (f *fixture) writeComponent(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, f.registry.Scan())
}

// parsePage runs the parser on page text so the fixtures exercise the real
// placeholder handoff between parser and expander.
func (f *fixture) parsePage(t *testing.T, content string) *parser.SourceDocument {
	t.Helper()
	doc, err := f.parser.Parse("page.hpy", content, false)
	require.NoError(t, err)
	return doc
}

func TestExpandSubstitutesProps(t *testing.T) {
	f := newFixture(t)
	f.writeComponent(t, "greeting.hpy", `<html><p>Hello {props.name}{props.missing}!</p></html>`)

	doc := f.parsePage(t, `<html><Greeting name="World"/></html>`)
	markup, styles := f.expander.Expand(doc.BodyMarkup, doc.Components)

	assert.Equal(t, "<p>Hello World!</p>", markup)
	assert.Empty(t, styles)
}

func TestExpandMissingComponentDegrades(t *testing.T) {
	f := newFixture(t)

	doc := f.parsePage(t, `<html><Nope/><p>still here</p></html>`)
	markup, _ := f.expander.Expand(doc.BodyMarkup, doc.Components)

	assert.Contains(t, markup, "<!-- hpy: missing component <Nope> -->")
	assert.Contains(t, markup, "<p>still here</p>")
}

func TestExpandScopesStyles(t *testing.T) {
	f := newFixture(t)
	f.writeComponent(t, "badge.hpy", `
<html><span class="badge">{props.label}</span></html>
<style>.badge { font-weight: bold; }</style>
`)

	doc := f.parsePage(t, `<html><Badge label="New"/></html>`)
	markup, styles := f.expander.Expand(doc.BodyMarkup, doc.Components)

	require.Len(t, styles, 1)
	attrs := regexp.MustCompile(`data-hpy-[0-9a-f]{8}`).FindAllString(markup, -1)
	require.NotEmpty(t, attrs)
	assert.Contains(t, styles[0], ".badge["+attrs[0]+"]")
	assert.Contains(t, markup, "New")
}

func TestExpandTwoInstancesGetDistinctScopes(t *testing.T) {
	f := newFixture(t)
	f.writeComponent(t, "chip.hpy", `
<html><span class="chip"></span></html>
<style>.chip { color: teal; }</style>
`)

	doc := f.parsePage(t, `<html><Chip/><Chip/></html>`)
	markup, styles := f.expander.Expand(doc.BodyMarkup, doc.Components)

	require.Len(t, styles, 2)
	assert.NotEqual(t, styles[0], styles[1])

	attrs := regexp.MustCompile(`data-hpy-[0-9a-f]{8}`).FindAllString(markup, -1)
	seen := make(map[string]bool)
	for _, a := range attrs {
		seen[a] = true
	}
	assert.Len(t, seen, 2)
}

func TestExpandComponentExternalStylesheet(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "panel.css"), []byte(".panel { border: 1px; }"), 0o644))
	f.writeComponent(t, "panel.hpy", `
<link rel="stylesheet" href="panel.css">
<html><div class="panel"></div></html>
`)

	doc := f.parsePage(t, `<html><Panel/></html>`)
	_, styles := f.expander.Expand(doc.BodyMarkup, doc.Components)

	require.Len(t, styles, 1)
	assert.Contains(t, styles[0], ".panel[data-hpy-")
}

func TestExpandComponentMissingStylesheetDegrades(t *testing.T) {
	f := newFixture(t)
	f.writeComponent(t, "broken.hpy", `
<link rel="stylesheet" href="does-not-exist.css">
<html><div></div></html>
`)

	doc := f.parsePage(t, `<html><Broken/></html>`)
	markup, styles := f.expander.Expand(doc.BodyMarkup, doc.Components)

	assert.Contains(t, markup, "<!-- hpy: failed component <Broken>")
	assert.Empty(t, styles)
}

func TestExpandNestedComponents(t *testing.T) {
	f := newFixture(t)
	f.writeComponent(t, "inner.hpy", `<html><em>{props.text}</em></html>`)
	f.writeComponent(t, "outer.hpy", `<html><div><Inner text="deep"/></div></html>`)

	doc := f.parsePage(t, `<html><Outer/></html>`)
	markup, _ := f.expander.Expand(doc.BodyMarkup, doc.Components)

	assert.Contains(t, markup, "<em>deep</em>")
}

func TestExpandRecursionBoundDirect(t *testing.T) {
	f := newFixture(t)
	f.writeComponent(t, "loop.hpy", `<html><div><Loop/></div></html>`)

	doc := f.parsePage(t, `<html><Loop/></html>`)
	markup, _ := f.expander.Expand(doc.BodyMarkup, doc.Components)

	assert.Contains(t, markup, "max component depth exceeded at <Loop>")
	// Bounded: exactly MaxDepth expansions happened before the marker.
	assert.Equal(t, MaxDepth, strings.Count(markup, "<div"))
}

func TestExpandRecursionBoundMutualCycle(t *testing.T) {
	f := newFixture(t)
	f.writeComponent(t, "ping.hpy", `<html><span><Pong/></span></html>`)
	f.writeComponent(t, "pong.hpy", `<html><span><Ping/></span></html>`)

	doc := f.parsePage(t, `<html><Ping/></html>`)
	markup, _ := f.expander.Expand(doc.BodyMarkup, doc.Components)

	assert.Contains(t, markup, "max component depth exceeded")
}

func TestScopeCSS(t *testing.T) {
	testCases := []struct {
		name     string
		css      string
		expected string
	}{
		{
			name:     "simple selector",
			css:      ".btn { color: red; }",
			expected: ".btn[data-hpy-test] { color: red; }",
		},
		{
			name:     "pseudo class stays last",
			css:      "a:hover { color: blue; }",
			expected: "a[data-hpy-test]:hover { color: blue; }",
		},
		{
			name:     "selector list",
			css:      "h1, h2 { margin: 0; }",
			expected: "h1[data-hpy-test], h2[data-hpy-test] { margin: 0; }",
		},
		{
			name:     "at rule passes through",
			css:      "@media (max-width: 600px) { .btn { display: none; } }",
			expected: "@media (max-width: 600px) { .btn { display: none; } }",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ScopeCSS(tc.css, "data-hpy-test")
			assert.Equal(t, tc.expected, strings.Join(strings.Fields(got), " "))
		})
	}
}

func TestSubstituteProps(t *testing.T) {
	out := SubstituteProps("<a href=\"{props.url}\">{props.label}</a>", map[string]string{
		"url":   "/docs",
		"label": "Docs",
	})
	assert.Equal(t, `<a href="/docs">Docs</a>`, out)

	out = SubstituteProps("{props.unknown}", nil)
	assert.Equal(t, "", out)
}
