package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/conneroisu/hpy/internal/config"
)

// collectNodes walks a parsed document and returns every element matching tag.
func collectNodes(n *html.Node, tag string, out *[]*html.Node) {
	if n.Type == html.ElementNode && n.Data == tag {
		*out = append(*out, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectNodes(c, tag, out)
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// TestCompiledOutputIsWellFormed parses a full compile's output with a real
// HTML tokenizer and checks the structural contract of a page: one title, the
// runtime bootstrap pair, python script tags, and the combined style element.
func TestCompiledOutputIsWellFormed(t *testing.T) {
	p := newProject(t)
	p.write(config.LayoutFilename, `
<hpy-head><title>Site</title></hpy-head>
<style>body { margin: 0; }</style>
<hpy-body><main>`+config.LayoutPlaceholder+`</main></hpy-body>
`)
	p.write("components/badge.hpy", `
<html><span class="badge">{props.text}</span></html>
<style>.badge { color: red; }</style>
`)
	p.write("style/site.css", ".site { }")
	p.write("index.py", "print('ready')\n")
	p.write("index.hpy", `
<link rel="stylesheet" href="style/site.css">
<html>
    <h1>Home</h1>
    <Badge text="new"/>
</html>
`)

	require.NoError(t, p.build())

	doc, err := html.Parse(strings.NewReader(p.output("index.html")))
	require.NoError(t, err)

	var titles []*html.Node
	collectNodes(doc, "title", &titles)
	require.Len(t, titles, 1)
	assert.Equal(t, "Site", titles[0].FirstChild.Data)

	var scripts []*html.Node
	collectNodes(doc, "script", &scripts)
	var bootstrap, python int
	for _, s := range scripts {
		if src, ok := attr(s, "src"); ok && strings.Contains(src, "brython") {
			bootstrap++
		}
		if typ, ok := attr(s, "type"); ok && typ == "text/python" {
			python++
		}
	}
	assert.Equal(t, 2, bootstrap, "runtime and stdlib bootstrap tags")
	assert.Equal(t, 1, python, "exactly one page script tag")

	var links []*html.Node
	collectNodes(doc, "link", &links)
	require.Len(t, links, 1)
	href, _ := attr(links[0], "href")
	assert.Equal(t, "style/site.css", href)

	var styles []*html.Node
	collectNodes(doc, "style", &styles)
	require.Len(t, styles, 1)
	css := styles[0].FirstChild.Data
	assert.Contains(t, css, "/* Layout Styles")
	assert.Contains(t, css, ".badge[data-hpy-")

	var bodies []*html.Node
	collectNodes(doc, "body", &bodies)
	require.Len(t, bodies, 1)
	onload, ok := attr(bodies[0], "onload")
	require.True(t, ok)
	assert.Contains(t, onload, "brython(")

	var spans []*html.Node
	collectNodes(doc, "span", &spans)
	require.Len(t, spans, 1)
	_, scoped := func() (string, bool) {
		for _, a := range spans[0].Attr {
			if strings.HasPrefix(a.Key, "data-hpy-") {
				return a.Key, true
			}
		}
		return "", false
	}()
	assert.True(t, scoped, "component markup carries its scope attribute")
}
