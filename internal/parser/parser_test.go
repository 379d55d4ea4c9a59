package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hpy/internal/config"
	hpyerrors "github.com/conneroisu/hpy/internal/errors"
	"github.com/conneroisu/hpy/internal/logging"
)

func newTestParser() *Parser {
	return New(logging.NopLogger())
}

func TestParsePageBasic(t *testing.T) {
	p := newTestParser()

	doc, err := p.Parse("index.hpy", `
<html>
    <h1>Hello</h1>
</html>
<style>h1 { color: red; }</style>
<python>print("hi")</python>
`, false)
	require.NoError(t, err)

	assert.Equal(t, "<h1>Hello</h1>", doc.BodyMarkup)
	assert.Equal(t, "h1 { color: red; }", doc.StyleText)
	assert.Equal(t, `print("hi")`, doc.InlineScript)
	assert.Empty(t, doc.ExternalScriptRef)
	assert.Empty(t, doc.Components)
}

func TestParsePageHeadSectionExcised(t *testing.T) {
	p := newTestParser()

	doc, err := p.Parse("index.hpy", `
<hpy-head>
    <title>Index Title</title>
    <meta name="x" content="y">
</hpy-head>
<html><p>Body</p></html>
`, false)
	require.NoError(t, err)

	assert.Contains(t, doc.HeadFragment, "<title>Index Title</title>")
	assert.Contains(t, doc.HeadFragment, `<meta name="x"`)
	assert.Equal(t, "<p>Body</p>", doc.BodyMarkup)
	assert.NotContains(t, doc.BodyMarkup, "hpy-head")
}

func TestParsePageFallbackBody(t *testing.T) {
	p := newTestParser()

	// No <html> container: remaining text after stripping known blocks
	// becomes the body, without failing.
	doc, err := p.Parse("loose.hpy", `
<style>p {}</style>
<p>Loose content</p>
<python>x = 1</python>
`, false)
	require.NoError(t, err)
	assert.Equal(t, "<p>Loose content</p>", doc.BodyMarkup)
	assert.Equal(t, "p {}", doc.StyleText)
}

func TestParseMultipleStyleBlocksJoined(t *testing.T) {
	p := newTestParser()

	doc, err := p.Parse("s.hpy", `
<html><div/></html>
<style>a {}</style>
<style>b {}</style>
`, false)
	require.NoError(t, err)
	assert.Equal(t, "a {}\n\nb {}", doc.StyleText)
}

func TestParseStyleLinksCollectedInOrder(t *testing.T) {
	p := newTestParser()

	doc, err := p.Parse("links.hpy", `
<link rel="stylesheet" href="css/base.css">
<html><p>x</p></html>
<link href='css/extra.css' rel='stylesheet'>
`, false)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Clean("css/base.css"), filepath.Clean("css/extra.css")}, doc.ExternalStyleRefs)
	assert.NotContains(t, doc.BodyMarkup, "<link")
}

func TestParseScriptExternalWinsOverInline(t *testing.T) {
	p := newTestParser()

	doc, err := p.Parse("page.hpy", `
<html><p>x</p></html>
<python src="logic.py"></python>
<python>print("ignored")</python>
`, false)
	require.NoError(t, err)
	assert.Equal(t, "logic.py", doc.ExternalScriptRef)
	assert.Empty(t, doc.InlineScript)
	assert.True(t, doc.HasScript())
}

func TestParseScriptFirstSrcWins(t *testing.T) {
	p := newTestParser()

	doc, err := p.Parse("page.hpy", `
<html><p>x</p></html>
<python src="first.py"/>
<python src="second.py"/>
`, false)
	require.NoError(t, err)
	assert.Equal(t, "first.py", doc.ExternalScriptRef)
}

func TestParseScriptEmptySrcIgnored(t *testing.T) {
	p := newTestParser()

	doc, err := p.Parse("page.hpy", `
<html><p>x</p></html>
<python src="">print("inline wins")</python>
`, false)
	require.NoError(t, err)
	assert.Empty(t, doc.ExternalScriptRef)
	assert.Equal(t, `print("inline wins")`, doc.InlineScript)
}

func TestParseLayoutHeadBodySections(t *testing.T) {
	p := newTestParser()

	doc, err := p.Parse(config.LayoutFilename, `
<hpy-head>
    <title>Layout Title</title>
    <style>.layout { color: blue; }</style>
</hpy-head>
<hpy-body>
    <header>H</header>
    <!-- HPY_PAGE_CONTENT -->
    <footer>F</footer>
</hpy-body>
`, true)
	require.NoError(t, err)

	assert.Contains(t, doc.HeadFragment, "<title>Layout Title</title>")
	// Head styles are collected into StyleText, not duplicated in the fragment.
	assert.NotContains(t, doc.HeadFragment, "<style>")
	assert.Contains(t, doc.StyleText, ".layout")
	assert.Contains(t, doc.BodyMarkup, config.LayoutPlaceholder)
	assert.Contains(t, doc.BodyMarkup, "<header>H</header>")
}

func TestParseLayoutLegacySingleBlock(t *testing.T) {
	p := newTestParser()

	doc, err := p.Parse(config.LayoutFilename, `
<html>
    <div class="wrap"><!-- HPY_PAGE_CONTENT --></div>
</html>
<style>body { margin: 0; }</style>
`, true)
	require.NoError(t, err)
	assert.Empty(t, doc.HeadFragment)
	assert.Contains(t, doc.BodyMarkup, config.LayoutPlaceholder)
}

func TestParseLayoutMissingPlaceholderFails(t *testing.T) {
	p := newTestParser()

	_, err := p.Parse(config.LayoutFilename, `<hpy-body><div>no marker</div></hpy-body>`, true)
	require.Error(t, err)
	assert.True(t, hpyerrors.IsKind(err, hpyerrors.KindStructural))
}

func TestParseLayoutDuplicatePlaceholderFails(t *testing.T) {
	p := newTestParser()

	content := "<hpy-body>" + config.LayoutPlaceholder + config.LayoutPlaceholder + "</hpy-body>"
	_, err := p.Parse(config.LayoutFilename, content, true)
	require.Error(t, err)
	assert.True(t, hpyerrors.IsKind(err, hpyerrors.KindStructural))
}

func TestParseLayoutIgnoresExternalScript(t *testing.T) {
	p := newTestParser()

	doc, err := p.Parse(config.LayoutFilename, `
<hpy-body><!-- HPY_PAGE_CONTENT --></hpy-body>
<python src="layout.py">print("kept inline")</python>
`, true)
	require.NoError(t, err)
	assert.Empty(t, doc.ExternalScriptRef)
	assert.Equal(t, `print("kept inline")`, doc.InlineScript)
}

func TestParseLayoutMissingSectionsFails(t *testing.T) {
	p := newTestParser()

	_, err := p.Parse(config.LayoutFilename, `just some text`, true)
	require.Error(t, err)
	assert.True(t, hpyerrors.IsKind(err, hpyerrors.KindStructural))
}

func TestExtractComponentsSelfClosing(t *testing.T) {
	p := newTestParser()

	doc, err := p.Parse("page.hpy", `
<html>
    <Card title="Greetings" rounded />
</html>
`, false)
	require.NoError(t, err)

	require.Len(t, doc.Components, 1)
	for id, inv := range doc.Components {
		assert.Equal(t, "Card", inv.Name)
		assert.Equal(t, "Greetings", inv.Props["title"])
		assert.Equal(t, "true", inv.Props["rounded"])
		assert.Contains(t, doc.BodyMarkup, Placeholder(id))
	}
	assert.NotContains(t, doc.BodyMarkup, "<Card")
}

func TestExtractComponentsDottedAndPaired(t *testing.T) {
	p := newTestParser()

	doc, err := p.Parse("page.hpy", `
<html>
    <Ui.Button label="Go"></Ui.Button>
    <Ui.Button label="Stop"/>
</html>
`, false)
	require.NoError(t, err)

	require.Len(t, doc.Components, 2)
	labels := make(map[string]bool)
	for _, inv := range doc.Components {
		assert.Equal(t, "Ui.Button", inv.Name)
		labels[inv.Props["label"]] = true
	}
	assert.True(t, labels["Go"])
	assert.True(t, labels["Stop"])
	assert.NotContains(t, doc.BodyMarkup, "Ui.Button")
}

func TestExtractComponentsBeforeSections(t *testing.T) {
	p := newTestParser()

	// The '<' inside the prop value must not break <html> matching; this is
	// why the component pass runs first.
	doc, err := p.Parse("page.hpy", `
<html>
    <Callout text="5 < 10 but </html> is just text here" />
    <p>after</p>
</html>
`, false)
	require.NoError(t, err)

	require.Len(t, doc.Components, 1)
	assert.Contains(t, doc.BodyMarkup, "<p>after</p>")
	for _, inv := range doc.Components {
		assert.Equal(t, `5 < 10 but </html> is just text here`, inv.Props["text"])
	}
}

func TestExtractComponentsQuoteKinds(t *testing.T) {
	p := newTestParser()

	// Single-quoted values may embed ="..." and vice versa; empty quoted
	// values stay empty rather than collapsing to boolean true.
	doc, err := p.Parse("page.hpy", `
<html>
    <Snippet code='a="b"' alt="it's fine" empty="" plain />
</html>
`, false)
	require.NoError(t, err)

	require.Len(t, doc.Components, 1)
	for _, inv := range doc.Components {
		assert.Equal(t, `a="b"`, inv.Props["code"])
		assert.Equal(t, "it's fine", inv.Props["alt"])
		assert.Equal(t, "", inv.Props["empty"])
		assert.Equal(t, "true", inv.Props["plain"])
	}
}

func TestExtractComponentsUniqueInstanceIDs(t *testing.T) {
	p := newTestParser()

	doc, err := p.Parse("page.hpy", `<html><Chip/><Chip/><Chip/></html>`, false)
	require.NoError(t, err)

	require.Len(t, doc.Components, 3)
	assert.Equal(t, 3, len(PlaceholderRegex().FindAllString(doc.BodyMarkup, -1)))
}

func TestParseFileValidation(t *testing.T) {
	p := newTestParser()

	_, err := p.ParseFile("missing.hpy", false)
	require.Error(t, err)
	assert.True(t, hpyerrors.IsKind(err, hpyerrors.KindResource))

	dir := t.TempDir()
	wrongExt := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(wrongExt, []byte("<html></html>"), 0o644))
	_, err = p.ParseFile(wrongExt, false)
	require.Error(t, err)
	assert.True(t, hpyerrors.IsKind(err, hpyerrors.KindStructural))

	good := filepath.Join(dir, "page.hpy")
	require.NoError(t, os.WriteFile(good, []byte("<html><p>ok</p></html>"), 0o644))
	doc, err := p.ParseFile(good, false)
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", doc.BodyMarkup)
}

func TestPlaceholderRoundTrip(t *testing.T) {
	id := "01234567-89ab-cdef-0123-456789abcdef"
	token := Placeholder(id)
	m := PlaceholderRegex().FindStringSubmatch(token)
	require.NotNil(t, m)
	assert.Equal(t, id, m[1])
	assert.True(t, strings.HasPrefix(token, "<!--"))
}
