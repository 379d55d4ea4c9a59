// Package compositor assembles final HTML documents from parsed and expanded
// page fragments, an optional layout, and an optional outer app-shell
// template.
//
// Composition is pure text assembly: the builder resolves and copies assets
// and handles all filesystem writes.
package compositor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/conneroisu/hpy/internal/config"
	hpyerrors "github.com/conneroisu/hpy/internal/errors"
	"github.com/conneroisu/hpy/internal/logging"
	"github.com/conneroisu/hpy/internal/parser"
)

var (
	titleRegex     = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	shellTitle     = regexp.MustCompile(`(?is)(<head[^>]*>.*?<title)(?:[^>]*>)(?:.*?)(</title>)`)
	headEndRegex   = regexp.MustCompile(`(?i)</head>`)
	bodyEndRegex   = regexp.MustCompile(`(?i)</body>`)
	brythonCall    = regexp.MustCompile(`(?i)brython\s*\(\s*\{[^}]*'debug'\s*:\s*\d+\s*[^}]*\}\s*\)`)
	debugLevelCall = func(level int) string { return fmt.Sprintf("brython({'debug': %d})", level) }
)

// Mode carries the build mode flags threaded through each compose call.
type Mode struct {
	// DevWatch is true when a watch session is driving the build.
	DevWatch bool
	// Production forces quiet debug output and suppresses the reload
	// script regardless of DevWatch.
	Production bool
}

// DebugLevel returns the numeric debug argument for the bootstrap call:
// 0 production/quiet, 1 development/verbose.
func (m Mode) DebugLevel() int {
	if m.Production {
		return 0
	}
	return 1
}

// InjectReload reports whether the live-reload block is appended.
func (m Mode) InjectReload() bool {
	return m.DevWatch && !m.Production
}

// PageInputs are the fragments composed into one output document.
type PageInputs struct {
	// SourceName is the page source filename, used in diagnostics and
	// style provenance comments.
	SourceName string
	// OutputStem is the output filename without extension, used for the
	// generated default title.
	OutputStem string

	PageHead  string
	PageBody  string // expanded page body markup
	PageStyle string

	// PageInlineScript is the page's inline python; empty when
	// ExternalScriptSrc is set.
	PageInlineScript string
	// ExternalScriptSrc is the src attribute value for the compiled HTML
	// (already rewritten relative to the output page), or empty.
	ExternalScriptSrc string

	// Layout is the cached layout parse, nil when the project has none.
	Layout *parser.SourceDocument

	// ShellTemplate is the raw app-shell text, empty when absent.
	ShellTemplate string

	// CSSLinks are stylesheet hrefs for the output document, already
	// rewritten relative to the output page.
	CSSLinks []string

	// ScopedStyles are the per-instance component style blocks in
	// page-render order.
	ScopedStyles []string
}

// Compositor merges fragments into complete HTML documents.
type Compositor struct {
	log logging.Logger
}

// New creates a compositor.
func New(log logging.Logger) *Compositor {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Compositor{log: log.WithComponent("compositor")}
}

// Compose produces the final HTML text for one page.
func (c *Compositor) Compose(in PageInputs, mode Mode) (string, error) {
	combinedStyles := c.combineStyles(in)
	layoutScriptTag, pageScriptTag := c.scriptTags(in)

	headContent, bodyContent, err := c.mergeLayout(in)
	if err != nil {
		return "", err
	}

	title := c.pickTitle(in)
	headContent = stripTitles(headContent)

	if in.ShellTemplate != "" {
		return c.composeWithShell(in, mode, title, headContent, bodyContent,
			combinedStyles, layoutScriptTag, pageScriptTag), nil
	}
	return c.composeSkeleton(in, mode, title, headContent, bodyContent,
		combinedStyles, layoutScriptTag, pageScriptTag), nil
}

// combineStyles concatenates layout, page, and scoped component styles with
// provenance comments.
func (c *Compositor) combineStyles(in PageInputs) string {
	var b strings.Builder
	if in.Layout != nil && in.Layout.StyleText != "" {
		fmt.Fprintf(&b, "/* Layout Styles: %s */\n%s\n\n", config.LayoutFilename, strings.TrimSpace(in.Layout.StyleText))
	}
	if in.PageStyle != "" {
		fmt.Fprintf(&b, "/* Page Styles: %s */\n%s\n", in.SourceName, strings.TrimSpace(in.PageStyle))
	}
	if len(in.ScopedStyles) > 0 {
		fmt.Fprintf(&b, "\n/* Component Styles (scoped) */\n%s\n", strings.Join(in.ScopedStyles, "\n\n"))
	}
	return strings.TrimSpace(b.String())
}

// scriptTags builds the embedded python script tags. The helper prelude is
// injected exactly once: into the layout script when present, else into the
// page's inline script. External scripts receive it at copy time instead.
func (c *Compositor) scriptTags(in PageInputs) (layoutTag, pageTag string) {
	needsHelpers := true

	if in.Layout != nil && in.Layout.InlineScript != "" {
		code := HelperCode + "\n" + in.Layout.InlineScript
		layoutTag = fmt.Sprintf("<script type=\"text/python\" id=\"_hpy_layout_script\">\n%s\n</script>", code)
		needsHelpers = false
	}

	switch {
	case in.ExternalScriptSrc != "":
		pageTag = fmt.Sprintf(`<script type="text/python" src="%s" id="_hpy_page_script_external"></script>`,
			strings.ReplaceAll(in.ExternalScriptSrc, "\\", "/"))
	case in.PageInlineScript != "":
		code := in.PageInlineScript
		if needsHelpers {
			code = HelperCode + "\n" + code
		}
		pageTag = fmt.Sprintf("<script type=\"text/python\" id=\"_hpy_page_script_inline\">\n%s\n</script>", code)
	}
	return layoutTag, pageTag
}

// mergeLayout substitutes the page body into the layout placeholder and
// stacks head fragments (layout first, page last).
func (c *Compositor) mergeLayout(in PageInputs) (head, body string, err error) {
	if in.Layout == nil {
		return strings.TrimSpace(in.PageHead), in.PageBody, nil
	}
	if !strings.Contains(in.Layout.BodyMarkup, config.LayoutPlaceholder) {
		return "", "", hpyerrors.Structural(config.LayoutFilename,
			"layout is missing placeholder %q", config.LayoutPlaceholder)
	}
	body = strings.Replace(in.Layout.BodyMarkup, config.LayoutPlaceholder, in.PageBody, 1)
	head = strings.TrimSpace(strings.TrimSpace(in.Layout.HeadFragment) + "\n" + strings.TrimSpace(in.PageHead))
	return head, body, nil
}

// pickTitle applies the title precedence: page over layout over shell over a
// generated default.
func (c *Compositor) pickTitle(in PageInputs) string {
	if t := extractTitle(in.PageHead); t != "" {
		return t
	}
	if in.Layout != nil {
		if t := extractTitle(in.Layout.HeadFragment); t != "" {
			return t
		}
	}
	if in.ShellTemplate != "" {
		if t := extractTitle(in.ShellTemplate); t != "" {
			return t
		}
		return "HPY Application"
	}
	return fmt.Sprintf("HPY Application (%s)", in.OutputStem)
}

func (c *Compositor) composeWithShell(in PageInputs, mode Mode, title, headContent, bodyContent,
	combinedStyles, layoutScriptTag, pageScriptTag string) string {
	ctx := context.Background()

	html := replaceShellTitle(in.ShellTemplate, title)
	html = brythonCall.ReplaceAllString(html, debugLevelCall(mode.DebugLevel()))

	headInjection := strings.TrimSpace(cssLinkTags(in.CSSLinks) + "\n    " + headContent)
	if combinedStyles != "" {
		headInjection += fmt.Sprintf("\n<style id=\"_hpy_combined_styles_page_injected\">\n%s\n</style>", combinedStyles)
	}

	if strings.Contains(html, config.AppShellHeadPlaceholder) {
		html = strings.Replace(html, config.AppShellHeadPlaceholder, headInjection, 1)
	} else {
		c.log.Warn(ctx, nil, "app shell missing head placeholder; inserting before </head>",
			"placeholder", config.AppShellHeadPlaceholder)
		html = insertBefore(html, headEndRegex, headInjection+"\n")
	}

	if strings.Contains(html, config.AppShellBodyPlaceholder) {
		html = strings.Replace(html, config.AppShellBodyPlaceholder, bodyContent, 1)
	} else {
		c.log.Warn(ctx, nil, "app shell missing body placeholder; inserting before </body>",
			"placeholder", config.AppShellBodyPlaceholder)
		html = insertBefore(html, bodyEndRegex, bodyContent+"\n")
	}

	scripts := joinNonEmpty("\n", layoutScriptTag, pageScriptTag, reloadBlock(mode))
	if scripts != "" {
		html = insertBefore(html, bodyEndRegex, scripts+"\n")
	}
	return html
}

func (c *Compositor) composeSkeleton(in PageInputs, mode Mode, title, headContent, bodyContent,
	combinedStyles, layoutScriptTag, pageScriptTag string) string {
	var head strings.Builder
	head.WriteString(fmt.Sprintf("    <meta charset=\"UTF-8\">\n"+
		"    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n"+
		"    <title>%s</title>\n    %s\n", title, BootstrapScriptTags()))
	if links := cssLinkTags(in.CSSLinks); links != "" {
		head.WriteString("    " + links + "\n")
	}
	if combinedStyles != "" {
		head.WriteString(fmt.Sprintf("    <style id=\"_hpy_combined_styles\">\n%s\n    </style>\n", combinedStyles))
	}
	if headContent != "" {
		head.WriteString("    " + headContent + "\n")
	}

	body := joinNonEmpty("\n", bodyContent, layoutScriptTag, pageScriptTag, reloadBlock(mode))

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
%s</head>
<body onload="%s">
%s
</body>
</html>`, head.String(), debugLevelCall(mode.DebugLevel()), body)
}

func reloadBlock(mode Mode) string {
	if mode.InjectReload() {
		return LiveReloadScript()
	}
	return ""
}

func cssLinkTags(hrefs []string) string {
	tags := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		tags = append(tags, fmt.Sprintf(`<link rel="stylesheet" href="%s">`, href))
	}
	return strings.Join(tags, "\n    ")
}

// extractTitle returns the first <title> content in the fragment, trimmed.
func extractTitle(fragment string) string {
	if m := titleRegex.FindStringSubmatch(fragment); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// stripTitles removes title elements already consumed by pickTitle so the
// output carries exactly one.
func stripTitles(fragment string) string {
	return strings.TrimSpace(titleRegex.ReplaceAllString(fragment, ""))
}

// replaceShellTitle rewrites the shell's title in place, or inserts one
// before </head> when the shell has none.
func replaceShellTitle(shell, title string) string {
	if title == "" {
		return shell
	}
	if shellTitle.MatchString(shell) {
		return shellTitle.ReplaceAllString(shell, fmt.Sprintf("${1}>%s${2}", title))
	}
	return insertBefore(shell, headEndRegex, fmt.Sprintf("    <title>%s</title>\n", title))
}

// insertBefore places text ahead of the first match of re, or appends when
// the marker is absent.
func insertBefore(html string, re *regexp.Regexp, text string) string {
	loc := re.FindStringIndex(html)
	if loc == nil {
		return html + text
	}
	return html[:loc[0]] + text + html[loc[0]:]
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
