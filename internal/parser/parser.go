// Package parser turns raw .hpy document text into a SourceDocument.
//
// The grammar is deliberately lightweight and regex-driven rather than a full
// HTML parse: each extraction rule lives behind a named function with its
// precondition stated, and the composition order is explicit. Component
// invocations are always extracted first so that '<' characters inside
// component prop values cannot confuse the later section matching.
package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/conneroisu/hpy/internal/config"
	hpyerrors "github.com/conneroisu/hpy/internal/errors"
	"github.com/conneroisu/hpy/internal/logging"
)

// Extension is the source document file extension.
const Extension = ".hpy"

var (
	// componentOpenRegex matches the opening tag of a component invocation:
	// an uppercase-led, optionally dotted element name. The attribute part
	// admits '>' and '<' only inside quoted values.
	componentOpenRegex = regexp.MustCompile(`<([A-Z][A-Za-z0-9_]*(?:\.[A-Z][A-Za-z0-9_]*)*)((?:"[^"]*"|'[^']*'|[^<>"'])*)>`)

	// attrRegex matches one prop: quoted-string value or bare boolean name.
	attrRegex = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_-]*)(?:\s*=\s*(?:"([^"]*)"|'([^']*)'))?`)

	styleBlockRegex = regexp.MustCompile(`(?is)<style[^>]*>(.*?)</style>`)

	// styleLinkRegex matches an external-stylesheet reference marker.
	styleLinkRegex = regexp.MustCompile(`(?is)<link\b[^>]*?rel\s*=\s*["']stylesheet["'][^>]*?>`)
	hrefRegex      = regexp.MustCompile(`(?is)href\s*=\s*(?:"([^"]+)"|'([^']+)')`)

	pythonBlockRegex = regexp.MustCompile(`(?is)<python[^>]*>(.*?)</python>`)
	pythonSelfClose  = regexp.MustCompile(`(?is)<python[^>]*/>`)
	pythonSrcRegex   = regexp.MustCompile(`(?is)<python[^>]*?src\s*=\s*(?:"([^"]*)"|'([^']*)')[^>]*?>`)

	htmlSectionRegex = regexp.MustCompile(`(?is)<html[^>]*>(.*?)</html>`)
	headSectionRegex = regexp.MustCompile(`(?is)<hpy-head>(.*?)</hpy-head>`)
	bodySectionRegex = regexp.MustCompile(`(?is)<hpy-body>(.*?)</hpy-body>`)

	placeholderRegex = regexp.MustCompile(`<!-- hpy:c:([0-9a-f-]{36}) -->`)
)

// Placeholder returns the opaque token substituted for a component instance.
func Placeholder(id string) string {
	return fmt.Sprintf("<!-- hpy:c:%s -->", id)
}

// PlaceholderRegex exposes the placeholder pattern for the expander. Group 1
// captures the instance id.
func PlaceholderRegex() *regexp.Regexp {
	return placeholderRegex
}

// Parser parses .hpy documents. It is stateless apart from its logger and
// safe for reuse across pages.
type Parser struct {
	log logging.Logger
}

// New creates a parser.
func New(log logging.Logger) *Parser {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Parser{log: log.WithComponent("parser")}
}

// ParseFile reads and parses one source file. isLayout selects the layout
// section rules. Pure function of the file contents beyond diagnostics.
func (p *Parser) ParseFile(path string, isLayout bool) (*SourceDocument, error) {
	if !strings.EqualFold(filepath.Ext(path), Extension) {
		return nil, hpyerrors.Structural(filepath.Base(path), "not a valid %s file", Extension)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, hpyerrors.Resource(filepath.Base(path), err, "file not found")
		}
		return nil, hpyerrors.Resource(filepath.Base(path), err, "could not read file")
	}
	return p.Parse(path, string(raw), isLayout)
}

// Parse parses raw document text. path is used for diagnostics only.
func (p *Parser) Parse(path, content string, isLayout bool) (*SourceDocument, error) {
	ctx := context.Background()
	name := filepath.Base(path)

	doc := &SourceDocument{Path: path}

	// Component extraction must run before any other rule; see package doc.
	content, doc.Components = extractComponents(content)

	content, doc.ExternalStyleRefs = extractStyleLinks(content)

	styleBlocks := extractStyleBlocks(content)
	doc.StyleText = strings.Join(styleBlocks, "\n\n")

	inline, external, extraSrcs := extractScript(content)
	if isLayout && external != "" {
		p.log.Warn(ctx, nil, "layouts must use inline python; ignoring src attribute",
			"file", name, "src", external)
		external = ""
	}
	if external != "" {
		doc.ExternalScriptRef = filepath.Clean(external)
		if inline != "" {
			p.log.Debug(ctx, "inline python ignored because an external src is set",
				"file", name, "src", external)
		}
		if extraSrcs > 0 {
			p.log.Debug(ctx, "multiple python src tags; using the first",
				"file", name, "src", external)
		}
	} else {
		doc.InlineScript = inline
	}

	if isLayout {
		if err := p.parseLayoutSections(doc, content, name); err != nil {
			return nil, err
		}
	} else {
		p.parsePageSections(doc, content, name)
	}

	// Style blocks that sat inside the head section were already collected
	// into StyleText; drop them from the fragment so they are emitted once.
	doc.HeadFragment = strings.TrimSpace(styleBlockRegex.ReplaceAllString(doc.HeadFragment, ""))
	doc.BodyMarkup = strings.TrimSpace(doc.BodyMarkup)

	return doc, nil
}

// parseLayoutSections fills head/body from the <hpy-head>/<hpy-body> pair,
// falling back to the legacy single <html> block, and enforces the
// page-content placeholder.
func (p *Parser) parseLayoutSections(doc *SourceDocument, content, name string) error {
	if body, ok := extractSection(bodySectionRegex, content); ok {
		doc.BodyMarkup = body
		if head, ok := extractSection(headSectionRegex, content); ok {
			doc.HeadFragment = head
		}
	} else if body, ok := extractSection(htmlSectionRegex, content); ok {
		// Legacy single-block layout.
		doc.BodyMarkup = body
	} else {
		return hpyerrors.Structural(name, "layout requires an <hpy-body> or <html> section")
	}

	if n := strings.Count(doc.BodyMarkup, config.LayoutPlaceholder); n != 1 {
		return hpyerrors.Structural(name, "layout body must contain %q exactly once, found %d",
			config.LayoutPlaceholder, n)
	}
	return nil
}

// parsePageSections fills head/body for a page document. A page without a
// primary <html> element degrades to the remaining stripped text with a
// diagnostic instead of failing.
func (p *Parser) parsePageSections(doc *SourceDocument, content, name string) {
	if head, ok := extractSection(headSectionRegex, content); ok {
		doc.HeadFragment = head
		content = headSectionRegex.ReplaceAllString(content, "")
	}

	if body, ok := extractSection(htmlSectionRegex, content); ok {
		doc.BodyMarkup = body
		return
	}

	p.log.Warn(context.Background(), nil, "no <html> section; using remaining text as body", "file", name)
	doc.BodyMarkup = stripKnownBlocks(content)
}

// extractComponents replaces every component invocation with a placeholder
// token and records name + props under a fresh instance id. Both
// self-closing tags and immediately-closed pairs are accepted; a pair's
// enclosed content is discarded (components take props, not children).
func extractComponents(content string) (string, map[string]Invocation) {
	comps := make(map[string]Invocation)
	var out strings.Builder

	for {
		loc := componentOpenRegex.FindStringSubmatchIndex(content)
		if loc == nil {
			out.WriteString(content)
			break
		}

		out.WriteString(content[:loc[0]])
		tagName := content[loc[2]:loc[3]]
		attrs := content[loc[4]:loc[5]]
		rest := content[loc[1]:]

		if !strings.HasSuffix(strings.TrimSpace(attrs), "/") {
			closeTag := "</" + tagName + ">"
			if idx := strings.Index(rest, closeTag); idx >= 0 {
				rest = rest[idx+len(closeTag):]
			}
		}

		id := uuid.NewString()
		comps[id] = Invocation{ID: id, Name: tagName, Props: parseProps(attrs)}
		out.WriteString(Placeholder(id))
		content = rest
	}

	return out.String(), comps
}

// parseProps parses a component tag's attribute text into a prop map. Which
// quote kind matched is read off the submatch offsets: an empty quoted value
// still participates in the match, while a bare boolean name leaves both
// value groups at -1.
func parseProps(attrs string) map[string]string {
	attrs = strings.TrimSuffix(strings.TrimSpace(attrs), "/")
	props := make(map[string]string)
	for _, m := range attrRegex.FindAllStringSubmatchIndex(attrs, -1) {
		key := attrs[m[2]:m[3]]
		switch {
		case m[4] >= 0:
			props[key] = attrs[m[4]:m[5]]
		case m[6] >= 0:
			props[key] = attrs[m[6]:m[7]]
		default:
			props[key] = "true"
		}
	}
	return props
}

// extractStyleBlocks collects inline <style> contents in source order.
func extractStyleBlocks(content string) []string {
	var blocks []string
	for _, m := range styleBlockRegex.FindAllStringSubmatch(content, -1) {
		if trimmed := strings.TrimSpace(m[1]); trimmed != "" {
			blocks = append(blocks, trimmed)
		}
	}
	return blocks
}

// extractStyleLinks strips stylesheet-link markers from the content and
// returns the referenced relative paths in encounter order.
func extractStyleLinks(content string) (string, []string) {
	var refs []string
	stripped := styleLinkRegex.ReplaceAllStringFunc(content, func(tag string) string {
		if m := hrefRegex.FindStringSubmatch(tag); m != nil {
			href := m[1]
			if href == "" {
				href = m[2]
			}
			refs = append(refs, filepath.Clean(strings.TrimSpace(href)))
		}
		return ""
	})
	return stripped, refs
}

// extractScript determines script linkage: the first non-empty explicit src
// wins over any inline content. extraSrcs counts further src tags beyond the
// first, surfaced as a verbose-only diagnostic by the caller.
func extractScript(content string) (inline, external string, extraSrcs int) {
	srcs := pythonSrcRegex.FindAllStringSubmatch(content, -1)
	for _, m := range srcs {
		v := m[1]
		if v == "" {
			v = m[2]
		}
		if v = strings.TrimSpace(v); v != "" {
			external = v
			extraSrcs = len(srcs) - 1
			break
		}
	}

	var blocks []string
	for _, m := range pythonBlockRegex.FindAllStringSubmatch(content, -1) {
		if trimmed := strings.TrimSpace(m[1]); trimmed != "" {
			blocks = append(blocks, trimmed)
		}
	}
	inline = strings.Join(blocks, "\n\n")
	return inline, external, extraSrcs
}

// extractSection returns group 1 of the first match, trimmed.
func extractSection(re *regexp.Regexp, content string) (string, bool) {
	m := re.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// stripKnownBlocks removes script/style/head blocks and link markers, leaving
// the fallback body text for pages without a primary <html> element.
func stripKnownBlocks(content string) string {
	content = headSectionRegex.ReplaceAllString(content, "")
	content = styleBlockRegex.ReplaceAllString(content, "")
	content = pythonBlockRegex.ReplaceAllString(content, "")
	content = pythonSelfClose.ReplaceAllString(content, "")
	content = styleLinkRegex.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}
