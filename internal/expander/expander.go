// Package expander resolves component placeholder tokens into rendered,
// scoped markup.
//
// Expansion is an explicit depth-bounded recursive descent (never a
// substitute-until-fixpoint loop), so termination is structurally guaranteed
// even for self-referencing components. Failures local to one component
// degrade to inline HTML comments instead of failing the page.
package expander

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/conneroisu/hpy/internal/logging"
	"github.com/conneroisu/hpy/internal/parser"
	"github.com/conneroisu/hpy/internal/registry"
)

// MaxDepth bounds component nesting; exceeding it yields an inline marker.
const MaxDepth = 10

// ScopeAttrPrefix prefixes the per-instance scope attribute name.
const ScopeAttrPrefix = "data-hpy-"

var (
	propsRegex = regexp.MustCompile(`\{props\.([A-Za-z0-9_]+)\}`)

	// openTagRegex matches opening element tags; closing tags and comments
	// (including placeholder tokens) start with "</" or "<!" and never match.
	openTagRegex = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9-]*)((?:"[^"]*"|'[^']*'|[^<>"'])*)>`)
)

// Expander renders component placeholders left by the parser.
type Expander struct {
	parser   *parser.Parser
	registry *registry.ComponentRegistry
	log      logging.Logger
}

// New creates an expander over a populated registry.
func New(p *parser.Parser, r *registry.ComponentRegistry, log logging.Logger) *Expander {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Expander{parser: p, registry: r, log: log.WithComponent("expander")}
}

// Expand replaces every placeholder in body with the rendered component
// markup, recursively, and returns the markup plus the scoped style blocks
// accumulated in page-render order. The registry is never mutated.
func (e *Expander) Expand(body string, comps map[string]parser.Invocation) (string, []string) {
	var styles []string
	markup := e.expand(body, comps, MaxDepth, &styles)
	return markup, styles
}

func (e *Expander) expand(body string, comps map[string]parser.Invocation, depth int, styles *[]string) string {
	return parser.PlaceholderRegex().ReplaceAllStringFunc(body, func(token string) string {
		id := parser.PlaceholderRegex().FindStringSubmatch(token)[1]
		inv, ok := comps[id]
		if !ok {
			return "<!-- hpy: unknown component instance -->"
		}
		return e.render(inv, depth, styles)
	})
}

// render produces one component instance's markup.
func (e *Expander) render(inv parser.Invocation, depth int, styles *[]string) string {
	ctx := context.Background()

	if depth <= 0 {
		e.log.Warn(ctx, nil, "max component depth exceeded", "component", inv.Name)
		return fmt.Sprintf("<!-- hpy: max component depth exceeded at <%s> -->", inv.Name)
	}

	path := e.registry.Path(inv.Name)
	if path == "" {
		e.log.Warn(ctx, nil, "component not registered", "component", inv.Name)
		return fmt.Sprintf("<!-- hpy: missing component <%s> -->", inv.Name)
	}

	doc, err := e.parser.ParseFile(path, false)
	if err != nil {
		e.log.Warn(ctx, err, "component failed to parse", "component", inv.Name)
		return fmt.Sprintf("<!-- hpy: failed component <%s>: %v -->", inv.Name, err)
	}

	markup := SubstituteProps(doc.BodyMarkup, inv.Props)

	style, err := e.collectStyle(doc)
	if err != nil {
		e.log.Warn(ctx, err, "component stylesheet unavailable", "component", inv.Name)
		return fmt.Sprintf("<!-- hpy: failed component <%s>: %v -->", inv.Name, err)
	}
	if style != "" {
		// One scope id per instance: two instances of the same component
		// get distinct scopes so their styles cannot leak into each other.
		attr := ScopeAttrPrefix + NewScopeID()
		*styles = append(*styles, ScopeCSS(style, attr))
		markup = tagOpeningElements(markup, attr)
	}

	return e.expand(markup, doc.Components, depth-1, styles)
}

// collectStyle merges a component's inline style text with the contents of
// its external stylesheet references, which are resolved relative to the
// component's own file and must exist.
func (e *Expander) collectStyle(doc *parser.SourceDocument) (string, error) {
	parts := make([]string, 0, 1+len(doc.ExternalStyleRefs))
	if doc.StyleText != "" {
		parts = append(parts, doc.StyleText)
	}
	for _, ref := range doc.ExternalStyleRefs {
		cssPath := filepath.Join(filepath.Dir(doc.Path), ref)
		raw, err := os.ReadFile(cssPath)
		if err != nil {
			return "", fmt.Errorf("stylesheet %q: %w", ref, err)
		}
		parts = append(parts, strings.TrimSpace(string(raw)))
	}
	return strings.Join(parts, "\n\n"), nil
}

// SubstituteProps replaces {props.KEY} occurrences with the invocation's
// prop values; missing keys substitute to the empty string.
func SubstituteProps(markup string, props map[string]string) string {
	return propsRegex.ReplaceAllStringFunc(markup, func(m string) string {
		key := propsRegex.FindStringSubmatch(m)[1]
		return props[key]
	})
}

// NewScopeID generates a fresh per-instance scope identifier.
func NewScopeID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ScopeCSS qualifies every top-level selector in css with [attr]. At-rule
// blocks pass through unscoped: qualifying their nested selectors correctly
// needs a real CSS parser, which this grammar deliberately avoids.
func ScopeCSS(css, attr string) string {
	var out strings.Builder
	i := 0
	for i < len(css) {
		open := strings.IndexByte(css[i:], '{')
		if open < 0 {
			out.WriteString(css[i:])
			break
		}
		open += i
		selector := css[i:open]

		// Consume through the matching close brace; at-rules nest.
		depth := 1
		j := open + 1
		for j < len(css) && depth > 0 {
			switch css[j] {
			case '{':
				depth++
			case '}':
				depth--
			}
			j++
		}
		block := css[open:j]

		if strings.HasPrefix(strings.TrimSpace(selector), "@") {
			out.WriteString(selector)
		} else {
			out.WriteString(qualifySelectors(selector, attr))
		}
		out.WriteString(block)
		i = j
	}
	return out.String()
}

// qualifySelectors appends [attr] to each comma-separated selector, placed
// before the first pseudo so ".btn:hover" becomes ".btn[attr]:hover".
func qualifySelectors(selectorList, attr string) string {
	leading := selectorList[:len(selectorList)-len(strings.TrimLeft(selectorList, " \t\r\n"))]
	parts := strings.Split(strings.TrimSpace(selectorList), ",")
	for i, part := range parts {
		sel := strings.TrimSpace(part)
		if sel == "" {
			continue
		}
		if idx := strings.Index(sel, ":"); idx >= 0 {
			parts[i] = sel[:idx] + "[" + attr + "]" + sel[idx:]
		} else {
			parts[i] = sel + "[" + attr + "]"
		}
	}
	return leading + strings.Join(parts, ", ") + " "
}

// tagOpeningElements adds the scope attribute to every opening tag produced
// by a component so its scoped selectors apply only to its own markup.
func tagOpeningElements(markup, attr string) string {
	return openTagRegex.ReplaceAllStringFunc(markup, func(tag string) string {
		inner := tag[1 : len(tag)-1]
		if strings.HasSuffix(strings.TrimSpace(inner), "/") {
			inner = strings.TrimSuffix(strings.TrimSpace(inner), "/")
			return "<" + strings.TrimSpace(inner) + " " + attr + " />"
		}
		return "<" + strings.TrimSpace(inner) + " " + attr + ">"
	})
}
