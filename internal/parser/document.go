package parser

// Invocation is one discovered component tag, keyed by a generated instance
// id. Props hold quoted attribute values; bare attribute names map to "true".
type Invocation struct {
	ID    string
	Name  string
	Props map[string]string
}

// SourceDocument is the structured form of one .hpy file. It is produced by
// the parser and consumed once per compile; it never outlives the build of
// the page it belongs to (the cached layout parse is the one exception).
type SourceDocument struct {
	// Path is the source file path, used for diagnostics and for resolving
	// component-relative stylesheet references.
	Path string

	// BodyMarkup is the HTML fragment for the page or layout body, with
	// every component invocation replaced by a placeholder token.
	BodyMarkup string

	// HeadFragment is markup destined for <head>; empty when absent.
	HeadFragment string

	// StyleText is the concatenation of inline <style> blocks in source
	// order, blank-line separated.
	StyleText string

	// ExternalStyleRefs are relative paths from stylesheet-link markers in
	// encounter order. Deduplication by absolute path happens in the
	// builder, not here.
	ExternalStyleRefs []string

	// InlineScript is the joined inline <python> source. Empty whenever
	// ExternalScriptRef is set: the external reference wins.
	InlineScript string

	// ExternalScriptRef is the relative path from a <python src="..."> tag.
	ExternalScriptRef string

	// Components maps instance ids to the invocations discovered in this
	// document's markup.
	Components map[string]Invocation
}

// HasScript reports whether the document carries any scripting content.
func (d *SourceDocument) HasScript() bool {
	return d.InlineScript != "" || d.ExternalScriptRef != ""
}
