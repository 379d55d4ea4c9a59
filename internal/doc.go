// Package internal contains the core implementation packages for hpy.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the hpy CLI tool.
//
// # Package Organization
//
// The internal packages are organized by pipeline stage:
//
//   - config: configuration loading, defaults, and the fixed filename and
//     placeholder conventions of the document syntax
//   - parser: .hpy document parsing into structured source documents
//   - registry: component discovery and name-to-file resolution
//   - expander: depth-bounded component expansion with style scoping
//   - compositor: final HTML assembly from page, layout, and app shell
//   - builder: directory compilation, asset resolution, the dependency
//     graph, and incremental watch-mode rebuilds
//   - watcher: debounced filesystem watching
//   - server: the development HTTP server with live reload support
//   - scaffolding: new-project generation
//   - errors: the build-error taxonomy and per-batch error collection
//   - logging: structured slog-based logging
package internal
