// Package internal drives the constant propagation pass over IR files.
//
// The Engine loads YAML IR documents, analyses and rewrites their functions
// in parallel and collects per-function reports. It can also watch
// directories and re-run whenever an IR file changes.
package internal
