// Package loader loads backend module files into isolated engine
// namespaces and keeps the record of what loaded and what did not.
//
// Each (name, version) is loaded at most once. A repeat request returns
// the recorded Module, whether it loaded or failed. A failure disables
// only that backend version: it is recorded with its path and
// diagnostic, logged, and reported as a KindLoadFailure error.
//
// Info summarises the loader state the way callers ask about it: which
// versions of a backend work, and why the others do not.
package loader
