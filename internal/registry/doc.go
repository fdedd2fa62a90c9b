// Package registry provides the central glue between parsed statements and
// the Go code that executes them.
//
// The Registry stores the mapping from verbs used in ARO source (e.g.
// "Retrieve", "Emit") to Action descriptors: the action's data-flow role,
// its verb set, the prepositions it accepts, and its execute function. It is
// built once at startup from the core modules plus any externally supplied
// services, and is read-only afterwards, so concurrent executions resolve
// statements against it without locking.
//
// Duplicate verb registration is rejected at startup as a configuration
// error; the original registration remains authoritative.
package registry
