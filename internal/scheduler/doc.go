// Package scheduler executes one feature set's statements with
// dependency-tracked concurrency.
//
// From the programmer's view statements run in declared order. Internally,
// each statement becomes a node in a small dependency graph: a statement
// depends on the statements that bind the names it references, on an
// earlier statement binding the same name, and, for externally visible
// effects (EXPORT, RESPONSE), on every preceding statement, which keeps
// the observed effect order identical to source order no matter how I/O
// completes. REQUEST-role actions complete their node as soon as their I/O
// is started, binding a resolvable handle; a later statement blocks only
// when it actually reads the handle.
//
// Statement tasks from all live executions share one worker pool. A
// statement failure aborts the remaining statements of its own execution
// and nothing else; a successful RESPONSE ends the execution immediately.
package scheduler
