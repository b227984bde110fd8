// Package pipeline drives a problem through the staged solving state
// machine: PARSING, ROUTING, SOLVING, VERIFYING, EXPLAINING, DONE, with
// PAUSED reachable from any state and ABANDONED terminal.
//
// The Orchestrator owns the run's trace and current problem version. After
// every stage invocation it hands the stage's confidence to the trigger
// Evaluator, a pure function that decides whether to continue, retry, or
// pause for a human. Paused runs persist their full state to a RunStore and
// hold no resources while waiting; Resume and Abandon are the only inbound
// operations on a paused run.
package pipeline
