// Package scan contains the discovery engine: the Reconciler that
// derives lifecycle events from fresh observations, the Orchestrator
// that runs one scan session end to end, and the Scheduler that fires
// sessions on an interval with single-flight discipline.
package scan
