// Package sink persists finished request events for auditing.
//
// A sink receives a Snapshot once its event reaches a terminal state. Sinks
// never see queued work, only outcomes, so losing a sink write cannot lose
// a task.
package sink
