// Package simulator walks a Flow the way the preview panel does.
//
// A Simulator owns a SimulationState and advances it in response to
// simulated user input. Bot messages are paced with fixed delays scheduled
// on a schedule.Scheduler. Every pending emission is cancelled on Reset
// and carries the generation it was scheduled in, so nothing from an
// earlier conversation can reach the transcript after a reset.
//
// The simulator never returns errors. A flow with no entry point, a node
// without an outgoing edge and an edge pointing at a missing node are all
// normal places for the conversation to stop.
package simulator
