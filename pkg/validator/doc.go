/*
Package validator judges whether a conversation flow is well-formed.

The checks are pure functions over a node and edge set: they never mutate
their input and report results as data rather than errors.

  - ValidateFlow gates the save action: a flow with more than one entry point is rejected.
  - ValidateNodeConnections asserts that no output handle carries two edges.
  - FindDisconnectedNodes lists nodes with neither incoming nor outgoing edges.

Lint goes further and inspects payloads, but it is advisory and never consulted by ValidateFlow.
*/
package validator
