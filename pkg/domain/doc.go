/*
Package domain contains the core domain models for chatflow.

It defines the conversation graph authored in the flow builder and the
transient state produced when that graph is previewed. This package is kept
pure and free of I/O or persistence concerns, following Hexagonal Architecture
principles.

# Key Entities

  - Node: One conversational step (Message, Image or Quick Replies) with a typed payload.
  - Edge: A directed connection from a node's output handle to another node.
  - Flow: An immutable, revisioned snapshot of nodes and edges.
  - ConversationMessage: A bot or user chat bubble produced by the preview.
  - SimulationState: The transcript and current position of a preview session.
*/
package domain
