/*
Package ports defines the driven ports (interfaces) for chatflow.

These interfaces decouple the editor and preview core from external
implementations, so the same HTTP and MCP adapters can run against
in-memory or Redis backed sessions and against flows loaded from any source.

# Key Interfaces

  - FlowLoader: Retrieves flow documents by id (e.g., from Loam or Memory).
  - SessionStore: Persists snapshots of preview sessions.
  - DistributedLocker: Coordinates access to a preview session across replicas.
*/
package ports
