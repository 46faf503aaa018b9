/*
Package session hosts preview conversations for remote clients.

A Manager keeps one live simulator per session and persists a snapshot of
its state to a ports.SessionStore after every change, so readers (HTTP
polling, event streams, other replicas) never touch the simulator itself.
Commands on a session are serialized with a ref-counted local mutex and,
when configured, a ports.DistributedLocker.
*/
package session
