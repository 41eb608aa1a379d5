/*
Package session serializes access to persisted conversation sessions.

A Manager wraps a ports.SessionStore and guarantees that, per session ID, only
one caller at a time runs a load-modify-save cycle. Locks are local mutexes,
optionally backed by a ports.DistributedLocker when several replicas share the
same store.
*/
package session
