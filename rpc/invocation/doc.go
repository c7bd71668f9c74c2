// Package invocation implements the request life cycle of the client: target
// resolution, sending, retries and deadlines.
//
// An invocation resolves its target (partition owner, member, any member or
// a fixed connection) to a connection, registers itself under a fresh
// correlation id and writes the request. A retryable failure (target
// disconnected, partition migrating, wrong target, target not a member,
// unclassified I/O errors) schedules the next attempt with exponential
// backoff and jitter. Migrating and wrong target failures also trigger a
// refresh of the cluster view.
//
// Every invocation is resolved exactly once. The deadline resolves it with a
// Timeout error regardless of the retry state; responses and failures that
// arrive afterwards, or that belong to an older attempt, are dropped.
//
// Metrics (VictoriaMetrics):
//
//	dgrid_client_invocations_total
//	dgrid_client_invocation_retries_total
//	dgrid_client_invocation_timeouts_total
//	dgrid_client_invocation_failures_total
//	dgrid_client_invocation_duration_seconds
package invocation
