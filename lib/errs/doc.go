// Package errs defines the error taxonomy shared by every layer of the grid
// client: the serialization registry, the connection pool, the invocation
// service and the map proxy.
//
// Every failure surfaced to a caller is an *Error carrying a Code. The codes
// decide whether the invocation service retries an operation:
//
//   - CodeTargetDisconnected, CodePartitionMigrating, CodeWrongTarget and
//     CodeTargetNotMember are transient and retried up to the configured limit.
//   - CodeSerialization, CodeTimeout, CodeIllegalState, CodeIllegalArgument,
//     CodeInvalidConfiguration, CodeAuthentication, CodeClientNotActive,
//     CodeQuery and CodeRemote are surfaced immediately.
//
// Callers test for a class of error with errors.Is and the exported sentinels:
//
//	if errors.Is(err, errs.ErrTimeout) {
//		// deadline exceeded
//	}
package errs
