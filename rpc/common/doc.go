// Package common provides the data structures shared by the grid client and
// the in-process member: the message protocol, configuration structures and
// the logging setup.
//
// Key Components:
//
//   - Message: the single structure used for requests, responses and cluster
//     events. Factory functions create the request of every map and client
//     operation and the matching responses. The response type of a request
//     is the request type + 1; errors are answered with MsgTError carrying
//     an lib/errs code so that the client can decide whether to retry.
//
//   - ClientConfig / MemberConfig: configuration with defaults, validation
//     and a printable representation.
//
//   - Logger: a custom formatter installed as the dragonboat logger factory;
//     every package uses a named logger obtained from logger.GetLogger.
package common
