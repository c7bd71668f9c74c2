// Package cmd implements the command-line interface of dgrid. It provides a
// hierarchical command structure for running a local cluster and working
// with it as a client.
//
// The package is organized into several subpackages:
//
//   - maps: Commands for distributed map operations (put, get, values, aggregate, perf, ...)
//   - serve: Starts a local cluster of in-process members
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as environment variable DGRID_<FLAG>, .env and
// .env.local files are loaded on start. See dgrid -help for a list of all
// commands.
package cmd
