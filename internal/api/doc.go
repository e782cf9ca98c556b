// Package api defines the transport types served by the daemon's HTTP API
// and the client the CLI uses to consume them.
package api
