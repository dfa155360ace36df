// Package daemon coordinates the long-running khoj process.
//
// It wires configuration, case storage, the verification engine, and the
// HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances. Individual scoring and search steps live in their own
// packages; the daemon focuses on startup, shutdown, and request routing.
package daemon
