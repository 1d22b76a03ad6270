// Package cli provides the interactive SubMan terminal client.
//
// NewApp wires configuration, the local SQLite store, the REST client, the
// sync queue and the subscription and auth services. App.Run restores the
// previous session, starts a background connectivity watcher (and, when
// configured, a Prometheus /metrics endpoint) and then blocks in the REPL.
//
// Changes made while the API is unreachable are saved locally and replayed
// in order once the watcher sees the server again.
package cli
