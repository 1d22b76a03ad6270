// Package client connects the SubMan device to the outside world and to its
// own disk.
//
// HTTPClient implements Client against the REST API. Every call is bounded
// by a timeout and carries the bearer token set with SetToken. Transport
// failures surface as ErrUnavailable, error statuses as *APIError wrapping
// ErrUnauthorized, ErrNotFound, ErrRejected or ErrServer, so callers branch with
// errors.Is. Server records are normalized on the way in: alternate field
// spellings are accepted and missing fields get defaults.
//
// InitDatabase and OpenStore prepare the local SQLite database and expose
// the repositories through Store, with InTx for multi-table updates.
package client
