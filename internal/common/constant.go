package common

const (
	// AuthorizationHeaderName carries the bearer token on outbound requests.
	AuthorizationHeaderName = "Authorization"
	// BearerPrefix precedes the token value in the Authorization header.
	BearerPrefix = "Bearer "

	// Metadata keys for scalar settings kept in the local store.
	MetaAuthToken   = "auth_token"
	MetaCurrentUser = "current_user"
	MetaLastSync    = "last_sync"
)
