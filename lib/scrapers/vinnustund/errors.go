package vinnustund

import "errors"

var (
	// ErrInvalidParameters means a date failed syntax validation. Raised
	// before any network call.
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrCredentialsRejected means the login POST went through at the
	// transport level but the response did not carry the full session
	// cookie set.
	ErrCredentialsRejected = errors.New("credentials rejected")
	// ErrTransportFailure covers network errors, timeouts and
	// non-success statuses unrelated to authentication.
	ErrTransportFailure = errors.New("transport failure")
	// ErrSessionExpired means the remote rejected a previously valid
	// session, or the single allowed relogin-and-retry also failed.
	ErrSessionExpired = errors.New("session expired")
	// ErrRemote means the remote returned an unexpected non-auth
	// failure status.
	ErrRemote = errors.New("remote error")
)

// Kind maps an error from this package onto the stable name the API
// layer reports, so operators can tell a caller error from a
// credentials or remote-site problem.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidParameters):
		return "InvalidParameters"
	case errors.Is(err, ErrSessionExpired):
		return "SessionExpired"
	case errors.Is(err, ErrCredentialsRejected):
		return "CredentialsRejected"
	case errors.Is(err, ErrTransportFailure):
		return "TransportFailure"
	case errors.Is(err, ErrRemote):
		return "RemoteError"
	default:
		return "InternalError"
	}
}
