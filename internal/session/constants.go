// Package session provides the session cookie constants shared by the
// middleware and the command line tool that issues sessions.
package session

const (
	// CookieName is the name of the cookie that stores the session token.
	CookieName = "packs_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// CookieMaxAge sets the cookie expiration (7 days = 604800 seconds).
	// This should match SessionDuration in the user service.
	CookieMaxAge = 7 * 24 * 60 * 60
)
