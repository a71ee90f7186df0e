// Package csrf provides anti-forgery protection for state-changing forms.
//
// Two mechanisms are used together:
//   - Action nonces (nonce.go) bind a form to one action and one user.
//   - A double-submit cookie guards the admin forms against cross-site
//     posts from sessions that already hold a valid nonce.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
)

const (
	// CookieName is the name of the double-submit cookie.
	CookieName = "packs_csrf"

	// FormFieldName is the hidden form field carrying the cookie value.
	FormFieldName = "csrf_token"

	// TokenLength is the number of random bytes in a cookie token.
	TokenLength = 32

	// CookieMaxAge is the lifetime of the cookie in seconds.
	CookieMaxAge = 3600
)

// GenerateToken returns 32 random bytes, base64 URL-encoded.
func GenerateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ValidateRequest compares the cookie with the submitted form field.
// ParseForm must have been called.
func ValidateRequest(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	formToken := r.FormValue(FormFieldName)
	if formToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(formToken)) == 1
}

// EnsureToken returns the request's cookie token, issuing a new cookie
// when there is none.
func EnsureToken(w http.ResponseWriter, r *http.Request, secure bool) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}
